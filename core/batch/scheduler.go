package batch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/combin"
)

var (
	// ErrNoJobs is returned for an empty job table.
	ErrNoJobs = errors.New("batch: no jobs")
	// ErrInvalidParams is returned for out-of-range search parameters.
	ErrInvalidParams = errors.New("batch: invalid parameters")
)

// Deadline is a predicted time with the probability attached to it.
type Deadline struct {
	Time        float64 `json:"time" yaml:"time"`
	Probability float64 `json:"probability" yaml:"probability"`
}

// Job is one row of the deadline table.
type Job struct {
	ID string `json:"id" yaml:"id"`
	// EarliestDuration and LatestDuration bound the handling time; the blend
	// factor interpolates between them.
	EarliestDuration float64  `json:"earliest_duration" yaml:"earliest_duration"`
	LatestDuration   float64  `json:"latest_duration" yaml:"latest_duration"`
	Earliest         Deadline `json:"earliest" yaml:"earliest"`
	Probable         Deadline `json:"probable" yaml:"probable"`
}

// Duration returns the nominal handling time for blend factor r.
func (j Job) Duration(r float64) float64 {
	return r*j.LatestDuration + (1-r)*j.EarliestDuration
}

// Params are the tunable search parameters.
type Params struct {
	Vehicles  int     `json:"vehicles" yaml:"vehicles"`
	Blend     float64 `json:"blend" yaml:"blend"`
	BatchSize int     `json:"batch_size" yaml:"batch_size"`
	BeamWidth int     `json:"beam_width" yaml:"beam_width"`
	// Workers bounds parallel parent expansion; 0 means GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.Vehicles < 1:
		return fmt.Errorf("%w: vehicles must be >= 1", ErrInvalidParams)
	case p.Blend < 0 || p.Blend > 1 || math.IsNaN(p.Blend):
		return fmt.Errorf("%w: blend must be in [0,1]", ErrInvalidParams)
	case p.BatchSize < 1:
		return fmt.Errorf("%w: batch_size must be >= 1", ErrInvalidParams)
	case p.BeamWidth < 1:
		return fmt.Errorf("%w: beam_width must be >= 1", ErrInvalidParams)
	case p.Workers < 0:
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidParams)
	}
	return nil
}

// Entry is one job on a vehicle ledger.
type Entry struct {
	JobID         string  `json:"job_id"`
	Start         float64 `json:"start"`
	Duration      float64 `json:"duration"`
	Finish        float64 `json:"finish"`
	Deadline      float64 `json:"deadline"`
	Delay         float64 `json:"delay"`
	WeightedDelay float64 `json:"weighted_delay"`
	// ReturnAt is when the vehicle is back after the round trip.
	ReturnAt float64 `json:"return_at"`
}

// Candidate is a job order with its per-vehicle ledgers and aggregates.
type Candidate struct {
	Order         []string  `json:"order"`
	Ledgers       [][]Entry `json:"ledgers"`
	Delay         float64   `json:"delay"`
	WeightedDelay float64   `json:"weighted_delay"`
	Makespan      float64   `json:"makespan"`
}

// Assignment returns the job ids of every vehicle in service order.
func (c Candidate) Assignment() [][]string {
	out := make([][]string, len(c.Ledgers))
	for i, l := range c.Ledgers {
		out[i] = make([]string, len(l))
		for k, e := range l {
			out[i][k] = e.JobID
		}
	}
	return out
}

// Result is the outcome of a search.
type Result struct {
	// Best is the winning candidate evaluated against the earliest deadlines.
	Best Candidate `json:"best"`
	// Probable is Best's order re-simulated against the probable deadlines.
	Probable Candidate `json:"probable"`
	// Beam holds the surviving candidates, best first.
	Beam []Candidate `json:"beam"`
}

// deadlineOf picks which deadline a simulation is evaluated against.
type deadlineOf func(Job) Deadline

func earliest(j Job) Deadline { return j.Earliest }
func probable(j Job) Deadline { return j.Probable }

// Schedule runs the beam search. It is pure and safe for concurrent use.
//
// A single beam search is not monotone in its width, so every width up to
// p.BeamWidth is searched and the best candidate found by any of them wins.
// Widening stops at the first width whose beam was never cut, since wider
// beams return the same result. Beam holds the survivors of the widest
// search.
func Schedule(ctx context.Context, jobs []Job, p Params) (Result, error) {
	if len(jobs) == 0 {
		return Result{}, ErrNoJobs
	}
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	sorted, err := sortJobs(jobs)
	if err != nil {
		return Result{}, err
	}
	workers := p.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	seeded := min(p.Vehicles, len(sorted))
	seed := Candidate{Ledgers: make([][]Entry, p.Vehicles)}
	for i := 0; i < seeded; i++ {
		seed.Ledgers[i] = []Entry{entry(sorted[i], 0, p.Blend, earliest)}
		seed.Order = append(seed.Order, sorted[i].ID)
	}
	seed = summarize(seed)

	var (
		best Candidate
		beam []Candidate
	)
	for width := 1; width <= p.BeamWidth; width++ {
		survivors, cut, err := search(ctx, seed, sorted[seeded:], p, workers, width)
		if err != nil {
			return Result{}, err
		}
		if width == 1 || better(survivors[0], best) {
			best = survivors[0]
		}
		beam = survivors
		if !cut {
			break
		}
	}

	return Result{
		Best:     best,
		Probable: Simulate(best.Order, jobs, p.Vehicles, p.Blend),
		Beam:     beam,
	}, nil
}

// search runs one beam search of the given width over the unseeded jobs.
// cut reports whether any level held more than width candidates.
func search(ctx context.Context, seed Candidate, rest []Job, p Params, workers, width int) (beam []Candidate, cut bool, err error) {
	beam = []Candidate{seed}
	for start := 0; start < len(rest); start += p.BatchSize {
		batch := rest[start:min(start+p.BatchSize, len(rest))]
		slots := make([][]Candidate, len(beam))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, parent := range beam {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				slots[i] = expand(parent, batch, p.Blend)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, false, err
		}
		var next []Candidate
		for _, s := range slots {
			next = append(next, s...)
		}
		rank(next)
		if len(next) > width {
			next = next[:width]
			cut = true
		}
		beam = next
	}
	return beam, cut, nil
}

// Simulate assigns jobs in the given order starting from empty vehicles and
// evaluates them against the probable deadlines. Unknown ids are skipped.
func Simulate(order []string, jobs []Job, vehicles int, blend float64) Candidate {
	byID := make(map[string]Job, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
	}
	c := Candidate{Ledgers: make([][]Entry, vehicles)}
	for _, id := range order {
		j, ok := byID[id]
		if !ok {
			continue
		}
		assign(c.Ledgers, j, blend, probable)
		c.Order = append(c.Order, id)
	}
	return summarize(c)
}

// expand simulates every permutation of batch on top of parent. A
// permutation is dropped when it is worse than the best one seen so far.
func expand(parent Candidate, batch []Job, blend float64) []Candidate {
	var out []Candidate
	best := math.Inf(1)
	gen := combin.NewPermutationGenerator(len(batch), len(batch))
	perm := make([]int, len(batch))
	for gen.Next() {
		gen.Permutation(perm)
		c := Candidate{
			Order:   make([]string, len(parent.Order), len(parent.Order)+len(batch)),
			Ledgers: cloneLedgers(parent.Ledgers),
		}
		copy(c.Order, parent.Order)
		for _, k := range perm {
			assign(c.Ledgers, batch[k], blend, earliest)
			c.Order = append(c.Order, batch[k].ID)
		}
		raw := rawWeighted(c.Ledgers)
		if raw > best {
			continue
		}
		best = raw
		out = append(out, summarize(c))
	}
	return out
}

// assign appends j to the vehicle that returns first. Empty vehicles return
// at 0 and the lowest index wins ties.
func assign(ledgers [][]Entry, j Job, blend float64, dl deadlineOf) {
	sel := 0
	selAt := math.Inf(1)
	for i, l := range ledgers {
		at := 0.0
		if len(l) > 0 {
			at = l[len(l)-1].ReturnAt
		}
		if at < selAt {
			sel, selAt = i, at
		}
	}
	ledgers[sel] = append(ledgers[sel], entry(j, selAt, blend, dl))
}

func entry(j Job, start, blend float64, dl deadlineOf) Entry {
	d := j.Duration(blend)
	deadline := dl(j)
	finish := start + d
	delay := finish - deadline.Time
	return Entry{
		JobID:         j.ID,
		Start:         start,
		Duration:      d,
		Finish:        finish,
		Deadline:      deadline.Time,
		Delay:         delay,
		WeightedDelay: round(delay*deadline.Probability, 1e5),
		ReturnAt:      start + 2*d,
	}
}

func summarize(c Candidate) Candidate {
	var delay float64
	c.Makespan = 0
	for _, l := range c.Ledgers {
		for _, e := range l {
			delay += e.Delay
		}
		if len(l) > 0 {
			c.Makespan = math.Max(c.Makespan, l[len(l)-1].ReturnAt)
		}
	}
	c.Delay = round(delay, 1e3)
	c.WeightedDelay = round(rawWeighted(c.Ledgers), 1e3)
	return c
}

func rawWeighted(ledgers [][]Entry) float64 {
	var w float64
	for _, l := range ledgers {
		for _, e := range l {
			w += e.WeightedDelay
		}
	}
	return w
}

// better orders candidates by weighted delay then makespan.
func better(a, b Candidate) bool {
	if a.WeightedDelay != b.WeightedDelay {
		return a.WeightedDelay < b.WeightedDelay
	}
	return a.Makespan < b.Makespan
}

// rank sorts candidates with better, keeping the generation order of equal
// candidates.
func rank(cs []Candidate) {
	sort.SliceStable(cs, func(a, b int) bool { return better(cs[a], cs[b]) })
}

// sortJobs orders jobs by probable deadline, rejecting duplicate ids.
func sortJobs(jobs []Job) ([]Job, error) {
	seen := make(map[string]struct{}, len(jobs))
	for _, j := range jobs {
		if _, dup := seen[j.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate job %q", ErrInvalidParams, j.ID)
		}
		seen[j.ID] = struct{}{}
	}
	sorted := append([]Job(nil), jobs...)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Probable.Time < sorted[b].Probable.Time })
	return sorted, nil
}

func cloneLedgers(ls [][]Entry) [][]Entry {
	out := make([][]Entry, len(ls))
	for i, l := range ls {
		out[i] = append([]Entry(nil), l...)
	}
	return out
}

func round(v, scale float64) float64 {
	return math.Round(v*scale) / scale
}

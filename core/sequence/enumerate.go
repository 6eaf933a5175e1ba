// Package sequence enumerates every feasible completion order of a job and
// derives per-position operation statistics from them.
package sequence

import (
	"errors"
	"fmt"

	"github.com/kilianp07/shopflow/core/model"
	"github.com/kilianp07/shopflow/core/precedence"
)

// ErrTooManySequences is returned when enumeration exceeds the configured limit.
var ErrTooManySequences = errors.New("sequence: enumeration limit exceeded")

// DefaultLimit bounds the number of emitted sequences.
const DefaultLimit = 100000

// Enumerate returns every ordering of the operations not in done that respects
// g. Sequences only contain the remaining operations, as indices into the
// product's operation arena. When nothing remains a single empty sequence is
// returned. A limit <= 0 disables the bound.
func Enumerate(g *precedence.Graph, done []bool, limit int) ([][]int, error) {
	if len(done) != g.Len() {
		return nil, fmt.Errorf("sequence: done set has %d entries, graph %d", len(done), g.Len())
	}
	var out [][]int
	stack := [][]int{{}}
	mask := make([]bool, len(done))
	for len(stack) > 0 {
		partial := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		copy(mask, done)
		for _, i := range partial {
			mask[i] = true
		}
		next := g.Eligible(mask)
		if len(next) == 0 {
			out = append(out, partial)
			if limit > 0 && len(out) > limit {
				return nil, fmt.Errorf("%w: more than %d sequences", ErrTooManySequences, limit)
			}
			continue
		}
		// reverse push keeps depth-first emission in index order
		for k := len(next) - 1; k >= 0; k-- {
			child := make([]int, len(partial)+1)
			copy(child, partial)
			child[len(partial)] = next[k]
			stack = append(stack, child)
		}
	}
	return out, nil
}

// ForJob enumerates the futures of j. A non-nil inFlight operation is treated
// as already completed.
func ForJob(j *model.Job, inFlight *model.Operation, limit int) ([][]int, error) {
	done := j.Done()
	if inFlight != nil {
		if i := j.Product.Index(inFlight); i >= 0 {
			done[i] = true
		}
	}
	return Enumerate(j.Product.Graph, done, limit)
}

// Regenerate recomputes the sequences and position statistics of j, using the
// currently planned operation as in-flight.
func Regenerate(j *model.Job, limit int) error {
	var inFlight *model.Operation
	finishing := 0.0
	if pl, ok := j.Planned(); ok {
		inFlight = pl.Operation
		finishing = pl.Operation.TotalTime() + j.Metrics.LastTime
	}
	seqs, err := ForJob(j, inFlight, limit)
	if err != nil {
		return err
	}
	j.Sequences = seqs
	j.Stats = Analyze(seqs, j.Product.Operations, finishing)
	return nil
}

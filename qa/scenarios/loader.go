// Package scenarios loads YAML shop-floor scenarios and builds runnable
// simulations from them.
package scenarios

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/shopflow/core/dispatch"
	"github.com/kilianp07/shopflow/core/events"
	"github.com/kilianp07/shopflow/core/fleet"
	"github.com/kilianp07/shopflow/core/forecast"
	"github.com/kilianp07/shopflow/core/logger"
	"github.com/kilianp07/shopflow/core/model"
	"github.com/kilianp07/shopflow/core/precedence"
	"github.com/kilianp07/shopflow/core/shop"
)

type StationDef struct {
	ID           string      `yaml:"id"`
	Position     model.Point `yaml:"position"`
	Capabilities []string    `yaml:"capabilities"`
}

type OperationDef struct {
	Name             string  `yaml:"name"`
	ProcessingTime   float64 `yaml:"processing_time"`
	SetupTime        float64 `yaml:"setup_time,omitempty"`
	FollowUpTime     float64 `yaml:"follow_up_time,omitempty"`
	MaterialRequired bool    `yaml:"material_required,omitempty"`
	// After lists the operations that must be completed first.
	After []string `yaml:"after,omitempty"`
}

type ProductDef struct {
	Name       string         `yaml:"name"`
	Operations []OperationDef `yaml:"operations"`
}

// ToModel builds the product and its precedence graph.
func (p ProductDef) ToModel() (*model.Product, error) {
	index := make(map[string]int, len(p.Operations))
	for i, op := range p.Operations {
		index[op.Name] = i
	}
	ops := make([]*model.Operation, len(p.Operations))
	preds := make([][]int, len(p.Operations))
	for i, op := range p.Operations {
		ops[i] = &model.Operation{
			Name:             op.Name,
			ProcessingTime:   op.ProcessingTime,
			SetupTime:        op.SetupTime,
			FollowUpTime:     op.FollowUpTime,
			MaterialRequired: op.MaterialRequired,
		}
		for _, name := range op.After {
			k, ok := index[name]
			if !ok {
				return nil, fmt.Errorf("product %s: operation %s depends on unknown %s", p.Name, op.Name, name)
			}
			preds[i] = append(preds[i], k)
		}
	}
	g, err := precedence.FromPredecessors(len(ops), preds)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", p.Name, err)
	}
	return model.NewProduct(p.Name, ops, g)
}

type WarehouseDef struct {
	ID       string      `yaml:"id"`
	Position model.Point `yaml:"position"`
	// Unset delays fall back to the build options.
	LoadDelay   *float64 `yaml:"load_delay,omitempty"`
	UnloadDelay *float64 `yaml:"unload_delay,omitempty"`
}

type VehicleDef struct {
	ID       string      `yaml:"id"`
	Position model.Point `yaml:"position"`
}

type JobDef struct {
	ID      string  `yaml:"id"`
	Product string  `yaml:"product"`
	DueDate float64 `yaml:"due_date"`
	Release float64 `yaml:"release"`
	Rush    bool    `yaml:"rush,omitempty"`
	// Count releases that many copies, suffixed -1, -2, ...
	Count int `yaml:"count,omitempty"`
}

// DisruptionDef takes a station out of service.
type DisruptionDef struct {
	Station string  `yaml:"station"`
	At      float64 `yaml:"at"`
}

// Expected is checked against the run report. Nil fields are not checked.
type Expected struct {
	Completed  *int     `yaml:"completed,omitempty"`
	Infeasible *int     `yaml:"infeasible,omitempty"`
	Makespan   *float64 `yaml:"makespan,omitempty"`
	// Assertions are boolean expressions over the report.
	Assertions []string `yaml:"assertions,omitempty"`
}

type Scenario struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Policy      string          `yaml:"policy,omitempty"`
	Speed       float64         `yaml:"speed,omitempty"`
	Source      model.Point     `yaml:"source"`
	Sink        model.Point     `yaml:"sink"`
	Stations    []StationDef    `yaml:"stations"`
	Products    []ProductDef    `yaml:"products"`
	Warehouses  []WarehouseDef  `yaml:"warehouses,omitempty"`
	Vehicles    []VehicleDef    `yaml:"vehicles,omitempty"`
	Jobs        []JobDef        `yaml:"jobs"`
	Disruptions []DisruptionDef `yaml:"disruptions,omitempty"`
	Expected    Expected        `yaml:"expected"`
}

// BuildOptions are the run settings a scenario does not carry itself.
type BuildOptions struct {
	Dispatch      dispatch.Config
	Speed         float64
	LoadDelay     float64
	UnloadDelay   float64
	SequenceLimit int
	Emit          func(events.JobEvent)
	Logger        logger.Logger
}

func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) (*Scenario, error) {
	var sc Scenario
	if err := yaml.NewDecoder(r).Decode(&sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		sc.Name = "unnamed"
	}
	return &sc, nil
}

// Build creates a Floor with every job and disruption scheduled.
func (sc *Scenario) Build(opts BuildOptions) (*shop.Floor, error) {
	cfg := opts.Dispatch
	if sc.Policy != "" {
		p, err := dispatch.ParsePolicy(sc.Policy)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		cfg.Policy = p
	}
	speed := opts.Speed
	if sc.Speed > 0 {
		speed = sc.Speed
	}
	if speed <= 0 {
		speed = 1
	}
	router := shop.EuclideanRouter{Speed: speed}

	products := make(map[string]*model.Product, len(sc.Products))
	for _, pd := range sc.Products {
		p, err := pd.ToModel()
		if err != nil {
			return nil, err
		}
		products[pd.Name] = p
	}
	stations := make([]*shop.Station, len(sc.Stations))
	for i, sd := range sc.Stations {
		stations[i] = shop.NewStation(sd.ID, sd.Position, sd.Capabilities)
	}

	var fl *fleet.Fleet
	loadDelay := opts.LoadDelay
	if len(sc.Warehouses) > 0 || len(sc.Vehicles) > 0 {
		whs := make([]fleet.Warehouse, len(sc.Warehouses))
		for i, wd := range sc.Warehouses {
			whs[i] = fleet.Warehouse{
				ID:          wd.ID,
				Position:    wd.Position,
				LoadDelay:   orDefault(wd.LoadDelay, opts.LoadDelay),
				UnloadDelay: orDefault(wd.UnloadDelay, opts.UnloadDelay),
			}
		}
		if len(whs) > 0 {
			loadDelay = whs[0].LoadDelay
		}
		fl = fleet.New(router, whs)
		for _, vd := range sc.Vehicles {
			fl.Add(vd.ID, vd.Position)
		}
	}

	floor := shop.NewFloor(shop.Options{
		Dispatch:      cfg,
		Router:        router,
		Stations:      stations,
		Fleet:         fl,
		Forecaster:    forecast.New(loadDelay, opts.Logger),
		Source:        sc.Source,
		Sink:          sc.Sink,
		SequenceLimit: opts.SequenceLimit,
		Emit:          opts.Emit,
		Logger:        opts.Logger,
	})
	for _, jd := range sc.Jobs {
		p, ok := products[jd.Product]
		if !ok {
			return nil, fmt.Errorf("scenario %s: job %s uses unknown product %s", sc.Name, jd.ID, jd.Product)
		}
		for _, id := range jd.ids() {
			if err := floor.AddJob(model.NewJob(id, p, jd.DueDate, jd.Rush), jd.Release); err != nil {
				return nil, err
			}
		}
	}
	for _, d := range sc.Disruptions {
		if err := floor.DisableStation(d.Station, d.At); err != nil {
			return nil, err
		}
	}
	return floor, nil
}

// Check compares a report with the expectations.
func (sc *Scenario) Check(r shop.Report) error {
	e := sc.Expected
	if e.Completed != nil && len(r.Completed) != *e.Completed {
		return fmt.Errorf("scenario %s: expected %d completed, got %d", sc.Name, *e.Completed, len(r.Completed))
	}
	if e.Infeasible != nil && len(r.Infeasible) != *e.Infeasible {
		return fmt.Errorf("scenario %s: expected %d infeasible, got %d", sc.Name, *e.Infeasible, len(r.Infeasible))
	}
	if e.Makespan != nil && r.Makespan != *e.Makespan {
		return fmt.Errorf("scenario %s: expected makespan %g, got %g", sc.Name, *e.Makespan, r.Makespan)
	}
	if len(e.Assertions) == 0 {
		return nil
	}
	env := reportEnv(r)
	for _, rule := range e.Assertions {
		if err := evaluate(rule, env); err != nil {
			return fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
	}
	return nil
}

func (j JobDef) ids() []string {
	if j.Count <= 1 {
		return []string{j.ID}
	}
	out := make([]string, j.Count)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%d", j.ID, i+1)
	}
	return out
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

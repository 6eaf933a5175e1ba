package model

import (
	"fmt"

	"github.com/kilianp07/shopflow/core/precedence"
)

// Operation is one unit of work of a product. Operations are immutable once
// the product is built and are compared by pointer identity.
type Operation struct {
	ID               string  `json:"id" yaml:"id"`
	Name             string  `json:"name" yaml:"name"`
	ProcessingTime   float64 `json:"processing_time" yaml:"processing_time"`
	SetupTime        float64 `json:"setup_time" yaml:"setup_time"`
	FollowUpTime     float64 `json:"follow_up_time" yaml:"follow_up_time"`
	MaterialRequired bool    `json:"material_required" yaml:"material_required"`
}

// TotalTime returns setup, processing and follow-up time combined.
func (o *Operation) TotalTime() float64 {
	if o == nil {
		return 0
	}
	return o.SetupTime + o.ProcessingTime + o.FollowUpTime
}

// Product is an ordered set of operations and the precedence graph over them.
type Product struct {
	Name       string
	Operations []*Operation
	Graph      *precedence.Graph

	index map[*Operation]int
}

// NewProduct binds operations to their precedence graph. The graph must have
// exactly one node per operation plus the sink.
func NewProduct(name string, ops []*Operation, g *precedence.Graph) (*Product, error) {
	if g == nil {
		return nil, fmt.Errorf("product %s: nil precedence graph", name)
	}
	if g.Len() != len(ops) {
		return nil, fmt.Errorf("product %s: %d operations but graph has %d", name, len(ops), g.Len())
	}
	p := &Product{Name: name, Operations: ops, Graph: g, index: make(map[*Operation]int, len(ops))}
	seen := make(map[string]struct{}, len(ops))
	for i, op := range ops {
		if op == nil {
			return nil, fmt.Errorf("product %s: operation %d is nil", name, i)
		}
		if _, dup := seen[op.Name]; dup {
			return nil, fmt.Errorf("product %s: duplicate operation %q", name, op.Name)
		}
		seen[op.Name] = struct{}{}
		if op.ID == "" {
			op.ID = fmt.Sprintf("%s/%s", name, op.Name)
		}
		p.index[op] = i
	}
	return p, nil
}

// Index returns the arena index of op, or -1 if op does not belong to p.
func (p *Product) Index(op *Operation) int {
	if i, ok := p.index[op]; ok {
		return i
	}
	return -1
}

// ByName looks up an operation by name.
func (p *Product) ByName(name string) (*Operation, int) {
	for i, op := range p.Operations {
		if op.Name == name {
			return op, i
		}
	}
	return nil, -1
}

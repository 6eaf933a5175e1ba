package model

import (
	"testing"

	"github.com/kilianp07/shopflow/core/precedence"
)

func linearProduct(t *testing.T) *Product {
	t.Helper()
	g, err := precedence.FromPredecessors(3, [][]int{nil, {0}, {1}})
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	ops := []*Operation{
		{Name: "op1", ProcessingTime: 5},
		{Name: "op2", ProcessingTime: 3, MaterialRequired: true},
		{Name: "op3", ProcessingTime: 2, SetupTime: 1, FollowUpTime: 1},
	}
	p, err := NewProduct("linear", ops, g)
	if err != nil {
		t.Fatalf("product: %v", err)
	}
	return p
}

func TestJobNextOperations(t *testing.T) {
	p := linearProduct(t)
	j := NewJob("", p, 100, false)
	if j.ID == "" {
		t.Fatalf("expected generated id")
	}
	next := j.NextOperations()
	if len(next) != 1 || next[0].Name != "op1" {
		t.Fatalf("unexpected next %v", next)
	}
	j.Completed = append(j.Completed, p.Operations[0])
	next = j.NextOperations()
	if len(next) != 1 || next[0].Name != "op2" {
		t.Fatalf("unexpected next %v", next)
	}
	if len(j.Uncompleted()) != 2 {
		t.Fatalf("expected 2 uncompleted")
	}
}

func TestPlanVariants(t *testing.T) {
	p := linearProduct(t)
	j := NewJob("j1", p, 0, false)
	if _, ok := j.Planned(); ok {
		t.Fatalf("new job must be unplanned")
	}
	j.Plan = PlannedWithSupply{Planned: Planned{Operation: p.Operations[1]}, Vehicle: "agv1"}
	pl, ok := j.Planned()
	if !ok || pl.Operation != p.Operations[1] {
		t.Fatalf("expected planned op2")
	}
	if s, ok := j.Supply(); !ok || s.Vehicle != "agv1" {
		t.Fatalf("expected supply plan")
	}
}

func TestNewProductValidation(t *testing.T) {
	g, _ := precedence.FromPredecessors(1, nil)
	if _, err := NewProduct("p", []*Operation{{Name: "a"}, {Name: "b"}}, g); err == nil {
		t.Fatalf("expected size mismatch error")
	}
	g2, _ := precedence.FromPredecessors(2, nil)
	if _, err := NewProduct("p", []*Operation{{Name: "a"}, {Name: "a"}}, g2); err == nil {
		t.Fatalf("expected duplicate name error")
	}
	if (*Operation)(nil).TotalTime() != 0 {
		t.Fatalf("nil operation total time must be 0")
	}
}

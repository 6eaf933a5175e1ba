// Package precedence models the operation dependency structure of a product.
//
// A product with n operations is described by a square (n+1)x(n+1) boolean
// matrix. Rows and columns 0..n-1 are operations, the last row is the
// terminal sink ("finished") which is never eligible. Matrix[i][j] set means
// node j must be completed before node i.
package precedence

import (
	"errors"
	"fmt"
)

// ErrCyclicDependencies is returned when the matrix does not describe a DAG.
var ErrCyclicDependencies = errors.New("precedence: cyclic dependencies")

// Graph is an immutable precedence graph built from a dependency matrix.
type Graph struct {
	n      int
	matrix [][]bool
	preds  [][]int
}

// NewGraph validates the matrix and builds a Graph. The matrix must be square
// with at least one row; the last row is treated as the sink.
func NewGraph(matrix [][]bool) (*Graph, error) {
	size := len(matrix)
	if size == 0 {
		return nil, fmt.Errorf("precedence: empty matrix")
	}
	cp := make([][]bool, size)
	preds := make([][]int, size)
	for i, row := range matrix {
		if len(row) != size {
			return nil, fmt.Errorf("precedence: row %d has %d columns, want %d", i, len(row), size)
		}
		if row[i] {
			return nil, fmt.Errorf("precedence: node %d depends on itself", i)
		}
		cp[i] = append([]bool(nil), row...)
		for j, dep := range row {
			if dep {
				preds[i] = append(preds[i], j)
			}
		}
	}
	g := &Graph{n: size - 1, matrix: cp, preds: preds}
	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}
	return g, nil
}

// FromPredecessors builds the matrix for n operations given the predecessor
// indices of each operation. The sink row depends on every operation.
func FromPredecessors(n int, preds [][]int) (*Graph, error) {
	if len(preds) > n {
		return nil, fmt.Errorf("precedence: %d predecessor lists for %d operations", len(preds), n)
	}
	m := make([][]bool, n+1)
	for i := range m {
		m[i] = make([]bool, n+1)
	}
	for i, ps := range preds {
		for _, p := range ps {
			if p < 0 || p >= n {
				return nil, fmt.Errorf("precedence: operation %d has unknown predecessor %d", i, p)
			}
			m[i][p] = true
		}
	}
	for j := 0; j < n; j++ {
		m[n][j] = true
	}
	return NewGraph(m)
}

// Len returns the number of operations, excluding the sink.
func (g *Graph) Len() int { return g.n }

// Predecessors returns the predecessor indices of operation i.
func (g *Graph) Predecessors(i int) []int {
	return append([]int(nil), g.preds[i]...)
}

// Matrix returns a copy of the dependency matrix including the sink row.
func (g *Graph) Matrix() [][]bool {
	cp := make([][]bool, len(g.matrix))
	for i, row := range g.matrix {
		cp[i] = append([]bool(nil), row...)
	}
	return cp
}

// Ready reports whether operation i is not done and all its predecessors are.
func (g *Graph) Ready(i int, done []bool) bool {
	if i < 0 || i >= g.n || done[i] {
		return false
	}
	for _, p := range g.preds[i] {
		if p < g.n && !done[p] {
			return false
		}
	}
	return true
}

// Eligible returns, in index order, every operation that could legally run
// next given the done set. The sink is never returned.
func (g *Graph) Eligible(done []bool) []int {
	var out []int
	for i := 0; i < g.n; i++ {
		if g.Ready(i, done) {
			out = append(out, i)
		}
	}
	return out
}

// IsTopologicalPrefix reports whether order lists distinct operations, each
// appearing only after all of its predecessors.
func (g *Graph) IsTopologicalPrefix(order []int) bool {
	done := make([]bool, g.n)
	for _, i := range order {
		if !g.Ready(i, done) {
			return false
		}
		done[i] = true
	}
	return true
}

// checkAcyclic runs Kahn's algorithm over all nodes including the sink.
func (g *Graph) checkAcyclic() error {
	size := len(g.matrix)
	inDeg := make([]int, size)
	blocks := make([][]int, size)
	for i, ps := range g.preds {
		inDeg[i] = len(ps)
		for _, p := range ps {
			blocks[p] = append(blocks[p], i)
		}
	}
	var queue []int
	for i, d := range inDeg {
		if d == 0 {
			queue = append(queue, i)
		}
	}
	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, b := range blocks[id] {
			inDeg[b]--
			if inDeg[b] == 0 {
				queue = append(queue, b)
			}
		}
	}
	if processed != size {
		return fmt.Errorf("%w: processed %d of %d nodes", ErrCyclicDependencies, processed, size)
	}
	return nil
}

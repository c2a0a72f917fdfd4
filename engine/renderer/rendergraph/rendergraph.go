// Package rendergraph orders a frame's render passes into a single,
// data-driven sequence instead of leaving callers to remember the correct
// shadow -> g-buffer -> lighting -> forward -> pick ordering by hand.
package rendergraph

import "fmt"

// Stage is one named step of a frame's render graph.
type Stage struct {
	Name string
	Run  func() error
}

// Graph is an ordered sequence of render passes executed once per frame.
type Graph struct {
	stages []Stage
}

// New builds a Graph from an ordered list of stages.
func New(stages ...Stage) *Graph {
	return &Graph{stages: stages}
}

// Run executes every stage in order, stopping at and returning the first
// error encountered.
func (g *Graph) Run() error {
	for _, s := range g.stages {
		if err := s.Run(); err != nil {
			return fmt.Errorf("rendergraph: stage %q failed: %w", s.Name, err)
		}
	}
	return nil
}

// StageNames returns the graph's stage names in execution order, useful for
// logging or a frame-debug overlay.
func (g *Graph) StageNames() []string {
	names := make([]string, len(g.stages))
	for i, s := range g.stages {
		names[i] = s.Name
	}
	return names
}

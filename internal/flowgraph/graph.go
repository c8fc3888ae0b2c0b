package flowgraph

import (
	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"triage/internal/flow"
)

var (
	ErrEdgeMismatch = errors.New("edges do not match stages")
	ErrNotLinear    = errors.New("stages do not form a linear chain")
)

const (
	waitingTextColor = "#1f2937"
	activeTextColor  = "#ffffff"
	idleEdgeColor    = "#cbd5e1"
	lightenFactor    = 0.7
)

func stageHash(s flow.Stage) string { return s.ID }

// Build converts snap into a directed acyclic graph whose vertices carry the
// DOT attributes for their status.
func Build(snap flow.Snapshot) (graph.Graph[string, flow.Stage], error) {
	if len(snap.Stages) > 0 && len(snap.Edges) != len(snap.Stages)-1 {
		return nil, errors.Wrapf(ErrEdgeMismatch, "%d stages, %d edges", len(snap.Stages), len(snap.Edges))
	}

	g := graph.New(stageHash, graph.Directed(), graph.PreventCycles())
	categories := make(map[string]string, len(snap.Stages))

	for _, stage := range snap.Stages {
		attrs, err := stageAttributes(stage)
		if err != nil {
			return nil, err
		}
		options := make([]func(*graph.VertexProperties), 0, len(attrs))
		for key, value := range attrs {
			options = append(options, graph.VertexAttribute(key, value))
		}
		if err := g.AddVertex(stage, options...); err != nil {
			return nil, errors.Wrapf(err, "unable to add stage %s", stage.ID)
		}
		categories[stage.ID] = stage.Category
	}

	for i, edge := range snap.Edges {
		if i+1 < len(snap.Stages) && (edge.Source != snap.Stages[i].ID || edge.Target != snap.Stages[i+1].ID) {
			return nil, errors.Wrapf(ErrEdgeMismatch, "edge %s does not link %s to %s", edge.ID, snap.Stages[i].ID, snap.Stages[i+1].ID)
		}
		attrs, err := edgeAttributes(edge, categories[edge.Source])
		if err != nil {
			return nil, err
		}
		options := make([]func(*graph.EdgeProperties), 0, len(attrs))
		for key, value := range attrs {
			options = append(options, graph.EdgeAttribute(key, value))
		}
		if err := g.AddEdge(edge.Source, edge.Target, options...); err != nil {
			return nil, errors.Wrapf(err, "unable to add edge from %s to %s", edge.Source, edge.Target)
		}
	}

	return g, nil
}

// Validate reports whether snap is a linear chain in stage order.
func Validate(snap flow.Snapshot) error {
	g, err := Build(snap)
	if err != nil {
		return err
	}
	order, err := graph.TopologicalSort(g)
	if err != nil {
		return errors.Wrap(err, "unable to sort stages")
	}
	if len(order) != len(snap.Stages) {
		return errors.Wrapf(ErrNotLinear, "sorted %d of %d stages", len(order), len(snap.Stages))
	}

	adjacency, err := g.AdjacencyMap()
	if err != nil {
		return errors.Wrap(err, "unable to get adjacency map")
	}
	predecessors, err := g.PredecessorMap()
	if err != nil {
		return errors.Wrap(err, "unable to get predecessor map")
	}
	for i, id := range order {
		if id != snap.Stages[i].ID {
			return errors.Wrapf(ErrNotLinear, "position %d holds %s, want %s", i, id, snap.Stages[i].ID)
		}
		if len(adjacency[id]) > 1 || len(predecessors[id]) > 1 {
			return errors.Wrapf(ErrNotLinear, "stage %s branches", id)
		}
	}
	return nil
}

func stageAttributes(stage flow.Stage) (map[string]string, error) {
	base := flow.CategoryRGB(stage.Category)
	border, err := hex(base)
	if err != nil {
		return nil, err
	}

	attrs := map[string]string{
		"label":     stage.Label,
		"shape":     "box",
		"color":     border,
		"fillcolor": border,
		"fontcolor": activeTextColor,
		"style":     "rounded,filled",
		"penwidth":  "1",
	}
	switch stage.Status {
	case flow.StatusWaiting:
		fill, err := hex(lighten(base, lightenFactor))
		if err != nil {
			return nil, err
		}
		attrs["fillcolor"] = fill
		attrs["fontcolor"] = waitingTextColor
	case flow.StatusProcessing:
		attrs["style"] = "rounded,filled,bold"
		attrs["penwidth"] = "3"
	}
	return attrs, nil
}

func edgeAttributes(edge flow.Edge, category string) (map[string]string, error) {
	if !edge.Active {
		return map[string]string{
			"color":    idleEdgeColor,
			"penwidth": "1",
			"style":    "dashed",
		}, nil
	}
	color, err := hex(flow.CategoryRGB(category))
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"color":    color,
		"penwidth": "3",
		"style":    "solid",
	}, nil
}

func lighten(c flow.RGB, factor float64) flow.RGB {
	mix := func(v uint8) uint8 {
		return uint8(float64(v) + (255-float64(v))*factor)
	}
	return flow.RGB{R: mix(c.R), G: mix(c.G), B: mix(c.B)}
}

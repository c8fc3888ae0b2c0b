package flowgraph

import (
	"bytes"
	"io"
	"strings"
	"text/template"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"triage/internal/flow"
)

const dotTemplate = `strict digraph {
{{- range $k, $v := .Attributes}}
	{{$k}}="{{$v}}";
{{- end}}
{{- range .Nodes}}
	"{{.ID}}" [ {{range $k, $v := .Attributes}}{{$k}}="{{$v}}", {{end}}];
{{- end}}
{{- range .Edges}}
	"{{.Source}}" -> "{{.Target}}" [ {{range $k, $v := .Attributes}}{{$k}}="{{$v}}", {{end}}];
{{- end}}
}
`

var dotTpl = template.Must(template.New("dot").Parse(dotTemplate))

type description struct {
	Attributes map[string]string
	Nodes      []node
	Edges      []link
}

type node struct {
	ID         string
	Attributes map[string]string
}

type link struct {
	Source     string
	Target     string
	Attributes map[string]string
}

// Option adjusts graph-level DOT attributes.
type Option func(*description)

// GraphAttribute sets a top-level DOT attribute such as rankdir.
func GraphAttribute(key, value string) Option {
	return func(d *description) {
		d.Attributes[key] = escape(value)
	}
}

// Render writes snap as DOT. Nodes and edges follow chain order so the output
// is stable for equal snapshots.
func Render(w io.Writer, snap flow.Snapshot, options ...Option) error {
	g, err := Build(snap)
	if err != nil {
		return err
	}
	desc, err := describe(g, snap, options...)
	if err != nil {
		return err
	}
	if err := dotTpl.Execute(w, desc); err != nil {
		return errors.Wrap(err, "unable to execute template")
	}
	return nil
}

// DOT renders snap into a string.
func DOT(snap flow.Snapshot, options ...Option) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, snap, options...); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func describe(g graph.Graph[string, flow.Stage], snap flow.Snapshot, options ...Option) (description, error) {
	desc := description{
		Attributes: map[string]string{"rankdir": "LR"},
		Nodes:      make([]node, 0, len(snap.Stages)),
		Edges:      make([]link, 0, len(snap.Edges)),
	}
	for _, option := range options {
		option(&desc)
	}

	for _, stage := range snap.Stages {
		_, properties, err := g.VertexWithProperties(stage.ID)
		if err != nil {
			return desc, errors.Wrap(err, "unable to get vertex properties")
		}
		desc.Nodes = append(desc.Nodes, node{ID: escape(stage.ID), Attributes: escapeAll(properties.Attributes)})
	}
	for _, e := range snap.Edges {
		edge, err := g.Edge(e.Source, e.Target)
		if err != nil {
			return desc, errors.Wrapf(err, "unable to get edge from %s to %s", e.Source, e.Target)
		}
		desc.Edges = append(desc.Edges, link{
			Source:     escape(e.Source),
			Target:     escape(e.Target),
			Attributes: escapeAll(edge.Properties.Attributes),
		})
	}
	return desc, nil
}

// ValidRankDir reports whether dir is a Graphviz rankdir value.
func ValidRankDir(dir string) bool {
	switch dir {
	case "LR", "RL", "TB", "BT":
		return true
	}
	return false
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escape(s string) string {
	return dotEscaper.Replace(s)
}

func escapeAll(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = escape(v)
	}
	return out
}

// Package flowgraph renders flow snapshots as Graphviz DOT and checks that a
// snapshot still describes a single linear chain.
package flowgraph

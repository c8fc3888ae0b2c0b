// Package flowsession tracks mounted pipeline-flow visualizations.
//
// Each session owns a fresh flow.Simulator that starts at the first stage
// when the session is created and is torn down when the session is stopped,
// reaped after sitting idle, or the registry shuts down. Subscribers receive
// the simulator's events in order; a slow subscriber loses its oldest
// buffered event instead of stalling the run.
package flowsession

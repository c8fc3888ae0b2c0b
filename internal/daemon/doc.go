// Package daemon coordinates the long-running Triage process.
//
// It wires configuration, the record backend, the flow-session registry and
// notifications into a single lifecycle with flock-based locking to prevent
// multiple instances, and serves the HTTP API the dashboard and the CLI talk
// to.
//
// Keep orchestration logic here: assessment rules live in the assessment
// package and simulator behavior in the flow packages, while the daemon
// focuses on startup, shutdown, transport and high level coordination.
package daemon

// Command triage is the operator CLI for the triage daemon: it lists and
// creates assessments over the daemon's HTTP API, runs the pipeline-flow
// simulator locally or watches a remote flow session, and manages the daemon
// process and configuration file.
package main

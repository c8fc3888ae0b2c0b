// Package preflight provides readiness checks for the filesystem paths and
// hosted services the triage daemon depends on.
//
// The daemon runs RunAll at startup and logs every failed check. The CLI
// "triage config validate" command prints the same results.
package preflight

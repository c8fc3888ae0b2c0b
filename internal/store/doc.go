// Package store persists assessments, their possible diagnoses and local
// identities in SQLite.
//
// It is the development and test backend: the daemon can run against it
// without a hosted project. The schema is embedded and versioned; a version
// mismatch aborts Open so operators can delete the database instead of
// running against stale columns. Writes retry briefly on SQLITE_BUSY.
package store

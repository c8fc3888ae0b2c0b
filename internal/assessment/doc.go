// Package assessment defines the injury-assessment records exchanged with
// the record backends: the full record with its AI outcome, the list
// summary, the creation payload with its validation rules, and the
// dashboard statistics derived from a set of records.
package assessment

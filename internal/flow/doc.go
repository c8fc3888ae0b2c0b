// Package flow animates a fixed, ordered chain of pipeline stages.
//
// A Simulator walks each stage through waiting, processing and completed,
// holding every stage in processing for a fixed dwell and pausing for a
// shorter gap before the next one starts. The edge leaving a stage turns
// active in the same step that completes the stage. Stop tears a run down:
// once it returns, no stage, edge or observer changes again.
//
// Timers come from a Clock so tests can drive a run step by step; see the
// flowtest subpackage.
package flow

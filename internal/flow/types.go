package flow

import "time"

// Status is the lifecycle position of one stage.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// Rank orders statuses so callers can reject regressions.
func (s Status) Rank() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted:
		return 2
	default:
		return -1
	}
}

// Phase describes the simulator as a whole.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseCancelled Phase = "cancelled"
)

// Descriptor is the fixed input for one stage.
type Descriptor struct {
	ID       string
	Label    string
	Category string
}

// Stage is a descriptor plus its current status.
type Stage struct {
	ID       string
	Label    string
	Category string
	Status   Status
}

// Edge links stage i to stage i+1.
type Edge struct {
	ID     string
	Source string
	Target string
	Active bool
}

// Snapshot is a deep copy of the simulator state. Current is the index of
// the processing stage, or -1.
type Snapshot struct {
	Stages  []Stage
	Edges   []Edge
	Phase   Phase
	Current int
}

// Completed reports how many stages have finished.
func (s Snapshot) Completed() int {
	count := 0
	for _, stage := range s.Stages {
		if stage.Status == StatusCompleted {
			count++
		}
	}
	return count
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{Phase: s.Phase, Current: s.Current}
	out.Stages = append([]Stage(nil), s.Stages...)
	out.Edges = append([]Edge(nil), s.Edges...)
	return out
}

// EventKind names a state transition.
type EventKind string

const (
	EventStageProcessing EventKind = "stage_processing"
	EventStageCompleted  EventKind = "stage_completed"
	EventEdgeActivated   EventKind = "edge_activated"
	EventRunCompleted    EventKind = "run_completed"
	EventRunCancelled    EventKind = "run_cancelled"
)

// Event is delivered to observers after each transition. Seq restarts at 1
// for every run.
type Event struct {
	Seq      uint64
	Kind     EventKind
	StageID  string
	EdgeID   string
	Snapshot Snapshot
}

// Observer receives events in order on the run goroutine. It must not call
// Stop on the simulator that invoked it.
type Observer func(Event)

// Timing holds the constant step delays.
type Timing struct {
	Dwell time.Duration
	Gap   time.Duration
}

// DefaultTiming returns the stock dwell and gap.
func DefaultTiming() Timing {
	return Timing{Dwell: 2 * time.Second, Gap: time.Second}
}

// EdgeID builds the identifier of the edge from source to target.
func EdgeID(source, target string) string {
	return source + "->" + target
}

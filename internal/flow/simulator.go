package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"triage/internal/logging"
)

var (
	ErrNoStages       = errors.New("flow: at least one stage is required")
	ErrInvalidStage   = errors.New("flow: invalid stage")
	ErrAlreadyRunning = errors.New("flow: run already in progress")
)

// Simulator animates one linear chain of stages. Each Simulator runs at most
// one animation at a time; Run resets state so it can be mounted again.
type Simulator struct {
	descs     []Descriptor
	timing    Timing
	clock     Clock
	observers []Observer
	logger    *slog.Logger

	mu      sync.Mutex
	stages  []Stage
	edges   []Edge
	phase   Phase
	current int
	seq     uint64
	cancel  context.CancelFunc
	done    chan struct{}
}

// New validates the descriptors and builds an idle simulator.
func New(descs []Descriptor, opts ...Option) (*Simulator, error) {
	if len(descs) == 0 {
		return nil, ErrNoStages
	}
	seen := make(map[string]struct{}, len(descs))
	copied := make([]Descriptor, len(descs))
	for i, desc := range descs {
		desc.ID = strings.TrimSpace(desc.ID)
		if desc.ID == "" {
			return nil, fmt.Errorf("%w: stage %d has no id", ErrInvalidStage, i)
		}
		if _, dup := seen[desc.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidStage, desc.ID)
		}
		seen[desc.ID] = struct{}{}
		if strings.TrimSpace(desc.Label) == "" {
			desc.Label = desc.ID
		}
		copied[i] = desc
	}

	done := make(chan struct{})
	close(done)
	sim := &Simulator{
		descs:  copied,
		timing: DefaultTiming(),
		clock:  RealClock{},
		logger: logging.NewNop(),
		done:   done,
	}
	for _, opt := range opts {
		opt(sim)
	}
	if sim.timing.Dwell < 0 || sim.timing.Gap < 0 {
		return nil, fmt.Errorf("%w: negative timing %s/%s", ErrInvalidStage, sim.timing.Dwell, sim.timing.Gap)
	}
	sim.reset()
	sim.phase = PhaseIdle
	return sim, nil
}

// Len returns the number of stages.
func (s *Simulator) Len() int {
	return len(s.descs)
}

// Timing returns the configured delays.
func (s *Simulator) Timing() Timing {
	return s.timing
}

// Snapshot returns a copy of the current state.
func (s *Simulator) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Done is closed when the current (or most recent) run returns. Before any
// run it is already closed.
func (s *Simulator) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Run animates every stage in order and blocks until the chain completes or
// ctx is cancelled. Cancellation is not an error: Run returns nil and the
// phase becomes cancelled with the stages frozen where they were.
func (s *Simulator) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.reset()
	s.phase = PhaseRunning
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		close(done)
	}()

	started := time.Now()
	s.logger.Debug("flow run started",
		logging.Int("stages", len(s.descs)),
		logging.Duration("dwell", s.timing.Dwell),
		logging.Duration("gap", s.timing.Gap),
	)

	last := len(s.descs) - 1
	for i := range s.descs {
		if !s.apply(runCtx, func() []Event { return s.beginLocked(i) }) {
			return s.finishCancelled(i)
		}
		if !s.wait(runCtx, s.timing.Dwell) {
			return s.finishCancelled(i)
		}
		if !s.apply(runCtx, func() []Event { return s.completeLocked(i, i == last) }) {
			return s.finishCancelled(i)
		}
		if i == last {
			break
		}
		if !s.wait(runCtx, s.timing.Gap) {
			return s.finishCancelled(i)
		}
	}

	s.logger.Info("flow run completed",
		logging.String(logging.FieldEventType, string(EventRunCompleted)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// Stop cancels the in-flight run, if any, and waits for it to return. It is
// safe to call repeatedly and without a run.
func (s *Simulator) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// apply runs mutate under the lock unless ctx is already cancelled, then
// delivers the resulting events. It reports whether the run may continue.
func (s *Simulator) apply(ctx context.Context, mutate func() []Event) bool {
	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	events := mutate()
	s.mu.Unlock()
	s.dispatch(events)
	return true
}

func (s *Simulator) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := s.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C():
		return ctx.Err() == nil
	}
}

func (s *Simulator) finishCancelled(index int) error {
	s.mu.Lock()
	s.phase = PhaseCancelled
	events := []Event{s.eventLocked(EventRunCancelled, "", "")}
	s.mu.Unlock()
	s.dispatch(events)
	s.logger.Debug("flow run cancelled",
		logging.String(logging.FieldEventType, string(EventRunCancelled)),
		logging.Stage(s.descs[index].ID),
	)
	return nil
}

func (s *Simulator) beginLocked(i int) []Event {
	s.stages[i].Status = StatusProcessing
	s.current = i
	return []Event{s.eventLocked(EventStageProcessing, s.stages[i].ID, "")}
}

func (s *Simulator) completeLocked(i int, last bool) []Event {
	s.stages[i].Status = StatusCompleted
	s.current = -1
	events := []Event{s.eventLocked(EventStageCompleted, s.stages[i].ID, "")}
	if i < len(s.edges) {
		s.edges[i].Active = true
		events = append(events, s.eventLocked(EventEdgeActivated, s.stages[i].ID, s.edges[i].ID))
	}
	if last {
		s.phase = PhaseCompleted
		events = append(events, s.eventLocked(EventRunCompleted, "", ""))
	}
	return events
}

func (s *Simulator) eventLocked(kind EventKind, stageID, edgeID string) Event {
	s.seq++
	return Event{
		Seq:      s.seq,
		Kind:     kind,
		StageID:  stageID,
		EdgeID:   edgeID,
		Snapshot: s.snapshotLocked(),
	}
}

func (s *Simulator) dispatch(events []Event) {
	for _, event := range events {
		for _, observer := range s.observers {
			observer(event)
		}
	}
}

func (s *Simulator) reset() {
	s.stages = make([]Stage, len(s.descs))
	for i, desc := range s.descs {
		s.stages[i] = Stage{ID: desc.ID, Label: desc.Label, Category: desc.Category, Status: StatusWaiting}
	}
	s.edges = make([]Edge, 0, len(s.descs)-1)
	for i := 0; i+1 < len(s.descs); i++ {
		source, target := s.descs[i].ID, s.descs[i+1].ID
		s.edges = append(s.edges, Edge{ID: EdgeID(source, target), Source: source, Target: target})
	}
	s.current = -1
	s.seq = 0
}

func (s *Simulator) snapshotLocked() Snapshot {
	return Snapshot{Stages: s.stages, Edges: s.edges, Phase: s.phase, Current: s.current}.clone()
}

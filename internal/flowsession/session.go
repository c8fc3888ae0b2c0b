package flowsession

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"triage/internal/flow"
	"triage/internal/logging"
)

// Info describes a session at a point in time.
type Info struct {
	ID           string
	AssessmentID string
	CreatedAt    time.Time
	LastAccess   time.Time
	Subscribers  int
	Snapshot     flow.Snapshot
}

type session struct {
	id           string
	assessmentID string
	createdAt    time.Time
	sim          *flow.Simulator
	logger       *slog.Logger
	buffer       int

	cancel  context.CancelFunc
	runDone chan struct{}

	mu         sync.Mutex
	lastAccess time.Time
	subs       map[int]chan flow.Event
	nextSub    int
	finished   bool
}

func (s *session) publish(event flow.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	for _, ch := range s.subs {
		deliver(ch, event)
	}
	if event.Kind == flow.EventRunCompleted || event.Kind == flow.EventRunCancelled {
		s.finishLocked()
	}
}

// deliver never blocks: when ch is full the oldest event is discarded.
func deliver(ch chan flow.Event, event flow.Event) {
	select {
	case ch <- event:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- event:
	default:
	}
}

func (s *session) subscribe() (<-chan flow.Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan flow.Event, s.buffer)
	if s.finished {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

func (s *session) finishLocked() {
	s.finished = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

func (s *session) idle(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs) == 0 && now.Sub(s.lastAccess) > ttl
}

func (s *session) info() Info {
	s.mu.Lock()
	info := Info{
		ID:           s.id,
		AssessmentID: s.assessmentID,
		CreatedAt:    s.createdAt,
		LastAccess:   s.lastAccess,
		Subscribers:  len(s.subs),
	}
	s.mu.Unlock()
	info.Snapshot = s.sim.Snapshot()
	return info
}

// stop tears the simulator down and closes every subscriber. When it
// returns the run goroutine has exited.
func (s *session) stop() {
	s.cancel()
	s.sim.Stop()
	<-s.runDone
	s.mu.Lock()
	s.finishLocked()
	s.mu.Unlock()
	s.logger.Debug("flow session stopped", logging.String(logging.FieldEventType, "flow_session_stopped"))
}

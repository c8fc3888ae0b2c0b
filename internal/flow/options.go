package flow

import "log/slog"

// Option configures a Simulator.
type Option func(*Simulator)

// WithTiming overrides the dwell and gap durations.
func WithTiming(timing Timing) Option {
	return func(s *Simulator) {
		s.timing = timing
	}
}

// WithClock replaces the timer source.
func WithClock(clock Clock) Option {
	return func(s *Simulator) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithObserver registers an event callback. Multiple observers run in
// registration order.
func WithObserver(observer Observer) Option {
	return func(s *Simulator) {
		if observer != nil {
			s.observers = append(s.observers, observer)
		}
	}
}

// WithLogger sets the logger used for run lifecycle messages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) {
		if logger != nil {
			s.logger = logger
		}
	}
}

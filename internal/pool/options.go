package pool

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Pair.
type Option func(*Pair)

// WithClock overrides the time source used for epochs.
func WithClock(clock func() time.Time) Option {
	return func(p *Pair) {
		if clock != nil {
			p.clock = clock
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pair) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithEventSink receives events of committed operations.
func WithEventSink(sink EventSink) Option {
	return func(p *Pair) {
		p.sink = sink
	}
}

// WithJournal lets the pair revert collaborator state when an operation fails.
func WithJournal(journal Journal) Option {
	return func(p *Pair) {
		p.journal = journal
	}
}

package registry

import (
	"time"

	"github.com/mj1618/winsync/internal/model"
	"github.com/rs/zerolog"
)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Registry) {
		r.log = log.With().Str("component", "registry").Logger()
	}
}

// WithChangeDetection selects how sibling writes are compared against the
// local list. The default is model.DetectPositional.
func WithChangeDetection(mode model.ChangeDetection) Option {
	return func(r *Registry) {
		r.differ = mode.Differ()
	}
}

// WithClock overrides the time source used for heartbeats.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

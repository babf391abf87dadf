package zipkit

import (
	"io"
	"log/slog"
)

// options collects the adjustable behavior shared by readers, writers and
// the top-level archive operations.
type options struct {
	logger        *slog.Logger
	level         int
	comment       string
	reserve       int
	workers       int
	preserveTimes bool
}

func defaultOptions() options {
	return options{
		level:         DefaultLevel,
		workers:       1,
		preserveTimes: true,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// log never returns nil so call sites can log unconditionally.
func (o *options) log() *slog.Logger {
	if o.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(99)}))
	}
	return o.logger
}

// Option adjusts reader, writer or archive operation behavior.
type Option func(*options)

// WithLogger routes operational logging to l. Logging is off by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLevel sets the compression level for added entries: 0 stores, 1-9
// compress progressively harder. The default is DefaultLevel.
func WithLevel(level int) Option {
	return func(o *options) { o.level = level }
}

// WithComment sets the archive comment written into the end record.
func WithComment(comment string) Option {
	return func(o *options) { o.comment = comment }
}

// WithReserve reserves n leading bytes before the first entry, for callers
// that later prepend a stub to the archive.
func WithReserve(n int) Option {
	return func(o *options) { o.reserve = n }
}

// WithWorkers extracts up to n entries concurrently during Unzip. The
// default of 1 keeps extraction sequential.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithPreserveTimes controls whether extraction restores entry
// modification times. Enabled by default.
func WithPreserveTimes(preserve bool) Option {
	return func(o *options) { o.preserveTimes = preserve }
}

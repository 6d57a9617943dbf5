package frio

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Option configures [Fetch].
// Options are applied in order.
type Option func(*options)

// WithReadSize caps the number of bytes read from each file.
//
// Files longer than n are truncated to their first n bytes. Files shorter
// than or equal to n are read in full.
//
// Values <= 0 disable the cap (default).
func WithReadSize(n int64) Option {
	return func(o *options) {
		o.ReadSize = n
	}
}

// WithWorkers sets the number of workers.
//
// Paths are distributed round-robin: path i goes to worker i % n. Workers
// whose share is empty are not started, so n larger than the number of paths
// only starts one worker per path.
//
// Values above 256 are clamped to 256. The clamp changes the distribution:
// with n > 256, path i goes to worker i % 256, not i % n, and exactly 256
// chunks are formed.
//
// Values <= 0 use the default (1).
func WithWorkers(n int) Option {
	return func(o *options) {
		o.Workers = n
	}
}

// WithConcurrency sets the number of reads each worker keeps in flight.
//
// Each in-flight read runs on its own lane. With pinning enabled, every lane
// locks an OS thread pinned to the worker's core. The cap bounds open file
// descriptors and buffer memory per worker while still overlapping I/O
// latency.
//
// Values <= 0 use the default (32).
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.Concurrency = n
	}
}

// WithPollInterval sets how long [Iterator.Next] waits for an outcome before
// checking for interrupts.
//
// Shorter intervals react faster to interrupts at the cost of more wakeups.
//
// Values <= 0 use the default (50ms).
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.PollInterval = d
	}
}

// WithInterruptCheck registers a callback that [Iterator.Next] calls whenever
// a poll times out.
//
// A non-nil return value terminates the iterator with an error wrapping both
// [ErrInterrupted] and the returned error.
//
// The callback runs on the consumer goroutine.
func WithInterruptCheck(fn func() error) Option {
	return func(o *options) {
		o.InterruptCheck = fn
	}
}

// WithoutPinning disables CPU core pinning of worker threads.
//
// Pinning is best-effort: on platforms without an affinity API, workers run
// unpinned regardless of this option.
func WithoutPinning() Option {
	return func(o *options) {
		o.Pin = false
	}
}

// WithLogger sets the logger used for worker lifecycle and per-file tracing.
//
// Lifecycle events are logged at debug level, per-file outcomes at trace
// level. If nil, logs are discarded.
func WithLogger(l *logrus.Logger) Option {
	return func(o *options) {
		o.Logger = l
	}
}

type options struct {
	// ReadSize is the per-file byte cap (0 = no cap).
	ReadSize int64
	// Workers is the worker thread count.
	Workers int
	// Concurrency is the in-flight read cap per worker.
	Concurrency int
	// PollInterval is the consumer's bounded wait.
	PollInterval time.Duration
	// InterruptCheck is polled between waits.
	InterruptCheck func() error
	// Pin enables core affinity.
	Pin bool
	// Logger receives structured logs.
	Logger *logrus.Logger
}

const (
	defaultWorkers      = 1
	defaultPollInterval = 50 * time.Millisecond
)

// applyOptions merges option values and applies defaults.
func applyOptions(opts []Option) options {
	cfg := options{Pin: true}

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if cfg.ReadSize < 0 {
		cfg.ReadSize = 0
	}

	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}

	if cfg.Workers > maxWorkers {
		cfg.Workers = maxWorkers
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}

	return cfg
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)

	return l
}

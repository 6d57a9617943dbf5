// Package frio reads many files concurrently and streams their contents back
// to a single consumer.
//
// The caller supplies the exact list of paths. frio does not walk
// directories, does not write files and does not retry failed reads.
//
// # Usage
//
//	it := frio.Fetch(ctx, paths, frio.WithWorkers(4), frio.WithReadSize(4096))
//	defer it.Close()
//
//	for res, err := range it.All() {
//	        if err != nil {
//	                // Per-file *IOError, or a terminal ErrInterrupted.
//	                continue
//	        }
//	        use(res.Path, res.Data)
//	}
//
// # Ordering
//
// Results arrive in completion order. There is no ordering guarantee relative
// to the input list, across workers, or across reads of the same worker.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────────────┐
//	│ Fetch                                                                   │
//	│   │                                                                     │
//	│   ├─► partition(paths, workers)   ← round-robin: path i → chunk i%n     │
//	│   │                                                                     │
//	│   ├─► [N workers] one per non-empty chunk, each:                        │
//	│   │     │ backlog FIFO of its chunk                                     │
//	│   │     └─► ≤32 read lanes, each on a locked OS thread optionally       │
//	│   │         pinned to one core: readFile → sender.send(outcome)         │
//	│   │                                                                     │
//	│   └─► resultChannel (capacity 4096)                                     │
//	│         │ closes when the last sender handle is dropped                 │
//	│         └─► Iterator.Next polls every 50ms, checks for interrupts       │
//	│                                                                         │
//	└─────────────────────────────────────────────────────────────────────────┘
//
// # Backpressure
//
// When the consumer falls behind, the channel fills up and reader tasks block
// on send. Memory is bounded by the channel capacity plus the in-flight reads
// of every worker.
//
// # Cancellation
//
// Cancellation is cooperative. Each time a poll times out, [Iterator.Next]
// checks the context passed to [Fetch] and the [WithInterruptCheck] callback.
// If either reports a stop, Next returns an error wrapping [ErrInterrupted]
// and the iterator terminates. Workers also stop starting new reads once the
// context is done. Reads already in flight are never aborted; their outcomes
// are discarded.
package frio

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Result is one successfully read file.
type Result struct {
	// Path is the path exactly as passed to [Fetch].
	Path string
	// Data holds the file content, truncated to the [WithReadSize] limit.
	// The slice is owned by the caller.
	Data []byte
}

// IOError is returned when opening or reading one file fails.
type IOError struct {
	// Path is the path exactly as passed to [Fetch].
	Path string
	// Op is the operation that failed: "open" or "read".
	Op string
	// Err is the underlying error.
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

var (
	// ErrInterrupted is wrapped by the terminal error that [Iterator.Next]
	// returns when the context or the interrupt callback requests a stop.
	ErrInterrupted = errors.New("interrupted")

	// ErrFileTooLarge indicates the bytes to read do not fit in memory on this
	// platform.
	ErrFileTooLarge = errors.New("file too large")
)

const (
	opOpen = "open"
	opRead = "read"
)

// Internal constants for queue sizes and limits.
const (
	// channelCapacity is the number of outcomes the result channel buffers
	// before reader tasks block on send.
	channelCapacity = 4096

	// defaultConcurrency is the number of reads a single worker keeps in flight.
	defaultConcurrency = 32

	// maxWorkers caps worker counts to avoid locking an excessive number of
	// OS threads.
	maxWorkers = 256
)

// Fetch starts reading paths and returns an iterator over the outcomes.
//
// Every path produces exactly one outcome: a [Result] or an [*IOError].
// Workers are started before Fetch returns; the iterator only observes them.
//
// Workers stop starting new reads once ctx is done or the iterator is closed.
// Abandoning the iterator mid-stream is safe: once it is garbage collected it
// is closed, and workers finish their in-flight reads and exit. Calling
// [Iterator.Close] releases them immediately.
func Fetch(ctx context.Context, paths []string, opts ...Option) *Iterator {
	cfg := applyOptions(opts)

	log := cfg.Logger.WithFields(logrus.Fields{
		"run": uuid.NewString(),
	})

	ch, tx := newResultChannel(channelCapacity)

	it := newIterator(ctx, ch, cfg, log)

	var cores []int
	if cfg.Pin {
		cores = detectCores()
	}

	chunks := partition(paths, cfg.Workers)

	log.WithFields(logrus.Fields{
		"files":   len(paths),
		"workers": len(chunks),
		"cores":   len(cores),
	}).Debug("fetch started")

	for i, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}

		core := -1
		if len(cores) > 0 {
			core = cores[i%len(cores)]
		}

		w := newWorker(workerArgs{
			ctx:         ctx,
			id:          i,
			core:        core,
			jobs:        chunk,
			readSize:    cfg.ReadSize,
			concurrency: cfg.Concurrency,
			tx:          tx.clone(),
			stop:        ch.stop,
			log:         log,
		})

		go w.run()
	}

	// Workers hold their own handles. Once they all finish, the channel
	// disconnects and the iterator terminates.
	tx.drop()

	return it
}

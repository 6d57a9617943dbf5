package frio

import (
	"context"
	"fmt"
	"io"
	"iter"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Iterator yields the outcomes of a [Fetch] call.
//
// Next and All must be called from a single goroutine. Close may be called
// from any goroutine.
//
// An Iterator that becomes unreachable without being drained or closed is
// closed by the garbage collector, which releases its workers.
type Iterator struct {
	ctx       context.Context
	ch        *resultChannel
	poll      time.Duration
	interrupt func() error
	log       *logrus.Entry

	// done is set once the iterator terminated (disconnect, interrupt, Close).
	done atomic.Bool

	files  atomic.Uint64
	failed atomic.Uint64
	bytes  atomic.Uint64
}

// Stats holds counters of outcomes delivered by an [Iterator].
type Stats struct {
	// Files is the number of successful results returned.
	Files uint64
	// Failed is the number of per-file errors returned.
	Failed uint64
	// Bytes is the total length of all returned Result.Data.
	Bytes uint64
}

func newIterator(ctx context.Context, ch *resultChannel, cfg options, log *logrus.Entry) *Iterator {
	it := &Iterator{
		ctx:       ctx,
		ch:        ch,
		poll:      cfg.PollInterval,
		interrupt: cfg.InterruptCheck,
		log:       log,
	}

	// Workers reference the channel, never the iterator, so an abandoned
	// iterator does become unreachable.
	runtime.AddCleanup(it, func(ch *resultChannel) { ch.shutdown() }, ch)

	return it
}

// Next returns the next outcome.
//
// Return values:
//   - (Result, nil): a file was read
//   - (Result{Path: p}, *IOError): reading p failed; the iterator continues
//   - (Result{}, error wrapping ErrInterrupted): the iterator terminated
//     because the context or the interrupt callback requested a stop
//   - (Result{}, io.EOF): no more outcomes; every later call returns io.EOF
func (it *Iterator) Next() (Result, error) {
	for !it.done.Load() {
		o, status := it.ch.recv(it.poll, it.ctx.Done(), it.ch.stop)

		switch status {
		case recvOK:
			if it.done.Load() {
				// Closed concurrently.
				return Result{}, io.EOF
			}

			if o.err != nil {
				it.failed.Add(1)

				return Result{Path: o.path}, o.err
			}

			it.files.Add(1)
			it.bytes.Add(uint64(len(o.data)))

			return Result{Path: o.path, Data: o.data}, nil

		case recvDisconnected:
			if it.done.CompareAndSwap(false, true) {
				it.log.WithFields(logrus.Fields{
					"files":  it.files.Load(),
					"failed": it.failed.Load(),
				}).Debug("fetch finished")
			}

			return Result{}, io.EOF

		case recvTimeout:
			if it.done.Load() {
				return Result{}, io.EOF
			}

			err := it.checkInterrupt()
			if err != nil {
				it.log.WithError(err).Debug("fetch interrupted")
				it.Close()

				return Result{}, err
			}
		}
	}

	return Result{}, io.EOF
}

// checkInterrupt returns a terminal error if a stop was requested.
func (it *Iterator) checkInterrupt() error {
	if it.ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(it.ctx))
	}

	if it.interrupt != nil {
		err := it.interrupt()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInterrupted, err)
		}
	}

	return nil
}

// All returns a sequence over the remaining outcomes.
//
// Per-file errors are yielded with the failing path. A terminal interrupt
// error is yielded last. Breaking out of the loop closes the iterator.
func (it *Iterator) All() iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		for {
			res, err := it.Next()
			if err == io.EOF {
				return
			}

			if !yield(res, err) {
				it.Close()

				return
			}
		}
	}
}

// Close terminates the iterator.
//
// Workers stop starting new reads. Reads already in flight finish and their
// outcomes are discarded, so no worker stays blocked on a full channel.
// Close is idempotent and safe to call after the iterator is exhausted.
func (it *Iterator) Close() {
	it.done.Store(true)
	it.ch.shutdown()
}

// Stats returns counters of the outcomes returned so far.
func (it *Iterator) Stats() Stats {
	return Stats{
		Files:  it.files.Load(),
		Failed: it.failed.Load(),
		Bytes:  it.bytes.Load(),
	}
}

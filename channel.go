package frio

import (
	"sync"
	"sync/atomic"
	"time"
)

// outcome is the result of reading one path: data on success, err on failure.
type outcome struct {
	path string
	data []byte
	err  error
}

// resultChannel is a bounded multi-producer, single-consumer queue of
// outcomes.
//
// Producers hold *sender handles. The queue closes when the last handle is
// dropped; there is no "done" message. Once closed and drained, recv reports
// recvDisconnected forever.
//
// shutdown is the receiver going away: pending and future sends are
// discarded, so producers never block on a consumer that stopped reading.
type resultChannel struct {
	items chan outcome
	// refs counts live sender handles.
	refs atomic.Int64

	// stop is closed by shutdown.
	stop     chan struct{}
	stopOnce sync.Once
}

// sender is one producer handle of a resultChannel.
//
// A sender is used by a single worker; its tasks may call send concurrently.
type sender struct {
	ch      *resultChannel
	dropped atomic.Bool
}

// newResultChannel returns a channel holding up to capacity outcomes, plus
// its first producer handle.
func newResultChannel(capacity int) (*resultChannel, *sender) {
	ch := &resultChannel{
		items: make(chan outcome, capacity),
		stop:  make(chan struct{}),
	}
	ch.refs.Store(1)

	return ch, &sender{ch: ch}
}

// clone returns a new handle to the same channel.
// Cloning a dropped handle panics.
func (s *sender) clone() *sender {
	if s.dropped.Load() {
		panic("frio: clone of dropped sender")
	}

	s.ch.refs.Add(1)

	return &sender{ch: s.ch}
}

// send enqueues o, blocking while the channel is full. It reports false if
// the channel was shut down before o could be enqueued.
func (s *sender) send(o outcome) bool {
	select {
	case s.ch.items <- o:
		return true
	case <-s.ch.stop:
		return false
	}
}

// drop releases the handle. Dropping twice is a no-op.
// The last drop closes the channel.
func (s *sender) drop() {
	if !s.dropped.CompareAndSwap(false, true) {
		return
	}

	if s.ch.refs.Add(-1) == 0 {
		close(s.ch.items)
	}
}

type recvStatus uint8

const (
	// recvOK means an outcome was received.
	recvOK recvStatus = iota
	// recvTimeout means no outcome arrived in time ("no item yet").
	recvTimeout
	// recvDisconnected means all senders are gone and the queue is empty.
	recvDisconnected
)

// recv waits up to timeout for the next outcome.
//
// A receive from either wake channel ends the wait early with recvTimeout;
// nil wake channels never fire.
func (c *resultChannel) recv(timeout time.Duration, wake1, wake2 <-chan struct{}) (outcome, recvStatus) {
	select {
	case o, ok := <-c.items:
		return received(o, ok)
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o, ok := <-c.items:
		return received(o, ok)
	case <-timer.C:
		return outcome{}, recvTimeout
	case <-wake1:
		return outcome{}, recvTimeout
	case <-wake2:
		return outcome{}, recvTimeout
	}
}

func received(o outcome, ok bool) (outcome, recvStatus) {
	if !ok {
		return outcome{}, recvDisconnected
	}

	return o, recvOK
}

// shutdown tells producers the receiver is gone. Safe to call more than once
// and from any goroutine.
func (c *resultChannel) shutdown() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

package frio

// worker.go contains the per-worker read loop.
//
// Go has no per-thread event loop for regular files: file syscalls block the
// thread that issues them, and the runtime parks the goroutine and hands its
// P to another thread. A worker therefore runs its reads on a fixed set of
// lanes:
//
//	┌─────────────────────────────────────────────────────────────────────────┐
//	│ worker                                                                  │
//	│   │                                                                     │
//	│   │ backlog FIFO ← its chunk of paths (shared by its lanes)             │
//	│   │                                                                     │
//	│   └─► errgroup: min(concurrency, jobs) lanes, each:                     │
//	│         │ locked to its own OS thread and pinned to the worker's core   │
//	│         └─► loop: pop path → readFile → sender.send(outcome)            │
//	│                                                                         │
//	│ After every lane has found the backlog empty (or the fetch stopped),    │
//	│ the worker drops its sender handle and exits.                           │
//	└─────────────────────────────────────────────────────────────────────────┘
//
// Every read runs on a thread pinned to the worker's core. A pinned thread is
// never unlocked: when its lane exits, the runtime destroys the thread instead
// of returning a pinned thread to its pool. Threads the runtime creates while
// a lane is locked come from its template thread and do not inherit the mask.

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type workerArgs struct {
	ctx         context.Context
	id          int
	core        int
	jobs        []string
	readSize    int64
	concurrency int
	tx          *sender
	stop        <-chan struct{}
	log         *logrus.Entry
}

type worker struct {
	ctx         context.Context
	id          int
	core        int
	mu          sync.Mutex
	backlog     *queue.Queue
	readSize    int64
	concurrency int
	tx          *sender
	stop        <-chan struct{}
	log         *logrus.Entry
}

func newWorker(args workerArgs) *worker {
	backlog := queue.New()
	for _, p := range args.jobs {
		backlog.Add(p)
	}

	return &worker{
		ctx:         args.ctx,
		id:          args.id,
		core:        args.core,
		backlog:     backlog,
		readSize:    args.readSize,
		concurrency: args.concurrency,
		tx:          args.tx,
		stop:        args.stop,
		log: args.log.WithFields(logrus.Fields{
			"worker": args.id,
			"core":   args.core,
		}),
	}
}

// run is the worker body. It must run on its own goroutine.
func (w *worker) run() {
	defer w.tx.drop()

	jobs := w.backlog.Length()
	lanes := min(w.concurrency, jobs)

	w.log.WithFields(logrus.Fields{
		"jobs":  jobs,
		"lanes": lanes,
	}).Debug("worker started")

	var (
		g          errgroup.Group
		dispatched atomic.Int64
	)

	for lane := range lanes {
		g.Go(func() error {
			w.lane(lane, &dispatched)

			return nil
		})
	}

	_ = g.Wait()

	w.log.WithFields(logrus.Fields{
		"jobs":       jobs,
		"dispatched": dispatched.Load(),
	}).Debug("worker finished")
}

// lane reads paths from the backlog one at a time until it is empty or the
// fetch stopped.
func (w *worker) lane(id int, dispatched *atomic.Int64) {
	if w.core >= 0 {
		runtime.LockOSThread()

		if !w.pin(id) {
			runtime.UnlockOSThread()
		}
	}

	for {
		path, ok := w.next()
		if !ok {
			return
		}

		dispatched.Add(1)
		w.readOne(path)
	}
}

// next pops the next path, or reports false when there is nothing left to
// start.
func (w *worker) next() (string, bool) {
	if w.stopped() {
		return "", false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.backlog.Length() == 0 {
		return "", false
	}

	path, _ := w.backlog.Remove().(string)

	return path, true
}

// pin binds the calling locked thread to w.core. Failures are logged and
// ignored.
func (w *worker) pin(lane int) bool {
	err := pinCurrentThread(w.core)
	if err != nil {
		w.log.WithError(err).WithField("lane", lane).Debug("core pinning failed, running unpinned")

		return false
	}

	return true
}

func (w *worker) readOne(path string) {
	data, err := readFile(path, w.readSize)

	if err != nil {
		w.log.WithError(err).WithField("path", path).Trace("read failed")
	} else {
		w.log.WithFields(logrus.Fields{
			"path":  path,
			"bytes": len(data),
		}).Trace("read done")
	}

	if !w.tx.send(outcome{path: path, data: data, err: err}) {
		w.log.WithField("path", path).Trace("outcome discarded")
	}
}

// stopped reports whether the iterator was closed or the fetch context is
// done.
func (w *worker) stopped() bool {
	select {
	case <-w.stop:
		return true
	case <-w.ctx.Done():
		return true
	default:
		return false
	}
}

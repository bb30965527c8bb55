package service

import (
	"context"
	"errors"
	"sync"
)

var ErrWorkerStopped = errors.New("worker stopped")

// Future is the pending result of a command run on a Worker.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) complete(val T, err error) {
	f.val, f.err = val, err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the command finishes or ctx is done. Giving up on the
// wait does not cancel the command.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

type job struct {
	run   func(ctx context.Context)
	abort func(err error)
}

// Worker runs submitted commands one at a time in submission order on a
// single goroutine. Submitting never blocks.
type Worker struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	queue   []job
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

func NewWorker() *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.wake:
		}

		for {
			w.mu.Lock()
			if len(w.queue) == 0 {
				w.mu.Unlock()
				break
			}
			j := w.queue[0]
			w.queue[0] = job{}
			w.queue = w.queue[1:]
			if len(w.queue) == 0 {
				// release the backing array a burst grew
				w.queue = nil
			}
			w.mu.Unlock()

			j.run(w.ctx)
		}
	}
}

func (w *Worker) enqueue(j job) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		j.abort(ErrWorkerStopped)
		return
	}
	w.queue = append(w.queue, j)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Stop cancels the running command's context, fails every queued command
// with ErrWorkerStopped and waits for the goroutine to exit.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.stopped = true
	pending := w.queue
	w.queue = nil
	w.mu.Unlock()

	w.cancel()
	<-w.done
	for _, j := range pending {
		j.abort(ErrWorkerStopped)
	}
}

// Submit queues fn on w and returns its future.
func Submit[T any](w *Worker, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	w.enqueue(job{
		run: func(ctx context.Context) {
			f.complete(fn(ctx))
		},
		abort: func(err error) {
			var zero T
			f.complete(zero, err)
		},
	})
	return f
}

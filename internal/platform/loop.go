package platform

import (
	"context"
	"sync"
)

// Loop runs posted closures one at a time, in posting order, on the
// goroutine that calls Run. The queue is unbounded so posting never
// blocks, including from a closure already running on the loop.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool
	err     error

	wake chan struct{}
	done chan struct{}
}

// NewLoop creates an idle loop.
func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post queues fn. It reports false if the loop has exited, in which case
// fn never runs.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	l.signal()
	return true
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		fn()
		close(finished)
	}) {
		return ErrLoopStopped
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop makes Run return err once the current closure finishes.
func (l *Loop) Stop(err error) {
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.mu.Unlock()
	l.signal()
}

// Done is closed when the loop has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Run processes closures until ctx is cancelled or Stop is called. It
// returns the error passed to Stop, or nil on cancellation. Closures still
// queued when Run returns are discarded.
func (l *Loop) Run(ctx context.Context) error {
	defer l.close()

	for {
		for {
			if err := l.stopErr(); err != nil {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			fn, ok := l.next()
			if !ok {
				break
			}
			fn()
		}

		select {
		case <-ctx.Done():
			return l.stopErr()
		case <-l.wake:
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Loop) stopErr() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	l.queue = nil
	close(l.done)
}

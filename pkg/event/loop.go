package event

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/logger"
)

// ErrLoopStopped is returned by Do once the loop has exited
var ErrLoopStopped = errors.New("event loop stopped")

// Timer is a one-shot timer whose callback runs on the scheduler
type Timer interface {
	// Stop cancels the timer. A fire that is already queued is
	// discarded. It reports whether the timer was active.
	Stop() bool
	// Reset rearms the timer
	Reset(d time.Duration)
	// Active reports whether the timer is armed
	Active() bool
}

// Scheduler runs callbacks and timers on a single goroutine
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
	Post(fn func())
	Now() time.Time
}

// Loop is a single-threaded reactor. Every posted function, timer
// callback and registration event runs on the goroutine calling Run.
type Loop struct {
	log *logger.Logger

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	regs    map[*Registration]struct{}
	stopped bool
	done    chan struct{}
}

// NewLoop creates an event loop
func NewLoop(log *logger.Logger) *Loop {
	if log == nil {
		log = logger.Nop()
	}
	return &Loop{
		log:  log.WithComponent("event"),
		wake: make(chan struct{}, 1),
		regs: make(map[*Registration]struct{}),
		done: make(chan struct{}),
	}
}

// Post queues fn to run on the loop. It never blocks.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Now returns the wall clock
func (l *Loop) Now() time.Time {
	return time.Now()
}

// Do runs fn on the loop and waits for its result
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	l.Post(func() { result <- fn() })

	select {
	case err := <-result:
		return err
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events until ctx is cancelled. Registrations still
// active at that point are unregistered.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Debug("Event loop started")
	defer close(l.done)

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			fn()
		}

		select {
		case <-ctx.Done():
			l.shutdown()
			return nil
		case <-l.wake:
		}
	}
}

func (l *Loop) shutdown() {
	l.mu.Lock()
	l.stopped = true
	regs := make([]*Registration, 0, len(l.regs))
	for r := range l.regs {
		regs = append(regs, r)
	}
	l.queue = nil
	l.mu.Unlock()

	for _, r := range regs {
		if err := r.Unregister(); err != nil {
			l.log.Warn("Registration ended with error",
				logger.String("name", r.name),
				logger.Error(err))
		}
	}
	l.log.Debug("Event loop stopped")
}

// AfterFunc arms a one-shot timer whose callback runs on the loop
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{loop: l, fn: fn}
	t.Reset(d)
	return t
}

// loopTimer is only touched on the loop goroutine except for the
// underlying time.Timer callback, which merely posts.
type loopTimer struct {
	loop   *Loop
	fn     func()
	timer  *time.Timer
	gen    uint64
	active bool
}

func (t *loopTimer) Stop() bool {
	was := t.active
	t.active = false
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
	}
	return was
}

func (t *loopTimer) Reset(d time.Duration) {
	t.Stop()
	t.active = true
	gen := t.gen
	t.timer = time.AfterFunc(d, func() {
		t.loop.Post(func() {
			if !t.active || t.gen != gen {
				return
			}
			t.active = false
			t.fn()
		})
	})
}

func (t *loopTimer) Active() bool {
	return t.active
}

// Registration is an event source feeding the loop from its own
// goroutine, such as a socket reader.
type Registration struct {
	name   string
	loop   *Loop
	cancel context.CancelFunc
	done   chan struct{}
	err    error
	once   sync.Once
}

// Register starts reader on its own goroutine. reader must return when
// its context is cancelled and hand events to the loop with Post.
func (l *Loop) Register(name string, reader func(ctx context.Context) error) *Registration {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registration{name: name, loop: l, cancel: cancel, done: make(chan struct{})}

	l.mu.Lock()
	l.regs[r] = struct{}{}
	l.mu.Unlock()

	go func() {
		defer close(r.done)
		r.err = reader(ctx)
		if r.err != nil && !errors.Is(r.err, context.Canceled) {
			l.log.Debug("Registration reader exited",
				logger.String("name", name),
				logger.Error(r.err))
		}
	}()
	return r
}

// Unregister stops the reader and waits for it to exit
func (r *Registration) Unregister() error {
	r.once.Do(func() {
		r.cancel()
		r.loop.mu.Lock()
		delete(r.loop.regs, r)
		r.loop.mu.Unlock()
	})
	<-r.done
	if errors.Is(r.err, context.Canceled) {
		return nil
	}
	return r.err
}

// Done is closed when the reader has exited
func (r *Registration) Done() <-chan struct{} {
	return r.done
}

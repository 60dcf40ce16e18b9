package event

import (
	"sort"
	"time"
)

// Manual is a deterministic scheduler for tests. Time only moves when
// Advance is called and posted functions run on Drain or Advance.
type Manual struct {
	now    time.Time
	queue  []func()
	timers []*manualTimer
	seq    uint64
}

// NewManual creates a manual scheduler starting at a fixed instant
func NewManual() *Manual {
	return &Manual{now: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the simulated time
func (m *Manual) Now() time.Time {
	return m.now
}

// Post queues fn until the next Drain or Advance
func (m *Manual) Post(fn func()) {
	m.queue = append(m.queue, fn)
}

// AfterFunc arms a timer on the simulated clock
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	t := &manualTimer{m: m, fn: fn}
	t.Reset(d)
	return t
}

// Drain runs posted functions, including those posted while draining
func (m *Manual) Drain() {
	for len(m.queue) > 0 {
		fn := m.queue[0]
		m.queue = m.queue[1:]
		fn()
	}
}

// Advance moves the clock forward, firing due timers in deadline order
func (m *Manual) Advance(d time.Duration) {
	end := m.now.Add(d)
	m.Drain()
	for {
		t := m.next(end)
		if t == nil {
			break
		}
		m.now = t.deadline
		t.active = false
		m.remove(t)
		t.fn()
		m.Drain()
	}
	m.now = end
}

// Pending returns the number of armed timers
func (m *Manual) Pending() int {
	return len(m.timers)
}

func (m *Manual) next(end time.Time) *manualTimer {
	if len(m.timers) == 0 {
		return nil
	}
	sort.SliceStable(m.timers, func(i, j int) bool {
		a, b := m.timers[i], m.timers[j]
		if a.deadline.Equal(b.deadline) {
			return a.seq < b.seq
		}
		return a.deadline.Before(b.deadline)
	})
	if m.timers[0].deadline.After(end) {
		return nil
	}
	return m.timers[0]
}

func (m *Manual) remove(t *manualTimer) {
	for i, x := range m.timers {
		if x == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}

type manualTimer struct {
	m        *Manual
	fn       func()
	deadline time.Time
	seq      uint64
	active   bool
}

func (t *manualTimer) Stop() bool {
	was := t.active
	if was {
		t.active = false
		t.m.remove(t)
	}
	return was
}

func (t *manualTimer) Reset(d time.Duration) {
	t.Stop()
	t.m.seq++
	t.seq = t.m.seq
	t.deadline = t.m.now.Add(d)
	t.active = true
	t.m.timers = append(t.m.timers, t)
}

func (t *manualTimer) Active() bool {
	return t.active
}

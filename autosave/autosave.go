// Package autosave debounces editor saves. Every editing session has a key;
// scheduling a save for a key replaces whatever was pending for it and
// restarts the quiet window, so a burst of edits produces a single save.
package autosave

import (
	"context"
	"sync"
	"time"
)

// DefaultDelay is the quiet window used when New is given a non-positive delay.
const DefaultDelay = 15 * time.Second

// Func performs one save.
type Func func(ctx context.Context) error

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithOnError sets the hook that receives errors from debounced saves.
// Errors from Run are returned to the caller instead.
func WithOnError(fn func(key string, err error)) Option {
	return func(s *Scheduler) { s.onError = fn }
}

// Scheduler holds at most one pending save per key.
type Scheduler struct {
	delay   time.Duration
	onError func(key string, err error)

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	tasks  map[string]*task
	locks  map[string]*keyLock
	closed bool
	wg     sync.WaitGroup
}

type task struct {
	timer *time.Timer
	fn    Func
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a Scheduler that fires a save delay after the last Schedule
// call for its key.
func New(delay time.Duration, opts ...Option) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		delay:   delay,
		onError: func(string, error) {},
		ctx:     ctx,
		cancel:  cancel,
		tasks:   make(map[string]*task),
		locks:   make(map[string]*keyLock),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Delay returns the quiet window.
func (s *Scheduler) Delay() time.Duration { return s.delay }

// Schedule arms a save for key, replacing any save still pending for it.
func (s *Scheduler) Schedule(key string, fn Func) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if old, ok := s.tasks[key]; ok {
		old.timer.Stop()
	}
	t := &task{fn: fn}
	t.timer = time.AfterFunc(s.delay, func() { s.fire(key, t) })
	s.tasks[key] = t
}

// Run drops the pending save for key and runs fn right away. It waits for a
// debounced save of the same key that is already running.
func (s *Scheduler) Run(ctx context.Context, key string, fn Func) error {
	s.Cancel(key)
	unlock := s.lockKey(key)
	defer unlock()
	return fn(ctx)
}

// Cancel drops the pending save for key and reports whether there was one.
// A save that has already started is not interrupted.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[key]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(s.tasks, key)
	return true
}

// Pending reports whether a save is waiting for key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

// Close drops every pending save and waits for running ones to finish.
// Later calls to Schedule are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for key, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, key)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.cancel()
}

func (s *Scheduler) fire(key string, t *task) {
	s.mu.Lock()
	if s.closed || s.tasks[key] != t {
		s.mu.Unlock()
		return
	}
	delete(s.tasks, key)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	unlock := s.lockKey(key)
	err := t.fn(s.ctx)
	unlock()
	if err != nil {
		s.onError(key, err)
	}
}

// lockKey serializes saves for one key. The entry is removed once nobody
// holds or waits on it.
func (s *Scheduler) lockKey(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

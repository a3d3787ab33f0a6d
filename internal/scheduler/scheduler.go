// Package scheduler owns every timer of one player session. Timers are
// registered under a key, fire as Events on a single channel and are all
// cancelled together on Close.
package scheduler

import (
	"sync"
	"time"
)

type Event struct {
	Key string
	At  time.Time
	seq uint64
}

type handle struct {
	seq   uint64
	timer *time.Timer
	fired bool
}

type Scheduler struct {
	events chan Event
	done   chan struct{}

	mu      sync.Mutex
	seq     uint64
	handles map[string]*handle
	closed  bool
}

func New(buffer int) *Scheduler {
	return &Scheduler{
		events:  make(chan Event, buffer),
		done:    make(chan struct{}),
		handles: make(map[string]*handle),
	}
}

func (s *Scheduler) Events() <-chan Event { return s.events }

// After fires key once after d, replacing any timer already registered under key.
func (s *Scheduler) After(key string, d time.Duration) {
	s.register(key, d, false)
}

// Every fires key every d until cancelled, replacing any timer under key.
func (s *Scheduler) Every(key string, d time.Duration) {
	s.register(key, d, true)
}

func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(key)
}

// Live reports whether ev still belongs to the registration that produced
// it. Events queued before a Cancel or replacement are stale.
func (s *Scheduler) Live(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[ev.Key]
	return ok && h.seq == ev.seq
}

// Active lists the currently registered keys.
func (s *Scheduler) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.handles))
	for k, h := range s.handles {
		if !h.fired {
			keys = append(keys, k)
		}
	}
	return keys
}

// Close cancels every timer. Later registrations are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for k := range s.handles {
		s.cancelLocked(k)
	}
	close(s.done)
}

func (s *Scheduler) register(key string, d time.Duration, repeat bool) {
	if d <= 0 {
		d = time.Millisecond
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.cancelLocked(key)

	s.seq++
	h := &handle{seq: s.seq}
	var fire func()
	fire = func() {
		s.mu.Lock()
		cur, ok := s.handles[key]
		if !ok || cur != h {
			s.mu.Unlock()
			return
		}
		if !repeat {
			// kept registered so the queued event stays live
			h.fired = true
		}
		s.mu.Unlock()
		s.emit(Event{Key: key, At: time.Now(), seq: h.seq})
		if !repeat {
			return
		}

		// re-armed only once the event is queued, so a stalled consumer
		// holds back at most one pending send per key
		s.mu.Lock()
		defer s.mu.Unlock()
		if cur, ok := s.handles[key]; ok && cur == h {
			h.timer = time.AfterFunc(d, fire)
		}
	}
	h.timer = time.AfterFunc(d, fire)
	s.handles[key] = h
}

func (s *Scheduler) cancelLocked(key string) {
	if h, ok := s.handles[key]; ok {
		h.timer.Stop()
		delete(s.handles, key)
	}
}

func (s *Scheduler) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

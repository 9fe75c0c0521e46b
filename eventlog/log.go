package eventlog

import (
	"sync"
	"time"
)

// Subscriber receives every event appended after it subscribed, in append
// order. Subscribers run on the appending goroutine and must not call Append.
type Subscriber func(Event)

// Log is an append-only event sequence for one studio session.
type Log struct {
	clock Clock
	start time.Time

	// writeMu serializes append+notify so subscribers observe append order.
	writeMu sync.Mutex

	mu     sync.RWMutex
	events []Event
	subs   map[int]Subscriber
	nextID int
}

// New starts a log whose offsets are measured from clock.Now().
func New(clock Clock) *Log {
	if clock == nil {
		clock = RealClock{}
	}
	return &Log{
		clock:  clock,
		start:  clock.Now(),
		events: make([]Event, 0, 32),
		subs:   make(map[int]Subscriber),
	}
}

// Start returns the wall-clock session start.
func (l *Log) Start() time.Time {
	return l.start
}

// Now returns the current offset from the session start.
func (l *Log) Now() time.Duration {
	return l.clock.Now().Sub(l.start)
}

// Append records an event and notifies subscribers. Meta is copied.
func (l *Log) Append(t Type, meta Meta) Event {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	var m Meta
	if len(meta) > 0 {
		m = make(Meta, len(meta))
		for k, v := range meta {
			m[k] = v
		}
	}
	ev := Event{Type: t, At: l.Now(), Meta: m}

	l.mu.Lock()
	l.events = append(l.events, ev)
	subs := make([]Subscriber, 0, len(l.subs))
	for id := 0; id < l.nextID; id++ {
		if fn, ok := l.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	l.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
	return ev
}

// Subscribe registers fn and returns a function that removes it. The
// returned function is safe to call more than once.
func (l *Log) Subscribe(fn Subscriber) (unsubscribe func()) {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = fn
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
		})
	}
}

// Events returns a snapshot of the log in append order.
func (l *Log) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len reports the number of appended events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Subscribers reports how many observers are attached.
func (l *Log) Subscribers() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs)
}

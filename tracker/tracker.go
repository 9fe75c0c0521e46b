// Package tracker times test-mode tasks. A task is started by hand and
// completes itself when the event log records one of its success events.
package tracker

import (
	"errors"
	"sync"
	"time"

	"github.com/eringen/promostudio/eventlog"
)

// Key names a tracked task.
type Key string

const (
	KeyPhotoEdit    Key = "photo_edit"
	KeySound        Key = "sound"
	KeyVoiceCommand Key = "voice_command"
	KeyModelLoad    Key = "model_load"
)

// Keys lists the tracked tasks in display order.
var Keys = []Key{KeyPhotoEdit, KeySound, KeyVoiceCommand, KeyModelLoad}

// successEvents maps each task to the event types that complete it.
var successEvents = map[Key][]eventlog.Type{
	KeyPhotoEdit:    {eventlog.TypePreviewRendered, eventlog.TypeImageExported},
	KeySound:        {eventlog.TypeSoundPlayed},
	KeyVoiceCommand: {eventlog.TypeVoicePostCreated},
	KeyModelLoad:    {eventlog.TypeCubeReady},
}

var ErrUnknownTask = errors.New("unknown task")

// Status is the state of a single task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
)

// TaskState is a snapshot of one task. End is set only when completed.
type TaskState struct {
	Running bool
	Start   *time.Duration
	End     *time.Duration
}

func (s TaskState) Status() Status {
	switch {
	case s.Running:
		return StatusRunning
	case s.End != nil:
		return StatusCompleted
	default:
		return StatusPending
	}
}

// Tracker holds the four task state machines. Times are offsets on the
// owning event log's clock.
type Tracker struct {
	mu    sync.Mutex
	tasks map[Key]*TaskState
	now   func() time.Duration
}

// New returns a tracker with every task pending. now supplies the offset
// recorded when a task starts.
func New(now func() time.Duration) *Tracker {
	t := &Tracker{tasks: make(map[Key]*TaskState, len(Keys)), now: now}
	for _, k := range Keys {
		t.tasks[k] = &TaskState{}
	}
	return t
}

// Attach subscribes the tracker to log and returns the unsubscribe func.
func (t *Tracker) Attach(log *eventlog.Log) func() {
	return log.Subscribe(t.Observe)
}

// ParseKey validates a task key.
func ParseKey(s string) (Key, error) {
	k := Key(s)
	if _, ok := successEvents[k]; !ok {
		return "", ErrUnknownTask
	}
	return k, nil
}

// Start moves a pending or completed task to running. Starting a running
// task does nothing and reports false.
func (t *Tracker) Start(k Key) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.tasks[k]
	if !ok {
		return false, ErrUnknownTask
	}
	if st.Running {
		return false, nil
	}
	start := t.now()
	st.Running = true
	st.Start = &start
	st.End = nil
	return true, nil
}

// Reset returns a task to pending from any state.
func (t *Tracker) Reset(k Key) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.tasks[k]
	if !ok {
		return ErrUnknownTask
	}
	*st = TaskState{}
	return nil
}

// Observe completes every running task whose success set contains e.Type.
// Events stamped before the task started are ignored.
func (t *Tracker) Observe(e eventlog.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, st := range t.tasks {
		if !st.Running || !completes(k, e.Type) || e.At < *st.Start {
			continue
		}
		end := e.At
		st.Running = false
		st.End = &end
	}
}

func completes(k Key, ty eventlog.Type) bool {
	for _, s := range successEvents[k] {
		if s == ty {
			return true
		}
	}
	return false
}

// State returns a copy of the task state.
func (t *Tracker) State(k Key) (TaskState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.tasks[k]
	if !ok {
		return TaskState{}, ErrUnknownTask
	}
	return copyState(st), nil
}

func copyState(st *TaskState) TaskState {
	out := TaskState{Running: st.Running}
	if st.Start != nil {
		v := *st.Start
		out.Start = &v
	}
	if st.End != nil {
		v := *st.End
		out.End = &v
	}
	return out
}

// Elapsed is zero for a pending task, now-start while running and end-start
// once completed.
func (s TaskState) Elapsed(now time.Duration) time.Duration {
	switch {
	case s.Start == nil:
		return 0
	case s.Running:
		return now - *s.Start
	case s.End != nil:
		return *s.End - *s.Start
	default:
		return 0
	}
}

// Snapshot is the view of one task at a given instant.
type Snapshot struct {
	Key     Key
	Status  Status
	Elapsed time.Duration
}

// Snapshot reports every task in display order, measured at now.
func (t *Tracker) Snapshot(now time.Duration) []Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Snapshot, 0, len(Keys))
	for _, k := range Keys {
		st := copyState(t.tasks[k])
		out = append(out, Snapshot{Key: k, Status: st.Status(), Elapsed: st.Elapsed(now)})
	}
	return out
}

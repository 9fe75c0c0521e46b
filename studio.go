package promostudio

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eringen/promostudio/blob"
	"github.com/eringen/promostudio/editor"
	"github.com/eringen/promostudio/eventlog"
	"github.com/eringen/promostudio/preview3d"
	"github.com/eringen/promostudio/schedule"
	"github.com/eringen/promostudio/tracker"
)

// Tab is a top-level panel of the studio shell.
type Tab string

const (
	TabEditor   Tab = "editor"
	TabCube     Tab = "cube"
	TabVoice    Tab = "voice"
	TabSchedule Tab = "schedule"
	TabLog      Tab = "log"
	TabTest     Tab = "test"
)

// Tabs lists the panels in display order.
var Tabs = []Tab{TabEditor, TabCube, TabVoice, TabSchedule, TabLog, TabTest}

var tabLabels = map[Tab]string{
	TabEditor:   "Editor",
	TabCube:     "3D",
	TabVoice:    "Voz",
	TabSchedule: "Programación",
	TabLog:      "Registro",
	TabTest:     "Modo prueba",
}

// ParseTab maps a query value to a Tab.
func ParseTab(s string) (Tab, bool) {
	t := Tab(s)
	_, ok := tabLabels[t]
	return t, ok
}

// Studio is the state behind one browser session. Every component it owns
// is released by Close.
type Studio struct {
	ID      string
	Created time.Time

	Log     *eventlog.Log
	Editor  *editor.Session
	Blobs   *blob.Store
	Board   *schedule.Board
	Tracker *tracker.Tracker
	Scene   *preview3d.Scene

	mu       sync.Mutex
	tab      Tab
	lastSeen time.Time
	detach   func()
	closed   bool
}

func (a *App) newStudio(id string) *Studio {
	lg := eventlog.New(a.clock)
	st := &Studio{
		ID:      id,
		Created: a.clock.Now(),
		Log:     lg,
		Editor:  editor.NewSession(),
		Blobs:   blob.New(a.Config.Blobs.Capacity, a.Config.Blobs.TTL).WithClock(a.clock.Now),
		Board:   schedule.NewBoard(a.Store, id, a.clock.Now),
		Tracker: tracker.New(lg.Now),
		tab:     TabEditor,
	}
	st.Scene = preview3d.New(preview3d.Config{
		Width:     a.Config.Cube.Width,
		Height:    a.Config.Cube.Height,
		FPS:       a.Config.Cube.FPS,
		LoadDelay: a.Config.Cube.LoadDelay,
	}, func() {
		lg.Append(eventlog.TypeCubeReady, nil)
	})
	st.detach = st.Tracker.Attach(lg)
	return st
}

// Tab returns the active panel.
func (s *Studio) Tab() Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tab
}

// SwitchTab activates t. Leaving the cube tab unmounts the scene and
// entering it mounts the scene. It reports whether the tab changed.
func (s *Studio) SwitchTab(t Tab) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.tab
	if prev == t || s.closed {
		return false
	}
	if prev == TabCube {
		s.unmountCube()
	}
	s.tab = t
	s.Log.Append(eventlog.TypeTabChanged, eventlog.Meta{"from": string(prev), "to": string(t)})
	if t == TabCube {
		s.mountCube()
	}
	return true
}

// MountCube mounts the scene if it is not already running.
func (s *Studio) MountCube() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.mountCube()
}

// UnmountCube stops the scene if it is running.
func (s *Studio) UnmountCube() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unmountCube()
}

func (s *Studio) mountCube() bool {
	if !s.Scene.Mount() {
		return false
	}
	s.Log.Append(eventlog.TypeCubeMounted, nil)
	return true
}

func (s *Studio) unmountCube() bool {
	if !s.Scene.Unmount() {
		return false
	}
	s.Log.Append(eventlog.TypeCubeUnmounted, nil)
	return true
}

// Release revokes a blob URL that is no longer displayed. Empty URLs and
// handles the store already dropped are ignored.
func (s *Studio) Release(url string) {
	if url == "" {
		return
	}
	if err := s.Blobs.Revoke(url); err != nil && !errors.Is(err, blob.ErrRevoked) {
		log.Debug().Err(err).Str("studio", s.ID).Str("url", url).Msg("release blob")
	}
}

func (s *Studio) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Studio) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Close stops the scene, revokes every blob, detaches the tracker and
// purges the studio's posts. Calls after the first do nothing.
func (s *Studio) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.Scene.Unmount()
	s.mu.Unlock()

	s.Release(s.Editor.Clear())
	s.Blobs.Clear()
	s.detach()
	return s.Board.Purge()
}

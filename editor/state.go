package editor

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
)

const (
	MinZoom     = 1.0
	MaxZoom     = 3.0
	MaxRotation = 180.0
)

var (
	ErrNoImage          = errors.New("no image loaded")
	ErrCropNotCommitted = errors.New("crop not committed")
	ErrInvalidCrop      = errors.New("invalid crop area")
)

// Point is the crop widget's pan offset.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// State is a snapshot of the editor.
type State struct {
	Source     string
	Size       image.Point
	Offset     Point
	Zoom       float64
	Rotation   float64
	Filter     Filter
	Crop       *CropArea
	PreviewURL string
}

// HasImage reports whether an image has been uploaded.
func (s State) HasImage() bool { return s.Source != "" }

// Session owns one studio's editor state.
type Session struct {
	mu    sync.Mutex
	state State
}

func NewSession() *Session {
	return &Session{state: State{Zoom: MinZoom}}
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.Crop != nil {
		c := *st.Crop
		st.Crop = &c
	}
	return st
}

// Load replaces the image, whose pixel size is size, and resets every other
// field. It returns the preview URL that was showing, which the caller must
// release.
func (s *Session) Load(dataURL string, size image.Point) (released string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	released = s.state.PreviewURL
	s.state = State{Source: dataURL, Size: size, Zoom: MinZoom}
	return released
}

// SetView records the crop widget's pan and zoom. Zoom is clamped to
// [MinZoom, MaxZoom].
func (s *Session) SetView(offset Point, zoom float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Source == "" {
		return ErrNoImage
	}
	s.state.Offset = offset
	s.state.Zoom = clamp(zoom, MinZoom, MaxZoom)
	return nil
}

// CommitCrop stores area as the last committed crop.
func (s *Session) CommitCrop(area CropArea) error {
	if area.X < 0 || area.Y < 0 || area.Width <= 0 || area.Height <= 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidCrop, area)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Source == "" {
		return ErrNoImage
	}
	s.state.Crop = &area
	return nil
}

// SetRotation clamps deg to [-180, 180].
func (s *Session) SetRotation(deg float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Source == "" {
		return ErrNoImage
	}
	if math.IsNaN(deg) {
		deg = 0
	}
	s.state.Rotation = clamp(deg, -MaxRotation, MaxRotation)
	return nil
}

func (s *Session) SetFilter(f Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Source == "" {
		return ErrNoImage
	}
	s.state.Filter = f
	return nil
}

// Renderable returns the state a render needs, or ErrNoImage /
// ErrCropNotCommitted when one is not yet possible.
func (s *Session) Renderable() (State, error) {
	st := s.Snapshot()
	if st.Source == "" {
		return State{}, ErrNoImage
	}
	if st.Crop == nil {
		return State{}, ErrCropNotCommitted
	}
	return st, nil
}

// SetPreview installs url as the preview and returns the previous one.
func (s *Session) SetPreview(url string) (previous string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous = s.state.PreviewURL
	s.state.PreviewURL = url
	return previous
}

// Clear drops all state and returns the preview URL to release.
func (s *Session) Clear() (released string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	released = s.state.PreviewURL
	s.state = State{Zoom: MinZoom}
	return released
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// Package preview3d renders the rotating brand cube shown in the 3D tab.
package preview3d

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/vector"
)

var ErrNotMounted = errors.New("scene not mounted")

// Config sizes the scene and paces its loop.
type Config struct {
	Width     int
	Height    int
	FPS       int
	LoadDelay time.Duration
	Palette   Palette
}

func (c *Config) setDefaults() {
	if c.Width <= 0 {
		c.Width = 240
	}
	if c.Height <= 0 {
		c.Height = 240
	}
	if c.FPS <= 0 {
		c.FPS = 30
	}
	if c.LoadDelay < 0 {
		c.LoadDelay = 0
	}
	if c.Palette == (Palette{}) {
		c.Palette = BrandPalette
	}
}

// mount is everything acquired by one Mount call.
type mount struct {
	buf    *image.RGBA
	cancel context.CancelFunc
	done   chan struct{}
	ready  bool
}

// Scene is the cube preview. Mount acquires a frame buffer and starts the
// frame loop; Unmount stops the loop and releases the buffer. Both are
// idempotent.
type Scene struct {
	cfg     Config
	onReady func()

	mu      sync.Mutex
	current *mount

	frames      atomic.Int64
	liveBuffers atomic.Int64
	mounts      atomic.Int64
}

// New creates an unmounted scene. onReady, if set, runs on the loop
// goroutine once per mount when the simulated asset load finishes.
func New(cfg Config, onReady func()) *Scene {
	cfg.setDefaults()
	return &Scene{cfg: cfg, onReady: onReady}
}

// Mount starts the scene. It reports false when already mounted.
func (s *Scene) Mount() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &mount{
		buf:    image.NewRGBA(image.Rect(0, 0, s.cfg.Width, s.cfg.Height)),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.liveBuffers.Add(1)
	s.mounts.Add(1)
	s.current = m
	go s.loop(ctx, m)
	log.Debug().Int("width", s.cfg.Width).Int("fps", s.cfg.FPS).Msg("cube mounted")
	return true
}

// Unmount stops the loop, cancels a pending load timer and releases the
// frame buffer. No frame is rendered after it returns. It reports false
// when the scene was not mounted.
func (s *Scene) Unmount() bool {
	s.mu.Lock()
	m := s.current
	s.current = nil
	s.mu.Unlock()
	if m == nil {
		return false
	}

	m.cancel()
	<-m.done

	s.mu.Lock()
	m.buf = nil
	s.mu.Unlock()
	s.liveBuffers.Add(-1)
	log.Debug().Msg("cube unmounted")
	return true
}

// Mounted reports whether the loop is running.
func (s *Scene) Mounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Ready reports whether the current mount has finished loading.
func (s *Scene) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.ready
}

// Frame returns the latest frame as PNG.
func (s *Scene) Frame() ([]byte, error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil, ErrNotMounted
	}
	snap := image.NewRGBA(s.current.buf.Bounds())
	copy(snap.Pix, s.current.buf.Pix)
	s.mu.Unlock()

	var buf bytes.Buffer
	if err := png.Encode(&buf, snap); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// Frames is the number of frames rendered since the scene was created.
func (s *Scene) Frames() int64 { return s.frames.Load() }

// LiveBuffers is the number of frame buffers currently held.
func (s *Scene) LiveBuffers() int64 { return s.liveBuffers.Load() }

// Mounts is the number of successful Mount calls.
func (s *Scene) Mounts() int64 { return s.mounts.Load() }

func (s *Scene) loop(ctx context.Context, m *mount) {
	defer close(m.done)

	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.FPS))
	defer ticker.Stop()
	load := time.NewTimer(s.cfg.LoadDelay)
	defer load.Stop()

	z := vector.NewRasterizer(s.cfg.Width, s.cfg.Height)
	started := time.Now()
	s.render(m, z, 0)

	for {
		select {
		case <-ctx.Done():
			return
		case <-load.C:
			if ctx.Err() != nil {
				return
			}
			s.mu.Lock()
			m.ready = true
			s.mu.Unlock()
			if s.onReady != nil {
				s.onReady()
			}
		case now := <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			s.render(m, z, now.Sub(started).Seconds())
		}
	}
}

func (s *Scene) render(m *mount, z *vector.Rasterizer, t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	drawCube(m.buf, z, s.cfg.Palette, t*0.7, t*1.1)
	s.frames.Add(1)
}

// Package promostudio is a promotional-content studio built with Go, Echo,
// and templ. Each browser session gets its own studio: a photo editor with
// a crop, rotate and filter pipeline, a rotating 3D brand cube, a voice
// command box that schedules posts, a post list, an event log and a
// test-mode panel that times tasks against that log.
package promostudio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/eringen/promostudio/editor"
	"github.com/eringen/promostudio/eventlog"
	"github.com/eringen/promostudio/schedule"
	"github.com/eringen/promostudio/tone"
	"github.com/eringen/promostudio/views"
)

const (
	janitorInterval = time.Minute
	shutdownTimeout = 10 * time.Second
)

// ViewFuncs holds the templ components the handlers render. New fills any
// nil entry with the stock views.
type ViewFuncs struct {
	Studio      func(p views.Page) templ.Component
	NotFound    func() templ.Component
	ServerError func() templ.Component
}

func (v *ViewFuncs) setDefaults() {
	if v.Studio == nil {
		v.Studio = views.Studio
	}
	if v.NotFound == nil {
		v.NotFound = views.NotFound
	}
	if v.ServerError == nil {
		v.ServerError = views.ServerError
	}
}

// App is the central promostudio application. It wires together the post
// store, the studio registry, the render pool, middleware and handlers.
type App struct {
	Config  Config
	Echo    *echo.Echo
	Store   *schedule.Store
	Studios *Registry
	Pool    *editor.Pool
	Views   ViewFuncs

	uploadLimiter *RateLimiter
	renderLimiter *RateLimiter
	voiceLimiter  *RateLimiter

	clock        eventlog.Clock
	loc          *time.Location
	beep         []byte
	customRoutes []func(*App)
	stop         context.CancelFunc
	ready        bool
}

// New creates a new App with the given configuration.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		clock:  eventlog.RealClock{},
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	a.Views.setDefaults()
	return a
}

// Setup opens the store, starts background workers and registers
// middleware and routes. Start calls it; tests call it directly and drive
// a.Echo with httptest.
func (a *App) Setup() error {
	if a.ready {
		return nil
	}
	if err := a.Config.Validate(); err != nil {
		return err
	}
	a.loc = a.Config.Location()

	beep, err := a.generateBeep()
	if err != nil {
		return fmt.Errorf("promostudio: generate beep: %w", err)
	}
	a.beep = beep

	store, err := schedule.NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("promostudio: init store: %w", err)
	}
	a.Store = store

	a.Pool = editor.NewPool(a.Config.Render.Workers, a.Config.Render.Queue,
		editor.Rasterizer{MaxPixels: a.Config.Render.MaxPixels})
	a.Pool.Start()

	ctx, cancel := context.WithCancel(context.Background())
	a.stop = cancel

	a.Studios = NewRegistry(a.Config.StudioIdleTTL, a.clock.Now, a.newStudio)
	go a.Studios.Run(ctx, janitorInterval)

	lim := a.Config.Limits
	a.uploadLimiter = NewRateLimiter(lim.Uploads, lim.Window)
	a.renderLimiter = NewRateLimiter(lim.Renders, lim.Window)
	a.voiceLimiter = NewRateLimiter(lim.Voice, lim.Window)
	for _, l := range []*RateLimiter{a.uploadLimiter, a.renderLimiter, a.voiceLimiter} {
		go l.Run(ctx)
	}

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}

	a.ready = true
	log.Info().
		Str("db", a.Config.DatabasePath).
		Int("render_workers", a.Config.Render.Workers).
		Dur("studio_idle_ttl", a.Config.StudioIdleTTL).
		Msg("studio ready")
	return nil
}

// Start sets the app up and serves until the server fails or is shut down.
func (a *App) Start() error {
	return a.Run(context.Background())
}

// Run serves until ctx is cancelled, then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.Setup(); err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", a.Config.Addr).Msg("listening")
		errc <- a.Echo.Start(a.Config.Addr)
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("promostudio: shutdown: %w", err)
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	e.StaticFS("/public", embeddedFS)

	e.GET("/", a.handleHome, a.withStudio)

	s := e.Group("/studio", a.withStudio)
	s.POST("/tab/", a.handleTab)

	s.POST("/editor/upload/", a.handleEditorUpload)
	s.POST("/editor/view/", a.handleEditorView)
	s.POST("/editor/crop/", a.handleEditorCrop)
	s.POST("/editor/adjust/", a.handleEditorAdjust)
	s.POST("/editor/preview/", a.handleEditorPreview)
	s.POST("/editor/export/", a.handleEditorExport)
	s.GET("/blob/:token", a.handleBlob)

	s.GET("/cube/frame", a.handleCubeFrame)
	s.POST("/cube/mount/", a.handleCubeMount)
	s.POST("/cube/unmount/", a.handleCubeUnmount)

	s.GET("/sound.wav", a.handleSound)
	s.POST("/sound/", a.handleSoundOutcome)

	s.POST("/voice/", a.handleVoice)
	s.POST("/posts/", a.handlePostSave)

	s.GET("/log/export", a.handleLogExport)

	s.GET("/tasks/", a.handleTasks)
	s.POST("/tasks/:key/start/", a.handleTaskStart)
	s.POST("/tasks/:key/reset/", a.handleTaskReset)
}

// Close stops background work, closes every studio and the store. Call it
// when the app is shutting down.
func (a *App) Close() error {
	if a.stop != nil {
		a.stop()
	}
	if a.Studios != nil {
		a.Studios.CloseAll()
	}
	if a.Pool != nil {
		a.Pool.Stop()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

func (a *App) generateBeep() ([]byte, error) {
	t := a.Config.Tone
	if t == (ToneConfig{}) {
		return tone.Beep()
	}
	if t.Frequency == 0 {
		t.Frequency = tone.DefaultFrequency
	}
	if t.Duration == 0 {
		t.Duration = tone.DefaultDuration
	}
	if t.SampleRate == 0 {
		t.SampleRate = tone.DefaultSampleRate
	}
	return tone.Generate(t.Frequency, t.Duration, t.SampleRate)
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

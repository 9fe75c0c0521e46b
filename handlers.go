package promostudio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/eringen/promostudio/blob"
	"github.com/eringen/promostudio/editor"
	"github.com/eringen/promostudio/eventlog"
	"github.com/eringen/promostudio/tracker"
	"github.com/eringen/promostudio/views"
)

// handleHome renders the studio on its active tab. The tab query parameter
// is only validated; switching happens through POST /studio/tab/.
func (a *App) handleHome(c echo.Context) error {
	st := CurrentStudio(c)
	if q := c.QueryParam("tab"); q != "" {
		if _, ok := ParseTab(q); !ok {
			return echo.ErrNotFound
		}
	}
	page, err := a.page(c, st)
	if err != nil {
		return err
	}
	return Render(c, a.Views.Studio(page))
}

func (a *App) handleTab(c echo.Context) error {
	tab, ok := ParseTab(c.FormValue("tab"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown tab")
	}
	CurrentStudio(c).SwitchTab(tab)
	return back(c, tab)
}

func (a *App) handleLogExport(c echo.Context) error {
	st := CurrentStudio(c)
	var buf bytes.Buffer
	if err := st.Log.Export(&buf); err != nil {
		return fmt.Errorf("export log: %w", err)
	}
	name := eventlog.ExportName(a.clock.Now())
	st.Log.Append(eventlog.TypeLogExported, eventlog.Meta{"events": st.Log.Len(), "file": name})

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSONCharsetUTF8, buf.Bytes())
}

// TaskResponse is one row of the task snapshot endpoint.
type TaskResponse struct {
	Key       string  `json:"key"`
	Status    string  `json:"status"`
	ElapsedMs float64 `json:"elapsed_ms"`
	Elapsed   string  `json:"elapsed"`
}

// TasksResponse is the JSON body of GET /studio/tasks/.
type TasksResponse struct {
	NowMs  float64        `json:"now_ms"`
	Tasks  []TaskResponse `json:"tasks"`
	Render editor.Stats   `json:"render"`
	Blobs  blob.Stats     `json:"blobs"`
}

func (a *App) handleTasks(c echo.Context) error {
	st := CurrentStudio(c)
	now := st.Log.Now()
	resp := TasksResponse{
		NowMs:  millis(now),
		Render: a.Pool.Stats(),
		Blobs:  st.Blobs.Stats(),
	}
	for _, s := range st.Tracker.Snapshot(now) {
		resp.Tasks = append(resp.Tasks, TaskResponse{
			Key:       string(s.Key),
			Status:    string(s.Status),
			ElapsedMs: millis(s.Elapsed),
			Elapsed:   formatElapsed(s.Elapsed),
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (a *App) handleTaskStart(c echo.Context) error {
	st := CurrentStudio(c)
	key, err := tracker.ParseKey(c.Param("key"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	started, err := st.Tracker.Start(key)
	if err != nil {
		return err
	}
	if started {
		st.Log.Append(eventlog.TypeTaskStarted, eventlog.Meta{"task": string(key)})
	}
	return back(c, TabTest)
}

func (a *App) handleTaskReset(c echo.Context) error {
	st := CurrentStudio(c)
	key, err := tracker.ParseKey(c.Param("key"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err := st.Tracker.Reset(key); err != nil {
		return err
	}
	st.Log.Append(eventlog.TypeTaskReset, eventlog.Meta{"task": string(key)})
	return back(c, TabTest)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		log.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("server error")
		_ = RenderStatus(c, code, a.Views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}

// formatMeta renders event metadata as compact JSON for the log panel.
func formatMeta(m eventlog.Meta) string {
	if len(m) == 0 {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprint(map[string]any(m))
	}
	return string(b)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func formatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// page assembles the view model for the shell.
func (a *App) page(c echo.Context, st *Studio) (views.Page, error) {
	active := st.Tab()
	p := views.Page{
		Title:    "PromoStudio",
		CSRF:     CsrfToken(c),
		Tab:      string(active),
		Banner:   popBanner(c),
		Timezone: a.loc.String(),
	}
	for _, t := range Tabs {
		p.Tabs = append(p.Tabs, views.TabLink{ID: string(t), Label: tabLabels[t], Active: t == active})
	}

	p.Editor = editorView(st)
	p.Cube = views.CubeView{
		Mounted: st.Scene.Mounted(),
		Ready:   st.Scene.Ready(),
		FPS:     a.Config.Cube.FPS,
	}

	posts, err := st.Board.List()
	if err != nil {
		return p, err
	}
	for _, post := range posts {
		p.Posts = append(p.Posts, views.PostView{
			ID:          post.ID,
			Title:       post.Title,
			Description: post.Description,
			ScheduledAt: post.ScheduledAt.In(a.loc).Format("2006-01-02 15:04"),
			CreatedAt:   post.CreatedAt.In(a.loc).Format("2006-01-02 15:04:05"),
		})
	}

	for _, e := range st.Log.Events() {
		p.Events = append(p.Events, views.EventView{
			Type:     string(e.Type),
			Relative: e.Relative(),
			Meta:     formatMeta(e.Meta),
		})
	}

	now := st.Log.Now()
	for _, s := range st.Tracker.Snapshot(now) {
		p.Tasks = append(p.Tasks, views.TaskView{
			Key:     string(s.Key),
			Label:   taskLabels[s.Key],
			Status:  string(s.Status),
			Elapsed: formatElapsed(s.Elapsed),
			Running: s.Status == tracker.StatusRunning,
		})
	}
	return p, nil
}

var taskLabels = map[tracker.Key]string{
	tracker.KeyPhotoEdit:    "Edición de foto",
	tracker.KeySound:        "Sonido",
	tracker.KeyVoiceCommand: "Comando de voz",
	tracker.KeyModelLoad:    "Carga del modelo 3D",
}

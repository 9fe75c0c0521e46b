package promostudio

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eringen/promostudio/eventlog"
	"github.com/eringen/promostudio/schedule"
	"github.com/eringen/promostudio/tracker"
	"github.com/eringen/promostudio/voice"
)

func newTestApp(t *testing.T) (*App, *eventlog.FakeClock) {
	t.Helper()
	clock := eventlog.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cfg := Config{
		SessionSecret: "test-secret",
		DatabasePath:  filepath.Join(t.TempDir(), "studio.db"),
		Cube:          CubeConfig{FPS: 60, LoadDelay: 20 * time.Millisecond},
	}
	a := New(cfg, WithClock(clock))
	if err := a.Setup(); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	t.Cleanup(func() {
		if err := a.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return a, clock
}

// testClient keeps cookies between requests and never follows redirects.
type testClient struct {
	t    *testing.T
	base *url.URL
	c    *http.Client
}

func newTestClient(t *testing.T, a *App) *testClient {
	t.Helper()
	srv := httptest.NewServer(a.Echo)
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	base, _ := url.Parse(srv.URL)
	tc := &testClient{
		t:    t,
		base: base,
		c: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	// the first page load issues the session and CSRF cookies
	tc.mustStatus(tc.get("/"), http.StatusOK)
	return tc
}

func (tc *testClient) csrf() string {
	for _, c := range tc.c.Jar.Cookies(tc.base) {
		if c.Name == "_csrf" {
			return c.Value
		}
	}
	tc.t.Fatalf("no _csrf cookie")
	return ""
}

func (tc *testClient) do(req *http.Request) *http.Response {
	tc.t.Helper()
	resp, err := tc.c.Do(req)
	if err != nil {
		tc.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	tc.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (tc *testClient) get(path string) *http.Response {
	tc.t.Helper()
	req, _ := http.NewRequest(http.MethodGet, tc.base.String()+path, nil)
	return tc.do(req)
}

func (tc *testClient) post(path string, form url.Values, header ...string) *http.Response {
	tc.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set("_csrf", tc.csrf())
	req, _ := http.NewRequest(http.MethodPost, tc.base.String()+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	return tc.do(req)
}

func (tc *testClient) upload(name string, data []byte) *http.Response {
	tc.t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("image", name)
	if err != nil {
		tc.t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write(data)
	w.Close()

	req, _ := http.NewRequest(http.MethodPost, tc.base.String()+"/studio/editor/upload/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-CSRF-Token", tc.csrf())
	return tc.do(req)
}

func (tc *testClient) mustStatus(resp *http.Response, want int) {
	tc.t.Helper()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		tc.t.Fatalf("%s %s: expected %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, b)
	}
}

func (tc *testClient) mustRedirect(resp *http.Response, tab Tab) {
	tc.t.Helper()
	tc.mustStatus(resp, http.StatusSeeOther)
	if got, want := resp.Header.Get("Location"), "/?tab="+string(tab); got != want {
		tc.t.Fatalf("expected redirect to %q, got %q", want, got)
	}
}

func (tc *testClient) page(tab Tab) string {
	tc.t.Helper()
	resp := tc.get("/?tab=" + string(tab))
	tc.mustStatus(resp, http.StatusOK)
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func onlyStudio(t *testing.T, a *App) *Studio {
	t.Helper()
	a.Studios.mu.Lock()
	defer a.Studios.mu.Unlock()
	if len(a.Studios.studios) != 1 {
		t.Fatalf("expected 1 studio, got %d", len(a.Studios.studios))
	}
	for _, st := range a.Studios.studios {
		return st
	}
	return nil
}

func eventTypes(l *eventlog.Log) []eventlog.Type {
	var out []eventlog.Type
	for _, e := range l.Events() {
		out = append(out, e.Type)
	}
	return out
}

func hasEvent(l *eventlog.Log, ty eventlog.Type) bool {
	for _, got := range eventTypes(l) {
		if got == ty {
			return true
		}
	}
	return false
}

// twoTone is a 4x2 PNG: red on the left half, blue on the right.
func twoTone(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			c := color.NRGBA{R: 255, A: 255}
			if x >= 2 {
				c = color.NRGBA{B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestHomeRendersShell(t *testing.T) {
	a, _ := newTestApp(t)
	tc := newTestClient(t, a)

	body := tc.page(TabEditor)
	for _, want := range []string{`name="csrf-token"`, "Editor de fotos", `action="/studio/tab/"`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}
}

func TestUnknownTabIsNotFound(t *testing.T) {
	a, _ := newTestApp(t)
	tc := newTestClient(t, a)
	tc.mustStatus(tc.get("/?tab=settings"), http.StatusNotFound)
}

func TestPostWithoutCSRFIsForbidden(t *testing.T) {
	a, _ := newTestApp(t)
	tc := newTestClient(t, a)

	req, _ := http.NewRequest(http.MethodPost, tc.base.String()+"/studio/voice/",
		strings.NewReader("text=programar+publicacion"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	tc.mustStatus(tc.do(req), http.StatusForbidden)
}

func TestEditorPreviewAndExport(t *testing.T) {
	a, _ := newTestApp(t)
	tc := newTestClient(t, a)
	st := onlyStudio(t, a)

	tc.mustRedirect(tc.upload("halves.png", twoTone(t)), TabEditor)
	if cur := st.Editor.Snapshot(); !cur.HasImage() || cur.Size != image.Pt(4, 2) {
		t.Fatalf("expected 4x2 image loaded, got %+v", cur.Size)
	}

	tc.mustRedirect(tc.post("/studio/editor/crop/", url.Values{
		"x": {"0"}, "y": {"0"}, "width": {"4"}, "height": {"2"},
	}), TabEditor)
	tc.mustRedirect(tc.post("/studio/editor/adjust/", url.Values{
		"rotation": {"0"}, "filter": {"grayscale"},
	}), TabEditor)
	tc.mustRedirect(tc.post("/studio/editor/preview/", nil), TabEditor)

	first := st.Editor.Snapshot().PreviewURL
	if !strings.HasPrefix(first, "/studio/blob/") {
		t.Fatalf("expected blob preview URL, got %q", first)
	}
	resp := tc.get(first)
	tc.mustStatus(resp, http.StatusOK)
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 2 {
		t.Fatalf("expected 4x2 preview, got %v", img.Bounds())
	}

	// a second preview releases the first handle
	tc.mustRedirect(tc.post("/studio/editor/preview/", nil), TabEditor)
	tc.mustStatus(tc.get(first), http.StatusNotFound)

	resp = tc.post("/studio/editor/export/", nil)
	tc.mustStatus(resp, http.StatusOK)
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "mediaplay_edited.png") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
	if _, err := png.Decode(resp.Body); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if n := st.Blobs.Len(); n != 1 {
		t.Errorf("expected only the preview blob to stay live, got %d", n)
	}

	for _, ty := range []eventlog.Type{
		eventlog.TypeImageUploaded,
		eventlog.TypeCropCommitted,
		eventlog.TypeAdjusted,
		eventlog.TypePreviewRendered,
		eventlog.TypeImageExported,
	} {
		if !hasEvent(st.Log, ty) {
			t.Errorf("expected %s in log, got %v", ty, eventTypes(st.Log))
		}
	}
}

func TestPreviewSurvivesBlobTTL(t *testing.T) {
	a, clock := newTestApp(t)
	tc := newTestClient(t, a)
	st := onlyStudio(t, a)

	tc.mustRedirect(tc.upload("halves.png", twoTone(t)), TabEditor)
	tc.mustRedirect(tc.post("/studio/editor/crop/", url.Values{
		"x": {"0"}, "y": {"0"}, "width": {"4"}, "height": {"2"},
	}), TabEditor)
	tc.mustRedirect(tc.post("/studio/editor/preview/", nil), TabEditor)
	preview := st.Editor.Snapshot().PreviewURL

	clock.Advance(a.Config.Blobs.TTL + time.Minute)
	st.Blobs.Sweep()
	tc.mustStatus(tc.get(preview), http.StatusOK)
	if got := st.Editor.Snapshot().PreviewURL; got != preview {
		t.Fatalf("expected preview %q to stay current, got %q", preview, got)
	}

	// loading a new image is what releases it
	tc.mustRedirect(tc.upload("halves.png", twoTone(t)), TabEditor)
	tc.mustStatus(tc.get(preview), http.StatusNotFound)
}

func TestPreviewRequiresCommittedCrop(t *testing.T) {
	a, _ := newTestApp(t)
	tc := newTestClient(t, a)

	tc.mustRedirect(tc.post("/studio/editor/preview/", nil), TabEditor)
	if body := tc.page(TabEditor); !strings.Contains(body, "Primero carga una imagen") {
		t.Errorf("expected no-image banner")
	}

	tc.mustRedirect(tc.upload("halves.png", twoTone(t)), TabEditor)
	tc.mustRedirect(tc.post("/studio/editor/export/", nil), TabEditor)
	if body := tc.page(TabEditor); !strings.Contains(body, "Confirma el recorte") {
		t.Errorf("expected crop banner")
	}
	if hasEvent(onlyStudio(t, a).Log, eventlog.TypeImageExported) {
		t.Errorf("export must not happen before crop commit")
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	a, _ := newTestApp(t)
	tc := newTestClient(t, a)
	st := onlyStudio(t, a)

	tc.mustRedirect(tc.upload("notes.txt", []byte("just some text")), TabEditor)
	if st.Editor.Snapshot().HasImage() {
		t.Fatalf("expected no image after rejected upload")
	}
	if !hasEvent(st.Log, eventlog.TypeEditorError) {
		t.Fatalf("expected editor_error, got %v", eventTypes(st.Log))
	}
	if body := tc.page(TabEditor); !strings.Contains(body, "No se pudo cargar la imagen") {
		t.Errorf("expected decode banner")
	}
}

func TestVoiceCommandSchedulesPost(t *testing.T) {
	a, _ := newTestApp(t)
	tc := newTestClient(t, a)
	st := onlyStudio(t, a)

	tc.mustRedirect(tc.post("/studio/voice/", url.Values{"text": {"Programar una publicación"}}), TabVoice)
	posts, err := st.Board.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(posts) != 1 || posts[0].Title != voice.DefaultTitle {
		t.Fatalf("expected one voice post, got %+v", posts)
	}
	if !posts[0].ScheduledAt.Equal(posts[0].CreatedAt) {
		t.Errorf("voice post should be scheduled at its creation time")
	}

	tc.mustRedirect(tc.post("/studio/voice/", url.Values{"text": {"hola"}}), TabVoice)
	if body := tc.page(TabVoice); !strings.Contains(body, "Comando no reconocido") {
		t.Errorf("expected not-recognized banner")
	}
	posts, _ = st.Board.List()
	if len(posts) != 1 {
		t.Fatalf("unrecognized command must not create a post, got %d", len(posts))
	}

	want := []eventlog.Type{
		eventlog.TypeVoiceCommand,
		eventlog.TypeVoicePostCreated,
		eventlog.TypeVoiceCommand,
		eventlog.TypeVoiceNotRecognized,
	}
	var got []eventlog.Type
	for _, ty := range eventTypes(st.Log) {
		if strings.HasPrefix(string(ty), "voice_") {
			got = append(got, ty)
		}
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestPostSaveUsesClientZone(t *testing.T) {
	a, _ := newTestApp(t)
	tc := newTestClient(t, a)
	st := onlyStudio(t, a)

	tc.mustRedirect(tc.post("/studio/posts/", url.Values{
		"title":        {"   "},
		"description":  {"  Lanzamiento\n"},
		"scheduled_at": {"2020-01-02T03:04"},
		"tz":           {"America/Mexico_City"},
	}), TabSchedule)

	posts, err := st.Board.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}
	if posts[0].Title != schedule.PlaceholderTitle {
		t.Errorf("expected placeholder title, got %q", posts[0].Title)
	}
	if posts[0].Description != "  Lanzamiento\n" {
		t.Errorf("expected description stored as given, got %q", posts[0].Description)
	}
	loc, _ := time.LoadLocation("America/Mexico_City")
	if want := time.Date(2020, 1, 2, 3, 4, 0, 0, loc); !posts[0].ScheduledAt.Equal(want) {
		t.Errorf("expected %v, got %v", want, posts[0].ScheduledAt)
	}
	if !hasEvent(st.Log, eventlog.TypePostSaved) {
		t.Errorf("expected post_saved")
	}

	tc.mustRedirect(tc.post("/studio/posts/", url.Values{"scheduled_at": {"mañana"}}), TabSchedule)
	if body := tc.page(TabSchedule); !strings.Contains(body, "Fecha u hora no válida") {
		t.Errorf("expected invalid date banner")
	}
	posts, _ = st.Board.List()
	if len(posts) != 1 {
		t.Errorf("invalid date must not save, got %d posts", len(posts))
	}
}

func TestTaskTrackerEndpoints(t *testing.T) {
	a, clock := newTestApp(t)
	tc := newTestClient(t, a)
	st := onlyStudio(t, a)

	tc.mustRedirect(tc.post("/studio/tasks/sound/start/", nil), TabTest)
	clock.Advance(1500 * time.Millisecond)

	resp := tc.get("/studio/tasks/")
	tc.mustStatus(resp, http.StatusOK)
	var body TasksResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode tasks: %v", err)
	}
	if len(body.Tasks) != len(tracker.Keys) {
		t.Fatalf("expected %d tasks, got %d", len(tracker.Keys), len(body.Tasks))
	}
	if body.Render.Workers != a.Config.Render.Workers || body.Blobs.Capacity != a.Config.Blobs.Capacity {
		t.Errorf("unexpected stats render=%+v blobs=%+v", body.Render, body.Blobs)
	}
	for _, task := range body.Tasks {
		if task.Key == string(tracker.KeySound) {
			if task.Status != string(tracker.StatusRunning) || task.Elapsed != "1.50s" {
				t.Errorf("unexpected sound task %+v", task)
			}
		}
	}

	resp = tc.post("/studio/sound/", url.Values{"outcome": {"played"}}, "X-Requested-With", "fetch")
	tc.mustStatus(resp, http.StatusNoContent)
	state, _ := st.Tracker.State(tracker.KeySound)
	if state.Status() != tracker.StatusCompleted {
		t.Fatalf("expected sound completed, got %s", state.Status())
	}

	tc.mustRedirect(tc.post("/studio/tasks/sound/reset/", nil), TabTest)
	state, _ = st.Tracker.State(tracker.KeySound)
	if state.Status() != tracker.StatusPending {
		t.Fatalf("expected sound pending after reset, got %s", state.Status())
	}

	tc.mustStatus(tc.post("/studio/tasks/dance/start/", nil), http.StatusNotFound)
}

func TestSoundErrorIsLogged(t *testing.T) {
	a, _ := newTestApp(t)
	tc := newTestClient(t, a)
	st := onlyStudio(t, a)

	resp := tc.get("/studio/sound.wav")
	tc.mustStatus(resp, http.StatusOK)
	wav, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(wav, []byte("RIFF")) {
		t.Fatalf("expected a RIFF body")
	}

	tc.mustRedirect(tc.post("/studio/sound/", url.Values{"outcome": {"error"}, "error": {"NotAllowedError"}}), TabTest)
	events := st.Log.Events()
	last := events[len(events)-1]
	if last.Type != eventlog.TypeSoundError || last.Meta["error"] != "NotAllowedError" {
		t.Fatalf("unexpected last event %+v", last)
	}
	if body := tc.page(TabTest); !strings.Contains(body, "No se pudo reproducir el sonido") {
		t.Errorf("expected sound banner")
	}
}

func TestLogExportDownload(t *testing.T) {
	a, clock := newTestApp(t)
	tc := newTestClient(t, a)
	st := onlyStudio(t, a)

	clock.Advance(2 * time.Second)
	tc.mustRedirect(tc.post("/studio/voice/", url.Values{"text": {"hola"}}), TabVoice)

	resp := tc.get("/studio/log/export")
	tc.mustStatus(resp, http.StatusOK)
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "promostudio_log_20260301T100002Z.json") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
	var doc struct {
		T0     int64 `json:"t0"`
		Events []struct {
			Type string  `json:"type"`
			T    float64 `json:"t"`
		} `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if doc.T0 != st.Log.Start().UnixMilli() {
		t.Errorf("unexpected t0 %d", doc.T0)
	}
	if len(doc.Events) == 0 || doc.Events[0].Type != string(eventlog.TypeVoiceCommand) || doc.Events[0].T != 2000 {
		t.Errorf("unexpected events %+v", doc.Events)
	}
	events := st.Log.Events()
	if events[len(events)-1].Type != eventlog.TypeLogExported {
		t.Errorf("expected log_exported after the download")
	}
}

func TestHomeDoesNotSwitchTab(t *testing.T) {
	a, _ := newTestApp(t)
	tc := newTestClient(t, a)
	st := onlyStudio(t, a)

	body := tc.page(TabCube)
	if !strings.Contains(body, `<body data-tab="editor"`) {
		t.Errorf("expected the active editor tab to be rendered")
	}
	if st.Tab() != TabEditor || st.Scene.Mounted() {
		t.Fatalf("GET must not switch tabs, got %q mounted=%v", st.Tab(), st.Scene.Mounted())
	}
	if hasEvent(st.Log, eventlog.TypeTabChanged) {
		t.Errorf("GET must not log tab_changed, got %v", eventTypes(st.Log))
	}
}

func TestCubeFollowsTab(t *testing.T) {
	a, _ := newTestApp(t)
	tc := newTestClient(t, a)
	st := onlyStudio(t, a)

	tc.mustStatus(tc.get("/studio/cube/frame"), http.StatusNotFound)

	tc.mustRedirect(tc.post("/studio/tab/", url.Values{"tab": {"cube"}}), TabCube)
	if !st.Scene.Mounted() {
		t.Fatalf("expected scene mounted on cube tab")
	}
	resp := tc.get("/studio/cube/frame")
	tc.mustStatus(resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !hasEvent(st.Log, eventlog.TypeCubeReady) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !hasEvent(st.Log, eventlog.TypeCubeReady) {
		t.Fatalf("expected cube_ready, got %v", eventTypes(st.Log))
	}

	tc.mustRedirect(tc.post("/studio/tab/", url.Values{"tab": {"editor"}}), TabEditor)
	if st.Scene.Mounted() {
		t.Fatalf("expected scene unmounted after leaving cube tab")
	}
	tc.mustStatus(tc.get("/studio/cube/frame"), http.StatusNotFound)
	if n := st.Scene.LiveBuffers(); n != 0 {
		t.Errorf("expected no live buffers, got %d", n)
	}
	for _, ty := range []eventlog.Type{eventlog.TypeCubeMounted, eventlog.TypeTabChanged, eventlog.TypeCubeUnmounted} {
		if !hasEvent(st.Log, ty) {
			t.Errorf("expected %s in log", ty)
		}
	}
}

func TestStudiosAreIsolated(t *testing.T) {
	a, _ := newTestApp(t)
	alice := newTestClient(t, a)
	bob := newTestClient(t, a)

	alice.mustRedirect(alice.post("/studio/voice/", url.Values{"text": {"schedule a post"}}), TabVoice)

	if n := a.Studios.Len(); n != 2 {
		t.Fatalf("expected 2 studios, got %d", n)
	}
	if body := bob.page(TabSchedule); strings.Contains(body, voice.DefaultTitle) {
		t.Errorf("post leaked into another studio")
	}
	if body := alice.page(TabSchedule); !strings.Contains(body, voice.DefaultTitle) {
		t.Errorf("expected post in its own studio")
	}
}

func TestSetupDropsPostsOfKilledProcess(t *testing.T) {
	cfg := Config{SessionSecret: "test-secret", DatabasePath: filepath.Join(t.TempDir(), "studio.db")}

	first := New(cfg)
	if err := first.Setup(); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	st := first.Studios.Create()
	if _, err := st.Board.SaveNow("hola"); err != nil {
		t.Fatalf("SaveNow failed: %v", err)
	}
	// killed: studios are never closed
	first.stop()
	first.Pool.Stop()
	if err := first.Store.Close(); err != nil {
		t.Fatalf("store close: %v", err)
	}

	second := New(cfg)
	if err := second.Setup(); err != nil {
		t.Fatalf("second Setup failed: %v", err)
	}
	t.Cleanup(func() { second.Close() })
	posts, err := second.Store.ListPosts(st.ID)
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if len(posts) != 0 {
		t.Fatalf("expected orphaned posts dropped, got %d", len(posts))
	}
}

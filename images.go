package promostudio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/eringen/promostudio/blob"
	"github.com/eringen/promostudio/editor"
	"github.com/eringen/promostudio/eventlog"
	"github.com/eringen/promostudio/views"
)

const exportFilename = "mediaplay_edited.png"

var errNotAnImage = errors.New("file is not an image")

// readUpload reads the multipart image field fully and sniffs its type.
func (a *App) readUpload(c echo.Context) (name, mime string, data []byte, err error) {
	file, err := c.FormFile("image")
	if err != nil {
		return "", "", nil, err
	}
	if file.Size > a.Config.MaxUploadBytes {
		return "", "", nil, fmt.Errorf("%s: %w", file.Filename, errTooLarge)
	}
	src, err := file.Open()
	if err != nil {
		return "", "", nil, err
	}
	defer src.Close()

	data, err = io.ReadAll(io.LimitReader(src, a.Config.MaxUploadBytes+1))
	if err != nil {
		return "", "", nil, err
	}
	if int64(len(data)) > a.Config.MaxUploadBytes {
		return "", "", nil, fmt.Errorf("%s: %w", file.Filename, errTooLarge)
	}
	mime, _, _ = strings.Cut(mimetype.Detect(data).String(), ";")
	if !strings.HasPrefix(mime, "image/") {
		return file.Filename, mime, nil, fmt.Errorf("%w: %s is %s", errNotAnImage, file.Filename, mime)
	}
	return file.Filename, mime, data, nil
}

var errTooLarge = errors.New("file too large")

func (a *App) handleEditorUpload(c echo.Context) error {
	st := CurrentStudio(c)
	if !a.uploadLimiter.Allow(c.RealIP()) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many uploads")
	}

	name, mime, data, err := a.readUpload(c)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return flashBack(c, TabEditor, flashError, "Selecciona una imagen")
	case errors.Is(err, errTooLarge):
		return flashBack(c, TabEditor, flashError,
			fmt.Sprintf("La imagen supera el máximo de %d MB", a.Config.MaxUploadBytes>>20))
	case errors.Is(err, errNotAnImage):
		return a.editorFailure(c, st, fmt.Errorf("%w: %v", editor.ErrImageDecodeFailed, err))
	case err != nil:
		return err
	}

	size, err := editor.Inspect(data)
	if err != nil {
		return a.editorFailure(c, st, err)
	}

	st.Release(st.Editor.Load(editor.EncodeDataURL(mime, data), size))
	st.Log.Append(eventlog.TypeImageUploaded, eventlog.Meta{
		"name":   name,
		"mime":   mime,
		"bytes":  len(data),
		"width":  size.X,
		"height": size.Y,
	})
	return back(c, TabEditor)
}

func (a *App) handleEditorView(c echo.Context) error {
	st := CurrentStudio(c)
	offset := editor.Point{X: formFloat(c, "offset_x", 0), Y: formFloat(c, "offset_y", 0)}
	zoom := formFloat(c, "zoom", editor.MinZoom)
	if err := st.Editor.SetView(offset, zoom); err != nil {
		return a.editorGuard(c, err)
	}
	cur := st.Editor.Snapshot()
	st.Log.Append(eventlog.TypeViewChanged, eventlog.Meta{"x": cur.Offset.X, "y": cur.Offset.Y, "zoom": cur.Zoom})
	return back(c, TabEditor)
}

func (a *App) handleEditorCrop(c echo.Context) error {
	st := CurrentStudio(c)
	area := editor.CropArea{
		X:      formInt(c, "x"),
		Y:      formInt(c, "y"),
		Width:  formInt(c, "width"),
		Height: formInt(c, "height"),
	}
	if err := st.Editor.CommitCrop(area); err != nil {
		return a.editorGuard(c, err)
	}
	st.Log.Append(eventlog.TypeCropCommitted, eventlog.Meta{
		"x": area.X, "y": area.Y, "width": area.Width, "height": area.Height,
	})
	return back(c, TabEditor)
}

func (a *App) handleEditorAdjust(c echo.Context) error {
	st := CurrentStudio(c)
	f, err := editor.ParseFilter(c.FormValue("filter"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := st.Editor.SetRotation(formFloat(c, "rotation", 0)); err != nil {
		return a.editorGuard(c, err)
	}
	if err := st.Editor.SetFilter(f); err != nil {
		return a.editorGuard(c, err)
	}
	cur := st.Editor.Snapshot()
	st.Log.Append(eventlog.TypeAdjusted, eventlog.Meta{"rotation": cur.Rotation, "filter": cur.Filter.String()})
	return back(c, TabEditor)
}

func (a *App) handleEditorPreview(c echo.Context) error {
	st := CurrentStudio(c)
	if !a.renderLimiter.Allow(c.RealIP()) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many renders")
	}
	out, cur, err := a.render(c.Request().Context(), st)
	if err != nil {
		return a.renderFailure(c, st, err)
	}

	h := st.Blobs.Pin(out, "image/png")
	st.Release(st.Editor.SetPreview(h.URL))
	st.Log.Append(eventlog.TypePreviewRendered, eventlog.Meta{
		"bytes":    len(out),
		"width":    cur.Crop.Width,
		"height":   cur.Crop.Height,
		"rotation": cur.Rotation,
		"filter":   cur.Filter.String(),
	})
	return back(c, TabEditor)
}

func (a *App) handleEditorExport(c echo.Context) error {
	st := CurrentStudio(c)
	if !a.renderLimiter.Allow(c.RealIP()) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many renders")
	}
	out, _, err := a.render(c.Request().Context(), st)
	if err != nil {
		return a.renderFailure(c, st, err)
	}

	h := st.Blobs.Create(out, "image/png")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", exportFilename))
	err = c.Blob(http.StatusOK, "image/png", out)
	// the download is written synchronously, so the handle is done with
	st.Release(h.URL)
	st.Log.Append(eventlog.TypeImageExported, eventlog.Meta{"bytes": len(out), "file": exportFilename})
	return err
}

func (a *App) handleBlob(c echo.Context) error {
	st := CurrentStudio(c)
	data, mime, err := st.Blobs.Get(c.Param("token"))
	if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrRevoked) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, mime, data)
}

// render runs the current edit through the render pool.
func (a *App) render(ctx context.Context, st *Studio) ([]byte, editor.State, error) {
	cur, err := st.Editor.Renderable()
	if err != nil {
		return nil, cur, err
	}
	ctx, cancel := context.WithTimeout(ctx, a.Config.Render.Timeout)
	defer cancel()
	out, err := a.Pool.SubmitAndWait(ctx, editor.Job{
		Source:   cur.Source,
		Crop:     *cur.Crop,
		Rotation: cur.Rotation,
		Filter:   cur.Filter,
	})
	return out, cur, err
}

func (a *App) renderFailure(c echo.Context, st *Studio, err error) error {
	if errors.Is(err, editor.ErrNoImage) || errors.Is(err, editor.ErrCropNotCommitted) {
		return a.editorGuard(c, err)
	}
	return a.editorFailure(c, st, err)
}

// editorGuard reports an action attempted before its prerequisites.
func (a *App) editorGuard(c echo.Context, err error) error {
	var msg string
	switch {
	case errors.Is(err, editor.ErrNoImage):
		msg = "Primero carga una imagen"
	case errors.Is(err, editor.ErrCropNotCommitted):
		msg = "Confirma el recorte antes de continuar"
	case errors.Is(err, editor.ErrInvalidCrop):
		msg = "El recorte no es válido"
	default:
		return err
	}
	return flashBack(c, TabEditor, flashError, msg)
}

// editorFailure logs an editor_error event and shows a short banner. It
// never fails the request.
func (a *App) editorFailure(c echo.Context, st *Studio, err error) error {
	st.Log.Append(eventlog.TypeEditorError, eventlog.Meta{"error": err.Error()})
	log.Warn().Err(err).Str("studio", st.ID).Msg("editor error")

	msg := "No se pudo procesar la imagen"
	switch {
	case errors.Is(err, editor.ErrImageDecodeFailed):
		msg = "No se pudo cargar la imagen"
	case errors.Is(err, editor.ErrRasterizationUnavailable):
		msg = "No se pudo preparar el lienzo de salida"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, editor.ErrPoolStopped):
		msg = "El renderizado no terminó a tiempo"
	}
	return flashBack(c, TabEditor, flashError, msg)
}

func editorView(st *Studio) views.EditorView {
	cur := st.Editor.Snapshot()
	v := views.EditorView{
		HasImage:   cur.HasImage(),
		Source:     cur.Source,
		Width:      cur.Size.X,
		Height:     cur.Size.Y,
		OffsetX:    cur.Offset.X,
		OffsetY:    cur.Offset.Y,
		Zoom:       cur.Zoom,
		Rotation:   cur.Rotation,
		FilterCSS:  cur.Filter.Describe(),
		PreviewURL: cur.PreviewURL,
		CanRender:  cur.HasImage() && cur.Crop != nil,
	}
	for _, f := range editor.Filters {
		v.Filters = append(v.Filters, views.Option{Value: f.String(), Label: filterLabels[f], Selected: f == cur.Filter})
	}
	if cur.Crop != nil {
		v.Crop = &views.Crop{X: cur.Crop.X, Y: cur.Crop.Y, Width: cur.Crop.Width, Height: cur.Crop.Height}
	}
	return v
}

var filterLabels = map[editor.Filter]string{
	editor.FilterNone:      "Original",
	editor.FilterGrayscale: "Blanco y negro",
	editor.FilterSepia:     "Sepia",
	editor.FilterContrast:  "Contraste",
	editor.FilterBright:    "Brillo",
}

func formFloat(c echo.Context, name string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(c.FormValue(name)), 64)
	if err != nil {
		return fallback
	}
	return v
}

func formInt(c echo.Context, name string) int {
	v, err := strconv.Atoi(strings.TrimSpace(c.FormValue(name)))
	if err != nil {
		return 0
	}
	return v
}

package promostudio

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/eringen/promostudio/eventlog"
	"github.com/eringen/promostudio/preview3d"
	"github.com/eringen/promostudio/schedule"
	"github.com/eringen/promostudio/voice"
)

const maxVoiceText = 500

func (a *App) handleCubeFrame(c echo.Context) error {
	frame, err := CurrentStudio(c).Scene.Frame()
	if errors.Is(err, preview3d.ErrNotMounted) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "image/png", frame)
}

func (a *App) handleCubeMount(c echo.Context) error {
	CurrentStudio(c).MountCube()
	return back(c, TabCube)
}

func (a *App) handleCubeUnmount(c echo.Context) error {
	CurrentStudio(c).UnmountCube()
	return back(c, TabCube)
}

func (a *App) handleSound(c echo.Context) error {
	return c.Blob(http.StatusOK, "audio/wav", a.beep)
}

// handleSoundOutcome records what the browser reported after trying to play
// the beep. Script callers get 204; plain form posts are redirected.
func (a *App) handleSoundOutcome(c echo.Context) error {
	st := CurrentStudio(c)
	switch c.FormValue("outcome") {
	case "played":
		st.Log.Append(eventlog.TypeSoundPlayed, nil)
	case "error":
		reason := strings.TrimSpace(c.FormValue("error"))
		if reason == "" {
			reason = "playback failed"
		}
		st.Log.Append(eventlog.TypeSoundError, eventlog.Meta{"error": reason})
		log.Warn().Str("studio", st.ID).Str("reason", reason).Msg("sound error")
		flash(c, flashError, "No se pudo reproducir el sonido")
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown outcome")
	}
	if c.Request().Header.Get("X-Requested-With") == "fetch" {
		return c.NoContent(http.StatusNoContent)
	}
	return back(c, TabTest)
}

func (a *App) handleVoice(c echo.Context) error {
	st := CurrentStudio(c)
	if !a.voiceLimiter.Allow(c.RealIP()) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many commands")
	}
	text := c.FormValue("text")
	if r := []rune(text); len(r) > maxVoiceText {
		text = string(r[:maxVoiceText])
	}
	st.Log.Append(eventlog.TypeVoiceCommand, eventlog.Meta{"text": text})

	intent, ok := voice.Match(text)
	if !ok {
		st.Log.Append(eventlog.TypeVoiceNotRecognized, eventlog.Meta{"text": text})
		return flashBack(c, TabVoice, flashInfo, "Comando no reconocido")
	}

	post, err := st.Board.SaveNow(voice.DefaultTitle)
	if err != nil {
		return err
	}
	st.Log.Append(eventlog.TypeVoicePostCreated, eventlog.Meta{
		"intent": string(intent),
		"id":     post.ID,
		"title":  post.Title,
	})
	return flashBack(c, TabVoice, flashSuccess, "Publicación programada por voz")
}

func (a *App) handlePostSave(c echo.Context) error {
	st := CurrentStudio(c)

	loc := a.loc
	if tz := strings.TrimSpace(c.FormValue("tz")); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	at, err := schedule.ParseLocal(c.FormValue("scheduled_at"), loc)
	if err != nil {
		return flashBack(c, TabSchedule, flashError, "Fecha u hora no válida")
	}

	post, err := st.Board.Save(c.FormValue("title"), c.FormValue("description"), at)
	if err != nil {
		return err
	}
	st.Log.Append(eventlog.TypePostSaved, eventlog.Meta{
		"id":           post.ID,
		"title":        post.Title,
		"scheduled_at": post.ScheduledAt.UTC().Format(time.RFC3339),
	})
	return flashBack(c, TabSchedule, flashSuccess, "Publicación guardada")
}

package promostudio

import (
	"net/http"
	"net/url"

	"github.com/a-h/templ"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/eringen/promostudio/views"
)

// Banner kinds, stored as session flash keys.
const (
	flashSuccess = "success"
	flashError   = "error"
	flashInfo    = "info"
)

var flashKinds = []string{flashError, flashSuccess, flashInfo}

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// flash queues a banner for the next page render.
func flash(c echo.Context, kind, msg string) {
	sess, err := session.Get(sessionName, c)
	if sess == nil {
		log.Warn().Err(err).Msg("flash: no session")
		return
	}
	sess.AddFlash(msg, kind)
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		log.Warn().Err(err).Msg("flash: save session")
	}
}

// popBanner returns and clears the first queued banner, errors first.
func popBanner(c echo.Context) *views.Banner {
	sess, _ := session.Get(sessionName, c)
	if sess == nil {
		return nil
	}
	var banner *views.Banner
	dirty := false
	for _, kind := range flashKinds {
		msgs := sess.Flashes(kind)
		if len(msgs) == 0 {
			continue
		}
		dirty = true
		if banner == nil {
			if msg, ok := msgs[len(msgs)-1].(string); ok {
				banner = &views.Banner{Kind: kind, Message: msg}
			}
		}
	}
	if dirty {
		if err := sess.Save(c.Request(), c.Response()); err != nil {
			log.Warn().Err(err).Msg("banner: save session")
		}
	}
	return banner
}

// back redirects to the shell with tab active.
func back(c echo.Context, tab Tab) error {
	return c.Redirect(http.StatusSeeOther, "/?tab="+url.QueryEscape(string(tab)))
}

// flashBack queues a banner and redirects to tab.
func flashBack(c echo.Context, tab Tab, kind, msg string) error {
	flash(c, kind, msg)
	return back(c, tab)
}

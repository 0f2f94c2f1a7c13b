package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"image-drop/internal/auth"
	"image-drop/internal/domain"
	"image-drop/internal/service"
)

const sessionCookieName = "session"

func (h *Handler) setSessionCookie(c *gin.Context, session *domain.Session) error {
	value, err := auth.GenerateToken(session.Token, h.cfg.Secret, h.cfg.SessionTTL)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, value, int(h.cfg.SessionTTL.Seconds()), "/", "", h.cfg.CookieSecure, true)
	return nil
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, "", -1, "/", "", h.cfg.CookieSecure, true)
}

// sessionToken extracts the server-side token from a valid signed cookie.
func (h *Handler) sessionToken(c *gin.Context) string {
	value, err := c.Cookie(sessionCookieName)
	if err != nil || value == "" {
		return ""
	}
	token, err := auth.SessionTokenFromCookie(value, h.cfg.Secret)
	if err != nil {
		return ""
	}
	return token
}

// resolveUser maps the request's cookie to a user, or service.ErrUnauthenticated.
func (h *Handler) resolveUser(c *gin.Context) (*domain.User, error) {
	token := h.sessionToken(c)
	if token == "" {
		return nil, service.ErrUnauthenticated
	}
	return h.cfg.Sessions.Resolve(c.Request.Context(), token)
}

// requireUser is called first by every gated handler. When it returns false
// the response has already been written.
func (h *Handler) requireUser(c *gin.Context) (*domain.User, bool) {
	user, err := h.resolveUser(c)
	switch {
	case err == nil:
		c.Set("user", user)
		return user, true
	case errors.Is(err, service.ErrUnauthenticated):
		if _, cerr := c.Cookie(sessionCookieName); cerr == nil {
			h.clearSessionCookie(c)
		}
		h.setFlash(c, "info", "Please log in to access this page.")
		c.Redirect(http.StatusSeeOther, "/login")
		return nil, false
	default:
		h.log.WithError(err).Error("resolve session")
		h.renderError(c)
		return nil, false
	}
}

// optionalUser is used for page chrome only; failures read as logged out.
func (h *Handler) optionalUser(c *gin.Context) *domain.User {
	if v, ok := c.Get("user"); ok {
		if user, ok := v.(*domain.User); ok {
			return user
		}
	}
	user, err := h.resolveUser(c)
	if err != nil {
		return nil
	}
	c.Set("user", user)
	return user
}

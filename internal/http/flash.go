package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	flashCookieName = "flash"
	flashMaxAge     = 60
)

// flashMessage is a one-shot notice shown on the next rendered page.
type flashMessage struct {
	Category string
	Message  string
}

func (h *Handler) setFlash(c *gin.Context, category, message string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookieName, category+":"+message, flashMaxAge, "/", "", h.cfg.CookieSecure, true)
}

// takeFlashes returns the pending notice, if any, and clears it.
func (h *Handler) takeFlashes(c *gin.Context) []flashMessage {
	raw, err := c.Cookie(flashCookieName)
	if err != nil || raw == "" {
		return nil
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookieName, "", -1, "/", "", h.cfg.CookieSecure, true)

	category, message, ok := strings.Cut(raw, ":")
	if !ok || message == "" {
		return nil
	}
	return []flashMessage{{Category: category, Message: message}}
}

func notice(category, message string) []flashMessage {
	return []flashMessage{{Category: category, Message: message}}
}

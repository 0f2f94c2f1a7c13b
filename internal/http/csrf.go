package http

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	csrfCookieName = "csrf"
	csrfFieldName  = "csrf_token"
	csrfFailed     = "The form has expired, please try again."
)

// csrfToken returns the browser's double-submit token, issuing a cookie the
// first time. Rendered forms echo it back in a hidden csrf_token field.
func (h *Handler) csrfToken(c *gin.Context) (string, error) {
	if v, ok := c.Get(csrfCookieName); ok {
		if token, ok := v.(string); ok {
			return token, nil
		}
	}
	if token, err := c.Cookie(csrfCookieName); err == nil && len(token) == base64.RawURLEncoding.EncodedLen(32) {
		c.Set(csrfCookieName, token)
		return token, nil
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(b)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(csrfCookieName, token, int(h.cfg.SessionTTL.Seconds()), "/", "", h.cfg.CookieSecure, true)
	c.Set(csrfCookieName, token)
	return token, nil
}

// validCSRF reports whether submitted matches the token in the request cookie.
func validCSRF(c *gin.Context, submitted string) bool {
	cookie, err := c.Cookie(csrfCookieName)
	if err != nil || cookie == "" || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie), []byte(submitted)) == 1
}

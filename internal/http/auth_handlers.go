package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"image-drop/internal/service"
)

const invalidCredentialsMessage = "Invalid username or password. Please try again."

func (h *Handler) loginForm(c *gin.Context) {
	h.render(c, http.StatusOK, "login.tmpl", gin.H{"title": "Login"})
}

func (h *Handler) login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		h.render(c, http.StatusOK, "login.tmpl", gin.H{
			"title":    "Login",
			"username": form.Username,
			"flashes":  formErrors(err),
		})
		return
	}

	if !validCSRF(c, form.CSRFToken) {
		loginAttempts.WithLabelValues("csrf").Inc()
		h.log.WithField("client_ip", c.ClientIP()).Warn("login csrf check failed")
		h.render(c, http.StatusForbidden, "login.tmpl", gin.H{
			"title":    "Login",
			"username": form.Username,
			"flashes":  notice("danger", csrfFailed),
		})
		return
	}

	session, err := h.cfg.Sessions.Authenticate(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			loginAttempts.WithLabelValues("invalid").Inc()
			h.log.WithField("client_ip", c.ClientIP()).Info("login rejected")
			h.render(c, http.StatusOK, "login.tmpl", gin.H{
				"title":    "Login",
				"username": form.Username,
				"flashes":  notice("danger", invalidCredentialsMessage),
			})
			return
		}
		loginAttempts.WithLabelValues("error").Inc()
		h.log.WithError(err).Error("login")
		h.renderError(c)
		return
	}

	if err := h.setSessionCookie(c, session); err != nil {
		loginAttempts.WithLabelValues("error").Inc()
		h.log.WithError(err).Error("issue session cookie")
		h.renderError(c)
		return
	}

	loginAttempts.WithLabelValues("success").Inc()
	h.log.WithField("user_id", session.UserID).Info("user logged in")
	h.setFlash(c, "success", "You have successfully logged in!")
	c.Redirect(http.StatusSeeOther, "/upload")
}

func (h *Handler) logout(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	if err := h.cfg.Sessions.Invalidate(c.Request.Context(), h.sessionToken(c)); err != nil {
		h.log.WithError(err).WithField("user_id", user.ID).Error("invalidate session")
		h.renderError(c)
		return
	}

	h.clearSessionCookie(c)
	h.log.WithField("user_id", user.ID).Info("user logged out")
	h.setFlash(c, "success", "You have been logged out successfully.")
	c.Redirect(http.StatusSeeOther, "/")
}

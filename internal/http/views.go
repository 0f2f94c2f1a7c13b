package http

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// loadTemplates parses the embedded views, or the *.tmpl files in dir when set.
func loadTemplates(dir string) (*template.Template, error) {
	if dir != "" {
		tmpl, err := template.ParseGlob(filepath.Join(dir, "*.tmpl"))
		if err != nil {
			return nil, fmt.Errorf("parse templates in %s: %w", dir, err)
		}
		return tmpl, nil
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse embedded templates: %w", err)
	}
	return tmpl, nil
}

// render executes view with the pending flash messages and the logged-in
// user (if any) merged into data.
func (h *Handler) render(c *gin.Context, status int, view string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	flashes := h.takeFlashes(c)
	if extra, ok := data["flashes"].([]flashMessage); ok {
		flashes = append(flashes, extra...)
	}
	data["flashes"] = flashes
	token, err := h.csrfToken(c)
	if err != nil {
		h.log.WithError(err).Error("issue csrf token")
	}
	data["csrf_token"] = token
	if _, ok := data["user"]; !ok {
		if user := h.optionalUser(c); user != nil {
			data["user"] = user
		}
	}
	c.HTML(status, view, data)
}

func (h *Handler) renderNotFound(c *gin.Context) {
	h.render(c, http.StatusNotFound, "404.tmpl", gin.H{"title": "Not Found"})
}

func (h *Handler) renderError(c *gin.Context) {
	h.render(c, http.StatusInternalServerError, "error.tmpl", gin.H{"title": "Error"})
}

func (h *Handler) noRoute(c *gin.Context) {
	if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
		if name, ok := textAssetName(c.Request.URL.Path); ok && h.cfg.Static != nil {
			h.textAsset(c, name)
			return
		}
	}
	h.renderNotFound(c)
}

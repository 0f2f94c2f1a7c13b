package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"image-drop/internal/service"
	"image-drop/internal/storage"
)

// Config carries every collaborator the handlers need. It is built once in
// main; handlers never reach for globals.
type Config struct {
	Sessions service.SessionService
	Uploads  storage.Gateway
	// Static serves /<name>.txt assets; nil disables them.
	Static storage.Gateway
	// Mirror receives a copy of every stored upload; nil disables it.
	Mirror storage.Mirror
	Logger *logrus.Logger

	Secret         []byte
	SessionTTL     time.Duration
	CookieSecure   bool
	MaxUploadBytes int64
	// PublicFetch leaves /uploads/:filename reachable without a session.
	PublicFetch  bool
	SniffContent bool
	AboutName    string
	TemplatesDir string
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	cfg Config
	log *logrus.Logger
}

func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.AboutName == "" {
		cfg.AboutName = "Mary Jane"
	}
	return &Handler{cfg: cfg, log: cfg.Logger}
}

// RegisterRoutes installs middleware, templates and routes on router.
func (h *Handler) RegisterRoutes(router *gin.Engine) error {
	tmpl, err := loadTemplates(h.cfg.TemplatesDir)
	if err != nil {
		return err
	}
	router.SetHTMLTemplate(tmpl)

	router.Use(
		requestLogger(h.log),
		metricsMiddleware(),
		responseHeaders(),
	)

	router.GET("/", h.home)
	router.GET("/about/", h.about)
	router.GET("/login", h.loginForm)
	router.POST("/login", h.login)
	router.GET("/upload", h.uploadForm)
	router.POST("/upload", h.upload)
	router.GET("/files", h.files)
	router.GET("/uploads/:filename", h.uploadedFile)
	router.GET("/logout", h.logout)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(h.noRoute)
	return nil
}

func (h *Handler) home(c *gin.Context) {
	h.render(c, http.StatusOK, "home.tmpl", gin.H{"title": "Home"})
}

func (h *Handler) about(c *gin.Context) {
	h.render(c, http.StatusOK, "about.tmpl", gin.H{"title": "About", "name": h.cfg.AboutName})
}

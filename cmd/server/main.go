package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"image-drop/internal/config"
	apphttp "image-drop/internal/http"
	"image-drop/internal/repository/sqlite"
	"image-drop/internal/service"
	"image-drop/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	repos, err := sqlite.NewRepositories(ctx, db)
	if err != nil {
		logger.Fatalf("init repositories: %v", err)
	}

	userService := service.NewUserService(repos.Users)
	sessionService := service.NewSessionService(userService, repos.Sessions, cfg.SessionTTL())

	uploads, err := storage.NewLocal(cfg.Upload.Dir)
	if err != nil {
		logger.Fatalf("setup upload dir: %v", err)
	}
	static, err := storage.NewLocal(cfg.Static.Dir)
	if err != nil {
		logger.Fatalf("setup static dir: %v", err)
	}

	handlerCfg := apphttp.Config{
		Sessions:       sessionService,
		Uploads:        uploads,
		Static:         static,
		Logger:         logger,
		Secret:         []byte(cfg.Auth.Secret),
		SessionTTL:     cfg.SessionTTL(),
		CookieSecure:   cfg.Auth.CookieSecure,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		PublicFetch:    cfg.Upload.PublicFetch,
		SniffContent:   cfg.Upload.SniffContent,
		AboutName:      cfg.Site.AboutName,
		TemplatesDir:   cfg.Templates.Dir,
	}
	if cfg.Storage.Bucket != "" {
		mirror, err := buildMirror(ctx, cfg, logger)
		if err != nil {
			logger.Fatalf("setup storage mirror: %v", err)
		}
		handlerCfg.Mirror = mirror
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	// multipart bodies beyond this spill to temp files
	router.MaxMultipartMemory = 8 << 20
	handler := apphttp.NewHandler(handlerCfg)
	if err := handler.RegisterRoutes(router); err != nil {
		logger.Fatalf("register routes: %v", err)
	}

	go purgeSessions(ctx, sessionService, cfg.PurgeInterval(), logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s (uploads in %s)", cfg.Server.Addr, uploads.Dir())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func purgeSessions(ctx context.Context, sessions service.SessionService, every time.Duration, logger *logrus.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.PurgeExpired(ctx)
			if err != nil {
				logger.Warnf("purge expired sessions: %v", err)
				continue
			}
			if n > 0 {
				logger.Debugf("purged %d expired sessions", n)
			}
		}
	}
}

func buildMirror(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*storage.S3Mirror, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("mirroring uploads to s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Mirror(client, cfg.Storage.Bucket, cfg.Storage.KeyPrefix)
}

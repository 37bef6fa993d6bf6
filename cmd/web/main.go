package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"sigmarservicos.com.br/sigmar-web/internal/backend"
	"sigmarservicos.com.br/sigmar-web/internal/catalog"
	"sigmarservicos.com.br/sigmar-web/internal/config"
	"sigmarservicos.com.br/sigmar-web/internal/contact"
	mw "sigmarservicos.com.br/sigmar-web/internal/middleware"
	"sigmarservicos.com.br/sigmar-web/internal/observability"
	"sigmarservicos.com.br/sigmar-web/internal/site"
)

const sweepInterval = time.Minute

func main() {
	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("web")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	var (
		addr        string
		tmplPath    string
		pubPath     string
		contentPath string
	)
	flag.StringVar(&addr, "addr", cfg.Server.Addr(), "HTTP listen address")
	flag.StringVar(&tmplPath, "templates", cfg.Server.TemplatesDir, "templates directory")
	flag.StringVar(&pubPath, "public", cfg.Server.PublicDir, "public assets directory")
	flag.StringVar(&contentPath, "content", cfg.Server.ContentFile, "site content YAML file")
	flag.Parse()

	templatesDir = tmplPath
	publicDir = pubPath
	devMode = cfg.Server.DevMode

	if !devMode {
		// Parse templates once in production
		if err := loadTemplates(); err != nil {
			logger.Fatal("parse templates", zap.Error(err))
		}
	}

	content, err := site.LoadContent(contentPath)
	if err != nil {
		logger.Fatal("load site content", zap.Error(err))
	}

	client := backend.NewClient(cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithLogger(logger.Named("backend")),
	)

	cat := catalog.New(client, logger)
	cat.Subscribe(func(resource string) {
		logger.Debug("catalog updated", zap.String("resource", resource))
	})
	// One load per process; failures leave the section empty until restart.
	cat.Start(context.Background())

	contactLogger := logger.Named("contact")
	forms := contact.NewRegistry(func() *contact.Controller {
		return contact.NewController(client, contact.WithLogger(contactLogger))
	}, cfg.Session.IdleTTL, nil)

	limiter := mw.NewRateLimiter(mw.RateLimitConfig{
		PerMinute: cfg.RateLimit.ContactPerMinute,
		Burst:     cfg.RateLimit.ContactBurst,
	})
	sessions := mw.NewSessions(cfg.Session.SigningKey, cfg.Session.Secure, logger.Named("session"))

	a := &app{
		content:  content,
		catalog:  cat,
		forms:    forms,
		health:   client,
		readyTTL: cfg.Backend.Timeout,
		clock:    time.Now,
	}

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	var sweepWG sync.WaitGroup
	sweepWG.Add(1)
	go func() {
		defer sweepWG.Done()
		runSweeper(sweepCtx, logger.Named("sweeper"), forms, limiter)
	}()

	server := &http.Server{
		Addr:              addr,
		Handler:           newRouter(a, routerDeps{logger: logger, sessions: sessions, limiter: limiter, requestTimeout: cfg.Server.RequestTimeout}),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("web listening",
			zap.Bool("devMode", devMode),
			zap.String("backend", client.BaseURL()),
			zap.String("env", cfg.Environment),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	sweepCancel()
	sweepWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

type routerDeps struct {
	logger         *zap.Logger
	sessions       *mw.Sessions
	limiter        *mw.RateLimiter
	requestTimeout time.Duration
}

func newRouter(a *app, deps routerDeps) http.Handler {
	if deps.requestTimeout <= 0 {
		deps.requestTimeout = 30 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	// RealIP trusts X-Forwarded-For; only deploy behind a proxy that sets it.
	r.Use(middleware.RealIP)
	r.Use(mw.HTMX)
	r.Use(deps.sessions.Middleware)
	r.Use(mw.Logger(deps.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(middleware.Timeout(deps.requestTimeout))

	r.Get("/healthz", a.HealthzHandler)
	r.Get("/readyz", a.ReadyzHandler)

	assets := http.StripPrefix("/assets", mw.AssetsWithCache(filepath.Join(publicDir, "assets")))
	r.Handle("/assets/*", assets)

	r.Get("/", a.HomeHandler)
	r.Get("/contact/form", a.ContactFormFrag)
	r.With(deps.limiter.Middleware).Post("/contact", a.ContactSubmitHandler)
	r.Get("/whatsapp", a.WhatsAppHandler)
	return r
}

func runSweeper(ctx context.Context, logger *zap.Logger, forms *contact.Registry, limiter *mw.RateLimiter) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if removed := forms.Sweep(); removed > 0 {
				logger.Debug("dropped idle contact forms", zap.Int("count", removed))
			}
			limiter.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

package main

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	appsettlement "github.com/erp/settlement/internal/application/settlement"
	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/infrastructure/config"
	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/infrastructure/session"
	"github.com/erp/settlement/internal/infrastructure/telemetry"
	"github.com/erp/settlement/internal/infrastructure/upstream"
	"github.com/erp/settlement/internal/interfaces/http/handler"
	"github.com/erp/settlement/internal/interfaces/http/middleware"
	"github.com/erp/settlement/internal/interfaces/http/router"
)

// bootstrap loads configuration and builds the logger shared by every
// subcommand.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	return cfg, log, nil
}

func newUpstreamClient(cfg *config.Config, log *zap.Logger, metrics *telemetry.UpstreamMetrics) *upstream.Client {
	return upstream.NewClient(upstream.Config{
		BaseURL:        cfg.Upstream.BaseURL,
		WebservicePath: cfg.Upstream.WebservicePath,
		ReadTimeout:    cfg.Upstream.ReadTimeout,
		WriteTimeout:   cfg.Upstream.WriteTimeout,
	}, log, upstream.WithMetrics(metrics))
}

func authServiceConfig(cfg *config.Config) appsettlement.AuthServiceConfig {
	return appsettlement.AuthServiceConfig{
		ProbeEndpoint: cfg.Upstream.LoginProbeEndpoint,
		Timeout:       cfg.Upstream.LoginTimeout,
	}
}

// newSessionStore opens the configured store. The returned close function
// is never nil.
func newSessionStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (session.Store, func() error, error) {
	if cfg.Session.Store != "redis" {
		log.Info("Using in-memory session store")
		return session.NewMemoryStore(), func() error { return nil }, nil
	}
	store, err := session.NewRedisStore(ctx, session.RedisConfig{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Info("Using Redis session store", zap.String("addr", cfg.Redis.Addr()))
	return store, store.Close, nil
}

// sessionSecret returns the configured secret. Outside production a random
// one is generated, which logs everybody out on restart.
func sessionSecret(cfg *config.Config, log *zap.Logger) ([]byte, error) {
	if cfg.Session.Secret != "" {
		return []byte(cfg.Session.Secret), nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate session secret: %w", err)
	}
	log.Warn("session.secret not set, using a random secret; sessions will not survive a restart")
	return secret, nil
}

// app holds everything the HTTP engine is built from.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	sessions  *session.Manager
	client    *upstream.Client
	metrics   *telemetry.UpstreamMetrics
	httpMeter metric.Meter
}

// newEngine builds the gin engine with the full middleware chain and route
// table. The returned limiter, when not nil, must be stopped on shutdown.
func newEngine(a app) (*gin.Engine, *middleware.RateLimiter, error) {
	cfg := a.cfg

	proxy := appsettlement.NewProxyService(a.client, a.metrics, a.log)
	dashboard := appsettlement.NewDashboardService(proxy, appsettlement.DashboardConfig{
		AllocationLimit: cfg.Features.RecentAllocationsLimit,
		EditEnabled:     cfg.Features.EditEnabled,
		Policy:          settlement.AllocationPolicy{EnforceSignMatch: cfg.Features.EnforceSignMatch},
	}, a.log)
	var recorder appsettlement.LoginRecorder
	if a.metrics != nil {
		recorder = a.metrics
	}
	auth := appsettlement.NewAuthService(a.client, a.sessions, authServiceConfig(cfg), recorder, a.log)

	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			return nil, nil, fmt.Errorf("set trusted proxies: %w", err)
		}
	} else {
		_ = engine.SetTrustedProxies(nil)
	}

	security := middleware.DefaultSecurityConfig()
	security.HSTSEnabled = cfg.Cookie.Secure
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(a.log))
	engine.Use(logger.GinMiddleware(a.log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	})...)
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(a.httpMeter))
	engine.Use(middleware.SecureWithConfig(security))
	engine.Use(middleware.CORSWithConfig(cors))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	gates := router.Gates{
		Session: middleware.RequireSession(middleware.SessionConfig{
			Sessions:   a.sessions,
			CookieName: cfg.Session.CookieName,
		}),
		Edit: middleware.RequireEdit(cfg.Features.EditEnabled),
	}
	var limiter *middleware.RateLimiter
	if cfg.HTTP.AuthRateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.AuthRateLimitRequests, cfg.HTTP.AuthRateLimitWindow)
		gates.LoginRate = middleware.RateLimit(limiter)
	}

	handlers := router.Handlers{
		Auth: handler.NewAuthHandler(auth, handler.CookieSettings{
			Name:     cfg.Session.CookieName,
			Domain:   cfg.Cookie.Domain,
			Path:     cfg.Cookie.Path,
			Secure:   cfg.Cookie.Secure,
			SameSite: handler.ParseSameSite(cfg.Cookie.SameSite),
		}),
		Config: handler.NewConfigHandler(appsettlement.ClientConfig{
			PortalURL:   cfg.Upstream.BaseURL,
			EditEnabled: cfg.Features.EditEnabled,
		}),
		Settlement: handler.NewSettlementHandler(proxy),
		Dashboard:  handler.NewDashboardHandler(dashboard),
		Pages:      handler.NewPageHandler(a.sessions, cfg.Session.CookieName, cfg.HTTP.StaticDir),
		System:     handler.NewSystemHandler(cfg.App.Name, version, a.sessions),
	}

	r := router.NewRouter(engine)
	for _, g := range router.SettlementGroups(handlers, gates) {
		r.Register(g)
	}
	r.Setup()

	if cfg.HTTP.StaticDir != "" {
		engine.Static("/static", cfg.HTTP.StaticDir)
	}
	return engine, limiter, nil
}

// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/subbanorg/subban-server/internal/app/features/authapi"
	"github.com/subbanorg/subban-server/internal/app/features/blogapi"
	"github.com/subbanorg/subban-server/internal/app/features/galleryapi"
	"github.com/subbanorg/subban-server/internal/app/features/health"
	"github.com/subbanorg/subban-server/internal/app/features/statsapi"
	"github.com/subbanorg/subban-server/internal/app/features/uploadapi"
	"github.com/subbanorg/subban-server/internal/app/features/usersapi"
	blogstore "github.com/subbanorg/subban-server/internal/app/store/blogs"
	gallerystore "github.com/subbanorg/subban-server/internal/app/store/gallery"
	loginstore "github.com/subbanorg/subban-server/internal/app/store/logins"
	"github.com/subbanorg/subban-server/internal/app/store/ratelimit"
	userstore "github.com/subbanorg/subban-server/internal/app/store/users"
	"github.com/subbanorg/subban-server/internal/app/system/auth"
	"github.com/subbanorg/subban-server/internal/app/system/session"
	"github.com/subbanorg/subban-server/internal/app/system/token"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. The router is a pure JSON API: every response is
// wrapped in the standard envelope, authentication is stateless bearer
// tokens, and there are no cookies or server-rendered pages.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	tokens, err := token.New(token.Config{
		Secret:     appCfg.JWTSecret,
		Issuer:     appCfg.JWTIssuer,
		SessionTTL: appCfg.SessionTTL,
		AdminTTL:   appCfg.AdminSessionTTL,
	})
	if err != nil {
		logger.Error("token service init failed", zap.Error(err))
		return nil, err
	}

	db := deps.MongoDatabase
	users := userstore.New(db)
	blogs := blogstore.New(db)
	gallery := gallerystore.New(db)
	logins := loginstore.New(db)

	var limiter *ratelimit.Store
	if appCfg.RateLimitEnabled {
		limiter = ratelimit.New(db,
			appCfg.RateLimitLoginAttempts,
			appCfg.RateLimitLoginWindow,
			appCfg.RateLimitLoginLockout)
	}

	registry := session.New(users, tokens, appCfg.MaxAdminDevices, logger)
	gate := auth.NewGate(users, tokens, logger)

	authHandler := authapi.NewHandler(users, logins, limiter, tokens, registry, appCfg.MaxAdminDevices, logger)
	blogHandler := blogapi.NewHandler(blogs, logger)
	galleryHandler := galleryapi.NewHandler(gallery, deps.FileStorage, logger)
	uploadHandler := uploadapi.NewHandler(deps.FileStorage, logger)
	usersHandler := usersapi.NewHandler(users, logger)
	statsHandler := statsapi.NewHandler(users, blogs, gallery, logins, logger)
	healthHandler := health.NewHandler(deps.MongoClient, logger)

	r := chi.NewRouter()

	// Global middleware. The timeout is a hard backstop; handlers carry
	// their own tighter per-operation timeouts.
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.CORSFromConfig(coreCfg))
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	r.Route("/api", func(r chi.Router) {
		r.Mount("/auth", authapi.Routes(authHandler, gate))
		r.Mount("/blogs", blogapi.Routes(blogHandler, gate))
		r.Mount("/gallery", galleryapi.Routes(galleryHandler, gate))
		r.Mount("/upload", uploadapi.Routes(uploadHandler, gate))
		r.Mount("/users", usersapi.Routes(usersHandler, gate))
		r.Mount("/stats", statsapi.Routes(statsHandler, gate))
		r.Mount("/health", health.Routes(healthHandler))
	})

	// Bare probe paths for load balancers and orchestrators.
	health.MountRootEndpoints(r, healthHandler)

	logger.Info("HTTP handler built",
		zap.String("env", coreCfg.Env),
		zap.Bool("rate_limiting", appCfg.RateLimitEnabled),
		zap.Int("max_admin_devices", appCfg.MaxAdminDevices))

	return r, nil
}

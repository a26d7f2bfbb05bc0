// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"

	userstore "github.com/subbanorg/subban-server/internal/app/store/users"
	"github.com/subbanorg/subban-server/internal/app/system/authutil"
	"github.com/subbanorg/subban-server/internal/app/system/session"
	"github.com/subbanorg/subban-server/internal/app/system/tasks"
	"github.com/subbanorg/subban-server/internal/app/system/token"
	"github.com/subbanorg/subban-server/internal/domain/models"
)

// taskRunner is the global task runner instance, used for graceful shutdown.
var taskRunner *tasks.Runner

// Startup runs once after DB connections and schema/index setup are complete,
// but before the HTTP handler is built and requests are served.
//
// Returning a non-nil error aborts startup and prevents the server from
// starting.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if appCfg.SeedAdminEmail != "" {
		if err := ensureAdminUser(ctx, deps, appCfg, logger); err != nil {
			logger.Error("failed to seed admin user", zap.Error(err))
			return err
		}
	}

	tokens, err := token.New(token.Config{
		Secret:     appCfg.JWTSecret,
		Issuer:     appCfg.JWTIssuer,
		SessionTTL: appCfg.SessionTTL,
		AdminTTL:   appCfg.AdminSessionTTL,
	})
	if err != nil {
		return fmt.Errorf("token service init: %w", err)
	}

	users := userstore.New(deps.MongoDatabase)
	registry := session.New(users, tokens, appCfg.MaxAdminDevices, logger)

	taskRunner = tasks.New(logger)
	taskRunner.Register(tasks.SessionSweepJob(registry, appCfg.SessionSweepInterval, logger))
	taskRunner.Start()

	return nil
}

// ensureAdminUser makes sure an active admin account exists for the
// configured email. An existing account is promoted; otherwise a new one is
// created with the configured password.
func ensureAdminUser(ctx context.Context, deps DBDeps, appCfg AppConfig, logger *zap.Logger) error {
	users := userstore.New(deps.MongoDatabase)

	existing, err := users.GetByEmail(ctx, appCfg.SeedAdminEmail)
	if err == nil {
		if existing.Role == models.RoleAdmin {
			logger.Debug("admin user already configured", zap.String("email", existing.Email))
			return nil
		}
		if err := users.SetRole(ctx, existing.ID, models.RoleAdmin); err != nil {
			return err
		}
		logger.Info("promoted existing user to admin",
			zap.String("email", existing.Email),
			zap.String("user_id", existing.ID.Hex()),
			zap.String("previous_role", existing.Role))
		return nil
	}
	if !errors.Is(err, userstore.ErrNotFound) {
		return err
	}

	if appCfg.SeedAdminPassword == "" {
		return fmt.Errorf("seed_admin_password is required to create admin %s", appCfg.SeedAdminEmail)
	}
	if err := authutil.ValidatePassword(appCfg.SeedAdminPassword); err != nil {
		return fmt.Errorf("seed admin password: %w", err)
	}
	hash, err := authutil.HashPassword(appCfg.SeedAdminPassword)
	if err != nil {
		return err
	}

	created, err := users.Create(ctx, models.User{
		Name:         appCfg.SeedAdminName,
		Email:        appCfg.SeedAdminEmail,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Status:       models.StatusActive,
	})
	if err != nil {
		return err
	}

	logger.Info("created admin user",
		zap.String("email", created.Email),
		zap.String("user_id", created.ID.Hex()))
	return nil
}

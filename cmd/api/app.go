package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/njprem/ems_auth_backend/internal/config"
	"github.com/njprem/ems_auth_backend/internal/metrics"
	"github.com/njprem/ems_auth_backend/internal/repository/ports"
	"github.com/njprem/ems_auth_backend/internal/repository/postgres"
	"github.com/njprem/ems_auth_backend/internal/repository/redisstore"
	"github.com/njprem/ems_auth_backend/internal/service"
	"github.com/njprem/ems_auth_backend/internal/transport/mail"
	"github.com/njprem/ems_auth_backend/internal/util"
)

// app holds the wired services and the connections they depend on.
type app struct {
	db       *sqlx.DB
	redis    *redis.Client
	registry *prometheus.Registry
	auth     *service.AuthService
	resets   *service.PasswordResetService
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	jwtManager, err := util.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTTL)
	if err != nil {
		return nil, err
	}

	db, err := postgres.New(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a := &app{db: db, registry: metrics.NewRegistry()}

	var resetRepo ports.PasswordResetRepository
	switch cfg.PasswordResetStore {
	case config.ResetStoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		resetRepo = redisstore.NewPasswordResetRepo(a.redis)
	default:
		resetRepo = postgres.NewPasswordResetRepo(db)
	}

	var sender service.RecoverySender = mail.LogSender{}
	if cfg.SMTPConfigured() {
		sender = mail.NewRecoveryMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, cfg.FrontendBaseURL)
	} else {
		log.Printf("SMTP not configured, recovery messages will only be logged")
	}

	policy := util.PasswordPolicy{MinLength: cfg.PasswordMinLength, RequireMixed: cfg.PasswordRequireMixed}
	authMetrics := metrics.NewAuth(a.registry)
	accounts := postgres.NewAccountRepo(db)

	a.auth = service.NewAuthService(accounts, jwtManager, service.AuthServiceConfig{
		PasswordPolicy: policy,
		StoreTimeout:   cfg.StoreTimeout,
		Metrics:        authMetrics,
	})
	a.resets = service.NewPasswordResetService(accounts, resetRepo, sender, service.PasswordResetServiceConfig{
		TokenTTL:       cfg.PasswordResetTTL,
		StoreTimeout:   cfg.StoreTimeout,
		PasswordPolicy: policy,
		Metrics:        authMetrics,
	})
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.resets != nil {
		a.resets.Wait()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

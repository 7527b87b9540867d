package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/njprem/ems_auth_backend/docs"
	"github.com/njprem/ems_auth_backend/internal/config"
	"github.com/njprem/ems_auth_backend/internal/logging"
	"github.com/njprem/ems_auth_backend/internal/metrics"
	"github.com/njprem/ems_auth_backend/internal/service"
	transporthttp "github.com/njprem/ems_auth_backend/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

func NewServeCmd() *cobra.Command {
	var migrateFirst bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the expired token sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, migrateFirst)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func runServe(cmd *cobra.Command, migrateFirst bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logCloser, err := logging.Setup(cfg.LogstashTCPAddr)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	if migrateFirst {
		if err := migrateUp(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	e := transporthttp.NewRouter(cfg.AllowOrigins, metrics.Handler(a.registry))
	transporthttp.RegisterAuth(e, a.auth, a.resets)
	transporthttp.RegisterUsers(e, a.auth)
	transporthttp.RegisterPages(e)
	if err := transporthttp.RegisterSwagger(e, docs.SwaggerYAML); err != nil {
		return err
	}

	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		service.NewSweeper(a.resets, cfg.TokenSweepInterval).Run(ctx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("ems-auth listening on :%s", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-serverErr:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Printf("shutdown: %v", shutdownErr)
	}
	<-sweeperDone
	log.Printf("ems-auth stopped")
	return err
}

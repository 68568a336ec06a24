package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/fern/pkg/resolution"
	"github.com/Ramsey-B/fern/pkg/routes"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), c)
		},
	}
}

func runServe(ctx context.Context, c *cli) error {
	cfg := c.cfg

	a := newApp(cfg, c.logger)
	if err := a.start(ctx, startOptions{
		migrate:     cfg.DatabaseMigrateOnStart,
		sideEffects: true,
		tracing:     true,
	}); err != nil {
		return err
	}
	defer a.stop()

	container, err := ectoinject.NewDIContainer(ectocontainer.DIContainerConfig{
		ID:           cfg.AppName,
		LoggerConfig: &ectocontainer.DIContainerLoggerConfig{Enabled: false},
	})
	if err != nil {
		return fmt.Errorf("failed to create dependency container: %w", err)
	}
	if err := ectoinject.RegisterInstance[*resolution.Service](container, a.service); err != nil {
		return fmt.Errorf("failed to register resolution service: %w", err)
	}

	e := routes.New(routes.Options{
		ContainerID:   cfg.AppName,
		Logger:        c.logger,
		Health:        a.health,
		ServiceName:   cfg.AppName,
		ExposeMetrics: true,
		AllowOrigins:  cfg.AllowOrigins,
		AllowMethods:  cfg.AllowMethods,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c.logger.WithContext(ctx).Infof("Listening on %s", srv.Addr)
		a.health.SetReady(true)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.health.SetReady(false)
		c.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

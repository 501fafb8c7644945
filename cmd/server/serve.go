package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ajo/internal/database"
	"ajo/internal/router"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the payout scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			if migrate {
				if err := database.AutoMigrate(a.repos.DB()); err != nil {
					return err
				}
			}

			engine := router.Setup(router.Deps{
				Config:    a.cfg,
				Repos:     a.repos,
				Auth:      a.auth,
				Ajo:       a.ajo,
				Wallet:    a.wallet,
				Scheduler: a.scheduler,
				Hub:       a.hub,
				Gatherer:  a.registry,
				Log:       a.log,
			})
			srv := &http.Server{
				Addr:         ":" + a.cfg.Server.Port,
				Handler:      engine,
				ReadTimeout:  a.cfg.Server.ReadTimeout,
				WriteTimeout: a.cfg.Server.WriteTimeout,
			}

			if a.cfg.Scheduler.Enabled {
				a.scheduler.Start()
				defer a.scheduler.Stop()
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() {
				a.log.Info().Str("port", a.cfg.Server.Port).Msg("server listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
			}()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			a.log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Run database migrations before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			if err := database.AutoMigrate(a.repos.DB()); err != nil {
				return err
			}
			a.log.Info().Msg("migrations applied")
			return nil
		},
	}
}

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

	"github.com/beontime/internal/handler"
	"github.com/beontime/internal/router"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand() *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(noScheduler)
		},
	}

	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve the API without polling for reminders")

	return cmd
}

func serve(noScheduler bool) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}

	gin.SetMode(a.cfg.GinMode)
	r := router.SetupRouter(handler.NewAPI(a.services, a.clock), a.cfg.SessionSecret)

	scheduler := a.services.Scheduler
	if !noScheduler {
		if err := scheduler.Start(); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:    a.cfg.ListenAddr,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[server] listening on %s", a.cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case sig := <-quit:
		log.Printf("[server] received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := scheduler.Stop(ctx); err != nil {
		log.Printf("[server] scheduler stop: %v", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	log.Printf("[server] stopped")
	return nil
}

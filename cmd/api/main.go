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

	"media-analyzer/internal/bootstrap"
	"media-analyzer/internal/shared/config"
	"media-analyzer/internal/shared/server"
	"media-analyzer/internal/shared/telemetry"
)

const (
	httpShutdownTimeout   = 10 * time.Second
	workerShutdownTimeout = 5 * time.Minute
)

func main() {
	cfg := config.Load()
	telemetry.Configure(cfg.LogLevel, cfg.LogFormat)

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The worker stops by draining a closed queue, not by ctx.
	workerDone := make(chan error, 1)
	go func() {
		workerDone <- app.Worker.Run(context.Background())
	}()

	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Starting API server on %s", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
	}

	log.Printf("shutdown requested; draining %d queued jobs", app.Queue.Len())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}

	app.Queue.Close()
	select {
	case err := <-workerDone:
		if err != nil {
			log.Printf("worker stopped: %v", err)
		}
	case <-time.After(workerShutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with %d jobs queued", app.Queue.Len())
	}
}

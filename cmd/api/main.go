package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	httpadapter "github.com/pyroguard/sentinel/internal/adapters/http"
	"github.com/pyroguard/sentinel/internal/bootstrap"
	"github.com/pyroguard/sentinel/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(cfg, "pyroguard-api")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	router := httpadapter.NewRouter(
		app.Submitter,
		app.Reader,
		app.Streamer,
		app.Probes,
		app.HTTPMetrics,
		app.Logger,
		httpadapter.Options{
			ServiceName:    "pyroguard-api",
			RateLimitRPS:   cfg.SubmitRateLimitRPS,
			RateLimitBurst: cfg.SubmitRateBurst,
			MaxInFlight:    cfg.SubmitMaxInFlight,
			AllowedOrigins: strings.Split(cfg.CORSAllowedOrigins, ","),
			ProbeTimeout:   time.Duration(cfg.ProbeTimeoutSeconds) * time.Second,
		},
	).Handler()

	server := &http.Server{
		Addr:        ":" + cfg.APIPort,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// SSE subscriptions stay open up to the stream max wait.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		app.Logger.Info("api listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("api shutdown error", "error", err)
	}
}

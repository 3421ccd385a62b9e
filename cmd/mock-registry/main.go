package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dpshade/prompthive/internal/logger"
	"github.com/dpshade/prompthive/internal/mockregistry"
	"github.com/dpshade/prompthive/internal/storage"
)

func main() {
	var (
		addr     string
		apiKey   string
		seedDir  string
		logLevel string
	)
	flag.StringVar(&addr, "addr", ":8787", "Listen address")
	flag.StringVar(&apiKey, "api-key", os.Getenv("PROMPTHIVE_API_KEY"), "Required X-API-Key value (empty disables auth)")
	flag.StringVar(&seedDir, "seed", "", "Preload prompts from a prompthive library directory")
	flag.StringVar(&logLevel, "log-level", "info", "Log level")
	flag.Parse()

	logs := logger.New(logger.Config{Level: logLevel, Pretty: true})
	defer logs.Close()
	log := logs.Component("mock-registry")

	gin.SetMode(gin.ReleaseMode)
	reg := mockregistry.New(apiKey, logs.Zerolog())

	if seedDir != "" {
		n, err := reg.Seed(storage.New(seedDir, storage.WithLogger(logs.Zerolog())))
		if err != nil {
			log.Error().Err(err).Str("dir", seedDir).Msg("seeding failed")
			os.Exit(1)
		}
		log.Info().Int("prompts", n).Str("dir", seedDir).Msg("seeded registry")
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           reg.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", addr).Bool("auth", apiKey != "").Msg("mock registry listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}

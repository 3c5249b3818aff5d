package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/MagicGrants/donatehub"
	"github.com/MagicGrants/donatehub/api"
	"github.com/MagicGrants/donatehub/baseapi"
	"github.com/MagicGrants/donatehub/baseapi/flags"
	"github.com/MagicGrants/donatehub/internal/config"
	"github.com/MagicGrants/donatehub/integrations/prometheus"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

var (
	confPath = flag.String("config", "./config.json", "Config path")
	debug    = flag.Bool("debug", false, "Debug mode")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		slog.Error("Fatal error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("couldn't load .env: %w", err)
	}

	config.SetPath(*confPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := config.Load(ctx, false); err != nil {
		return fmt.Errorf("couldn't load config: %w", err)
	}
	// Save the config back, so new flags show up in the file.
	if err := config.Save(ctx); err != nil {
		return fmt.Errorf("couldn't save config: %w", err)
	}

	slog.SetDefault(slog.New(donatehub.GetSlogHandler(*debug, os.Stdout)))
	slog.InfoContext(ctx, "Starting DonateHub", slog.String("version", donatehub.Version))

	base, err := baseapi.InitializeBaseAPI(ctx)
	if err != nil {
		return err
	}
	defer base.Close()
	base.Start(ctx)

	prometheus.InitMetrics()

	r := chi.NewRouter()
	corsConfig := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-Id", "X-User-Email"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(corsConfig.Handler)

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Mount("/api", api.New(base).Handler())

	server := &http.Server{
		Addr:    net.JoinHostPort(flags.ListenHost.Value(), strconv.Itoa(flags.ListenPort.Value())),
		Handler: r,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "Couldn't run server", slog.Any("err", err))
			cancel()
		}
	}()

	slog.InfoContext(ctx, "Successfully started", slog.String("addr", server.Addr))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	<-ctx.Done()

	slog.Info("Shutting down")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := server.Shutdown(shutCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("couldn't shut down server: %w", err)
	}
	return nil
}

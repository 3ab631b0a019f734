package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/samber/do"

	"fluxgen/internal/gateway"
	"fluxgen/internal/infra"
	"fluxgen/internal/inject"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		bootLogger := infra.NewLogger(os.Getenv("APP_ENV"), "")
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	injector := inject.Setup(cfg, logger)
	server, err := do.Invoke[*infra.HTTPServer](injector)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build service")
	}
	svc := do.MustInvoke[*gateway.Service](injector)

	go func() {
		logger.Info().Str("addr", server.Addr()).Str("images_dir", cfg.ImagesDir).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := svc.Wait(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("background generations still running at exit")
	}
	_ = injector.Shutdown()
	logger.Info().Msg("server stopped")
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"fluxgen/internal/infra"
)

var rootCmd = &cobra.Command{
	Use:           "fluxgen",
	Short:         "Generate images with the BFL FLUX API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		return nil
	},
}

func main() {
	rootCmd.AddCommand(newGenerateCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger := infra.NewLogger(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
		logger.Error().Err(err).Msg("fluxgen failed")
		stop()
		os.Exit(1)
	}
}

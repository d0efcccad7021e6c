package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"walupload/internal/app"
	"walupload/internal/config"
	"walupload/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "walupload",
	Short: "Resumable multipart upload of local part files to S3 compatible storage",
	Long: `Uploads a set of local files as the parts of one multipart object.
Every step is recorded in an upload log before it takes effect, so an
interrupted upload resumes from the log without re-uploading finished parts.`,
	SilenceUsage: true,
	RunE:         runUpload,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (YAML)")
	config.RegisterFlags(rootCmd.Flags())
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	uploader, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create uploader: %w", err)
	}
	defer func() {
		if closeErr := uploader.Close(); closeErr != nil {
			log.Error("Error closing upload log", zap.Error(closeErr))
		}
	}()

	final, err := uploader.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		log.Info("Upload interrupted, run again with the same log to resume", zap.String("phase", string(final.Phase())))
	case err != nil:
		log.Error("Upload failed", zap.String("phase", string(final.Phase())), zap.Error(err))
	default:
		log.Info("Upload completed")
	}

	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

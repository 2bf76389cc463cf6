package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"careerprep/pkg/config"
	"careerprep/pkg/service"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "careerprep",
		Short: "CareerPrep - intern response processing and deadline tools",
		Long: `CareerPrep processes intern replies in virtual internship sessions:
escalating ones that need a human, answering questions in the sender's
persona, and recording every outcome.

It also classifies deadlines by urgency and exports them to calendars.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $CONFIG_FILE)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(deadlineCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	// Setup logger
	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	logger.SetFormatter(&logrus.JSONFormatter{})

	return cfg, logger, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled processor",
		Long:  "Start the HTTP API, join leader election and run periodic batches and stale-claim reclaim on the leader.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func processCmd() *cobra.Command {
	var responseID string

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process pending responses once",
		Long:  "Claim and process one batch of pending responses, or a single response with --response-id, then exit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), responseID)
		},
	}

	cmd.Flags().StringVar(&responseID, "response-id", "", "Process only this response")

	return cmd
}

func runServe() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"pod_id":  cfg.PodID,
		"backend": cfg.StoreBackend,
	}).Info("Starting careerprep service")

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := service.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	if err := svc.Start(ctx); err != nil {
		svc.Close()
		return fmt.Errorf("failed to start service: %w", err)
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := svc.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error during service shutdown")
	}

	logger.Info("Service shutdown complete")
	return nil
}

func runProcess(ctx context.Context, responseID string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	svc, err := service.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	var result interface{}
	if responseID != "" {
		result, err = svc.Processor().ProcessResponse(ctx, responseID)
	} else {
		result, err = svc.Processor().ProcessBatch(ctx)
	}
	if err != nil {
		return err
	}

	return printJSON(result)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

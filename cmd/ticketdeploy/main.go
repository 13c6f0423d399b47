// Command ticketdeploy deploys the EventTicketSystem contract for a named
// event preset. It loads configuration, validates it, wires the optional
// backends and runs the configured mode until it finishes or is interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/ticketdeploy/internal/app"
	"github.com/alanyoungcy/ticketdeploy/internal/config"
	"github.com/alanyoungcy/ticketdeploy/internal/deploy"
)

// exitIncomplete signals a confirmed deployment that some sink failed to
// record.
const exitIncomplete = 2

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file (defaults and env only when empty)")
	presetName := flag.String("preset", "", "preset to deploy, overriding deploy.preset")
	mode := flag.String("mode", "", "mode to run (deploy, plan, presets, history, encrypt-key), overriding mode")
	historyID := flag.String("id", "", "history: show only the deployment with this id")
	historyAddr := flag.String("address", "", "history: show only deployments of this contract address")
	historySource := flag.String("source", "", "history: read from database or stream, overriding deploy.history_source")
	flag.Parse()

	// Human-readable deployment lines own stdout; logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	if *presetName != "" {
		cfg.Deploy.Preset = *presetName
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *historySource != "" {
		cfg.Deploy.HistorySource = *historySource
	}
	if *historyID != "" {
		cfg.Deploy.HistoryID = *historyID
	}
	if *historyAddr != "" {
		cfg.Deploy.HistoryAddress = *historyAddr
	}

	logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Debug("configuration loaded", slog.Any("config", config.RedactedConfig(cfg)))

	application := app.New(cfg, logger, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = application.Run(ctx)
	stop()
	application.Close()

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		logger.Info("interrupted")
		os.Exit(130)
	case deploy.IsIncompleteRecord(err):
		logger.Warn("deployment succeeded but was not fully recorded", slog.String("error", err.Error()))
		os.Exit(exitIncomplete)
	default:
		logger.Error("run failed", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

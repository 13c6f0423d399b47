// Package app wires the configured backends into the deployment
// configurator and runs the selected mode.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/alanyoungcy/ticketdeploy/internal/config"
)

// App owns the configuration, logger, output stream and the cleanup
// functions registered while wiring.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	out     io.Writer
	closers []func()
}

// New creates an App. Operator-facing lines are written to out; structured
// logs go to logger.
func New(cfg *config.Config, logger *slog.Logger, out io.Writer) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
		out:    out,
	}
}

// Run executes the configured mode and returns when it completes or ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting",
		slog.String("mode", a.cfg.Mode),
		slog.String("preset", a.cfg.Deploy.Preset),
	)

	switch a.cfg.Mode {
	case "presets":
		return a.PresetsMode(ctx)
	case "encrypt-key":
		return a.EncryptKeyMode(ctx)
	}

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch a.cfg.Mode {
	case "deploy":
		return a.DeployMode(ctx, deps)
	case "plan":
		return a.PlanMode(ctx, deps)
	case "history":
		return a.HistoryMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close runs cleanup functions in reverse registration order. Calling it
// again is a no-op.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

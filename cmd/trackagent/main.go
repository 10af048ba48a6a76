// Command trackagent is a minimal terminal driver for the background
// sync agent, grounded on the teacher's REPL-style CLI (internal/client/
// cli.runREPL): a prompt, a line scanner, and a command dispatch table.
// It exists to exercise the facade end to end, not as a production UI.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/loctrack/agent/internal/config"
	"github.com/loctrack/agent/internal/facade"
	"github.com/loctrack/agent/internal/logging"
)

func main() {
	cfg := config.Load()

	logger, closeLog, err := logging.NewFileLogger(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		log.Printf("open log file %s: %v, falling back to stderr", cfg.LogPath, err)
		logger = logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
		closeLog = nil
	}
	if closeLog != nil {
		defer closeLog.Close()
	}

	app := facade.New(cfg, logger)
	if err := app.Init("trackagent", "0.1.0", onChange, onError, onUpdate); err != nil {
		log.Fatalf("init: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runREPL(ctx, app)

	if err := app.Shutdown(); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

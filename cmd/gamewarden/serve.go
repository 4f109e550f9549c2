package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gamewarden/gamewarden"
	"github.com/gamewarden/gamewarden/internal/logger"
)

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	LogLevel  string
	LogColor  bool
	AutoStart bool
}

func createServeCommand(global *GlobalFlags) *cobra.Command {
	flags := &ServeFlags{}

	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Run the gamewarden daemon",
		Long: `Run the daemon: spawn nothing yet, expose the control API and wait
for start/stop/kill requests. With --autostart the server process is
spawned immediately.

Examples:
  gamewarden serve                   # uses --config
  gamewarden serve /etc/gamewarden.toml
  gamewarden serve --autostart`,
		RunE: func(_ *cobra.Command, args []string) error {
			configPath := global.ConfigPath
			if len(args) > 0 {
				configPath = args[0]
			}
			return runServe(configPath, flags)
		},
	}
	cmd.Flags().StringVar(&flags.LogLevel, "log-level", "info", "daemon log level (debug|info|warn|error)")
	cmd.Flags().BoolVar(&flags.LogColor, "log-color", true, "colorize daemon log output")
	cmd.Flags().BoolVar(&flags.AutoStart, "autostart", false, "start the game server immediately")
	return cmd
}

func runServe(configPath string, flags *ServeFlags) error {
	cfg, err := gamewarden.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	log := logger.New(flags.LogLevel, flags.LogColor)

	if err := gamewarden.RegisterMetricsDefault(); err != nil {
		log.Warn("metrics registration failed", "error", err)
	}

	w, err := gamewarden.New(cfg, log)
	if err != nil {
		return err
	}

	srv := w.NewHTTPServer()
	log.Info("control api listening", "addr", cfg.HTTP.Listen, "base_path", cfg.HTTP.BasePath)

	pubCtx, cancelPub := context.WithCancel(context.Background())
	go w.RunPublisher(pubCtx)

	var stopSchedule func()
	if cfg.Restart.Schedule != "" {
		stopSchedule, err = w.ScheduleRestart(cfg.Restart.Schedule)
		if err != nil {
			cancelPub()
			return err
		}
		log.Info("restart schedule installed", "schedule", cfg.Restart.Schedule)
	}

	if flags.AutoStart {
		if err := w.Start(); err != nil {
			log.Error("autostart failed", "error", err)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	got := <-sig
	log.Info("shutting down", "signal", got.String())

	if stopSchedule != nil {
		stopSchedule()
	}
	cancelPub()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	if err := w.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("daemon stopped")
	return nil
}

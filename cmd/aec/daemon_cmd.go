package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/config"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/observability"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/service"
)

// runDaemon runs the core with its maintenance loops until SIGINT or
// SIGTERM. All workflow and reaper state is durable, so a restart resumes
// where the previous process stopped.
func runDaemon(cfg *config.Config, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obsCfg := observability.DefaultConfig()
	obsCfg.Enabled = cfg.OTelEnabled
	if cfg.OTelEndpoint != "" {
		obsCfg.OTLPEndpoint = cfg.OTelEndpoint
	}
	obs, err := observability.New(ctx, obsCfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitInternal
	}
	defer func() { _ = obs.Shutdown(context.Background()) }()

	svc, err := service.New(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitInternal
	}

	// mirror every lifecycle event into the log
	events := svc.Bus().Subscribe()
	go func() {
		for ev := range events {
			slog.Info("event", "topic", ev.Topic, "subject", ev.Subject)
		}
	}()

	svc.StartMaintenance()
	fmt.Fprintln(stdout, "aec daemon running")

	<-ctx.Done()
	slog.Info("shutting down")

	svc.Bus().Unsubscribe(events)
	if err := svc.Close(context.Background()); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: shutdown: %v\n", err)
		return exitInternal
	}
	return exitOK
}

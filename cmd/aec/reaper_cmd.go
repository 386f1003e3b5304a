package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/config"
)

// runReaperCmd implements `aec reaper <status|pulse|diagnostic|reap|live|resurrect|clean>`.
func runReaperCmd(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "Usage: aec reaper <status|pulse|diagnostic|reap|live|resurrect|clean> [flags]")
		return exitValidation
	}

	svc, done, code := openService(cfg, stderr)
	if code != exitOK {
		return code
	}
	defer done()
	ctx := context.Background()

	switch args[0] {
	case "status":
		status, err := svc.ReaperStatus(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitInternal
		}
		printJSON(stdout, status)
		return exitOK

	case "pulse":
		cycle, err := svc.Pulse(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitInternal
		}
		fmt.Fprintf(stdout, "cycle %d\n", cycle)
		return exitOK

	case "diagnostic":
		diag, err := svc.Diagnose(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitInternal
		}
		printJSON(stdout, diag)
		return exitOK

	case "reap":
		cmd := flag.NewFlagSet("reaper reap", flag.ContinueOnError)
		cmd.SetOutput(stderr)
		live := cmd.Bool("live", false, "Collect for real instead of dry-run")
		if err := cmd.Parse(args[1:]); err != nil {
			return exitValidation
		}
		if *live {
			svc.SetReaperLive(true)
		}
		report, err := svc.Reap(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitInternal
		}
		printJSON(stdout, report)
		return exitOK

	case "live":
		cmd := flag.NewFlagSet("reaper live", flag.ContinueOnError)
		cmd.SetOutput(stderr)
		on := cmd.Bool("on", false, "Enable live collection; omit to disable")
		if err := cmd.Parse(args[1:]); err != nil {
			return exitValidation
		}
		svc.SetReaperLive(*on)
		fmt.Fprintf(stdout, "live=%v\n", *on)
		return exitOK

	case "resurrect":
		cmd := flag.NewFlagSet("reaper resurrect", flag.ContinueOnError)
		cmd.SetOutput(stderr)
		key := cmd.String("key", "", "Revival key from the death record (REQUIRED)")
		if err := cmd.Parse(args[1:]); err != nil {
			return exitValidation
		}
		if *key == "" {
			_, _ = fmt.Fprintln(stderr, "Error: --key is required")
			return exitValidation
		}
		entity, err := svc.Resurrect(ctx, *key)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitValidation
		}
		printJSON(stdout, entity)
		return exitOK

	case "clean":
		removed, freed, err := svc.CleanArchive(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitInternal
		}
		fmt.Fprintf(stdout, "removed %d entries, freed %d bytes\n", removed, freed)
		return exitOK

	default:
		_, _ = fmt.Fprintf(stderr, "Unknown reaper subcommand: %s\n", args[0])
		return exitValidation
	}
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

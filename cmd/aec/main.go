// Command aec runs the autonomic evolution core: a durable
// mutation-validation pipeline with sandboxed execution, self-healing,
// adversarial consensus, and entropy-based garbage collection.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/config"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/service"
)

// Exit codes shared by every subcommand:
//
//	0 = success
//	1 = validation failure (static hit, sandbox, signature, bad input)
//	2 = consensus veto
//	3 = governance timeout
//	4 = internal error
const (
	exitOK         = 0
	exitValidation = 1
	exitVeto       = 2
	exitGovernance = 3
	exitInternal   = 4
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	// a missing .env is not an error; the environment wins either way
	_ = godotenv.Load()

	cfg := config.Load()
	initLogging(cfg.LogLevel, stderr)

	if len(args) < 2 {
		printUsage(stderr)
		return exitValidation
	}

	switch args[1] {
	case "workflow":
		return runWorkflowCmd(args[2:], cfg, stdout, stderr)
	case "reaper":
		return runReaperCmd(args[2:], cfg, stdout, stderr)
	case "token":
		return runTokenCmd(args[2:], cfg, stdout, stderr)
	case "keygen":
		return runKeygen(stdout, stderr)
	case "daemon":
		return runDaemon(cfg, stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return exitOK
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return exitValidation
	}
}

func initLogging(level string, w io.Writer) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})))
}

// openService builds the wired core for one-shot subcommands and hands
// back its closer.
func openService(cfg *config.Config, stderr io.Writer) (*service.Service, func(), int) {
	ctx := context.Background()
	svc, err := service.New(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, nil, exitInternal
	}
	closer := func() {
		if err := svc.Close(context.Background()); err != nil {
			slog.Warn("shutdown incomplete", "error", err)
		}
	}
	return svc, closer, exitOK
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "aec - autonomic evolution core")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  aec <command> [flags]")
	fmt.Fprintln(w, "")
	printSection(w, "WORKFLOW")
	printCommand(w, "workflow propose", "Submit a mutation (--file, --target, --risk)")
	printCommand(w, "workflow approve", "Approve a suspended workflow (--id, --sig)")
	printCommand(w, "workflow status", "Show one workflow (--id) or all")
	printCommand(w, "workflow cancel", "Cancel a workflow (--id)")
	printSection(w, "REAPER")
	printCommand(w, "reaper status", "Show cycle, entity and archive counters")
	printCommand(w, "reaper pulse", "Advance the lifecycle cycle once")
	printCommand(w, "reaper diagnostic", "Dump the tracked entity registry")
	printCommand(w, "reaper reap", "Run one sweep (--live to collect)")
	printCommand(w, "reaper live", "Flip live collection on or off (--on)")
	printCommand(w, "reaper resurrect", "Restore an archived entity (--key)")
	printCommand(w, "reaper clean", "Trim the archive to its byte bound")
	printSection(w, "TOKENS")
	printCommand(w, "token issue", "Mint a vitality token (--module, --status)")
	printCommand(w, "token verify", "Check a vitality token (--module, --token)")
	printSection(w, "UTILITIES")
	printCommand(w, "keygen", "Generate an admin Ed25519 keypair")
	printCommand(w, "daemon", "Run the core with maintenance loops")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s:\n", title)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %-18s %s\n", name, desc)
}

package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/config"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/contracts"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/notary"
)

// runTokenCmd implements `aec token <issue|verify>`.
func runTokenCmd(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "Usage: aec token <issue|verify> [flags]")
		return exitValidation
	}
	switch args[0] {
	case "issue":
		return runTokenIssue(args[1:], cfg, stdout, stderr)
	case "verify":
		return runTokenVerify(args[1:], cfg, stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown token subcommand: %s\n", args[0])
		return exitValidation
	}
}

func runTokenIssue(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("token issue", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var module, status string
	cmd.StringVar(&module, "module", "", "Module ID the token attests (REQUIRED)")
	cmd.StringVar(&status, "status", string(contracts.StatusHealthy), "HEALTHY, RECOVERING or CRITICAL")

	if err := cmd.Parse(args); err != nil {
		return exitValidation
	}
	if module == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --module is required")
		return exitValidation
	}
	switch contracts.VitalityStatus(status) {
	case contracts.StatusHealthy, contracts.StatusRecovering, contracts.StatusCritical:
	default:
		_, _ = fmt.Fprintf(stderr, "Error: unknown status %q\n", status)
		return exitValidation
	}

	svc, done, code := openService(cfg, stderr)
	if code != exitOK {
		return code
	}
	defer done()

	token, err := svc.Tokens().Issue(module, contracts.VitalityStatus(status))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitInternal
	}
	fmt.Fprintln(stdout, token)
	return exitOK
}

func runTokenVerify(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("token verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var module, token string
	cmd.StringVar(&module, "module", "", "Expected module ID (REQUIRED)")
	cmd.StringVar(&token, "token", "", "Token to verify (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return exitValidation
	}
	if module == "" || token == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --module and --token are required")
		return exitValidation
	}

	svc, done, code := openService(cfg, stderr)
	if code != exitOK {
		return code
	}
	defer done()

	res := svc.Tokens().Verify(token, module)
	printJSON(stdout, res)
	if !res.OK {
		return exitValidation
	}
	return exitOK
}

// runKeygen prints a fresh admin Ed25519 keypair as hex. The private key
// stays with the operator; only the public half goes into ADMIN_PUBLIC_KEY.
func runKeygen(stdout, stderr io.Writer) int {
	pub, priv, err := notary.Keypair()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitInternal
	}
	fmt.Fprintf(stdout, "public:  %s\n", hex.EncodeToString(pub))
	fmt.Fprintf(stdout, "private: %s\n", hex.EncodeToString(priv))
	return exitOK
}

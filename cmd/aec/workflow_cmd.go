package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/config"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/contracts"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/evolution"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/service"
)

// runWorkflowCmd implements `aec workflow <propose|approve|status|cancel>`.
func runWorkflowCmd(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "Usage: aec workflow <propose|approve|status|cancel> [flags]")
		return exitValidation
	}
	switch args[0] {
	case "propose":
		return runWorkflowPropose(args[1:], cfg, stdout, stderr)
	case "approve":
		return runWorkflowApprove(args[1:], cfg, stdout, stderr)
	case "status":
		return runWorkflowStatus(args[1:], cfg, stdout, stderr)
	case "cancel":
		return runWorkflowCancel(args[1:], cfg, stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown workflow subcommand: %s\n", args[0])
		return exitValidation
	}
}

func runWorkflowPropose(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("workflow propose", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		file   string
		target string
		risk   float64
	)
	cmd.StringVar(&file, "file", "", "Path to the mutation payload (REQUIRED)")
	cmd.StringVar(&target, "target", "", "Module the mutation applies to (REQUIRED)")
	cmd.Float64Var(&risk, "risk", 0, "Risk score in [0,1]")

	if err := cmd.Parse(args); err != nil {
		return exitValidation
	}
	if file == "" || target == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --file and --target are required")
		return exitValidation
	}

	payload, err := os.ReadFile(file)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: read payload: %v\n", err)
		return exitValidation
	}

	svc, done, code := openService(cfg, stderr)
	if code != exitOK {
		return code
	}
	defer done()

	inst, err := svc.Propose(context.Background(), service.ProposeRequest{
		TargetID:  target,
		Payload:   string(payload),
		RiskScore: risk,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitValidation
	}
	printWorkflow(stdout, inst)
	return workflowExitCode(inst)
}

func runWorkflowApprove(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("workflow approve", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var id, sig string
	cmd.StringVar(&id, "id", "", "Workflow ID (REQUIRED)")
	cmd.StringVar(&sig, "sig", "", "Hex Ed25519 signature over the mutation payload (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return exitValidation
	}
	if id == "" || sig == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --id and --sig are required")
		return exitValidation
	}

	svc, done, code := openService(cfg, stderr)
	if code != exitOK {
		return code
	}
	defer done()

	inst, err := svc.Approve(context.Background(), id, sig)
	switch {
	case errors.Is(err, evolution.ErrGovernanceTimeout):
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitGovernance
	case errors.Is(err, evolution.ErrSignatureInvalid):
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitValidation
	case err != nil:
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitInternal
	}
	printWorkflow(stdout, inst)
	return workflowExitCode(inst)
}

func runWorkflowStatus(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("workflow status", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var id string
	cmd.StringVar(&id, "id", "", "Workflow ID; all workflows when omitted")

	if err := cmd.Parse(args); err != nil {
		return exitValidation
	}

	svc, done, code := openService(cfg, stderr)
	if code != exitOK {
		return code
	}
	defer done()

	if id != "" {
		inst, err := svc.Workflow(context.Background(), id)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitValidation
		}
		printWorkflow(stdout, inst)
		return exitOK
	}

	all, err := svc.Workflows(context.Background())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitInternal
	}
	for _, inst := range all {
		fmt.Fprintf(stdout, "%s  %-18s  %s\n", inst.WorkflowID, inst.Stage, inst.Mutation.TargetID)
	}
	return exitOK
}

func runWorkflowCancel(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("workflow cancel", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var id string
	cmd.StringVar(&id, "id", "", "Workflow ID (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return exitValidation
	}
	if id == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --id is required")
		return exitValidation
	}

	svc, done, code := openService(cfg, stderr)
	if code != exitOK {
		return code
	}
	defer done()

	inst, err := svc.Cancel(context.Background(), id)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitValidation
	}
	printWorkflow(stdout, inst)
	return exitOK
}

func printWorkflow(w io.Writer, inst *contracts.WorkflowInstance) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(inst)
}

// workflowExitCode maps a terminal workflow to the documented exit codes.
func workflowExitCode(inst *contracts.WorkflowInstance) int {
	switch inst.Stage {
	case contracts.StageDone, contracts.StageAwaitingApproval:
		return exitOK
	case contracts.StageFailed:
		switch inst.FailureReason {
		case contracts.ReasonConsensusVeto:
			return exitVeto
		case contracts.ReasonGovernanceTimeout:
			return exitGovernance
		case contracts.ReasonPersistenceIO:
			return exitInternal
		default:
			return exitValidation
		}
	default:
		return exitOK
	}
}

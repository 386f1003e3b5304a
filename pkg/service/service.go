// Package service is the composition root of the evolution core: it wires
// the store, sandbox, healing, consensus, workflow engine, token service,
// reaper, and notifier from configuration, and exposes the operations the
// CLI and daemon drive.
package service

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/time/rate"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/archive"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/clock"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/config"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/consensus"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/contracts"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/events"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/evolution"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/healing"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/notary"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/notify"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/reaper"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/sandbox"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/store"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/vitality"
)

// proposeSchema validates inbound propose requests before anything touches
// the pipeline.
const proposeSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["target_id", "payload"],
	"properties": {
		"target_id": {"type": "string", "minLength": 1, "maxLength": 256},
		"payload":   {"type": "string", "minLength": 1},
		"risk_score": {"type": "number", "minimum": 0, "maximum": 1}
	},
	"additionalProperties": false
}`

// ErrRateLimited is returned when propose backpressure rejects a request.
var ErrRateLimited = fmt.Errorf("service: propose rate limit exceeded")

// ProposeRequest is the external shape of a mutation proposal.
type ProposeRequest struct {
	TargetID  string  `json:"target_id"`
	Payload   string  `json:"payload"`
	RiskScore float64 `json:"risk_score,omitempty"`
}

// Service owns the wired core and its maintenance loops.
type Service struct {
	cfg      *config.Config
	kv       store.KV
	blobs    archive.Store
	tokens   *vitality.Service
	engine   *evolution.Engine
	reaper   *reaper.Reaper
	bus      *events.Bus
	notifier notify.Notifier
	limiter  *rate.Limiter
	schema   *jsonschema.Schema
	clk      clock.Clock
	log      *slog.Logger

	wasi *sandbox.WASIExecutor // non-nil only for the wasi backend

	stopOnce sync.Once
	stop     chan struct{}
	done     sync.WaitGroup
}

// New wires the full core from configuration. The context covers backend
// initialization (S3 client setup, WASI runtime compile).
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	clk := clock.Wall()
	log := slog.Default().With("component", "service")

	kv, err := store.Open(store.Backend(cfg.StoreBackend), cfg.DataDir, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	blobs, err := archive.Open(ctx, archive.Backend(cfg.ArchiveBackend), cfg.DataDir, archive.S3Config{
		Bucket:   cfg.ArchiveS3Bucket,
		Region:   cfg.ArchiveS3Region,
		Endpoint: cfg.ArchiveS3Endpoint,
		Prefix:   cfg.ArchiveS3Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	tokens, err := vitality.New(cfg.TokenSecret, clk)
	if err != nil {
		return nil, fmt.Errorf("init token service: %w", err)
	}
	tokens = tokens.WithMaxAge(cfg.TokenMaxAge)

	var adminKey ed25519.PublicKey
	if cfg.AdminPublicKey != "" {
		adminKey, err = notary.ParsePublicKey(cfg.AdminPublicKey)
		if err != nil {
			return nil, fmt.Errorf("parse admin public key: %w", err)
		}
	}

	var profile *config.Profile
	if cfg.ProfilePath != "" {
		profile, err = config.LoadProfile(cfg.ProfilePath)
		if err != nil {
			return nil, err
		}
	}

	bus := events.NewBus(clk)

	// healing: node pool from the profile, circuit policy from env
	var nodes *healing.NodeRegistry
	if profile != nil && len(profile.Nodes) > 0 {
		nodes = healing.NewNodeRegistry(clk, profile.Nodes...).
			WithPolicy(cfg.CircuitThreshold, cfg.CircuitPenalty)
	}
	healer := healing.NewDispatcher(nodes, healing.NewHistoryPredictor(), tokens, bus, clk)

	// consensus: one adversarial twin per roster entry, three by default
	history := consensus.NewHistory(kv, 0)
	if err := history.Load(ctx); err != nil {
		return nil, err
	}
	roster := []string{"twin-0", "twin-1", "twin-2"}
	if profile != nil && len(profile.Validators) > 0 {
		roster = profile.Validators
	}
	validators := make([]consensus.Validator, 0, len(roster))
	for _, id := range roster {
		validators = append(validators, consensus.NewLocalTwin(id, history))
	}
	verifier := consensus.NewEngine(validators, history, bus, clk,
		consensus.WithMinAgree(cfg.ConsensusMinAgree),
		consensus.WithMaxRounds(cfg.ConsensusMaxRounds),
		consensus.WithCallTimeout(cfg.ValidatorTimeout))

	// sandbox backend
	var exec sandbox.Executor
	var wasi *sandbox.WASIExecutor
	limits := sandbox.Limits{Deadline: cfg.SandboxTimeout, MemoryBytes: cfg.SandboxMemoryMB << 20}
	switch strings.ToLower(cfg.SandboxBackend) {
	case "wasi":
		wasi, err = sandbox.NewWASIExecutor(ctx, limits)
		if err != nil {
			return nil, fmt.Errorf("init wasi sandbox: %w", err)
		}
		exec = wasi
	case "interp", "":
		exec = sandbox.NewInterpExecutor(limits)
	default:
		return nil, fmt.Errorf("unsupported sandbox backend: %s", cfg.SandboxBackend)
	}

	// notifier
	var notifier notify.Notifier
	switch strings.ToLower(cfg.Notifier) {
	case "redis":
		notifier = notify.NewRedisNotifier(cfg.RedisAddr, cfg.AdminChannel)
	case "log", "":
		notifier = notify.NewLogNotifier(nil)
	default:
		return nil, fmt.Errorf("unsupported notifier: %s", cfg.Notifier)
	}

	// reaper: protection policy is defaults + env globs + profile
	protection := config.DefaultProtection()
	protection.Globs = append(protection.Globs, cfg.ProtectedPaths...)
	if profile != nil {
		protection.Globs = append(protection.Globs, profile.Protection.Globs...)
		protection.Regexps = append(protection.Regexps, profile.Protection.Regexps...)
	}
	regexps, err := protection.CompiledRegexps()
	if err != nil {
		return nil, err
	}
	rp := reaper.New(kv, blobs, tokens, bus, clk,
		reaper.WithStaleThreshold(cfg.StaleThresholdCycles),
		reaper.WithMaxArchiveBytes(cfg.MaxArchiveBytes),
		reaper.WithProtectedGlobs(protection.Globs...),
		reaper.WithProtectedRegexps(regexps...))
	if err := rp.Load(ctx); err != nil {
		return nil, err
	}
	if cfg.ReaperLive {
		rp.SetLive(true)
	}

	engine := evolution.NewEngine(kv, exec, verifier, healer, tokens, adminKey, bus, clk,
		evolution.WithHighRiskThreshold(cfg.HighRiskThreshold),
		evolution.WithApprovalTimeout(cfg.ApprovalTimeout),
		evolution.WithSandboxDeadline(cfg.SandboxTimeout),
		evolution.WithRegistrar(rp),
		evolution.WithNotifier(notifier))

	schema, err := jsonschema.CompileString("propose.json", proposeSchema)
	if err != nil {
		return nil, fmt.Errorf("compile propose schema: %w", err)
	}

	s := &Service{
		cfg:      cfg,
		kv:       kv,
		blobs:    blobs,
		tokens:   tokens,
		engine:   engine,
		reaper:   rp,
		bus:      bus,
		notifier: notifier,
		limiter:  rate.NewLimiter(rate.Limit(cfg.ProposeRPS), cfg.ProposeBurst),
		schema:   schema,
		clk:      clk,
		log:      log,
		wasi:     wasi,
		stop:     make(chan struct{}),
	}

	if err := engine.Resume(ctx); err != nil {
		return nil, fmt.Errorf("resume workflows: %w", err)
	}
	return s, nil
}

// Bus exposes the event bus for subscribers (daemon logging, tests).
func (s *Service) Bus() *events.Bus { return s.bus }

// Tokens exposes the vitality service for operator token commands.
func (s *Service) Tokens() *vitality.Service { return s.tokens }

// Propose validates and rate-limits the request, then drives a workflow.
func (s *Service) Propose(ctx context.Context, req ProposeRequest) (*contracts.WorkflowInstance, error) {
	if !s.limiter.Allow() {
		return nil, ErrRateLimited
	}
	if err := s.validatePropose(req); err != nil {
		return nil, err
	}
	return s.engine.Propose(ctx, contracts.Mutation{
		TargetID:  req.TargetID,
		Payload:   []byte(req.Payload),
		RiskScore: req.RiskScore,
		CreatedAt: s.clk.Now().UTC(),
	})
}

func (s *Service) validatePropose(req ProposeRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode propose request: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode propose request: %w", err)
	}
	if err := s.schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid propose request: %w", err)
	}
	return nil
}

// Approve delivers an admin signature to a suspended workflow.
func (s *Service) Approve(ctx context.Context, workflowID, sigHex string) (*contracts.WorkflowInstance, error) {
	return s.engine.Approve(ctx, workflowID, sigHex)
}

// Cancel aborts a workflow where cancellation is allowed.
func (s *Service) Cancel(ctx context.Context, workflowID string) (*contracts.WorkflowInstance, error) {
	return s.engine.Cancel(ctx, workflowID)
}

// Workflow returns one instance snapshot.
func (s *Service) Workflow(ctx context.Context, workflowID string) (*contracts.WorkflowInstance, error) {
	return s.engine.Get(ctx, workflowID)
}

// Workflows lists every persisted instance.
func (s *Service) Workflows(ctx context.Context) ([]*contracts.WorkflowInstance, error) {
	return s.engine.List(ctx)
}

// RegisterVitality forwards a module's token to the reaper.
func (s *Service) RegisterVitality(moduleID, token string) error {
	return s.reaper.RegisterVitality(moduleID, token)
}

// Pulse advances the reaper cycle once.
func (s *Service) Pulse(ctx context.Context) (uint64, error) {
	return s.reaper.AdvanceCycle(ctx)
}

// Reap runs one sweep in the reaper's current mode.
func (s *Service) Reap(ctx context.Context) (contracts.ReapReport, error) {
	return s.reaper.Reap(ctx)
}

// SetReaperLive flips collection between dry-run and live.
func (s *Service) SetReaperLive(live bool) { s.reaper.SetLive(live) }

// Resurrect restores an archived entity.
func (s *Service) Resurrect(ctx context.Context, revivalKey string) (*contracts.CodeEntity, error) {
	return s.reaper.Resurrect(ctx, revivalKey)
}

// CleanArchive trims the archive to its byte bound.
func (s *Service) CleanArchive(ctx context.Context) (int, int64, error) {
	return s.reaper.CleanArchive(ctx)
}

// ReaperStatus reports the reaper's operator snapshot.
func (s *Service) ReaperStatus(ctx context.Context) (reaper.Status, error) {
	return s.reaper.StatusSnapshot(ctx)
}

// Diagnostic is the full operator view: reaper status plus the tracked
// entity list.
type Diagnostic struct {
	Reaper   reaper.Status          `json:"reaper"`
	Entities []contracts.CodeEntity `json:"entities"`
}

// Diagnose assembles the diagnostic snapshot.
func (s *Service) Diagnose(ctx context.Context) (Diagnostic, error) {
	status, err := s.reaper.StatusSnapshot(ctx)
	if err != nil {
		return Diagnostic{}, err
	}
	return Diagnostic{Reaper: status, Entities: s.reaper.Entities()}, nil
}

// StartMaintenance launches the background loops: the reaper cycle tick,
// the approval deadline watcher, and archive GC. Stop them with Close.
func (s *Service) StartMaintenance() {
	s.spawn("reaper-tick", s.cfg.ReaperTick, func(ctx context.Context) {
		if _, err := s.reaper.AdvanceCycle(ctx); err != nil {
			s.log.Error("reaper tick failed", "error", err)
		}
	})
	s.spawn("approval-watcher", time.Minute, func(ctx context.Context) {
		expired, err := s.engine.ExpireApprovals(ctx)
		if err != nil {
			s.log.Error("approval watcher failed", "error", err)
			return
		}
		if expired > 0 {
			s.log.Info("expired pending approvals", "count", expired)
		}
	})
	s.spawn("archive-gc", time.Hour, func(ctx context.Context) {
		if _, _, err := s.reaper.CleanArchive(ctx); err != nil {
			s.log.Error("archive gc failed", "error", err)
		}
	})
}

func (s *Service) spawn(name string, interval time.Duration, tick func(context.Context)) {
	if interval <= 0 {
		return
	}
	s.done.Add(1)
	go func() {
		defer s.done.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				tick(ctx)
				cancel()
			}
		}
	}()
	s.log.Debug("maintenance loop started", "name", name, "interval", interval)
}

// Close stops maintenance, flushes the reaper, and releases backends.
func (s *Service) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.done.Wait()

	if err := s.reaper.Flush(ctx); err != nil {
		s.log.Error("reaper flush on shutdown failed", "error", err)
	}
	if s.wasi != nil {
		if err := s.wasi.Close(ctx); err != nil {
			s.log.Error("wasi shutdown failed", "error", err)
		}
	}
	if c, ok := s.notifier.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			s.log.Error("notifier shutdown failed", "error", err)
		}
	}
	if err := s.kv.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// Package reaper is the entropy collector: it tracks code entities, ages
// them against a monotonic vitality cycle, and archives the ones that
// stopped proving they are alive. Everything it removes is reversible
// until the archive itself is trimmed; resurrection restores the exact
// bytes that were collected.
package reaper

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/archive"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/clock"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/contracts"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/events"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/store"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/vitality"
)

const (
	// DefaultStaleThreshold is the age, in cycles, at which an entity is
	// STALE. Half of it is the ORPHAN line.
	DefaultStaleThreshold uint64 = 10000
	// DefaultMaxArchiveBytes bounds the archive before GC trims it.
	DefaultMaxArchiveBytes int64 = 100 << 20

	cycleKey          = "reaper/cycle"
	entityKeyPrefix   = "reaper/entity/"
	manifestKeyPrefix = "reaper/archive/"

	persistEvery   = 100
	milestoneEvery = 1000
)

var (
	// ErrEntityNotFound: the id is not in the registry.
	ErrEntityNotFound = errors.New("reaper: entity not found")
	// ErrTokenRejected: RegisterVitality refused the token.
	ErrTokenRejected = errors.New("reaper: vitality token rejected")
	// ErrManifestNotFound: no archive entry carries the revival key.
	ErrManifestNotFound = errors.New("reaper: no archive entry for revival key")
)

// TokenVerifier checks vitality tokens. Satisfied by *vitality.Service.
type TokenVerifier interface {
	Verify(token, expectedModuleID string) vitality.VerifyResult
}

// Status is the operator-facing snapshot.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type Status struct {
	Cycle          uint64 `json:"cycle"`
	Entities       int    `json:"entities"`
	Live           bool   `json:"live"`
	StaleThreshold uint64 `json:"stale_threshold"`
	ArchiveEntries int    `json:"archive_entries"`
	ArchiveBytes   int64  `json:"archive_bytes"`
}

// Reaper owns the entity registry and the archive lifecycle. One writer
// (the cycle/reap path) and many readers; all registry access is behind
// the mutex.
type Reaper struct {
	kv       store.KV
	blobs    archive.Store
	verifier TokenVerifier
	fs       ArtifactFS
	emitter  events.Emitter
	clk      clock.Clock
	log      *slog.Logger

	staleThreshold  uint64
	maxArchiveBytes int64
	globs           []string
	regexps         []*regexp.Regexp

	mu       sync.Mutex
	entities map[string]*contracts.CodeEntity
	cycle    uint64
	live     bool
}

// Option configures a Reaper.
type Option func(*Reaper)

// WithStaleThreshold overrides the STALE age.
func WithStaleThreshold(cycles uint64) Option {
	return func(r *Reaper) { r.staleThreshold = cycles }
}

// WithMaxArchiveBytes overrides the archive GC bound.
func WithMaxArchiveBytes(n int64) Option {
	return func(r *Reaper) { r.maxArchiveBytes = n }
}

// WithProtectedGlobs adds doublestar path patterns that are never reaped.
func WithProtectedGlobs(globs ...string) Option {
	return func(r *Reaper) { r.globs = append(r.globs, globs...) }
}

// WithProtectedRegexps adds path regexps that are never reaped.
func WithProtectedRegexps(res ...*regexp.Regexp) Option {
	return func(r *Reaper) { r.regexps = append(r.regexps, res...) }
}

// WithArtifacts overrides the artifact backend (default: the OS
// filesystem).
func WithArtifacts(fs ArtifactFS) Option {
	return func(r *Reaper) { r.fs = fs }
}

// New wires a reaper. Call Load before use to restore persisted state.
func New(kv store.KV, blobs archive.Store, verifier TokenVerifier, emitter events.Emitter, clk clock.Clock, opts ...Option) *Reaper {
	if emitter == nil {
		emitter = events.Nop{}
	}
	if clk == nil {
		clk = clock.Wall()
	}
	r := &Reaper{
		kv:              kv,
		blobs:           blobs,
		verifier:        verifier,
		fs:              OSArtifacts{},
		emitter:         emitter,
		clk:             clk,
		log:             slog.Default().With("component", "reaper"),
		staleThreshold:  DefaultStaleThreshold,
		maxArchiveBytes: DefaultMaxArchiveBytes,
		entities:        make(map[string]*contracts.CodeEntity),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load restores the cycle counter and the entity registry.
func (r *Reaper) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := r.kv.Get(ctx, cycleKey)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return fmt.Errorf("load reaper cycle: %w", err)
	case len(raw) == 8:
		r.cycle = binary.BigEndian.Uint64(raw)
	}

	entries, err := r.kv.Scan(ctx, entityKeyPrefix)
	if err != nil {
		return fmt.Errorf("load reaper registry: %w", err)
	}
	for _, entry := range entries {
		var ent contracts.CodeEntity
		if err := json.Unmarshal(entry.Value, &ent); err != nil {
			r.log.Warn("skipping undecodable entity record", "key", entry.Key, "error", err)
			continue
		}
		r.entities[ent.EntityID] = &ent
	}
	r.log.Info("reaper state restored", "cycle", r.cycle, "entities", len(r.entities))
	return nil
}

// SetLive switches reaping between dry-run and live collection. Live mode
// is never the default; it takes this explicit call.
func (r *Reaper) SetLive(live bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live = live
	r.log.Info("reaper mode changed", "live", live)
}

// Live reports the current mode.
func (r *Reaper) Live() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

// Cycle returns the current cycle counter.
func (r *Reaper) Cycle() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cycle
}

// Track registers an entity. A zero LastVitalityCycle is stamped with the
// current cycle; dependents are normalized to sorted-unique.
func (r *Reaper) Track(ctx context.Context, ent contracts.CodeEntity) error {
	if ent.EntityID == "" {
		return fmt.Errorf("reaper: entity id required")
	}
	r.mu.Lock()
	if ent.LastVitalityCycle == 0 {
		ent.LastVitalityCycle = r.cycle
	}
	if ent.CreatedCycle == 0 {
		ent.CreatedCycle = r.cycle
	}
	ent.Dependents = normalize(ent.Dependents)
	r.entities[ent.EntityID] = &ent
	r.mu.Unlock()
	return r.persistEntity(ctx, &ent)
}

func normalize(deps []string) []string {
	if len(deps) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(deps))
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// RecordAccess stamps the entity with the current cycle.
func (r *Reaper) RecordAccess(ctx context.Context, entityID string) error {
	r.mu.Lock()
	ent, ok := r.entities[entityID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	}
	ent.LastVitalityCycle = r.cycle
	ent.AccessCount++
	snapshot := *ent
	r.mu.Unlock()
	return r.persistEntity(ctx, &snapshot)
}

// RegisterVitality verifies the token and, on success, records an access
// for the module (auto-tracking it on first sight). A rejected token emits
// vitality:rejected and mutates nothing.
func (r *Reaper) RegisterVitality(moduleID, token string) error {
	res := r.verifier.Verify(token, moduleID)
	if !res.OK {
		r.emitter.Emit(contracts.TopicVitalityRejected, moduleID, contracts.VitalityEvent{
			ModuleID: moduleID,
			Reason:   res.Reason,
		})
		r.log.Warn("vitality token rejected", "module", moduleID, "reason", res.Reason)
		return fmt.Errorf("%w: %s", ErrTokenRejected, res.Reason)
	}

	ctx := context.Background()
	r.mu.Lock()
	if _, ok := r.entities[moduleID]; !ok {
		r.entities[moduleID] = &contracts.CodeEntity{
			EntityID:          moduleID,
			Kind:              contracts.EntityModule,
			CreatedCycle:      r.cycle,
			LastVitalityCycle: r.cycle,
		}
	}
	r.mu.Unlock()
	if err := r.RecordAccess(ctx, moduleID); err != nil {
		return err
	}
	r.emitter.Emit(contracts.TopicVitalityRegistered, moduleID, contracts.VitalityEvent{
		ModuleID: moduleID,
		Status:   res.Status,
	})
	return nil
}

// AdvanceCycle increments the counter. Every 100 ticks the full state
// persists; every 1000 a milestone event fires.
func (r *Reaper) AdvanceCycle(ctx context.Context) (uint64, error) {
	r.mu.Lock()
	r.cycle++
	cycle := r.cycle
	entities := len(r.entities)
	r.mu.Unlock()

	if cycle%persistEvery == 0 {
		if err := r.Flush(ctx); err != nil {
			return cycle, err
		}
	}
	if cycle%milestoneEvery == 0 {
		r.emitter.Emit(contracts.TopicReaperMilestone, "", contracts.ReaperEvent{
			Cycle:    cycle,
			Entities: entities,
		})
		r.log.Info("reaper milestone", "cycle", cycle, "entities", entities)
	}
	return cycle, nil
}

// Flush persists the cycle counter and every entity.
func (r *Reaper) Flush(ctx context.Context) error {
	r.mu.Lock()
	cycle := r.cycle
	snapshot := make([]contracts.CodeEntity, 0, len(r.entities))
	for _, ent := range r.entities {
		snapshot = append(snapshot, *ent)
	}
	r.mu.Unlock()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], cycle)
	if err := r.kv.Put(ctx, cycleKey, buf[:]); err != nil {
		return fmt.Errorf("persist reaper cycle: %w", err)
	}
	for i := range snapshot {
		if err := r.persistEntity(ctx, &snapshot[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reaper) persistEntity(ctx context.Context, ent *contracts.CodeEntity) error {
	raw, err := json.Marshal(ent)
	if err != nil {
		return fmt.Errorf("encode entity %s: %w", ent.EntityID, err)
	}
	if err := r.kv.Put(ctx, entityKeyPrefix+ent.EntityID, raw); err != nil {
		return fmt.Errorf("persist entity %s: %w", ent.EntityID, err)
	}
	return nil
}

// Entities returns a sorted snapshot of the registry.
func (r *Reaper) Entities() []contracts.CodeEntity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]contracts.CodeEntity, 0, len(r.entities))
	for _, ent := range r.entities {
		out = append(out, *ent)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

func (r *Reaper) protected(path string) bool {
	if path == "" {
		return false
	}
	for _, g := range r.globs {
		if ok, err := doublestar.Match(g, path); err == nil && ok {
			return true
		}
	}
	for _, re := range r.regexps {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// Reap scans the registry and collects dead entities. In dry-run mode the
// report lists what would die without touching anything. Per-entity
// archive failures are reported and skipped, never fatal to the sweep.
func (r *Reaper) Reap(ctx context.Context) (contracts.ReapReport, error) {
	r.mu.Lock()
	cycle := r.cycle
	live := r.live
	snapshot := make([]contracts.CodeEntity, 0, len(r.entities))
	for _, ent := range r.entities {
		snapshot = append(snapshot, *ent)
	}
	r.mu.Unlock()
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].EntityID < snapshot[j].EntityID })

	report := contracts.ReapReport{Cycle: cycle, DryRun: !live}
	for _, ent := range snapshot {
		report.Scanned++

		if r.protected(ent.Path) {
			report.Preserved++
			continue
		}
		if len(ent.Dependents) > 0 {
			report.Preserved++
			continue
		}

		age := ent.AgeAt(cycle)
		var reason contracts.ReapReason
		switch {
		case age >= r.staleThreshold:
			reason = contracts.ReapStale
		case age > r.staleThreshold/2:
			reason = contracts.ReapOrphan
		default:
			continue
		}
		report.Marked++
		death := contracts.DeathRecord{
			EntityID:  ent.EntityID,
			Path:      ent.Path,
			Reason:    reason,
			AgeCycles: age,
		}

		if live {
			manifest, err := r.collect(ctx, ent, reason, age)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", ent.EntityID, err))
				r.log.Warn("archive failed, entity preserved", "entity", ent.EntityID, "error", err)
				report.Deaths = append(report.Deaths, death)
				continue
			}
			death.RevivalKey = manifest.RevivalKey
			death.ArchiveKey = manifest.ContentHash
			report.Archived++
			report.BytesSaved += manifest.SizeBytes
		}
		report.Deaths = append(report.Deaths, death)
	}

	r.emitter.Emit(contracts.TopicReaperReport, "", report)
	r.log.Info("reap complete",
		"cycle", cycle, "dry_run", report.DryRun,
		"scanned", report.Scanned, "marked", report.Marked,
		"archived", report.Archived, "preserved", report.Preserved)
	return report, nil
}

// collect archives one entity: blob first, manifest second, then the live
// copy and registry entry go away.
func (r *Reaper) collect(ctx context.Context, ent contracts.CodeEntity, reason contracts.ReapReason, age uint64) (*contracts.ArchiveManifest, error) {
	data, err := r.fs.Read(ent.Path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	contentHash, err := r.blobs.Put(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	now := r.clk.Now().UTC()
	manifest := contracts.ArchiveManifest{
		RevivalKey:   uuid.NewString(),
		EntityID:     ent.EntityID,
		OriginalPath: ent.Path,
		Reason:       reason,
		AgeCycles:    age,
		SizeBytes:    int64(len(data)),
		ContentHash:  contentHash,
		Entity:       ent,
		ArchivedAt:   now,
	}
	raw, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	// ULID-keyed so a prefix scan returns manifests oldest-first
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	if err := r.kv.Put(ctx, manifestKeyPrefix+id.String(), raw); err != nil {
		return nil, fmt.Errorf("persist manifest: %w", err)
	}

	if err := r.fs.Remove(ent.Path); err != nil {
		return nil, fmt.Errorf("remove live artifact: %w", err)
	}
	r.mu.Lock()
	delete(r.entities, ent.EntityID)
	r.mu.Unlock()
	if err := r.kv.Delete(ctx, entityKeyPrefix+ent.EntityID); err != nil {
		r.log.Warn("registry cleanup failed", "entity", ent.EntityID, "error", err)
	}
	return &manifest, nil
}

// Resurrect restores the archived entity whose manifest carries the
// revival key: bytes back at the original path, entity re-registered at
// the current cycle, archive entry dropped.
func (r *Reaper) Resurrect(ctx context.Context, revivalKey string) (*contracts.CodeEntity, error) {
	key, manifest, err := r.findManifest(ctx, revivalKey)
	if err != nil {
		return nil, err
	}

	data, err := r.blobs.Get(ctx, manifest.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("load archived bytes: %w", err)
	}
	if err := r.fs.Write(manifest.OriginalPath, data); err != nil {
		return nil, fmt.Errorf("restore artifact: %w", err)
	}

	ent := manifest.Entity
	r.mu.Lock()
	ent.LastVitalityCycle = r.cycle
	r.entities[ent.EntityID] = &ent
	snapshot := ent
	r.mu.Unlock()
	if err := r.persistEntity(ctx, &snapshot); err != nil {
		return nil, err
	}

	if err := r.kv.Delete(ctx, key); err != nil {
		return nil, fmt.Errorf("drop manifest: %w", err)
	}
	if err := r.blobs.Delete(ctx, manifest.ContentHash); err != nil {
		r.log.Warn("blob cleanup failed", "key", manifest.ContentHash, "error", err)
	}
	r.log.Info("entity resurrected", "entity", ent.EntityID, "path", manifest.OriginalPath)
	return &snapshot, nil
}

func (r *Reaper) findManifest(ctx context.Context, revivalKey string) (string, *contracts.ArchiveManifest, error) {
	entries, err := r.kv.Scan(ctx, manifestKeyPrefix)
	if err != nil {
		return "", nil, fmt.Errorf("scan archive manifests: %w", err)
	}
	for _, entry := range entries {
		var m contracts.ArchiveManifest
		if err := json.Unmarshal(entry.Value, &m); err != nil {
			continue
		}
		if m.RevivalKey == revivalKey {
			return entry.Key, &m, nil
		}
	}
	return "", nil, fmt.Errorf("%w: %s", ErrManifestNotFound, strings.TrimSpace(revivalKey))
}

// CleanArchive trims the archive oldest-first until it fits the byte
// bound. Returns how many entries went and how many bytes were freed.
func (r *Reaper) CleanArchive(ctx context.Context) (int, int64, error) {
	entries, err := r.kv.Scan(ctx, manifestKeyPrefix)
	if err != nil {
		return 0, 0, fmt.Errorf("scan archive manifests: %w", err)
	}

	type item struct {
		key      string
		manifest contracts.ArchiveManifest
	}
	var items []item
	var total int64
	for _, entry := range entries {
		var m contracts.ArchiveManifest
		if err := json.Unmarshal(entry.Value, &m); err != nil {
			continue
		}
		items = append(items, item{key: entry.Key, manifest: m})
		total += m.SizeBytes
	}

	removed := 0
	var freed int64
	// Scan order is key order, and keys are ULIDs: oldest first.
	for _, it := range items {
		if total <= r.maxArchiveBytes {
			break
		}
		if err := r.kv.Delete(ctx, it.key); err != nil {
			r.log.Warn("manifest delete failed", "key", it.key, "error", err)
			continue
		}
		if err := r.blobs.Delete(ctx, it.manifest.ContentHash); err != nil {
			r.log.Warn("blob delete failed", "key", it.manifest.ContentHash, "error", err)
		}
		total -= it.manifest.SizeBytes
		freed += it.manifest.SizeBytes
		removed++
	}
	if removed > 0 {
		r.log.Info("archive trimmed", "removed", removed, "bytes_freed", freed)
	}
	return removed, freed, nil
}

// StatusSnapshot assembles the operator view.
func (r *Reaper) StatusSnapshot(ctx context.Context) (Status, error) {
	entries, err := r.kv.Scan(ctx, manifestKeyPrefix)
	if err != nil {
		return Status{}, fmt.Errorf("scan archive manifests: %w", err)
	}
	var archiveBytes int64
	for _, entry := range entries {
		var m contracts.ArchiveManifest
		if err := json.Unmarshal(entry.Value, &m); err != nil {
			continue
		}
		archiveBytes += m.SizeBytes
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		Cycle:          r.cycle,
		Entities:       len(r.entities),
		Live:           r.live,
		StaleThreshold: r.staleThreshold,
		ArchiveEntries: len(entries),
		ArchiveBytes:   archiveBytes,
	}, nil
}

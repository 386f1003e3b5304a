package contracts

import "time"

// EntityKind classifies what a tracked code entity is.
type EntityKind string

const (
	EntityFile     EntityKind = "FILE"
	EntityModule   EntityKind = "MODULE"
	EntityFunction EntityKind = "FUNCTION"
	EntityClass    EntityKind = "CLASS"
)

// VitalityStatus is the health claim carried by a vitality token.
type VitalityStatus string

const (
	StatusHealthy    VitalityStatus = "HEALTHY"
	StatusRecovering VitalityStatus = "RECOVERING"
	StatusCritical   VitalityStatus = "CRITICAL"
)

// CodeEntity is one tracked unit in the reaper's registry. Dependents is
// kept sorted and unique so the persisted form is deterministic.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type CodeEntity struct {
	EntityID          string     `json:"entity_id"`
	Path              string     `json:"path,omitempty"`
	Kind              EntityKind `json:"kind"`
	CreatedCycle      uint64     `json:"created_cycle"`
	LastVitalityCycle uint64     `json:"last_vitality_cycle"`
	AccessCount       uint64     `json:"access_count"`
	Dependents        []string   `json:"dependents,omitempty"`
	SizeBytes         int64      `json:"size_bytes,omitempty"`
}

// AgeAt returns how many cycles have elapsed since the entity last proved
// vitality. Entities registered in the future (clock weirdness after a
// restore) age as zero.
func (e CodeEntity) AgeAt(cycle uint64) uint64 {
	if cycle <= e.LastVitalityCycle {
		return 0
	}
	return cycle - e.LastVitalityCycle
}

// ReapReason says why an entity was marked for collection.
type ReapReason string

const (
	ReapStale  ReapReason = "STALE"
	ReapOrphan ReapReason = "ORPHAN"
)

// DeathRecord is one collected entity in a reap report.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type DeathRecord struct {
	EntityID   string     `json:"entity_id"`
	Path       string     `json:"path,omitempty"`
	Reason     ReapReason `json:"reason"`
	AgeCycles  uint64     `json:"age_cycles"`
	RevivalKey string     `json:"revival_key,omitempty"`
	ArchiveKey string     `json:"archive_key,omitempty"`
}

// ReapReport summarizes one sweep. Errors holds per-entity failures that
// were logged without aborting the scan.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type ReapReport struct {
	Cycle      uint64        `json:"cycle"`
	DryRun     bool          `json:"dry_run"`
	Scanned    int           `json:"scanned"`
	Marked     int           `json:"marked"`
	Archived   int           `json:"archived"`
	Preserved  int           `json:"preserved"`
	BytesSaved int64         `json:"bytes_saved"`
	Deaths     []DeathRecord `json:"deaths,omitempty"`
	Errors     []string      `json:"errors,omitempty"`
}

// ArchiveManifest accompanies every archived entity and is all that is
// needed to resurrect it: the revival key locates the manifest, the content
// hash locates the bytes.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type ArchiveManifest struct {
	RevivalKey   string     `json:"revival_key"`
	EntityID     string     `json:"entity_id"`
	OriginalPath string     `json:"original_path,omitempty"`
	Reason       ReapReason `json:"reason"`
	AgeCycles    uint64     `json:"age_cycles"`
	SizeBytes    int64      `json:"size_bytes"`
	ContentHash  string     `json:"content_hash"`
	Entity       CodeEntity `json:"entity"`
	ArchivedAt   time.Time  `json:"archived_at"`
}

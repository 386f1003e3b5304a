// Package config loads the evolution core's configuration from the
// environment, with an optional YAML operational profile layered on top.
package config

import (
	"encoding/hex"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the composition root needs to wire the core.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type Config struct {
	LogLevel string

	// secrets and identity
	TokenSecret    []byte
	AdminPublicKey string // lowercase hex, empty disables the approval gate

	// workflow
	HighRiskThreshold float64
	ApprovalTimeout   time.Duration
	TokenMaxAge       time.Duration

	// sandbox
	SandboxBackend  string // "interp" | "wasi"
	SandboxTimeout  time.Duration
	SandboxMemoryMB int64

	// consensus
	ValidatorTimeout   time.Duration
	ConsensusMinAgree  float64
	ConsensusMaxRounds int

	// healing
	CircuitThreshold int
	CircuitPenalty   time.Duration

	// persistence
	StoreBackend string // "sqlite" | "postgres" | "bolt" | "memory"
	DataDir      string
	DatabaseURL  string

	// archive
	ArchiveBackend    string // "fs" | "s3" | "memory"
	ArchiveS3Bucket   string
	ArchiveS3Region   string
	ArchiveS3Endpoint string
	ArchiveS3Prefix   string
	MaxArchiveBytes   int64

	// reaper
	StaleThresholdCycles uint64
	ReaperLive           bool
	ReaperTick           time.Duration
	ProtectedPaths       []string

	// notifications
	Notifier     string // "log" | "redis"
	RedisAddr    string
	AdminChannel string

	// backpressure
	ProposeRPS   float64
	ProposeBurst int

	// observability
	OTelEnabled  bool
	OTelEndpoint string

	ProfilePath string
}

// Load reads configuration from environment variables, applying defaults.
func Load() *Config {
	return &Config{
		LogLevel: getStr("LOG_LEVEL", "INFO"),

		TokenSecret:    decodeSecret(os.Getenv("TOKEN_SECRET")),
		AdminPublicKey: strings.TrimSpace(os.Getenv("ADMIN_PUBLIC_KEY")),

		HighRiskThreshold: getFloat("HIGH_RISK_THRESHOLD", 0.8),
		ApprovalTimeout:   getMillis("APPROVAL_TIMEOUT_MS", 24*time.Hour),
		TokenMaxAge:       getMillis("TOKEN_MAX_AGE_MS", 5*time.Minute),

		SandboxBackend:  getStr("SANDBOX_BACKEND", "interp"),
		SandboxTimeout:  getMillis("SANDBOX_TIMEOUT_MS", 5*time.Second),
		SandboxMemoryMB: getInt("SANDBOX_MEMORY_MB", 128),

		ValidatorTimeout:   getMillis("VALIDATOR_TIMEOUT_MS", 30*time.Second),
		ConsensusMinAgree:  getFloat("CONSENSUS_MIN_AGREE", 0.7),
		ConsensusMaxRounds: int(getInt("CONSENSUS_MAX_ROUNDS", 5)),

		CircuitThreshold: int(getInt("CIRCUIT_THRESHOLD", 3)),
		CircuitPenalty:   getMillis("CIRCUIT_PENALTY_MS", 5*time.Minute),

		StoreBackend: getStr("STORE_BACKEND", "sqlite"),
		DataDir:      getStr("DATA_DIR", "data"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),

		ArchiveBackend:    getStr("ARCHIVE_BACKEND", "fs"),
		ArchiveS3Bucket:   os.Getenv("ARCHIVE_S3_BUCKET"),
		ArchiveS3Region:   os.Getenv("ARCHIVE_S3_REGION"),
		ArchiveS3Endpoint: os.Getenv("ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Prefix:   os.Getenv("ARCHIVE_S3_PREFIX"),
		MaxArchiveBytes:   getInt("MAX_ARCHIVE_BYTES", 100<<20),

		StaleThresholdCycles: uint64(getInt("STALE_THRESHOLD_CYCLES", 10000)),
		ReaperLive:           getBool("REAPER_LIVE", false),
		ReaperTick:           getMillis("REAPER_TICK_MS", time.Minute),
		ProtectedPaths:       splitList(os.Getenv("PROTECTED_PATHS")),

		Notifier:     getStr("NOTIFIER", "log"),
		RedisAddr:    getStr("REDIS_ADDR", "127.0.0.1:6379"),
		AdminChannel: getStr("ADMIN_CHANNEL", "admin"),

		ProposeRPS:   getFloat("PROPOSE_RPS", 5),
		ProposeBurst: int(getInt("PROPOSE_BURST", 10)),

		OTelEnabled:  getBool("OTEL_ENABLED", false),
		OTelEndpoint: os.Getenv("OTEL_ENDPOINT"),

		ProfilePath: os.Getenv("PROFILE_PATH"),
	}
}

// decodeSecret accepts the token secret as hex or raw bytes. Empty stays
// empty; the token service then generates an ephemeral secret itself.
func decodeSecret(v string) []byte {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if raw, err := hex.DecodeString(v); err == nil && len(raw) >= 16 {
		return raw
	}
	return []byte(v)
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return def
}

func getMillis(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/config"
)

// Invariant: the core must boot with safe defaults from an empty env.
func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"TOKEN_SECRET", "ADMIN_PUBLIC_KEY", "HIGH_RISK_THRESHOLD",
		"APPROVAL_TIMEOUT_MS", "SANDBOX_BACKEND", "STORE_BACKEND",
		"NOTIFIER", "REAPER_LIVE", "PROTECTED_PATHS", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg := config.Load()

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Nil(t, cfg.TokenSecret)
	assert.Empty(t, cfg.AdminPublicKey)
	assert.Equal(t, 0.8, cfg.HighRiskThreshold)
	assert.Equal(t, 24*time.Hour, cfg.ApprovalTimeout)
	assert.Equal(t, 5*time.Second, cfg.SandboxTimeout)
	assert.Equal(t, "interp", cfg.SandboxBackend)
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, "fs", cfg.ArchiveBackend)
	assert.Equal(t, "log", cfg.Notifier)
	assert.Equal(t, uint64(10000), cfg.StaleThresholdCycles)
	assert.False(t, cfg.ReaperLive, "live reaping must never be the default")
	assert.Equal(t, 0.7, cfg.ConsensusMinAgree)
	assert.Equal(t, 5, cfg.ConsensusMaxRounds)
	assert.Equal(t, 3, cfg.CircuitThreshold)
	assert.Equal(t, 5*time.Minute, cfg.CircuitPenalty)
}

// Invariant: ops control everything via 12-factor env vars.
func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("HIGH_RISK_THRESHOLD", "0.5")
	t.Setenv("APPROVAL_TIMEOUT_MS", "60000")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://production:5432/aec")
	t.Setenv("REAPER_LIVE", "true")
	t.Setenv("PROTECTED_PATHS", "**/migrations/**, **/schema/**")

	cfg := config.Load()

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, 0.5, cfg.HighRiskThreshold)
	assert.Equal(t, time.Minute, cfg.ApprovalTimeout)
	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, "postgres://production:5432/aec", cfg.DatabaseURL)
	assert.True(t, cfg.ReaperLive)
	assert.Equal(t, []string{"**/migrations/**", "**/schema/**"}, cfg.ProtectedPaths)
}

func TestTokenSecretDecoding(t *testing.T) {
	// 32 hex bytes decode to raw
	t.Setenv("TOKEN_SECRET", "000102030405060708090a0b0c0d0e0f000102030405060708090a0b0c0d0e0f")
	cfg := config.Load()
	assert.Len(t, cfg.TokenSecret, 32)

	// anything else is taken verbatim
	t.Setenv("TOKEN_SECRET", "plain-passphrase")
	cfg = config.Load()
	assert.Equal(t, []byte("plain-passphrase"), cfg.TokenSecret)
}

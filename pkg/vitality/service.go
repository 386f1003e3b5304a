// Package vitality issues and verifies the short-lived HMAC tokens that
// certify a module as healthy. The wire format is fixed:
//
//	base64url(module_id ':' decimal(issued_at_ms) ':' status ':' hex(mac))
//
// where mac = HMAC-SHA256(secret, "module_id:issued_at_ms:status"). Tokens
// are bearer credentials; the service keeps only the shared secret.
package vitality

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/clock"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/contracts"
)

// Rejection reasons returned in VerifyResult.Reason.
const (
	ReasonMalformed        = "MALFORMED"
	ReasonModuleIDMismatch = "MODULE_ID_MISMATCH"
	ReasonExpired          = "EXPIRED"
	ReasonClockSkew        = "CLOCK_SKEW"
	ReasonForged           = "FORGED"
)

const (
	// DefaultMaxAge is the freshness window for accepted tokens.
	DefaultMaxAge = 5 * time.Minute
	// maxSkew tolerates issued-at timestamps slightly ahead of the
	// verifier's clock before rejecting as CLOCK_SKEW.
	maxSkew = 60 * time.Second
)

// VerifyResult is the outcome of a token check. IssuedAt and Status are
// populated only when OK.
type VerifyResult struct {
	OK       bool
	IssuedAt int64
	Status   contracts.VitalityStatus
	Reason   string
}

// Service issues and verifies vitality tokens with one shared secret.
// Secrets rotate by epoch: Verify accepts the current epoch and, within
// the grace count, the one before it, so token holders survive a rotation.
type Service struct {
	mu     sync.RWMutex
	root   []byte
	epoch  uint32
	secret []byte // derived key for the current epoch
	prev   []byte // derived key for epoch-1, nil at epoch 0
	maxAge time.Duration
	clk    clock.Clock
	log    *slog.Logger
}

// New creates a token service. When secret is empty a cryptographically
// strong ephemeral secret is generated and a warning is logged: tokens
// issued against it will not survive a process restart.
func New(secret []byte, clk clock.Clock) (*Service, error) {
	log := slog.Default().With("component", "vitality")
	if clk == nil {
		clk = clock.Wall()
	}
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate ephemeral secret: %w", err)
		}
		log.Warn("no token secret configured, generated ephemeral secret; tokens will not survive restart")
	}
	s := &Service{
		root:   secret,
		maxAge: DefaultMaxAge,
		clk:    clk,
		log:    log,
	}
	s.secret = s.deriveEpoch(0)
	return s, nil
}

// WithMaxAge overrides the freshness window.
func (s *Service) WithMaxAge(d time.Duration) *Service {
	s.maxAge = d
	return s
}

// deriveEpoch derives the epoch key from the root secret with HKDF-SHA256.
// Epoch 0 is the root itself so a configured secret stays bit-compatible
// with externally minted tokens.
func (s *Service) deriveEpoch(epoch uint32) []byte {
	if epoch == 0 {
		return s.root
	}
	info := fmt.Sprintf("aec-vitality-epoch-%d", epoch)
	r := hkdf.New(sha256.New, s.root, []byte("aec-vitality-kdf"), []byte(info))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		// HKDF over SHA-256 cannot fail for a 32-byte read.
		panic(fmt.Sprintf("hkdf derivation failed: %v", err))
	}
	return key
}

// RotateSecret advances to the given epoch. Verification keeps accepting
// the previous epoch's tokens until they age out naturally.
func (s *Service) RotateSecret(epoch uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch <= s.epoch {
		return fmt.Errorf("epoch must advance: current %d, requested %d", s.epoch, epoch)
	}
	s.prev = s.secret
	s.secret = s.deriveEpoch(epoch)
	s.epoch = epoch
	s.log.Info("token secret rotated", "epoch", epoch)
	return nil
}

func mac(secret []byte, moduleID string, issuedAt int64, status contracts.VitalityStatus) string {
	h := hmac.New(sha256.New, secret)
	fmt.Fprintf(h, "%s:%d:%s", moduleID, issuedAt, status)
	return hex.EncodeToString(h.Sum(nil))
}

// Issue mints a token for moduleID at the current millisecond timestamp.
func (s *Service) Issue(moduleID string, status contracts.VitalityStatus) (string, error) {
	if moduleID == "" {
		return "", fmt.Errorf("module id must not be empty")
	}
	if strings.Contains(moduleID, ":") {
		return "", fmt.Errorf("module id must not contain ':'")
	}
	s.mu.RLock()
	secret := s.secret
	s.mu.RUnlock()

	issuedAt := clock.Millis(s.clk.Now())
	plain := fmt.Sprintf("%s:%d:%s:%s", moduleID, issuedAt, status, mac(secret, moduleID, issuedAt, status))
	return base64.RawURLEncoding.EncodeToString([]byte(plain)), nil
}

// sanitize strips non-printable runes from an attacker-controlled claimed
// module id before it reaches error output.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '?'
		}
		return r
	}, id)
}

// Verify checks a token against expectedModuleID. Checks run in a fixed
// order so the reported reason is deterministic: shape, module id, MAC,
// freshness, clock skew. The MAC is authenticated before any claim in the
// token is trusted, so a forged token reports FORGED even when its claimed
// timestamp is also stale.
func (s *Service) Verify(token, expectedModuleID string) VerifyResult {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return VerifyResult{Reason: ReasonMalformed}
	}
	fields := strings.Split(string(raw), ":")
	if len(fields) != 4 {
		return VerifyResult{Reason: ReasonMalformed}
	}
	moduleID, tsField, statusField, macField := fields[0], fields[1], fields[2], fields[3]

	if moduleID != expectedModuleID {
		s.log.Warn("token module id mismatch", "claimed", sanitize(moduleID), "expected", expectedModuleID)
		return VerifyResult{Reason: ReasonModuleIDMismatch}
	}

	issuedAt, err := strconv.ParseInt(tsField, 10, 64)
	if err != nil {
		return VerifyResult{Reason: ReasonMalformed}
	}

	status := contracts.VitalityStatus(statusField)
	s.mu.RLock()
	secret, prev := s.secret, s.prev
	s.mu.RUnlock()

	authentic := hmac.Equal([]byte(mac(secret, moduleID, issuedAt, status)), []byte(macField))
	if !authentic && prev != nil {
		authentic = hmac.Equal([]byte(mac(prev, moduleID, issuedAt, status)), []byte(macField))
	}
	if !authentic {
		return VerifyResult{Reason: ReasonForged}
	}

	now := clock.Millis(s.clk.Now())
	if now-issuedAt > s.maxAge.Milliseconds() {
		return VerifyResult{Reason: ReasonExpired}
	}
	if issuedAt > now+maxSkew.Milliseconds() {
		return VerifyResult{Reason: ReasonClockSkew}
	}

	return VerifyResult{OK: true, IssuedAt: issuedAt, Status: status}
}

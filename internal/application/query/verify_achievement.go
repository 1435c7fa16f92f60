package query

import (
	"context"
	"fmt"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/progress"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/sharing"
)

// ══════════════════════════════════════════════════════════════════════════════
// VERIFY ACHIEVEMENT QUERY
// Public, read-only confirmation that a ledger entry exists.
// ══════════════════════════════════════════════════════════════════════════════

// VerifyAchievementHandler resolves achievements by id.
type VerifyAchievementHandler struct {
	reader progress.AchievementReader
}

// NewVerifyAchievementHandler creates a new VerifyAchievementHandler.
func NewVerifyAchievementHandler(reader progress.AchievementReader) *VerifyAchievementHandler {
	return &VerifyAchievementHandler{reader: reader}
}

// Handle returns the full record or shared.ErrAchievementNotFound.
func (h *VerifyAchievementHandler) Handle(ctx context.Context, id progress.AchievementID) (*AchievementDTO, error) {
	if id == 0 {
		return nil, fmt.Errorf("verify_achievement: %w", shared.ErrAchievementNotFound)
	}
	a, err := h.reader.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("verify_achievement: %w", err)
	}
	return NewAchievementDTO(a), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// VERIFY ATTESTATION QUERY
// ══════════════════════════════════════════════════════════════════════════════

// AttestationVerificationDTO is the verdict on a presented attestation.
type AttestationVerificationDTO struct {
	Valid       bool            `json:"valid"`
	Reason      string          `json:"reason,omitempty"`
	Achievement *AchievementDTO `json:"achievement,omitempty"`
}

// Rejection reasons.
const (
	ReasonBadSignature        = "signature_mismatch"
	ReasonAchievementMismatch = "achievement_mismatch"
)

// VerifyAttestationHandler checks signatures and that the attested achievement still matches the ledger.
type VerifyAttestationHandler struct {
	reader progress.AchievementReader
	signer sharing.Signer
}

// NewVerifyAttestationHandler creates a new VerifyAttestationHandler. signer may be nil.
func NewVerifyAttestationHandler(reader progress.AchievementReader, signer sharing.Signer) *VerifyAttestationHandler {
	return &VerifyAttestationHandler{reader: reader, signer: signer}
}

// Handle verifies att. A forged or stale attestation is a negative verdict, not an error.
func (h *VerifyAttestationHandler) Handle(ctx context.Context, att sharing.Attestation) (*AttestationVerificationDTO, error) {
	if h.signer == nil {
		return nil, fmt.Errorf("verify_attestation: %w", shared.ErrSigningDisabled)
	}
	if !h.signer.Verify(att.SigningPayload(), att.Signature) {
		return &AttestationVerificationDTO{Reason: ReasonBadSignature}, nil
	}

	a, err := h.reader.Get(ctx, att.AchievementID)
	if err != nil {
		if shared.IsNotFound(err) {
			return &AttestationVerificationDTO{Reason: ReasonAchievementMismatch}, nil
		}
		return nil, fmt.Errorf("verify_attestation: %w", err)
	}
	if a.Owner != att.UserID || a.Category != att.Category || a.Milestone != att.Milestone {
		return &AttestationVerificationDTO{Reason: ReasonAchievementMismatch}, nil
	}
	return &AttestationVerificationDTO{Valid: true, Achievement: NewAchievementDTO(a)}, nil
}

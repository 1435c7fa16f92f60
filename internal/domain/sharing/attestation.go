// Package sharing models the attestation produced when a user shares an achievement
// with a group they belong to. Issuing one mutates no state.
package sharing

import (
	"strconv"
	"strings"
	"time"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/group"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/progress"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
)

// attestationVersion prefixes the signed payload so the format can change later.
const attestationVersion = "zsa1"

// Attestation records that an owner showed an achievement to a group at a point in time.
type Attestation struct {
	ID            string                 `json:"id"`
	AchievementID progress.AchievementID `json:"achievement_id"`
	GroupID       group.ID               `json:"group_id"`
	UserID        shared.UserID          `json:"user_id"`
	Category      progress.Category      `json:"category"`
	Milestone     uint64                 `json:"milestone"`
	SharedAt      time.Time              `json:"shared_at"`
	Signature     string                 `json:"signature,omitempty"`
}

// NewAttestation builds an unsigned attestation for an achievement.
func NewAttestation(id string, ach *progress.Achievement, groupID group.ID, at time.Time) Attestation {
	return Attestation{
		ID:            id,
		AchievementID: ach.ID,
		GroupID:       groupID,
		UserID:        ach.Owner,
		Category:      ach.Category,
		Milestone:     ach.Milestone,
		SharedAt:      at.UTC().Truncate(time.Microsecond),
	}
}

// SigningPayload is the canonical byte form covered by the signature.
func (a Attestation) SigningPayload() []byte {
	parts := []string{
		attestationVersion,
		a.ID,
		strconv.FormatUint(uint64(a.AchievementID), 10),
		strconv.FormatUint(uint64(a.GroupID), 10),
		string(a.UserID),
		string(a.Category),
		strconv.FormatUint(a.Milestone, 10),
		strconv.FormatInt(a.SharedAt.UTC().UnixMicro(), 10),
	}
	return []byte(strings.Join(parts, "|"))
}

// Signer authenticates attestations for third-party verification.
type Signer interface {
	Sign(payload []byte) (string, error)
	Verify(payload []byte, signature string) bool
}

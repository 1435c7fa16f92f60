package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/group"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/progress"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/sharing"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/logger"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SHARE ACHIEVEMENT COMMAND
// Checks that a user may show an achievement to a group and issues an attestation.
// Nothing is written; the attestation is returned to the caller.
// ══════════════════════════════════════════════════════════════════════════════

// ShareAchievementCommand contains the data to share an achievement.
type ShareAchievementCommand struct {
	AchievementID progress.AchievementID
	GroupID       group.ID
	UserID        shared.UserID

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c ShareAchievementCommand) Validate() error {
	if !c.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if c.AchievementID == 0 {
		return shared.ErrAchievementNotFound
	}
	if !c.GroupID.IsValid() {
		return shared.ErrInvalidGroupID
	}
	return nil
}

// ShareAchievementHandler handles the ShareAchievementCommand.
type ShareAchievementHandler struct {
	achievements progress.AchievementReader
	groups       group.Store
	signer       sharing.Signer
	clock        timeutil.Clock
	publisher    shared.EventPublisher
	logger       *logger.Logger
}

// NewShareAchievementHandler creates a new ShareAchievementHandler. signer may be nil,
// in which case attestations are issued unsigned.
func NewShareAchievementHandler(
	achievements progress.AchievementReader,
	groups group.Store,
	signer sharing.Signer,
	clock timeutil.Clock,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *ShareAchievementHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ShareAchievementHandler{
		achievements: achievements,
		groups:       groups,
		signer:       signer,
		clock:        clock,
		publisher:    publisher,
		logger:       log.With(logger.Component("share_achievement")),
	}
}

// Handle executes the share command.
func (h *ShareAchievementHandler) Handle(ctx context.Context, cmd ShareAchievementCommand) (*sharing.Attestation, error) {
	ctx, span := tracer.Start(ctx, "command.ShareAchievement", trace.WithAttributes(
		attribute.String("user.id", cmd.UserID.String()),
		attribute.Int64("achievement.id", int64(cmd.AchievementID)),
		attribute.Int64("group.id", int64(cmd.GroupID)),
	))
	defer span.End()

	att, err := h.handle(ctx, cmd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return att, nil
}

func (h *ShareAchievementHandler) handle(ctx context.Context, cmd ShareAchievementCommand) (*sharing.Attestation, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("share_achievement: validation failed: %w", err)
	}

	ach, err := h.achievements.Get(ctx, cmd.AchievementID)
	if err != nil {
		return nil, fmt.Errorf("share_achievement: failed to get achievement: %w", err)
	}
	if !ach.IsOwnedBy(cmd.UserID) {
		return nil, fmt.Errorf("share_achievement: %w", shared.ErrNotAuthorized)
	}

	exists, err := h.groups.Exists(ctx, cmd.GroupID)
	if err != nil {
		return nil, fmt.Errorf("share_achievement: failed to check group: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("share_achievement: %w", shared.ErrGroupNotFound)
	}

	member, err := h.groups.IsMember(ctx, cmd.UserID, cmd.GroupID)
	if err != nil {
		return nil, fmt.Errorf("share_achievement: failed to check membership: %w", err)
	}
	if !member {
		return nil, fmt.Errorf("share_achievement: %w", shared.ErrNotMember)
	}

	att := sharing.NewAttestation(uuid.NewString(), ach, cmd.GroupID, h.clock.Now())
	if h.signer != nil {
		sig, err := h.signer.Sign(att.SigningPayload())
		if err != nil {
			return nil, fmt.Errorf("share_achievement: failed to sign attestation: %w", err)
		}
		att.Signature = sig
	}

	event := shared.NewAchievementSharedEvent(cmd.UserID.String(), att.SharedAt, att.ID, uint64(ach.ID), uint64(cmd.GroupID))
	event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
	if err := h.publisher.Publish(event); err != nil {
		h.logger.Warn("failed to publish event", logger.String("event_type", string(event.EventType())), logger.Err(err))
	}

	h.logger.Info("achievement shared",
		logger.UserID(cmd.UserID.String()),
		logger.AchievementID(uint64(ach.ID)),
		logger.GroupID(uint64(cmd.GroupID)),
	)
	return &att, nil
}

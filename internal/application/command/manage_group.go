package command

import (
	"context"
	"fmt"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/group"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/logger"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GROUP COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// CreateGroupCommand creates a group owned by UserID.
type CreateGroupCommand struct {
	UserID shared.UserID
	Name   string
}

// MembershipCommand joins or leaves a group.
type MembershipCommand struct {
	UserID  shared.UserID
	GroupID group.ID
}

// Validate validates the command.
func (c MembershipCommand) Validate() error {
	if !c.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if !c.GroupID.IsValid() {
		return shared.ErrInvalidGroupID
	}
	return nil
}

// ManageGroupHandler handles group creation and membership changes.
type ManageGroupHandler struct {
	groups    group.Store
	clock     timeutil.Clock
	publisher shared.EventPublisher
	logger    *logger.Logger
}

// NewManageGroupHandler creates a new ManageGroupHandler.
func NewManageGroupHandler(groups group.Store, clock timeutil.Clock, publisher shared.EventPublisher, log *logger.Logger) *ManageGroupHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ManageGroupHandler{
		groups:    groups,
		clock:     clock,
		publisher: publisher,
		logger:    log.With(logger.Component("manage_group")),
	}
}

// Create creates a group with the caller as creator and first member.
func (h *ManageGroupHandler) Create(ctx context.Context, cmd CreateGroupCommand) (*group.Group, error) {
	now := h.clock.Now()
	g, err := group.NewGroup(cmd.Name, cmd.UserID, now)
	if err != nil {
		return nil, fmt.Errorf("create_group: validation failed: %w", err)
	}
	created, err := h.groups.Create(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("create_group: failed to store group: %w", err)
	}

	h.publish(shared.NewGroupMembershipEvent(shared.EventGroupCreated, uint64(created.ID), cmd.UserID.String(), now))
	h.logger.Info("group created", logger.GroupID(uint64(created.ID)), logger.UserID(cmd.UserID.String()))
	return created, nil
}

// Join adds the caller to a group.
func (h *ManageGroupHandler) Join(ctx context.Context, cmd MembershipCommand) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("join_group: validation failed: %w", err)
	}
	if err := h.groups.AddMember(ctx, cmd.GroupID, cmd.UserID); err != nil {
		return fmt.Errorf("join_group: %w", err)
	}
	h.publish(shared.NewGroupMembershipEvent(shared.EventGroupMemberJoined, uint64(cmd.GroupID), cmd.UserID.String(), h.clock.Now()))
	return nil
}

// Leave removes the caller from a group. The creator cannot leave.
func (h *ManageGroupHandler) Leave(ctx context.Context, cmd MembershipCommand) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("leave_group: validation failed: %w", err)
	}
	if err := h.groups.RemoveMember(ctx, cmd.GroupID, cmd.UserID); err != nil {
		return fmt.Errorf("leave_group: %w", err)
	}
	h.publish(shared.NewGroupMembershipEvent(shared.EventGroupMemberLeft, uint64(cmd.GroupID), cmd.UserID.String(), h.clock.Now()))
	return nil
}

func (h *ManageGroupHandler) publish(e shared.Event) {
	if err := h.publisher.Publish(e); err != nil {
		h.logger.Warn("failed to publish event", logger.String("event_type", string(e.EventType())), logger.Err(err))
	}
}

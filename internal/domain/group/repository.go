package group

import (
	"context"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
)

// Store persists groups and their membership.
// Membership rules (no duplicates, creator cannot leave) are enforced by the store
// with the same errors as the Group methods.
type Store interface {
	// Create assigns the next group id and stores the group.
	Create(ctx context.Context, g *Group) (*Group, error)

	// Get returns the group or shared.ErrGroupNotFound.
	Get(ctx context.Context, id ID) (*Group, error)

	// Exists reports whether the group exists.
	Exists(ctx context.Context, id ID) (bool, error)

	// IsMember reports whether user belongs to group id. A missing group is not an error.
	IsMember(ctx context.Context, user shared.UserID, id ID) (bool, error)

	// AddMember adds user to group id.
	AddMember(ctx context.Context, id ID, user shared.UserID) error

	// RemoveMember removes user from group id.
	RemoveMember(ctx context.Context, id ID, user shared.UserID) error
}

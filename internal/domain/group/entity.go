// Package group contains the membership model used when sharing achievements:
// a group has a creator, who can never leave, and a duplicate-free member list.
package group

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
)

// MaxNameLength bounds group names in runes.
const MaxNameLength = 64

// ID is the globally unique, atomically assigned group identifier.
type ID uint64

// IsValid checks that the ID was assigned.
func (id ID) IsValid() bool {
	return id > 0
}

// String returns the decimal representation.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseID parses a decimal group id.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 {
		return 0, shared.ErrInvalidGroupID
	}
	return ID(n), nil
}

// Group is a named set of users.
type Group struct {
	ID        ID
	Name      string
	Creator   shared.UserID
	Members   []shared.UserID
	CreatedAt time.Time
}

// NewGroup creates a group whose first member is its creator. The ID is assigned by the store.
func NewGroup(name string, creator shared.UserID, now time.Time) (*Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.ErrEmptyGroupName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, shared.WrapError("group", "Validate", shared.ErrValueOutOfRange, "group name too long", nil)
	}
	if !creator.IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	return &Group{
		Name:      name,
		Creator:   creator,
		Members:   []shared.UserID{creator},
		CreatedAt: now,
	}, nil
}

// IsMember reports whether user belongs to the group.
func (g *Group) IsMember(user shared.UserID) bool {
	for _, m := range g.Members {
		if m == user {
			return true
		}
	}
	return false
}

// AddMember adds user, failing with ErrAlreadyMember on duplicates.
func (g *Group) AddMember(user shared.UserID) error {
	if !user.IsValid() {
		return shared.ErrInvalidUserID
	}
	if g.IsMember(user) {
		return shared.ErrAlreadyMember
	}
	g.Members = append(g.Members, user)
	return nil
}

// RemoveMember removes user. The creator can never remove themselves.
func (g *Group) RemoveMember(user shared.UserID) error {
	if user == g.Creator {
		return shared.ErrNotAuthorized
	}
	for i, m := range g.Members {
		if m == user {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotMember
}

// MemberCount returns the number of members, creator included.
func (g *Group) MemberCount() int {
	return len(g.Members)
}

// Clone returns a deep copy.
func (g *Group) Clone() *Group {
	c := *g
	c.Members = append([]shared.UserID(nil), g.Members...)
	return &c
}

package group

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
)

func TestNewGroup(t *testing.T) {
	g, err := NewGroup("  Morning sitters ", "alice", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Morning sitters", g.Name)
	assert.True(t, g.IsMember("alice"))
	assert.Equal(t, 1, g.MemberCount())

	_, err = NewGroup(" ", "alice", time.Now())
	assert.ErrorIs(t, err, shared.ErrEmptyGroupName)

	_, err = NewGroup(strings.Repeat("x", MaxNameLength+1), "alice", time.Now())
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)

	_, err = NewGroup("ok", "", time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidUserID)
}

func TestGroup_Membership(t *testing.T) {
	g, err := NewGroup("g", "alice", time.Now())
	require.NoError(t, err)

	require.NoError(t, g.AddMember("bob"))
	assert.ErrorIs(t, g.AddMember("bob"), shared.ErrAlreadyMember)
	assert.ErrorIs(t, g.AddMember("alice"), shared.ErrAlreadyMember)

	assert.ErrorIs(t, g.RemoveMember("alice"), shared.ErrNotAuthorized)
	assert.ErrorIs(t, g.RemoveMember("carol"), shared.ErrNotMember)

	require.NoError(t, g.RemoveMember("bob"))
	assert.False(t, g.IsMember("bob"))
	assert.Equal(t, []shared.UserID{"alice"}, g.Members)
}

func TestGroup_CloneIsDeep(t *testing.T) {
	g, _ := NewGroup("g", "alice", time.Now())
	c := g.Clone()
	require.NoError(t, c.AddMember("bob"))
	assert.False(t, g.IsMember("bob"))
}

func TestParseID(t *testing.T) {
	id, err := ParseID("12")
	require.NoError(t, err)
	assert.Equal(t, ID(12), id)

	_, err = ParseID("0")
	assert.ErrorIs(t, err, shared.ErrInvalidGroupID)
	_, err = ParseID("-1")
	assert.ErrorIs(t, err, shared.ErrInvalidGroupID)
}

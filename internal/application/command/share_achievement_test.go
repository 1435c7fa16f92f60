package command

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/group"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/progress"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/persistence/memory"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/signing"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/logger"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/timeutil"
)

type shareFixture struct {
	store   *memory.Store
	groups  *memory.GroupStore
	ach     *progress.Achievement
	groupID group.ID
	pub     *recordingPublisher
	handler *ShareAchievementHandler
	signer  *signing.Blake2bSigner
}

func newShareFixture(t *testing.T) *shareFixture {
	t.Helper()
	ctx := context.Background()
	f := &shareFixture{store: memory.NewStore(), groups: memory.NewGroupStore(), pub: &recordingPublisher{}}

	ach, err := f.store.Ledger().Create(ctx, "alice", progress.Award{
		Category:    progress.CategoryStreak,
		Milestone:   7,
		Description: progress.Describe(progress.CategoryStreak, 7),
		AwardedAt:   start,
	})
	require.NoError(t, err)
	f.ach = ach

	g, err := group.NewGroup("sitters", "alice", start)
	require.NoError(t, err)
	created, err := f.groups.Create(ctx, g)
	require.NoError(t, err)
	f.groupID = created.ID

	f.signer, err = signing.NewBlake2bSigner(bytes.Repeat([]byte("s"), 32))
	require.NoError(t, err)

	f.handler = NewShareAchievementHandler(f.store.Ledger(), f.groups, f.signer,
		timeutil.NewFixedClock(start.Add(time.Hour)), f.pub, logger.Nop())
	return f
}

func TestShareAchievement_IssuesSignedAttestation(t *testing.T) {
	f := newShareFixture(t)

	att, err := f.handler.Handle(context.Background(), ShareAchievementCommand{
		AchievementID: f.ach.ID, GroupID: f.groupID, UserID: "alice",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, att.ID)
	assert.Equal(t, f.ach.ID, att.AchievementID)
	assert.Equal(t, f.groupID, att.GroupID)
	assert.Equal(t, start.Add(time.Hour), att.SharedAt)
	assert.True(t, f.signer.Verify(att.SigningPayload(), att.Signature))
	assert.Equal(t, 1, f.pub.count(shared.EventAchievementShared))
}

func TestShareAchievement_CheckOrder(t *testing.T) {
	f := newShareFixture(t)
	ctx := context.Background()

	other, err := group.NewGroup("others", "carol", start)
	require.NoError(t, err)
	otherGroup, err := f.groups.Create(ctx, other)
	require.NoError(t, err)

	tests := []struct {
		name string
		cmd  ShareAchievementCommand
		want error
	}{
		{"unknown achievement", ShareAchievementCommand{AchievementID: 999, GroupID: 999, UserID: "bob"}, shared.ErrAchievementNotFound},
		{"not owner", ShareAchievementCommand{AchievementID: f.ach.ID, GroupID: 999, UserID: "bob"}, shared.ErrNotAuthorized},
		{"unknown group", ShareAchievementCommand{AchievementID: f.ach.ID, GroupID: 999, UserID: "alice"}, shared.ErrGroupNotFound},
		{"not a member", ShareAchievementCommand{AchievementID: f.ach.ID, GroupID: otherGroup.ID, UserID: "alice"}, shared.ErrNotMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.handler.Handle(ctx, tt.cmd)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 0, f.pub.count(shared.EventAchievementShared))
}

func TestShareAchievement_UnsignedWithoutSigner(t *testing.T) {
	f := newShareFixture(t)
	h := NewShareAchievementHandler(f.store.Ledger(), f.groups, nil, timeutil.NewFixedClock(start), nil, nil)

	att, err := h.Handle(context.Background(), ShareAchievementCommand{
		AchievementID: f.ach.ID, GroupID: f.groupID, UserID: "alice",
	})
	require.NoError(t, err)
	assert.Empty(t, att.Signature)
}

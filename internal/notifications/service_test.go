package notifications

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/testutil"
	"gorm.io/gorm"
)

type recordingPusher struct {
	mu     sync.Mutex
	pushed map[string][]*models.Notification
	counts map[string]int64
}

func newRecordingPusher() *recordingPusher {
	return &recordingPusher{pushed: map[string][]*models.Notification{}, counts: map[string]int64{}}
}

func (p *recordingPusher) NotifyNotification(userID string, n *models.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed[userID] = append(p.pushed[userID], n)
}

func (p *recordingPusher) UpdateNotificationCount(userID string, unread int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[userID] = unread
}

func setup(t *testing.T) (*Service, *gorm.DB, *recordingPusher) {
	db := testutil.NewDB(t)
	push := newRecordingPusher()
	return NewService(db, push), db, push
}

func TestNotify(t *testing.T) {
	svc, db, push := setup(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	n, err := svc.Notify(ctx, Event{
		Kind: models.NotifyLike, RecipientID: alice.ID, ActorID: bob.ID,
		TargetType: models.TargetPost, TargetID: "p1", Preview: "great pit stop",
	})
	require.NoError(t, err)
	require.NotNil(t, n)
	require.NotNil(t, n.Actor)
	assert.Equal(t, "bob", n.Actor.Username)
	assert.Len(t, push.pushed[alice.ID], 1)
	assert.Equal(t, int64(1), push.counts[alice.ID])

	t.Run("self action is skipped", func(t *testing.T) {
		n, err := svc.Notify(ctx, Event{Kind: models.NotifyLike, RecipientID: alice.ID, ActorID: alice.ID})
		require.NoError(t, err)
		assert.Nil(t, n)
	})

	t.Run("disabled kind is skipped", func(t *testing.T) {
		off := false
		_, err := svc.UpdatePreferences(ctx, alice.ID, PreferencesUpdate{Follows: &off})
		require.NoError(t, err)

		n, err := svc.Notify(ctx, Event{Kind: models.NotifyFollow, RecipientID: alice.ID, ActorID: bob.ID})
		require.NoError(t, err)
		assert.Nil(t, n)

		n, err = svc.Notify(ctx, Event{Kind: models.NotifyComment, RecipientID: alice.ID, ActorID: bob.ID})
		require.NoError(t, err)
		assert.NotNil(t, n)
	})

	t.Run("blocked actor is skipped", func(t *testing.T) {
		troll := testutil.CreateUser(t, db, "troll")
		require.NoError(t, db.Create(&models.Block{BlockerID: alice.ID, BlockedID: troll.ID}).Error)
		n, err := svc.Notify(ctx, Event{Kind: models.NotifyMention, RecipientID: alice.ID, ActorID: troll.ID})
		require.NoError(t, err)
		assert.Nil(t, n)
	})

	t.Run("system notification without actor", func(t *testing.T) {
		n, err := svc.Notify(ctx, Event{Kind: models.NotifyPollClosed, RecipientID: bob.ID, TargetType: models.TargetPoll, TargetID: "poll1"})
		require.NoError(t, err)
		require.NotNil(t, n)
		assert.Nil(t, n.ActorID)
	})

	t.Run("missing recipient", func(t *testing.T) {
		_, err := svc.Notify(ctx, Event{Kind: models.NotifyLike})
		assert.Error(t, err)
	})
}

func TestListCountsAndMarkRead(t *testing.T) {
	svc, db, push := setup(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	var ids []string
	for i := 0; i < 3; i++ {
		n, err := svc.Notify(ctx, Event{Kind: models.NotifyLike, RecipientID: alice.ID, ActorID: bob.ID})
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}
	_, err := svc.Notify(ctx, Event{Kind: models.NotifyLike, RecipientID: bob.ID, ActorID: alice.ID})
	require.NoError(t, err)

	counts, err := svc.Counts(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, Counts{Unread: 3, Total: 3}, counts)

	// Bob's notification is untouched by alice's request
	updated, err := svc.MarkRead(ctx, alice.ID, []string{ids[0]})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)
	assert.Equal(t, int64(2), push.counts[alice.ID])

	unread, total, err := svc.List(ctx, alice.ID, true, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, unread, 2)
	for _, n := range unread {
		assert.Nil(t, n.ReadAt)
		require.NotNil(t, n.Actor)
	}

	updated, err = svc.MarkRead(ctx, alice.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	counts, err = svc.Counts(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts.Unread)

	bobCounts, err := svc.Counts(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), bobCounts.Unread)

	page, total, err := svc.List(ctx, alice.ID, false, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 1)
}

func TestPreferences(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "fan")

	prefs, err := svc.Preferences(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, prefs.LikesEnabled)
	assert.False(t, prefs.EmailDigest)

	on, off := true, false
	prefs, err = svc.UpdatePreferences(ctx, user.ID, PreferencesUpdate{Likes: &off, EmailDigest: &on})
	require.NoError(t, err)
	assert.False(t, prefs.LikesEnabled)
	assert.True(t, prefs.EmailDigest)
	assert.True(t, prefs.CommentsEnabled)

	again, err := svc.Preferences(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, prefs.ID, again.ID)
	assert.False(t, again.LikesEnabled)
}

package chat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/pubsub"
	"github.com/zfogg/paddock/internal/testutil"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
)

type sent struct {
	room    string
	msgType string
	payload interface{}
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	sent []sent
}

func (f *fakeBroadcaster) SendToRoom(roomID, msgType string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{room: roomID, msgType: msgType, payload: payload})
}

func (f *fakeBroadcaster) SendToAll(msgType string, payload interface{}) {
	f.SendToRoom("", msgType, payload)
}

func (f *fakeBroadcaster) ofType(msgType string) []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sent
	for _, s := range f.sent {
		if s.msgType == msgType {
			out = append(out, s)
		}
	}
	return out
}

type ServiceSuite struct {
	suite.Suite
	db     *gorm.DB
	bus    *pubsub.WatermillBus
	svc    *Service
	out    *fakeBroadcaster
	cancel context.CancelFunc

	alice *models.User
	bob   *models.User
	admin *models.User
}

func (s *ServiceSuite) SetupTest() {
	s.db = testutil.NewDB(s.T())
	s.bus = pubsub.NewWatermillBus(64)
	s.out = &fakeBroadcaster{}

	cfg := DefaultConfig()
	cfg.Batcher.FlushInterval = 10 * time.Millisecond
	s.svc = NewService(s.db, nil, s.bus, cfg)
	s.svc.SetBroadcaster(s.out)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.Require().NoError(s.svc.Start(ctx))

	s.alice = testutil.CreateUser(s.T(), s.db, "alice")
	s.bob = testutil.CreateUser(s.T(), s.db, "bob")
	s.admin = testutil.CreateUser(s.T(), s.db, "steward", testutil.Admin)
}

func (s *ServiceSuite) TearDownTest() {
	s.svc.Stop()
	s.cancel()
	_ = s.bus.Close()
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) TestSendPersistsAndBroadcasts() {
	ctx := context.Background()

	m, err := s.svc.Send(ctx, s.alice, "monaco", "  Lights out!  ")
	s.Require().NoError(err)
	s.Equal("Lights out!", m.Body)
	s.Equal("alice", m.Username)

	var row models.ChatMessage
	s.Require().NoError(s.db.First(&row, "id = ?", m.ID).Error)
	s.Equal("monaco", row.RoomID)

	s.Require().Eventually(func() bool {
		return len(s.out.ofType("chat_batch")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	got := s.out.ofType("chat_batch")[0]
	s.Equal("monaco", got.room)
	batch := got.payload.(Batch)
	s.Equal(uint64(1), batch.Seq)
	s.Require().Len(batch.Messages, 1)
	s.Equal(m.ID, batch.Messages[0].ID)

	buf, ok := s.svc.Rooms().Lookup("monaco")
	s.Require().True(ok)
	s.True(buf.Contains(m.ID))
}

func (s *ServiceSuite) TestSendValidation() {
	ctx := context.Background()

	_, err := s.svc.Send(ctx, s.alice, "monaco", "   ")
	s.ErrorIs(err, ErrEmptyMessage)

	_, err = s.svc.Send(ctx, s.alice, "monaco", strings.Repeat("é", MaxMessageLength+1))
	s.ErrorIs(err, ErrTooLong)

	_, err = s.svc.Send(ctx, s.alice, "monaco", strings.Repeat("é", MaxMessageLength))
	s.NoError(err, "limit counts runes, not bytes")

	_, err = s.svc.Send(ctx, s.alice, "Bad Room!", "hi")
	s.ErrorIs(err, ErrInvalidRoom)

	banned := testutil.CreateUser(s.T(), s.db, "troll", testutil.Banned)
	_, err = s.svc.Send(ctx, banned, "monaco", "hi")
	s.ErrorIs(err, ErrBanned)
}

func (s *ServiceSuite) TestSendRateLimited() {
	ctx := context.Background()
	frozen := time.Now()
	s.svc.limiter.now = func() time.Time { return frozen }

	for i := 0; i < DefaultConfig().Burst; i++ {
		_, err := s.svc.Send(ctx, s.bob, "monaco", "go go go")
		s.Require().NoError(err)
	}
	_, err := s.svc.Send(ctx, s.bob, "monaco", "go go go")
	s.ErrorIs(err, ErrRateLimited)

	_, err = s.svc.Send(ctx, s.alice, "monaco", "still fine")
	s.NoError(err)
}

func (s *ServiceSuite) TestDisabledChatRejectsSend() {
	ctx := context.Background()

	enabled, err := s.svc.Enabled(ctx)
	s.Require().NoError(err)
	s.True(enabled, "chat defaults to enabled")

	event, err := s.svc.SetEnabled(ctx, s.admin.ID, false)
	s.Require().NoError(err)
	s.False(event.Enabled)

	_, err = s.svc.Send(ctx, s.alice, "monaco", "hello?")
	s.ErrorIs(err, ErrDisabled)

	s.Require().Eventually(func() bool {
		return len(s.out.ofType("chat_status")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err = s.svc.SetEnabled(ctx, s.admin.ID, true)
	s.Require().NoError(err)
	_, err = s.svc.Send(ctx, s.alice, "monaco", "hello!")
	s.NoError(err)

	var count int64
	s.db.Model(&models.ChatSettings{}).Count(&count)
	s.Equal(int64(1), count)
}

func (s *ServiceSuite) TestDeletePermissions() {
	ctx := context.Background()

	m, err := s.svc.Send(ctx, s.alice, "monaco", "delete me")
	s.Require().NoError(err)

	s.ErrorIs(s.svc.Delete(ctx, s.bob, m.ID), ErrForbidden)
	s.NoError(s.svc.Delete(ctx, s.admin, m.ID))
	s.ErrorIs(s.svc.Delete(ctx, s.alice, m.ID), ErrNotFound)

	own, err := s.svc.Send(ctx, s.alice, "monaco", "mine")
	s.Require().NoError(err)
	s.NoError(s.svc.Delete(ctx, s.alice, own.ID))

	s.Require().Eventually(func() bool {
		buf, ok := s.svc.Rooms().Lookup("monaco")
		return ok && buf.IsDeleted(m.ID) && buf.IsDeleted(own.ID)
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *ServiceSuite) TestHistoryLoadsStoredMessages() {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour).UTC()

	for i, body := range []string{"first", "second", "third"} {
		row := models.ChatMessage{RoomID: "spa", UserID: s.alice.ID, Body: body, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		s.Require().NoError(s.db.Create(&row).Error)
	}
	deletedAt := base
	gone := models.ChatMessage{RoomID: "spa", UserID: s.bob.ID, Body: "gone", CreatedAt: base.Add(30 * time.Second), DeletedAt: &deletedAt}
	s.Require().NoError(s.db.Create(&gone).Error)

	history, err := s.svc.History(ctx, "spa", 2)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal("second", history[0].Body)
	s.Equal("third", history[1].Body)
	s.Equal("alice", history[1].Username)

	all, err := s.svc.History(ctx, "spa", 0)
	s.Require().NoError(err)
	s.Len(all, 3)

	_, err = s.svc.History(ctx, "NOPE NOPE", 10)
	s.ErrorIs(err, ErrInvalidRoom)
}

func (s *ServiceSuite) TestSendAndFlushAreTraced() {
	rec := testutil.RecordSpans()
	ctx := context.Background()

	_, err := s.svc.Send(ctx, s.alice, "suzuka", "Banzai!")
	s.Require().NoError(err)
	_, err = s.svc.Send(ctx, s.alice, "zandvoort", "   ")
	s.Require().ErrorIs(err, ErrEmptyMessage)

	ok := testutil.FindSpan(rec, "chat.send", "chat.room_id", "suzuka")
	s.Require().NotNil(ok)
	s.Equal(codes.Unset, ok.Status().Code)

	failed := testutil.FindSpan(rec, "chat.send", "chat.room_id", "zandvoort")
	s.Require().NotNil(failed)
	s.Equal(codes.Error, failed.Status().Code)

	s.Eventually(func() bool {
		for _, span := range rec.Ended() {
			if span.Name() == "chat.flush" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSmallHistorySizeKeepsFullHistory(t *testing.T) {
	db := testutil.NewDB(t)
	bus := pubsub.NewWatermillBus(8)
	defer func() { _ = bus.Close() }()

	svc := NewService(db, nil, bus, Config{HistorySize: 20})
	alice := testutil.CreateUser(t, db, "alice")

	base := time.Now().Add(-time.Hour).UTC()
	for i := 0; i < 30; i++ {
		row := models.ChatMessage{RoomID: "imola", UserID: alice.ID, Body: "lap", CreatedAt: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, db.Create(&row).Error)
	}

	history, err := svc.History(context.Background(), "imola", MaxHistory)
	require.NoError(t, err)
	assert.Len(t, history, 30)
}

func TestValidRoomID(t *testing.T) {
	for _, id := range []string{"general", "2026-monaco", "race_weekend"} {
		assert.True(t, ValidRoomID(id), id)
	}
	for _, id := range []string{"", "Monaco", "-leading", "has space", strings.Repeat("a", 65)} {
		assert.False(t, ValidRoomID(id), id)
	}
	require.True(t, ValidRoomID(strings.Repeat("a", 64)))
}

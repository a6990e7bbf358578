package polls

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/notifications"
	"github.com/zfogg/paddock/internal/ranking"
	"github.com/zfogg/paddock/internal/testutil"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
)

type PollServiceTestSuite struct {
	suite.Suite
	db     *gorm.DB
	svc    *Service
	ctx    context.Context
	author *models.User
	voter  *models.User
	other  *models.User
	clock  time.Time
}

func (s *PollServiceTestSuite) SetupTest() {
	s.db = testutil.NewDB(s.T())
	s.svc = NewService(s.db, notifications.NewService(s.db, nil), nil)
	s.clock = now
	s.svc.now = func() time.Time { return s.clock }
	s.ctx = context.Background()
	s.author = testutil.CreateUser(s.T(), s.db, "author")
	s.voter = testutil.CreateUser(s.T(), s.db, "voter")
	s.other = testutil.CreateUser(s.T(), s.db, "other")
}

func (s *PollServiceTestSuite) create(multiple bool, closesIn time.Duration) *View {
	in := CreateInput{
		Question:       "Who wins the title?",
		Options:        []string{"Max", "Lando", "Oscar"},
		MultipleChoice: multiple,
	}
	if closesIn > 0 {
		closes := s.clock.Add(closesIn)
		in.ClosesAt = &closes
	}
	v, err := s.svc.Create(s.ctx, s.author, in)
	s.Require().NoError(err)
	return v
}

func optionID(v *View, text string) string {
	for _, o := range v.Options {
		if o.Text == text {
			return o.ID
		}
	}
	return ""
}

func (s *PollServiceTestSuite) TestCreate() {
	v := s.create(false, 0)
	s.Len(v.Options, 3)
	s.Equal(1, v.Options[0].Position)
	s.NotNil(v.Results, "author sees results")

	_, err := s.svc.Create(s.ctx, s.author, CreateInput{Question: "Who wins?", Options: []string{"Max"}})
	var fe *FieldError
	s.ErrorAs(err, &fe)
	s.Equal("options", fe.Field)
}

func (s *PollServiceTestSuite) TestSingleChoiceVoteReplaces() {
	t := s.T()
	v := s.create(false, 0)
	maxOpt, lando := optionID(v, "Max"), optionID(v, "Lando")

	// Non-voters cannot see results while the poll is open
	seen, err := s.svc.Get(s.ctx, s.voter.ID, v.ID)
	require.NoError(t, err)
	assert.Nil(t, seen.Results)

	_, err = s.svc.Vote(s.ctx, s.voter, v.ID, []string{maxOpt, lando})
	assert.Error(t, err)

	voted, err := s.svc.Vote(s.ctx, s.voter, v.ID, []string{maxOpt})
	require.NoError(t, err)
	require.NotNil(t, voted.Results)
	assert.Equal(t, []string{maxOpt}, voted.MyVotes)
	assert.Equal(t, 1, voted.Results.Voters)

	voted, err = s.svc.Vote(s.ctx, s.voter, v.ID, []string{lando})
	require.NoError(t, err)
	assert.Equal(t, []string{lando}, voted.MyVotes)
	assert.Equal(t, 1, voted.VoterCount)
	assert.Equal(t, 1, voted.VoteCount)
	assert.Equal(t, 0, voted.Results.Options[0].Votes)
	assert.Equal(t, 1, voted.Results.Options[1].Votes)
	assert.Equal(t, 100.0, voted.Results.Options[1].Percent)

	_, err = s.svc.Vote(s.ctx, s.other, v.ID, []string{maxOpt})
	require.NoError(t, err)
	final, err := s.svc.Get(s.ctx, s.author.ID, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, final.VoterCount)
	assert.Equal(t, 50.0, final.Results.Options[0].Percent)
}

func (s *PollServiceTestSuite) TestMultipleChoice() {
	t := s.T()
	v := s.create(true, 0)
	maxOpt, lando, oscar := optionID(v, "Max"), optionID(v, "Lando"), optionID(v, "Oscar")

	voted, err := s.svc.Vote(s.ctx, s.voter, v.ID, []string{maxOpt, oscar})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{maxOpt, oscar}, voted.MyVotes)
	assert.Equal(t, 2, voted.VoteCount)
	assert.Equal(t, 1, voted.VoterCount)

	voted, err = s.svc.Vote(s.ctx, s.voter, v.ID, []string{maxOpt, lando, oscar})
	require.NoError(t, err)
	assert.Equal(t, 3, voted.VoteCount)
	assert.Equal(t, 1, voted.VoterCount)
	for _, o := range voted.Results.Options {
		assert.Equal(t, 100.0, o.Percent)
	}

	_, err = s.svc.Vote(s.ctx, s.voter, v.ID, []string{maxOpt, maxOpt})
	assert.Error(t, err)
}

func (s *PollServiceTestSuite) TestRetract() {
	t := s.T()
	v := s.create(false, 0)

	_, err := s.svc.Retract(s.ctx, s.voter.ID, v.ID)
	assert.ErrorIs(t, err, ErrNotVoted)

	_, err = s.svc.Vote(s.ctx, s.voter, v.ID, []string{optionID(v, "Max")})
	require.NoError(t, err)

	after, err := s.svc.Retract(s.ctx, s.voter.ID, v.ID)
	require.NoError(t, err)
	assert.Empty(t, after.MyVotes)
	assert.Nil(t, after.Results)
	assert.Equal(t, 0, after.VoterCount)
	assert.Equal(t, 0, after.VoteCount)
}

func (s *PollServiceTestSuite) TestClosedPollRejectsVotes() {
	t := s.T()
	v := s.create(false, time.Hour)
	maxOpt := optionID(v, "Max")

	s.clock = s.clock.Add(2 * time.Hour)
	_, err := s.svc.Vote(s.ctx, s.voter, v.ID, []string{maxOpt})
	assert.ErrorIs(t, err, ErrClosed)

	// Everyone sees results once closed
	seen, err := s.svc.Get(s.ctx, s.other.ID, v.ID)
	require.NoError(t, err)
	assert.True(t, seen.IsClosed)
	assert.NotNil(t, seen.Results)

	anon, err := s.svc.Get(s.ctx, "", v.ID)
	require.NoError(t, err)
	assert.NotNil(t, anon.Results)
}

func (s *PollServiceTestSuite) TestCloseAndDelete() {
	t := s.T()
	v := s.create(false, 0)

	_, err := s.svc.Close(s.ctx, s.voter, v.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	closed, err := s.svc.Close(s.ctx, s.author, v.ID)
	require.NoError(t, err)
	assert.True(t, closed.IsClosed)

	_, err = s.svc.Close(s.ctx, s.author, v.ID)
	assert.ErrorIs(t, err, ErrAlreadyClosed)

	assert.ErrorIs(t, s.svc.Delete(s.ctx, s.voter, v.ID), ErrForbidden)

	admin := testutil.CreateUser(t, s.db, "steward", testutil.Admin)
	require.NoError(t, s.svc.Delete(s.ctx, admin, v.ID))
	_, err = s.svc.Get(s.ctx, "", v.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func (s *PollServiceTestSuite) TestCloseExpired() {
	t := s.T()
	soon := s.create(false, time.Hour)
	later := s.create(false, 48*time.Hour)
	open := s.create(false, 0)

	s.clock = s.clock.Add(2 * time.Hour)
	n, err := s.svc.CloseExpired(s.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.svc.CloseExpired(s.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var poll models.Poll
	require.NoError(t, s.db.First(&poll, "id = ?", soon.ID).Error)
	assert.NotNil(t, poll.ClosedAt)
	require.NoError(t, s.db.First(&poll, "id = ?", later.ID).Error)
	assert.Nil(t, poll.ClosedAt)
	require.NoError(t, s.db.First(&poll, "id = ?", open.ID).Error)
	assert.Nil(t, poll.ClosedAt)

	var notes []models.Notification
	require.NoError(t, s.db.Where("recipient_id = ? AND kind = ?", s.author.ID, models.NotifyPollClosed).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, soon.ID, notes[0].TargetID)
}

func (s *PollServiceTestSuite) TestList() {
	t := s.T()
	first := s.create(false, time.Hour)
	s.clock = s.clock.Add(time.Minute)
	second := s.create(false, 0)
	_, err := s.svc.Vote(s.ctx, s.voter, first.ID, []string{optionID(first, "Max")})
	require.NoError(t, err)

	views, total, err := s.svc.List(s.ctx, s.voter.ID, ListOptions{Sort: ranking.ModeNew, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, views, 2)
	assert.Equal(t, second.ID, views[0].ID)
	assert.NotNil(t, views[1].Results)
	assert.Nil(t, views[0].Results)

	top, _, err := s.svc.List(s.ctx, "", ListOptions{Sort: ranking.ModeTop, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, first.ID, top[0].ID)

	s.clock = s.clock.Add(2 * time.Hour)
	open, total, err := s.svc.List(s.ctx, "", ListOptions{Status: StatusOpen, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, second.ID, open[0].ID)

	closed, _, err := s.svc.List(s.ctx, "", ListOptions{Status: StatusClosed, Limit: 10})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, first.ID, closed[0].ID)

	hot, _, err := s.svc.List(s.ctx, "", ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, hot, 1)
}

func (s *PollServiceTestSuite) TestVoteIsTraced() {
	rec := testutil.RecordSpans()
	open := s.create(false, 0)
	_, err := s.svc.Vote(s.ctx, s.voter, open.ID, []string{optionID(open, "Oscar")})
	s.Require().NoError(err)

	span := testutil.FindSpan(rec, "poll.vote", "poll.id", open.ID)
	s.Require().NotNil(span)
	s.Equal(codes.Unset, span.Status().Code)

	closing := s.create(false, time.Hour)
	s.clock = s.clock.Add(2 * time.Hour)
	_, err = s.svc.Vote(s.ctx, s.voter, closing.ID, []string{optionID(closing, "Max")})
	s.Require().ErrorIs(err, ErrClosed)

	span = testutil.FindSpan(rec, "poll.vote", "poll.id", closing.ID)
	s.Require().NotNil(span)
	s.Equal(codes.Error, span.Status().Code)
}

func TestPollServiceSuite(t *testing.T) {
	suite.Run(t, new(PollServiceTestSuite))
}

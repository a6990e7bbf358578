package polls

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/metrics"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/notifications"
	"github.com/zfogg/paddock/internal/ranking"
	"github.com/zfogg/paddock/internal/search"
	"github.com/zfogg/paddock/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("poll not found")
	ErrClosed        = errors.New("poll is closed")
	ErrForbidden     = errors.New("not allowed to change this poll")
	ErrNotVoted      = errors.New("no vote to retract")
	ErrAlreadyClosed = errors.New("poll is already closed")
)

// Status filters listings
type Status string

const (
	StatusAll    Status = ""
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// hotCandidates caps rows ranked in memory for hot listings
const hotCandidates = 500

// View is a poll as seen by one viewer. Results is nil when the viewer may
// not see them yet.
type View struct {
	*models.Poll
	IsClosed bool     `json:"is_closed"`
	MyVotes  []string `json:"my_votes"`
	Results  *Results `json:"results,omitempty"`
}

// ListOptions filters and orders List
type ListOptions struct {
	Status Status
	Sort   ranking.Mode
	UserID string
	Limit  int
	Offset int
}

// Service owns poll storage and voting
type Service struct {
	db       *gorm.DB
	notifier *notifications.Service
	search   *search.Service
	weights  ranking.Weights
	now      func() time.Time
}

// NewService creates a poll service. notifier and search may be nil.
func NewService(db *gorm.DB, notifier *notifications.Service, searchSvc *search.Service) *Service {
	return &Service{
		db:       db,
		notifier: notifier,
		search:   searchSvc,
		weights:  ranking.DefaultWeights(),
		now:      time.Now,
	}
}

// Create validates in and stores a poll by author
func (s *Service) Create(ctx context.Context, author *models.User, in CreateInput) (*View, error) {
	clean, err := Normalize(in, s.now().UTC())
	if err != nil {
		return nil, err
	}

	poll := models.Poll{
		UserID:         author.ID,
		Question:       clean.Question,
		Description:    clean.Description,
		MultipleChoice: clean.MultipleChoice,
		Tags:           pq.StringArray(clean.Tags),
		ClosesAt:       clean.ClosesAt,
		CreatedAt:      s.now().UTC(),
	}
	for i, text := range clean.Options {
		poll.Options = append(poll.Options, models.PollOption{Text: text, Position: i + 1})
	}

	if err := s.db.WithContext(ctx).Create(&poll).Error; err != nil {
		return nil, err
	}
	poll.User = *author

	logger.Log.Info("Poll created",
		logger.WithUserID(author.ID),
		logger.WithTarget(string(models.TargetPoll), poll.ID),
		zap.Int("options", len(poll.Options)))
	s.search.IndexPoll(&poll)

	return s.view(&poll, author.ID, nil), nil
}

// Get loads a poll for viewerID (which may be empty)
func (s *Service) Get(ctx context.Context, viewerID, pollID string) (*View, error) {
	poll, err := s.load(s.db.WithContext(ctx), pollID)
	if err != nil {
		return nil, err
	}
	votes, err := s.votesBy(ctx, viewerID, []string{poll.ID})
	if err != nil {
		return nil, err
	}
	return s.view(poll, viewerID, votes[poll.ID]), nil
}

// List returns polls matching opts and the total match count
func (s *Service) List(ctx context.Context, viewerID string, opts ListOptions) ([]*View, int64, error) {
	now := s.now().UTC()
	db := s.db.WithContext(ctx)
	banned := db.Model(&models.User{}).Select("id").Where("is_banned = ?", true)

	q := db.Model(&models.Poll{}).Where("user_id NOT IN (?)", banned)
	switch opts.Status {
	case StatusOpen:
		q = q.Where("closed_at IS NULL AND (closes_at IS NULL OR closes_at > ?)", now)
	case StatusClosed:
		q = q.Where("closed_at IS NOT NULL OR closes_at <= ?", now)
	}
	if opts.UserID != "" {
		q = q.Where("user_id = ?", opts.UserID)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = q.Preload("User").Preload("Options", orderOptions)

	var polls []models.Poll
	switch ranking.ParseMode(string(opts.Sort)) {
	case ranking.ModeNew:
		q = q.Order("created_at DESC, id ASC").Limit(opts.Limit).Offset(opts.Offset)
	case ranking.ModeOld:
		q = q.Order("created_at ASC, id ASC").Limit(opts.Limit).Offset(opts.Offset)
	case ranking.ModeTop:
		q = q.Order("vote_count DESC, created_at DESC, id ASC").Limit(opts.Limit).Offset(opts.Offset)
	default:
		q = q.Order("created_at DESC").Limit(hotCandidates)
	}
	if err := q.Find(&polls).Error; err != nil {
		return nil, 0, err
	}

	if ranking.ParseMode(string(opts.Sort)) == ranking.ModeHot {
		ranking.Sort(polls, ranking.ModeHot, now, s.weights)
		polls = page(polls, opts.Limit, opts.Offset)
	}

	ids := make([]string, len(polls))
	for i := range polls {
		ids[i] = polls[i].ID
	}
	votes, err := s.votesBy(ctx, viewerID, ids)
	if err != nil {
		return nil, 0, err
	}

	views := make([]*View, 0, len(polls))
	for i := range polls {
		views = append(views, s.view(&polls[i], viewerID, votes[polls[i].ID]))
	}
	return views, total, nil
}

// Vote records voter's selection, replacing any previous vote
func (s *Service) Vote(ctx context.Context, voter *models.User, pollID string, optionIDs []string) (*View, error) {
	ctx, span := telemetry.GetBusinessEvents().TracePollVote(ctx, pollID, len(optionIDs))
	view, err := s.vote(ctx, voter, pollID, optionIDs)
	telemetry.EndSpan(span, err)
	return view, err
}

func (s *Service) vote(ctx context.Context, voter *models.User, pollID string, optionIDs []string) (*View, error) {
	var poll *models.Poll
	var chosen []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		poll, err = s.load(tx, pollID)
		if err != nil {
			return err
		}
		if poll.IsClosed(s.now()) {
			return ErrClosed
		}

		valid := make(map[string]bool, len(poll.Options))
		for _, o := range poll.Options {
			valid[o.ID] = true
		}
		chosen, err = CheckSelection(optionIDs, valid, poll.MultipleChoice)
		if err != nil {
			return err
		}

		previous, err := removeVotes(tx, poll.ID, voter.ID)
		if err != nil {
			return err
		}
		for _, optID := range chosen {
			if err := tx.Create(&models.PollVote{PollID: poll.ID, OptionID: optID, UserID: voter.ID}).Error; err != nil {
				return err
			}
			if err := bump(tx, &models.PollOption{}, optID, 1); err != nil {
				return err
			}
		}

		voterDelta := 0
		if len(previous) == 0 {
			voterDelta = 1
		}
		return tx.Model(&models.Poll{}).Where("id = ?", poll.ID).Updates(map[string]interface{}{
			"vote_count":  gorm.Expr("vote_count + ?", len(chosen)-len(previous)),
			"voter_count": gorm.Expr("voter_count + ?", voterDelta),
		}).Error
	})
	if err != nil {
		return nil, err
	}

	metrics.Get().PollVotesTotal.Inc()
	logger.Log.Debug("Poll vote recorded", logger.WithUserID(voter.ID), logger.WithTarget(string(models.TargetPoll), pollID))
	return s.Get(ctx, voter.ID, pollID)
}

// Retract removes voterID's vote from an open poll
func (s *Service) Retract(ctx context.Context, voterID, pollID string) (*View, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		poll, err := s.load(tx, pollID)
		if err != nil {
			return err
		}
		if poll.IsClosed(s.now()) {
			return ErrClosed
		}

		previous, err := removeVotes(tx, poll.ID, voterID)
		if err != nil {
			return err
		}
		if len(previous) == 0 {
			return ErrNotVoted
		}
		return tx.Model(&models.Poll{}).Where("id = ?", poll.ID).Updates(map[string]interface{}{
			"vote_count":  gorm.Expr("vote_count - ?", len(previous)),
			"voter_count": gorm.Expr("voter_count - 1"),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, voterID, pollID)
}

// Close ends voting now. Only the author or an admin may close.
func (s *Service) Close(ctx context.Context, actor *models.User, pollID string) (*View, error) {
	poll, err := s.load(s.db.WithContext(ctx), pollID)
	if err != nil {
		return nil, err
	}
	if poll.UserID != actor.ID && !actor.IsAdmin {
		return nil, ErrForbidden
	}
	if poll.ClosedAt != nil {
		return nil, ErrAlreadyClosed
	}

	closed, err := s.markClosed(ctx, poll)
	if err != nil {
		return nil, err
	}
	if closed {
		s.notifyClosed(ctx, poll, actor.ID)
	}
	return s.Get(ctx, actor.ID, pollID)
}

// Delete soft-deletes a poll. Only the author or an admin may delete.
func (s *Service) Delete(ctx context.Context, actor *models.User, pollID string) error {
	poll, err := s.load(s.db.WithContext(ctx), pollID)
	if err != nil {
		return err
	}
	if poll.UserID != actor.ID && !actor.IsAdmin {
		return ErrForbidden
	}
	if err := s.db.WithContext(ctx).Delete(&models.Poll{}, "id = ?", poll.ID).Error; err != nil {
		return err
	}
	logger.Log.Info("Poll deleted", logger.WithUserID(actor.ID), logger.WithTarget(string(models.TargetPoll), poll.ID))
	s.search.Remove(search.KindPolls, poll.ID)
	return nil
}

// CloseExpired closes every poll past its closes_at and notifies authors.
// It returns how many polls it closed.
func (s *Service) CloseExpired(ctx context.Context) (int, error) {
	var due []models.Poll
	err := s.db.WithContext(ctx).
		Preload("Options", orderOptions).
		Where("closed_at IS NULL AND closes_at IS NOT NULL AND closes_at <= ?", s.now().UTC()).
		Find(&due).Error
	if err != nil {
		return 0, err
	}

	closed := 0
	for i := range due {
		ok, err := s.markClosed(ctx, &due[i])
		if err != nil {
			return closed, err
		}
		if ok {
			closed++
			s.notifyClosed(ctx, &due[i], "")
		}
	}
	return closed, nil
}

// markClosed sets closed_at unless another closer got there first
func (s *Service) markClosed(ctx context.Context, poll *models.Poll) (bool, error) {
	now := s.now().UTC()
	res := s.db.WithContext(ctx).Model(&models.Poll{}).
		Where("id = ? AND closed_at IS NULL", poll.ID).
		Update("closed_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	poll.ClosedAt = &now
	s.search.IndexPoll(poll)
	return true, nil
}

func (s *Service) notifyClosed(ctx context.Context, poll *models.Poll, actorID string) {
	s.notifier.NotifyAsync(ctx, notifications.Event{
		Kind:        models.NotifyPollClosed,
		RecipientID: poll.UserID,
		ActorID:     actorID,
		TargetType:  models.TargetPoll,
		TargetID:    poll.ID,
		Preview:     poll.Question,
	})
}

func (s *Service) load(db *gorm.DB, pollID string) (*models.Poll, error) {
	var poll models.Poll
	err := db.Preload("User").Preload("Options", orderOptions).First(&poll, "id = ?", pollID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &poll, nil
}

// votesBy maps poll ID to the option IDs viewerID chose
func (s *Service) votesBy(ctx context.Context, viewerID string, pollIDs []string) (map[string][]string, error) {
	out := make(map[string][]string)
	if viewerID == "" || len(pollIDs) == 0 {
		return out, nil
	}
	var votes []models.PollVote
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND poll_id IN ?", viewerID, pollIDs).
		Find(&votes).Error; err != nil {
		return nil, err
	}
	for _, v := range votes {
		out[v.PollID] = append(out[v.PollID], v.OptionID)
	}
	return out, nil
}

func (s *Service) view(poll *models.Poll, viewerID string, myVotes []string) *View {
	closed := poll.IsClosed(s.now())
	if myVotes == nil {
		myVotes = []string{}
	}
	v := &View{Poll: poll, IsClosed: closed, MyVotes: myVotes}
	if ResultsVisible(closed, viewerID != "" && viewerID == poll.UserID, len(myVotes) > 0) {
		v.Results = Tally(poll.Options, poll.VoterCount)
	}
	return v
}

// removeVotes deletes userID's votes on pollID and decrements the option
// counters, returning the removed option IDs
func removeVotes(tx *gorm.DB, pollID, userID string) ([]string, error) {
	var previous []models.PollVote
	if err := tx.Where("poll_id = ? AND user_id = ?", pollID, userID).Find(&previous).Error; err != nil {
		return nil, err
	}
	if len(previous) == 0 {
		return nil, nil
	}
	if err := tx.Where("poll_id = ? AND user_id = ?", pollID, userID).Delete(&models.PollVote{}).Error; err != nil {
		return nil, err
	}
	ids := make([]string, len(previous))
	for i, v := range previous {
		ids[i] = v.OptionID
		if err := bump(tx, &models.PollOption{}, v.OptionID, -1); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func bump(tx *gorm.DB, model interface{}, id string, delta int) error {
	return tx.Model(model).Where("id = ?", id).UpdateColumn("vote_count", gorm.Expr("vote_count + ?", delta)).Error
}

func orderOptions(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

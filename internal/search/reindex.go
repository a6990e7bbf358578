package search

import (
	"context"
	"errors"
	"time"

	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const reindexBatch = 200

// ReindexStats counts documents written per index
type ReindexStats struct {
	Users int
	Polls int
	Grids int
}

// Reindex creates missing indices and rewrites every document from the
// database. Banned users are removed rather than indexed.
func (s *Service) Reindex(ctx context.Context) (*ReindexStats, error) {
	if s.es == nil {
		return nil, errors.New("elasticsearch is not configured")
	}
	if err := s.es.InitializeIndices(ctx); err != nil {
		return nil, err
	}

	stats := &ReindexStats{}
	now := time.Now()

	var users []models.User
	err := s.db.WithContext(ctx).FindInBatches(&users, reindexBatch, func(tx *gorm.DB, batch int) error {
		for i := range users {
			u := &users[i]
			if u.IsBanned {
				_ = s.es.Delete(ctx, IndexUsers, u.ID)
				continue
			}
			if err := s.es.Index(ctx, IndexUsers, u.ID, UserToDocument(u)); err != nil {
				return err
			}
			stats.Users++
		}
		return nil
	}).Error
	if err != nil {
		return stats, err
	}

	var polls []models.Poll
	err = s.db.WithContext(ctx).Preload("Options", orderOptions).FindInBatches(&polls, reindexBatch, func(tx *gorm.DB, batch int) error {
		for i := range polls {
			if err := s.es.Index(ctx, IndexPolls, polls[i].ID, PollToDocument(&polls[i], now)); err != nil {
				return err
			}
			stats.Polls++
		}
		return nil
	}).Error
	if err != nil {
		return stats, err
	}

	var grids []models.Grid
	err = s.db.WithContext(ctx).FindInBatches(&grids, reindexBatch, func(tx *gorm.DB, batch int) error {
		for i := range grids {
			if err := s.es.Index(ctx, IndexGrids, grids[i].ID, GridToDocument(&grids[i])); err != nil {
				return err
			}
			stats.Grids++
		}
		return nil
	}).Error

	logger.Log.Info("Search reindex finished",
		zap.Int("users", stats.Users),
		zap.Int("polls", stats.Polls),
		zap.Int("grids", stats.Grids))
	return stats, err
}

package grids

import (
	"context"
	"errors"
	"time"

	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/search"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("grid not found")
	ErrForbidden = errors.New("not allowed to change this grid")
)

// ListOptions filters List
type ListOptions struct {
	Kind   models.GridKind
	Season int
	UserID string
	Limit  int
	Offset int
}

// ConsensusResult is the community ranking for a kind and season
type ConsensusResult struct {
	Kind      models.GridKind `json:"kind"`
	Season    int             `json:"season"`
	GridCount int             `json:"grid_count"`
	Standings []Standing      `json:"standings"`
}

// Service stores grids
type Service struct {
	db     *gorm.DB
	search *search.Service
	now    func() time.Time
}

// NewService creates a grid service. searchSvc may be nil.
func NewService(db *gorm.DB, searchSvc *search.Service) *Service {
	return &Service{db: db, search: searchSvc, now: time.Now}
}

// maxSeason allows next season's predictions
func (s *Service) maxSeason() int {
	return s.now().Year() + 1
}

// Create stores a grid ranked in the order of in.Entries
func (s *Service) Create(ctx context.Context, author *models.User, in Input) (*models.Grid, error) {
	clean, err := Normalize(in, s.maxSeason())
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	if err := checkSubjects(db, clean.Kind, clean.Entries); err != nil {
		return nil, err
	}

	grid := models.Grid{
		UserID:    author.ID,
		Title:     clean.Title,
		Kind:      clean.Kind,
		Season:    clean.Season,
		Entries:   entries(clean.Entries),
		CreatedAt: s.now().UTC(),
	}
	if err := db.Create(&grid).Error; err != nil {
		return nil, err
	}
	grid.User = *author

	logger.Log.Info("Grid created",
		logger.WithUserID(author.ID),
		logger.WithTarget(string(models.TargetGrid), grid.ID),
		zap.String("kind", string(grid.Kind)),
		zap.Int("entries", len(grid.Entries)))
	s.search.IndexGrid(&grid)
	return &grid, nil
}

// Update replaces a grid's title and entries. Only the author may update.
func (s *Service) Update(ctx context.Context, actor *models.User, gridID string, in Input) (*models.Grid, error) {
	clean, err := Normalize(in, s.maxSeason())
	if err != nil {
		return nil, err
	}

	var grid *models.Grid
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		grid, err = load(tx, gridID)
		if err != nil {
			return err
		}
		if grid.UserID != actor.ID {
			return ErrForbidden
		}
		if err := checkSubjects(tx, clean.Kind, clean.Entries); err != nil {
			return err
		}

		if err := tx.Where("grid_id = ?", grid.ID).Delete(&models.GridEntry{}).Error; err != nil {
			return err
		}
		fresh := entries(clean.Entries)
		for i := range fresh {
			fresh[i].GridID = grid.ID
		}
		if err := tx.Create(&fresh).Error; err != nil {
			return err
		}
		if err := tx.Model(grid).Updates(map[string]interface{}{
			"title":  clean.Title,
			"kind":   clean.Kind,
			"season": clean.Season,
		}).Error; err != nil {
			return err
		}
		grid.Title, grid.Kind, grid.Season, grid.Entries = clean.Title, clean.Kind, clean.Season, fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.search.IndexGrid(grid)
	return grid, nil
}

// Delete soft-deletes a grid. The author or an admin may delete.
func (s *Service) Delete(ctx context.Context, actor *models.User, gridID string) error {
	grid, err := load(s.db.WithContext(ctx), gridID)
	if err != nil {
		return err
	}
	if grid.UserID != actor.ID && !actor.IsAdmin {
		return ErrForbidden
	}
	if err := s.db.WithContext(ctx).Delete(&models.Grid{}, "id = ?", grid.ID).Error; err != nil {
		return err
	}
	s.search.Remove(search.KindGrids, grid.ID)
	return nil
}

// Get loads a grid with its entries in rank order
func (s *Service) Get(ctx context.Context, gridID string) (*models.Grid, error) {
	return load(s.db.WithContext(ctx), gridID)
}

// List returns grids newest first and the total match count
func (s *Service) List(ctx context.Context, opts ListOptions) ([]models.Grid, int64, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}
	db := s.db.WithContext(ctx)
	banned := db.Model(&models.User{}).Select("id").Where("is_banned = ?", true)
	q := db.Model(&models.Grid{}).Where("user_id NOT IN (?)", banned)
	if opts.Kind != "" {
		q = q.Where("kind = ?", opts.Kind)
	}
	if opts.Season != 0 {
		q = q.Where("season = ?", opts.Season)
	}
	if opts.UserID != "" {
		q = q.Where("user_id = ?", opts.UserID)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var grids []models.Grid
	err := q.Preload("User").
		Preload("Entries", orderEntries).
		Order("created_at DESC, id ASC").
		Limit(opts.Limit).
		Offset(opts.Offset).
		Find(&grids).Error
	return grids, total, err
}

// Consensus folds every visible grid of kind and season into one ranking
func (s *Service) Consensus(ctx context.Context, kind models.GridKind, season int) (*ConsensusResult, error) {
	if !kind.Valid() {
		return nil, fieldErr("kind", "must be drivers or teams")
	}
	db := s.db.WithContext(ctx)
	banned := db.Model(&models.User{}).Select("id").Where("is_banned = ?", true)

	var grids []models.Grid
	err := db.Preload("Entries", orderEntries).
		Where("kind = ? AND season = ? AND user_id NOT IN (?)", kind, season, banned).
		Find(&grids).Error
	if err != nil {
		return nil, err
	}

	rankings := make([][]string, 0, len(grids))
	for _, g := range grids {
		list := make([]string, len(g.Entries))
		for i, e := range g.Entries {
			list[i] = e.SubjectID
		}
		rankings = append(rankings, list)
	}

	standings := Consensus(rankings)
	names, err := subjectNames(db, kind, standings)
	if err != nil {
		logger.Log.Warn("Failed to load consensus names", zap.Error(err))
	}
	for i := range standings {
		standings[i].Name = names[standings[i].SubjectID]
	}

	return &ConsensusResult{Kind: kind, Season: season, GridCount: len(grids), Standings: standings}, nil
}

// checkSubjects verifies every ID exists as a driver or team
func checkSubjects(db *gorm.DB, kind models.GridKind, ids []string) error {
	var model interface{} = &models.Driver{}
	if kind == models.GridTeams {
		model = &models.Team{}
	}
	var found []string
	if err := db.Model(model).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return err
	}
	if len(found) == len(ids) {
		return nil
	}
	have := make(map[string]bool, len(found))
	for _, id := range found {
		have[id] = true
	}
	for _, id := range ids {
		if !have[id] {
			return fieldErr("entries", "unknown %s %s", kind, id)
		}
	}
	return nil
}

func subjectNames(db *gorm.DB, kind models.GridKind, standings []Standing) (map[string]string, error) {
	names := make(map[string]string, len(standings))
	if len(standings) == 0 {
		return names, nil
	}
	ids := make([]string, len(standings))
	for i, st := range standings {
		ids[i] = st.SubjectID
	}

	if kind == models.GridTeams {
		var teams []models.Team
		if err := db.Where("id IN ?", ids).Find(&teams).Error; err != nil {
			return names, err
		}
		for _, t := range teams {
			names[t.ID] = t.Name
		}
		return names, nil
	}

	var drivers []models.Driver
	if err := db.Where("id IN ?", ids).Find(&drivers).Error; err != nil {
		return names, err
	}
	for _, d := range drivers {
		names[d.ID] = d.FullName()
	}
	return names, nil
}

func entries(ids []string) []models.GridEntry {
	out := make([]models.GridEntry, len(ids))
	for i, id := range ids {
		out[i] = models.GridEntry{SubjectID: id, Position: i + 1}
	}
	return out
}

func load(db *gorm.DB, gridID string) (*models.Grid, error) {
	var grid models.Grid
	err := db.Preload("User").Preload("Entries", orderEntries).First(&grid, "id = ?", gridID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &grid, nil
}

func orderEntries(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

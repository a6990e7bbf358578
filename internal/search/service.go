package search

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/zfogg/paddock/internal/cache"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/metrics"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Kind is what a search looks for
type Kind string

const (
	KindUsers Kind = "users"
	KindPolls Kind = "polls"
	KindGrids Kind = "grids"
)

const (
	backendElasticsearch = "elasticsearch"
	backendDatabase      = "database"

	// MaxQueryLength bounds q; longer input is truncated
	MaxQueryLength = 100
	resultTTL      = 2 * time.Minute
	indexTimeout   = 5 * time.Second
)

var ErrUnknownKind = errors.New("type must be users, polls or grids")

// ParseKind defaults to users
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindUsers:
		return KindUsers, nil
	case KindPolls, KindGrids:
		return Kind(s), nil
	}
	return "", ErrUnknownKind
}

// Results is the search response; only the slice for Type is set
type Results struct {
	Type    Kind                `json:"type"`
	Query   string              `json:"query"`
	Backend string              `json:"backend"`
	Total   int                 `json:"total"`
	Users   []models.PublicUser `json:"users,omitempty"`
	Polls   []models.Poll       `json:"polls,omitempty"`
	Grids   []models.Grid       `json:"grids,omitempty"`
}

// Service answers searches from Elasticsearch when configured, otherwise
// from the database
type Service struct {
	db     *gorm.DB
	es     *Client
	cache  *cache.RedisClient
	wg     sync.WaitGroup
	closed chan struct{}
	once   sync.Once
}

// NewService wires a search service. es and redis may both be nil.
func NewService(db *gorm.DB, es *Client, redis *cache.RedisClient) *Service {
	return &Service{db: db, es: es, cache: redis, closed: make(chan struct{})}
}

// Backend names the store queries go to
func (s *Service) Backend() string {
	if s.es != nil {
		return backendElasticsearch
	}
	return backendDatabase
}

// Search runs q against kind. Elasticsearch failures fall back to the
// database so search keeps working while the cluster is down.
func (s *Service) Search(ctx context.Context, q string, kind Kind, limit, offset int) (*Results, error) {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) > MaxQueryLength {
		q = string([]rune(q)[:MaxQueryLength])
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	res := &Results{Type: kind, Query: q}
	if q == "" {
		res.Backend = s.Backend()
		return res, nil
	}

	key := s.cacheKey(q, kind, limit, offset)
	if err := s.cache.GetJSON(ctx, "search", key, res); err == nil {
		return res, nil
	}

	var err error
	if s.es != nil {
		err = s.searchElasticsearch(ctx, res, limit, offset)
		if err != nil {
			metrics.SearchErrorsTotal.WithLabelValues(backendElasticsearch, string(kind)).Inc()
			logger.Log.Warn("Elasticsearch query failed, using database", zap.Error(err))
		}
	}
	if s.es == nil || err != nil {
		if err = s.searchDatabase(ctx, res, limit, offset); err != nil {
			metrics.SearchErrorsTotal.WithLabelValues(backendDatabase, string(kind)).Inc()
			return nil, err
		}
	}

	if err := s.cache.SetJSON(ctx, key, res, resultTTL); err != nil {
		logger.Log.Debug("Failed to cache search results", zap.Error(err))
	}
	return res, nil
}

func (s *Service) searchElasticsearch(ctx context.Context, res *Results, limit, offset int) error {
	ctx, span := telemetry.GetBusinessEvents().TraceSearch(ctx, string(res.Type), backendElasticsearch)
	start := time.Now()

	var (
		index   string
		fields  []string
		filters []map[string]interface{}
	)
	switch res.Type {
	case KindUsers:
		index, fields = IndexUsers, []string{"username^3", "display_name^2", "bio"}
	case KindPolls:
		index, fields = IndexPolls, []string{"question^3", "options^2", "description", "tags"}
	case KindGrids:
		index, fields = IndexGrids, []string{"title^2", "kind"}
	}

	hits, total, err := s.es.Query(ctx, index, res.Query, fields, filters, limit, offset)
	if err != nil {
		telemetry.EndSpan(span, err)
		return err
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	err = s.hydrate(ctx, res, ids)
	res.Backend = backendElasticsearch
	res.Total = total

	metrics.SearchQueriesTotal.WithLabelValues(backendElasticsearch, string(res.Type)).Inc()
	metrics.SearchQueryDuration.WithLabelValues(backendElasticsearch, string(res.Type)).Observe(time.Since(start).Seconds())
	telemetry.EndSpan(span, err)
	return err
}

// hydrate loads rows for ids from the database, keeping hit order and
// dropping anything deleted or banned since it was indexed
func (s *Service) hydrate(ctx context.Context, res *Results, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	order := make(map[string]int, len(ids))
	for i, id := range ids {
		order[id] = i
	}
	db := s.db.WithContext(ctx)

	switch res.Type {
	case KindUsers:
		var users []models.User
		if err := db.Where("id IN ? AND is_banned = ?", ids, false).Find(&users).Error; err != nil {
			return err
		}
		res.Users = make([]models.PublicUser, len(users))
		sortByOrder(users, order, func(u models.User) string { return u.ID })
		for i := range users {
			res.Users[i] = users[i].Public()
		}
	case KindPolls:
		var polls []models.Poll
		if err := db.Preload("Options", orderOptions).Preload("User").Where("id IN ?", ids).Find(&polls).Error; err != nil {
			return err
		}
		sortByOrder(polls, order, func(p models.Poll) string { return p.ID })
		res.Polls = polls
	case KindGrids:
		var grids []models.Grid
		if err := db.Preload("User").Where("id IN ?", ids).Find(&grids).Error; err != nil {
			return err
		}
		sortByOrder(grids, order, func(g models.Grid) string { return g.ID })
		res.Grids = grids
	}
	return nil
}

func (s *Service) searchDatabase(ctx context.Context, res *Results, limit, offset int) error {
	ctx, span := telemetry.GetBusinessEvents().TraceSearch(ctx, string(res.Type), backendDatabase)
	start := time.Now()

	pattern := "%" + escapeLike(strings.ToLower(res.Query)) + "%"
	db := s.db.WithContext(ctx)
	var (
		total int64
		err   error
	)

	switch res.Type {
	case KindUsers:
		var users []models.User
		q := db.Model(&models.User{}).
			Where("is_banned = ?", false).
			Where("LOWER(username) LIKE ? ESCAPE '\\' OR LOWER(display_name) LIKE ? ESCAPE '\\'", pattern, pattern).
			Session(&gorm.Session{})
		if err = q.Count(&total).Error; err == nil {
			err = q.Order("follower_count DESC, username ASC").Limit(limit).Offset(offset).Find(&users).Error
		}
		res.Users = make([]models.PublicUser, len(users))
		for i := range users {
			res.Users[i] = users[i].Public()
		}
	case KindPolls:
		var polls []models.Poll
		q := db.Model(&models.Poll{}).
			Where("LOWER(question) LIKE ? ESCAPE '\\' OR LOWER(description) LIKE ? ESCAPE '\\'", pattern, pattern).
			Session(&gorm.Session{})
		if err = q.Count(&total).Error; err == nil {
			err = q.Preload("Options", orderOptions).Preload("User").
				Order("vote_count DESC, created_at DESC").Limit(limit).Offset(offset).Find(&polls).Error
		}
		res.Polls = polls
	case KindGrids:
		var grids []models.Grid
		q := db.Model(&models.Grid{}).Where("LOWER(title) LIKE ? ESCAPE '\\'", pattern).Session(&gorm.Session{})
		if err = q.Count(&total).Error; err == nil {
			err = q.Preload("User").Order("like_count DESC, created_at DESC").Limit(limit).Offset(offset).Find(&grids).Error
		}
		res.Grids = grids
	default:
		err = ErrUnknownKind
	}

	res.Backend = backendDatabase
	res.Total = int(total)

	metrics.SearchQueriesTotal.WithLabelValues(backendDatabase, string(res.Type)).Inc()
	metrics.SearchQueryDuration.WithLabelValues(backendDatabase, string(res.Type)).Observe(time.Since(start).Seconds())
	telemetry.EndSpan(span, err)
	return err
}

// IndexUser queues u for indexing. It is a no-op without Elasticsearch.
func (s *Service) IndexUser(u *models.User) {
	doc := UserToDocument(u)
	s.async(IndexUsers, "index", func(ctx context.Context) error {
		return s.es.Index(ctx, IndexUsers, doc.ID, doc)
	})
}

// IndexPoll queues p for indexing; p.Options must be loaded
func (s *Service) IndexPoll(p *models.Poll) {
	doc := PollToDocument(p, time.Now())
	s.async(IndexPolls, "index", func(ctx context.Context) error {
		return s.es.Index(ctx, IndexPolls, doc.ID, doc)
	})
}

// IndexGrid queues g for indexing
func (s *Service) IndexGrid(g *models.Grid) {
	doc := GridToDocument(g)
	s.async(IndexGrids, "index", func(ctx context.Context) error {
		return s.es.Index(ctx, IndexGrids, doc.ID, doc)
	})
}

// Remove queues a delete of id from the index holding kind
func (s *Service) Remove(kind Kind, id string) {
	index := indexFor(kind)
	s.async(index, "delete", func(ctx context.Context) error {
		return s.es.Delete(ctx, index, id)
	})
}

func (s *Service) async(index, op string, fn func(ctx context.Context) error) {
	if s == nil || s.es == nil {
		return
	}
	select {
	case <-s.closed:
		return
	default:
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			logger.Log.Warn("Search index update failed",
				zap.String("index", index),
				zap.String("operation", op),
				zap.Error(err))
		}
	}()
}

// Close stops accepting index work and waits for in-flight updates
func (s *Service) Close() {
	s.once.Do(func() { close(s.closed) })
	s.wg.Wait()
}

func (s *Service) cacheKey(q string, kind Kind, limit, offset int) string {
	data, _ := json.Marshal([]interface{}{s.Backend(), strings.ToLower(q), kind, limit, offset})
	return fmt.Sprintf("paddock:search:%x", md5.Sum(data))
}

func indexFor(kind Kind) string {
	switch kind {
	case KindPolls:
		return IndexPolls
	case KindGrids:
		return IndexGrids
	}
	return IndexUsers
}

func orderOptions(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func sortByOrder[T any](items []T, order map[string]int, id func(T) string) {
	sort.SliceStable(items, func(a, b int) bool {
		return order[id(items[a])] < order[id(items[b])]
	})
}

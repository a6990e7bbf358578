package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/zfogg/paddock/internal/grids"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/polls"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DevPassword is the password of every seeded account
const DevPassword = "paddock-dev-1"

// seedEmailDomain marks accounts the seeder created
const seedEmailDomain = "@paddock.example.com"

// Seeder fills a database with reference data and fake fans
type Seeder struct {
	db    *gorm.DB
	polls *polls.Service
	grids *grids.Service
	rng   *rand.Rand
	now   func() time.Time
}

// ReferenceStats counts rows written by SeedReference
type ReferenceStats struct {
	Teams   int `json:"teams"`
	Drivers int `json:"drivers"`
	Tracks  int `json:"tracks"`
}

// NewSeeder creates a seeder. Polls and grids go through their services
// so seeded content passes the same validation as user content.
func NewSeeder(db *gorm.DB, pollSvc *polls.Service, gridSvc *grids.Service) *Seeder {
	seed := time.Now().UnixNano()
	_ = gofakeit.Seed(seed)
	return &Seeder{
		db:    db,
		polls: pollSvc,
		grids: gridSvc,
		rng:   rand.New(rand.NewSource(seed)),
		now:   time.Now,
	}
}

// SetSeed makes a run reproducible
func (s *Seeder) SetSeed(seed int64) {
	_ = gofakeit.Seed(seed)
	s.rng = rand.New(rand.NewSource(seed))
}

// SeedReference upserts the bundled teams, drivers and tracks by slug.
// Running it twice leaves one row per slug.
func (s *Seeder) SeedReference(ctx context.Context) (*ReferenceStats, error) {
	db := s.db.WithContext(ctx)
	stats := &ReferenceStats{}

	for _, spec := range teamSpecs {
		team := spec
		team.Active = true
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "full_name", "base", "power_unit", "color", "first_season", "active", "updated_at"}),
		}).Create(&team).Error; err != nil {
			return stats, fmt.Errorf("failed to seed team %s: %w", spec.Slug, err)
		}
		stats.Teams++
	}

	var teams []models.Team
	if err := db.Find(&teams).Error; err != nil {
		return stats, err
	}
	teamIDs := make(map[string]string, len(teams))
	for _, t := range teams {
		teamIDs[t.Slug] = t.ID
	}

	for _, spec := range driverSpecs {
		teamID, ok := teamIDs[spec.team]
		if !ok {
			return stats, fmt.Errorf("driver %s references unknown team %s", spec.code, spec.team)
		}
		driver := spec.model(teamID)
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name", "code", "number", "nationality", "team_id", "season", "active", "updated_at"}),
		}).Create(&driver).Error; err != nil {
			return stats, fmt.Errorf("failed to seed driver %s: %w", spec.code, err)
		}
		stats.Drivers++
	}

	for _, spec := range trackSpecs {
		track := spec
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "country", "city", "length_km", "turns", "first_grand", "updated_at"}),
		}).Create(&track).Error; err != nil {
			return stats, fmt.Errorf("failed to seed track %s: %w", spec.Slug, err)
		}
		stats.Tracks++
	}

	logger.Log.Info("Reference data seeded",
		zap.Int("teams", stats.Teams),
		zap.Int("drivers", stats.Drivers),
		zap.Int("tracks", stats.Tracks))
	return stats, nil
}

// SeedDev seeds reference data plus userCount fans who follow, post,
// comment, like, run polls and publish grids
func (s *Seeder) SeedDev(ctx context.Context, userCount int) error {
	log := func(msg string) {
		logger.Log.Info(msg)
	}

	if _, err := s.SeedReference(ctx); err != nil {
		return err
	}

	log("Creating users...")
	users, err := s.seedUsers(ctx, userCount)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	if len(users) < 2 {
		return fmt.Errorf("need at least 2 users, have %d", len(users))
	}

	log("Creating follows...")
	if err := s.seedFollows(ctx, users); err != nil {
		return fmt.Errorf("failed to seed follows: %w", err)
	}

	log("Creating posts...")
	posts, err := s.seedPosts(ctx, users, userCount*3)
	if err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}

	log("Creating comments and likes...")
	if err := s.seedEngagement(ctx, users, posts); err != nil {
		return fmt.Errorf("failed to seed engagement: %w", err)
	}

	log("Creating polls...")
	if err := s.seedPolls(ctx, users, max(userCount/4, 1)); err != nil {
		return fmt.Errorf("failed to seed polls: %w", err)
	}

	log("Creating grids...")
	if err := s.seedGrids(ctx, users, max(userCount/3, 1)); err != nil {
		return fmt.Errorf("failed to seed grids: %w", err)
	}

	return s.recount(ctx)
}

// SeedTest creates the fixed fixture accounts used by end-to-end tests.
// The first one is an admin.
func (s *Seeder) SeedTest(ctx context.Context) error {
	if _, err := s.SeedReference(ctx); err != nil {
		return err
	}

	hash, err := hashPassword()
	if err != nil {
		return err
	}

	specs := []struct {
		username, displayName, country string
	}{
		{"alice", "Alice Smith", "GB"},
		{"bob", "Bob Johnson", "US"},
		{"charlie", "Charlie Brown", "AU"},
		{"diana", "Diana Prince", "IT"},
		{"eve", "Eve Wilson", "NL"},
	}

	db := s.db.WithContext(ctx)
	for i, spec := range specs {
		var existing models.User
		err := db.Where("username = ?", spec.username).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		user := models.User{
			Email:               spec.username + seedEmailDomain,
			Username:            spec.username,
			DisplayName:         spec.displayName,
			Country:             spec.country,
			PasswordHash:        &hash,
			OnboardingStep:      "done",
			OnboardingCompleted: true,
			IsAdmin:             i == 0,
		}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create test user %s: %w", spec.username, err)
		}
	}

	logger.Log.Info("Test users ready", zap.Int("count", len(specs)))
	return nil
}

// Clean removes every social row and seeded account. Reference data stays.
func (s *Seeder) Clean(ctx context.Context) error {
	db := s.db.WithContext(ctx)

	// Delete in reverse order of dependencies
	tables := []string{
		"chat_messages",
		"notifications",
		"notification_preferences",
		"reports",
		"contact_messages",
		"comment_mentions",
		"comments",
		"likes",
		"poll_votes",
		"poll_options",
		"polls",
		"grid_entries",
		"grids",
		"posts",
		"blocks",
		"follows",
		"password_resets",
	}
	for _, table := range tables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clean %s: %w", table, err)
		}
	}
	if err := db.Exec("DELETE FROM users WHERE email LIKE ?", "%"+seedEmailDomain).Error; err != nil {
		return fmt.Errorf("failed to clean users: %w", err)
	}
	return s.recount(ctx)
}

func hashPassword() (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(DevPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

var fanCountries = []string{"GB", "NL", "IT", "ES", "DE", "FR", "US", "AU", "MX", "BR", "JP", "CA", "MC", "NZ", "AR", "TH", "BE", "AT"}

// seedUsers creates count fans with favorites and finished onboarding
func (s *Seeder) seedUsers(ctx context.Context, count int) ([]models.User, error) {
	db := s.db.WithContext(ctx)

	var drivers []models.Driver
	if err := db.Find(&drivers).Error; err != nil {
		return nil, err
	}

	hash, err := hashPassword()
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, count)
	taken := make(map[string]bool, count)
	for len(users) < count {
		username := usernameFrom(gofakeit.Username())
		if taken[username] {
			continue
		}
		var n int64
		if err := db.Model(&models.User{}).Where("username = ?", username).Count(&n).Error; err != nil {
			return nil, err
		}
		if n > 0 {
			taken[username] = true
			continue
		}
		taken[username] = true

		user := models.User{
			Email:               username + seedEmailDomain,
			Username:            username,
			DisplayName:         gofakeit.Name(),
			Bio:                 s.pick(bios),
			Country:             s.pick(fanCountries),
			AvatarURL:           fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/png?seed=%s", username),
			PasswordHash:        &hash,
			OnboardingStep:      "done",
			OnboardingCompleted: true,
		}
		if len(drivers) > 0 {
			fav := drivers[s.rng.Intn(len(drivers))]
			user.FavoriteDriverID = &fav.ID
			user.FavoriteTeamID = fav.TeamID
		}
		lastActive := gofakeit.DateRange(s.now().AddDate(0, 0, -30), s.now())
		user.LastActiveAt = &lastActive

		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		users = append(users, user)
	}

	logger.Log.Info("Created seed users", zap.Int("count", len(users)))
	return users, nil
}

// seedFollows has each user follow a handful of others
func (s *Seeder) seedFollows(ctx context.Context, users []models.User) error {
	db := s.db.WithContext(ctx)
	for i := range users {
		n := min(s.rng.Intn(12)+3, len(users)-1)
		for _, j := range s.rng.Perm(len(users))[:n+1] {
			if j == i {
				continue
			}
			follow := models.Follow{
				ID:         gofakeit.UUID(),
				FollowerID: users[i].ID,
				FolloweeID: users[j].ID,
				CreatedAt:  gofakeit.DateRange(s.now().AddDate(0, -2, 0), s.now()),
			}
			if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&follow).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// seedPosts spreads count posts over the last two weeks
func (s *Seeder) seedPosts(ctx context.Context, users []models.User, count int) ([]models.Post, error) {
	db := s.db.WithContext(ctx)

	var drivers []models.Driver
	if err := db.Find(&drivers).Error; err != nil {
		return nil, err
	}
	var tracks []models.Track
	if err := db.Find(&tracks).Error; err != nil {
		return nil, err
	}

	posts := make([]models.Post, 0, count)
	for i := 0; i < count; i++ {
		author := users[s.rng.Intn(len(users))]
		post := models.Post{
			UserID:    author.ID,
			Body:      s.postBody(drivers, tracks),
			ViewCount: s.rng.Intn(500),
			CreatedAt: gofakeit.DateRange(s.now().AddDate(0, 0, -14), s.now()),
		}
		if err := db.Create(&post).Error; err != nil {
			return nil, fmt.Errorf("failed to create post: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// seedEngagement adds comments, replies and likes to posts
func (s *Seeder) seedEngagement(ctx context.Context, users []models.User, posts []models.Post) error {
	db := s.db.WithContext(ctx)
	for _, post := range posts {
		// Long tail: most posts get little, a few get a lot
		likes := int(float64(len(users)) * s.rng.Float64() * s.rng.Float64())
		for _, j := range s.rng.Perm(len(users))[:likes] {
			like := models.Like{UserID: users[j].ID, TargetType: models.TargetPost, TargetID: post.ID}
			if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
				return err
			}
		}

		var parent *string
		for c := s.rng.Intn(5); c > 0; c-- {
			comment := models.Comment{
				TargetType: models.TargetPost,
				TargetID:   post.ID,
				UserID:     users[s.rng.Intn(len(users))].ID,
				ParentID:   parent,
				Body:       s.pick(commentBodies),
				CreatedAt:  post.CreatedAt.Add(time.Duration(s.rng.Intn(180)+1) * time.Minute),
			}
			if err := db.Create(&comment).Error; err != nil {
				return err
			}
			// Replies hang off the first top-level comment
			if parent == nil && s.rng.Intn(2) == 0 {
				id := comment.ID
				parent = &id
			}
		}
	}
	return nil
}

// seedPolls creates polls through the poll service and casts votes
func (s *Seeder) seedPolls(ctx context.Context, users []models.User, count int) error {
	for i := 0; i < count; i++ {
		tmpl := pollTemplates[i%len(pollTemplates)]
		author := users[s.rng.Intn(len(users))]

		in := polls.CreateInput{
			Question:       tmpl.question,
			Options:        tmpl.options,
			MultipleChoice: tmpl.multiple,
			Tags:           tmpl.tags,
		}
		if s.rng.Intn(3) > 0 {
			closes := s.now().Add(time.Duration(s.rng.Intn(72)+12) * time.Hour)
			in.ClosesAt = &closes
		}

		view, err := s.polls.Create(ctx, &author, in)
		if err != nil {
			return fmt.Errorf("failed to create poll %q: %w", tmpl.question, err)
		}

		voters := s.rng.Intn(len(users)) + 1
		for _, j := range s.rng.Perm(len(users))[:voters] {
			option := view.Options[s.rng.Intn(len(view.Options))]
			if _, err := s.polls.Vote(ctx, &users[j], view.ID, []string{option.ID}); err != nil {
				return fmt.Errorf("failed to vote on poll: %w", err)
			}
		}
	}
	return nil
}

// seedGrids creates driver and team rankings for the reference season
func (s *Seeder) seedGrids(ctx context.Context, users []models.User, count int) error {
	db := s.db.WithContext(ctx)
	var drivers []models.Driver
	if err := db.Where("season = ?", ReferenceSeason).Find(&drivers).Error; err != nil {
		return err
	}
	var teams []models.Team
	if err := db.Where("active = ?", true).Find(&teams).Error; err != nil {
		return err
	}

	for i := 0; i < count; i++ {
		author := users[s.rng.Intn(len(users))]
		in := grids.Input{Season: ReferenceSeason}

		if i%3 == 2 && len(teams) >= grids.MinEntries {
			in.Kind = models.GridTeams
			in.Title = fmt.Sprintf("%s constructors order", s.pick(gridMoods))
			for _, j := range s.rng.Perm(len(teams)) {
				in.Entries = append(in.Entries, teams[j].ID)
			}
		} else {
			in.Kind = models.GridDrivers
			in.Title = fmt.Sprintf("%s top %d", s.pick(gridMoods), 10)
			for _, j := range s.rng.Perm(len(drivers))[:min(10, len(drivers))] {
				in.Entries = append(in.Entries, drivers[j].ID)
			}
		}
		if len(in.Entries) > grids.MaxEntries {
			in.Entries = in.Entries[:grids.MaxEntries]
		}

		if _, err := s.grids.Create(ctx, &author, in); err != nil {
			return fmt.Errorf("failed to create grid: %w", err)
		}
	}
	return nil
}

// recount rebuilds denormalized counters from the rows they summarize
func (s *Seeder) recount(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	statements := []string{
		"UPDATE users SET follower_count = (SELECT COUNT(*) FROM follows WHERE follows.followee_id = users.id)",
		"UPDATE users SET following_count = (SELECT COUNT(*) FROM follows WHERE follows.follower_id = users.id)",
		"UPDATE users SET post_count = (SELECT COUNT(*) FROM posts WHERE posts.user_id = users.id AND posts.deleted_at IS NULL)",
		"UPDATE posts SET like_count = (SELECT COUNT(*) FROM likes WHERE likes.target_type = 'post' AND likes.target_id = posts.id)",
		"UPDATE posts SET comment_count = (SELECT COUNT(*) FROM comments WHERE comments.target_type = 'post' AND comments.target_id = posts.id AND comments.is_deleted = false)",
		"UPDATE comments SET reply_count = (SELECT COUNT(*) FROM comments AS r WHERE r.parent_id = comments.id AND r.is_deleted = false)",
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to recount: %w", err)
		}
	}
	return nil
}

func (s *Seeder) pick(options []string) string {
	return options[s.rng.Intn(len(options))]
}

func (s *Seeder) postBody(drivers []models.Driver, tracks []models.Track) string {
	body := s.pick(postTemplates)
	if len(drivers) > 0 {
		body = strings.ReplaceAll(body, "{driver}", drivers[s.rng.Intn(len(drivers))].LastName)
	}
	if len(tracks) > 0 {
		body = strings.ReplaceAll(body, "{track}", tracks[s.rng.Intn(len(tracks))].Name)
	}
	return strings.ReplaceAll(body, "{word}", gofakeit.Word())
}

var nonUsernameChars = regexp.MustCompile(`[^a-z0-9_]+`)

// usernameFrom squeezes a generated handle into 3..20 of [a-z0-9_]
func usernameFrom(raw string) string {
	name := nonUsernameChars.ReplaceAllString(strings.ToLower(raw), "")
	for len(name) < 3 {
		name += "_f1"
	}
	if len(name) > 20 {
		name = name[:20]
	}
	return name
}

var slugChars = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	return strings.Trim(slugChars.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

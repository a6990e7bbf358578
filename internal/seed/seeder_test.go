package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/paddock/internal/grids"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/polls"
	"github.com/zfogg/paddock/internal/testutil"
	"gorm.io/gorm"
)

func newTestSeeder(t *testing.T) (*Seeder, *gorm.DB) {
	db := testutil.NewDB(t)
	s := NewSeeder(db, polls.NewService(db, nil, nil), grids.NewService(db, nil))
	s.SetSeed(42)
	return s, db
}

func count(t *testing.T, db *gorm.DB, model interface{}) int64 {
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestSeedReferenceIsIdempotent(t *testing.T) {
	s, db := newTestSeeder(t)
	ctx := context.Background()

	stats, err := s.SeedReference(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(teamSpecs), stats.Teams)
	assert.Equal(t, len(driverSpecs), stats.Drivers)
	assert.Equal(t, len(trackSpecs), stats.Tracks)

	_, err = s.SeedReference(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(teamSpecs)), count(t, db, &models.Team{}))
	assert.Equal(t, int64(len(driverSpecs)), count(t, db, &models.Driver{}))
	assert.Equal(t, int64(len(trackSpecs)), count(t, db, &models.Track{}))

	var ver models.Driver
	require.NoError(t, db.Preload("Team").Where("slug = ?", "max-verstappen").First(&ver).Error)
	assert.Equal(t, "VER", ver.Code)
	require.NotNil(t, ver.Team)
	assert.Equal(t, "red-bull", ver.Team.Slug)
}

func TestSeedDev(t *testing.T) {
	s, db := newTestSeeder(t)
	ctx := context.Background()

	require.NoError(t, s.SeedDev(ctx, 8))

	var users []models.User
	require.NoError(t, db.Find(&users).Error)
	require.Len(t, users, 8)
	for _, u := range users {
		assert.Regexp(t, `^[a-z0-9_]{3,20}$`, u.Username)
		assert.True(t, u.OnboardingCompleted)
		assert.NotNil(t, u.FavoriteDriverID)
	}

	assert.Equal(t, int64(24), count(t, db, &models.Post{}))
	assert.Equal(t, int64(2), count(t, db, &models.Poll{}))
	assert.Equal(t, int64(2), count(t, db, &models.Grid{}))
	assert.Positive(t, count(t, db, &models.Follow{}))
	assert.Positive(t, count(t, db, &models.PollVote{}))

	// Counters agree with the rows
	var follows int64
	require.NoError(t, db.Model(&models.Follow{}).Where("followee_id = ?", users[0].ID).Count(&follows).Error)
	assert.Equal(t, int(follows), users[0].FollowerCount)
}

func TestSeedTestAndClean(t *testing.T) {
	s, db := newTestSeeder(t)
	ctx := context.Background()
	outsider := testutil.CreateUser(t, db, "outsider")

	require.NoError(t, s.SeedTest(ctx))
	require.NoError(t, s.SeedTest(ctx))

	var alice models.User
	require.NoError(t, db.Where("username = ?", "alice").First(&alice).Error)
	assert.True(t, alice.IsAdmin)
	require.NotNil(t, alice.PasswordHash)
	assert.Equal(t, int64(6), count(t, db, &models.User{}))

	require.NoError(t, s.Clean(ctx))

	var remaining []models.User
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, outsider.ID, remaining[0].ID)
	assert.Equal(t, int64(len(teamSpecs)), count(t, db, &models.Team{}))
}

func TestUsernameFrom(t *testing.T) {
	assert.Equal(t, "speedy_lap99", usernameFrom("Speedy_Lap99"))
	assert.Equal(t, "ab_f1", usernameFrom("A.B"))
	assert.Equal(t, "averyveryverylongnam", usernameFrom("AVeryVeryVeryLongName"))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "max-verstappen", slugify("Max-Verstappen"))
	assert.Equal(t, "kimi-antonelli", slugify(" Kimi  Antonelli "))
}

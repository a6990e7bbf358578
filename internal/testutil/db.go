// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zfogg/paddock/internal/database"
	"github.com/zfogg/paddock/internal/models"
	"gorm.io/gorm"
)

var dbCounter atomic.Int64

// NewDB opens a fresh, migrated in-memory SQLite database. Each call gets
// its own database so tests can run in parallel.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("file:paddock_test_%d?mode=memory&cache=shared&_foreign_keys=off", dbCounter.Add(1))
	db, err := database.Open(database.Options{Driver: "sqlite", URL: name})
	require.NoError(t, err)
	require.NoError(t, database.MigrateDB(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with a username-derived email
func CreateUser(t testing.TB, db *gorm.DB, username string, opts ...func(*models.User)) *models.User {
	t.Helper()

	user := &models.User{
		Email:          username + "@example.com",
		Username:       username,
		DisplayName:    username,
		OnboardingStep: "profile",
	}
	for _, opt := range opts {
		opt(user)
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// Admin marks the user as an admin
func Admin(u *models.User) { u.IsAdmin = true }

// Banned marks the user as banned
func Banned(u *models.User) {
	u.IsBanned = true
	u.BannedReason = "spam"
}

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zfogg/paddock/internal/models"
	"gorm.io/gorm"
)

var (
	errUserNotFound = errors.New("user not found")
	errNoChange     = errors.New("nothing to change")
)

// findUserByName looks a user up case-insensitively
func findUserByName(ctx context.Context, db *gorm.DB, username string) (*models.User, error) {
	name := strings.TrimPrefix(strings.TrimSpace(username), "@")
	if name == "" {
		return nil, fmt.Errorf("username is required")
	}
	var user models.User
	err := db.WithContext(ctx).Where("LOWER(username) = LOWER(?)", name).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", errUserNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// setAdmin grants or revokes admin rights. Banned users cannot be promoted.
func setAdmin(ctx context.Context, db *gorm.DB, username string, admin bool) (*models.User, error) {
	user, err := findUserByName(ctx, db, username)
	if err != nil {
		return nil, err
	}
	if user.IsAdmin == admin {
		return user, errNoChange
	}
	if admin && user.IsBanned {
		return nil, fmt.Errorf("%s is banned; unban them first", user.Username)
	}
	if err := db.WithContext(ctx).Model(user).Update("is_admin", admin).Error; err != nil {
		return nil, err
	}
	user.IsAdmin = admin
	return user, nil
}

// setBanned bans or unbans a user. Admins must be demoted before a ban.
func setBanned(ctx context.Context, db *gorm.DB, username string, banned bool, reason string) (*models.User, error) {
	user, err := findUserByName(ctx, db, username)
	if err != nil {
		return nil, err
	}
	if user.IsBanned == banned {
		return user, errNoChange
	}
	if banned && user.IsAdmin {
		return nil, fmt.Errorf("%s is an admin; revoke admin first", user.Username)
	}

	updates := map[string]interface{}{
		"is_banned":     banned,
		"banned_reason": "",
		"banned_at":     nil,
	}
	var bannedAt *time.Time
	if banned {
		now := time.Now().UTC()
		bannedAt = &now
		updates["banned_reason"] = strings.TrimSpace(reason)
		updates["banned_at"] = now
	}
	if err := db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, err
	}
	user.IsBanned = banned
	user.BannedReason, _ = updates["banned_reason"].(string)
	user.BannedAt = bannedAt
	return user, nil
}

package models

import (
	"gorm.io/gorm"
)

// NotificationPreferencesChecker looks up a recipient's toggles before a
// notification is written
type NotificationPreferencesChecker struct {
	db *gorm.DB
}

func NewNotificationPreferencesChecker(db *gorm.DB) *NotificationPreferencesChecker {
	return &NotificationPreferencesChecker{db: db}
}

// GetOrCreate gets or creates notification preferences for a user
func (c *NotificationPreferencesChecker) GetOrCreate(userID string) (*NotificationPreferences, error) {
	var prefs NotificationPreferences

	err := c.db.Where("user_id = ?", userID).First(&prefs).Error
	if err == nil {
		return &prefs, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	prefs = DefaultNotificationPreferences(userID)
	if err := c.db.Create(&prefs).Error; err != nil {
		return nil, err
	}
	return &prefs, nil
}

// IsEnabled checks if a kind is enabled for a user.
// Lookup failures allow the notification.
func (c *NotificationPreferencesChecker) IsEnabled(userID string, kind NotificationKind) bool {
	prefs, err := c.GetOrCreate(userID)
	if err != nil {
		return true
	}
	return prefs.Allows(kind)
}

package models

import (
	"strings"
	"time"
)

// Video is an archived video indexed by name. MessageID locates the original
// post inside the archive chat; the bot copies it from there on delivery.
type Video struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	Name           string `gorm:"size:255;not null"`
	NormalizedName string `gorm:"size:255;not null;uniqueIndex"`
	MessageID      int    `gorm:"not null"`
	CreatedAt      time.Time
}

// NormalizeName collapses runs of whitespace and lower-cases the name.
// Two names with the same normalized form are considered duplicates.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// User is a bot user, registered on first interaction and only ever counted.
type User struct {
	UserID    int64 `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time
}

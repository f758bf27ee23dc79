package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Roles stored on User.Role.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an account able to upload syllabi.
type User struct {
	gorm.Model
	Username     string   `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string   `gorm:"size:255;not null"`
	Role         string   `gorm:"size:16;not null;default:user"`
	Results      []Result `gorm:"constraint:OnDelete:CASCADE"`
}

// IsAdmin reports whether the account carries the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Result is the persisted output of one completed analysis cycle.
// Rows are written once and never updated.
type Result struct {
	ID                uint       `gorm:"primaryKey"`
	UserID            uint       `gorm:"index;not null"`
	User              User       `gorm:"constraint:OnDelete:CASCADE"`
	CourseName        string     `gorm:"size:255;not null"`
	Summary           string     `gorm:"type:text"`
	Resources         string     `gorm:"type:text"`
	SemesterStartDate *time.Time `gorm:"type:date"`
	SemesterEndDate   *time.Time `gorm:"type:date"`
	Calendar          []byte
	CreatedAt         time.Time `gorm:"index"`
}

// HasCalendar reports whether a calendar payload was stored.
func (r Result) HasCalendar() bool {
	return len(r.Calendar) > 0
}

// UploadSession tracks one staged upload through the analysis state machine.
type UploadSession struct {
	ID           string `gorm:"primaryKey;size:36"`
	UserID       uint   `gorm:"index;not null"`
	User         User   `gorm:"constraint:OnDelete:CASCADE"`
	State        string `gorm:"size:32;index;not null"`
	OriginalName string `gorm:"size:255"`
	StagedKey    string `gorm:"size:512"`
	Extension    string `gorm:"size:8"`
	Error        string `gorm:"size:1024"`
	ResultID     *uint
	CreatedAt    time.Time
	UpdatedAt    time.Time `gorm:"index"`
}

// SessionTransition is an append-only record of a state change.
type SessionTransition struct {
	ID        uint           `gorm:"primaryKey"`
	SessionID string         `gorm:"size:36;index;not null"`
	FromState string         `gorm:"size:32"`
	ToState   string         `gorm:"size:32;not null"`
	Detail    datatypes.JSON `gorm:"type:json"`
	CreatedAt time.Time
}

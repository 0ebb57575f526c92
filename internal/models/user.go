// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Role is the closed set of roles a token may carry.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a registered gardener.
type User struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Name            string     `gorm:"size:50;not null" json:"name"`
	Email           string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password        string     `gorm:"not null" json:"-"`
	Role            Role       `gorm:"type:varchar(16);not null;default:'user'" json:"role"`
	Phone           string     `gorm:"size:15" json:"phone"`
	Address         string     `gorm:"size:100" json:"address"`
	ProfilePicture  string     `json:"profilePicture"`
	IsVerified      bool       `gorm:"not null;default:false" json:"isVerified"`
	SecurityAnswers []string   `gorm:"serializer:json" json:"-"`
	ResetTokenHash  string     `gorm:"size:64;index" json:"-"`
	ResetExpiresAt  *time.Time `json:"-"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// UserSummary is the display-safe projection of a User used wherever another
// user's identity is embedded in a response.
type UserSummary struct {
	ID             uint   `json:"id"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profilePicture"`
}

// Summary projects u to its display-safe fields.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, ProfilePicture: u.ProfilePicture}
}

// Follow is one directed edge of the social graph: FollowerID follows FolloweeID.
// A.following contains B exactly when B.followers contains A because both
// sides read the same row.
type Follow struct {
	FollowerID uint      `gorm:"primaryKey;autoIncrement:false" json:"followerId"`
	FolloweeID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"followeeId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName specifies the table name for GORM
func (Follow) TableName() string {
	return "follows"
}

// Favourite records that a user saved a post. ID gives the insertion order.
type Favourite struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_favourite_user_post" json:"userId"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_favourite_user_post;index" json:"postId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Profile is the owner's view of their own account.
type Profile struct {
	ID             uint          `json:"id"`
	Name           string        `json:"name"`
	Email          string        `json:"email"`
	Address        string        `json:"address"`
	Phone          string        `json:"phone"`
	Role           Role          `json:"role"`
	ProfilePicture string        `json:"profilePicture"`
	IsVerified     bool          `json:"isVerified"`
	Followers      []UserSummary `json:"followers"`
	Following      []UserSummary `json:"following"`
}

package models

import (
	"time"
)

// Category is the closed set of post categories.
type Category string

const (
	CategoryVegetables  Category = "Vegetables"
	CategoryFlowers     Category = "Flowers"
	CategoryLandscaping Category = "Landscaping"
	CategoryFruits      Category = "Fruits"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryVegetables, CategoryFlowers, CategoryLandscaping, CategoryFruits}

// Post represents a gardening tip.
type Post struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Title     string     `gorm:"size:100;not null" json:"title"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	Category  Category   `gorm:"type:varchar(32);not null;index" json:"category"`
	Tags      []string   `gorm:"serializer:json" json:"tags"`
	Images    []string   `gorm:"serializer:json" json:"images"`
	IsPremium bool       `gorm:"not null;default:false" json:"isPremium"`
	AuthorID  uint       `gorm:"not null;index" json:"authorId"`
	Author    User       `gorm:"foreignKey:AuthorID" json:"-"`
	Comments  []Comment  `gorm:"foreignKey:PostID" json:"-"`
	Votes     []PostVote `gorm:"foreignKey:PostID" json:"-"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// OwnerID returns the author of the post.
func (p *Post) OwnerID() uint {
	return p.AuthorID
}

// VoteDirection is the state of one user's vote on one post.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// PostVote holds the current vote of a user on a post. The composite key
// makes upvote and downvote mutually exclusive per user.
type PostVote struct {
	PostID    uint          `gorm:"primaryKey;autoIncrement:false" json:"postId"`
	UserID    uint          `gorm:"primaryKey;autoIncrement:false;index" json:"userId"`
	Direction VoteDirection `gorm:"type:varchar(8);not null" json:"direction"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// PostFilter narrows ListPosts. Zero values mean no filter.
type PostFilter struct {
	Category Category
	AuthorID uint
	SortBy   string
	Limit    int
	Offset   int
}

// SortByUpvotes orders posts by upvote count descending.
const SortByUpvotes = "upvotes"

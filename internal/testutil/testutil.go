// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"sprout/internal/cache"
	"sprout/internal/config"
	"sprout/internal/database"
	"sprout/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewTestDB returns a migrated in-memory SQLite database private to t.
// The pool is capped at one connection so concurrent writers serialize
// instead of failing with SQLITE_LOCKED.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := database.Open(sqlite.Open(dsn), &config.Config{DBMaxOpenConns: 1})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// NewTestRedis starts a miniredis server and installs it as the shared
// cache client for the duration of t.
func NewTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() { _ = cache.Close() })
	return mr, rdb
}

// MustCreateUser inserts a user with a unique email derived from name.
func MustCreateUser(t testing.TB, db *gorm.DB, name string) *models.User {
	t.Helper()

	user := &models.User{
		Name:     name,
		Email:    fmt.Sprintf("%s.%d@example.com", strings.ToLower(name), time.Now().UnixNano()),
		Password: "$2a$04$not.a.real.hash",
		Role:     models.RoleUser,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return user
}

// MustCreatePost inserts a post by author in category.
func MustCreatePost(t testing.TB, db *gorm.DB, author *models.User, title string, category models.Category) *models.Post {
	t.Helper()

	post := &models.Post{
		Title:    title,
		Content:  "Notes on " + title,
		Category: category,
		Tags:     []string{"test"},
		AuthorID: author.ID,
	}
	if err := db.Create(post).Error; err != nil {
		t.Fatalf("create post %s: %v", title, err)
	}
	return post
}

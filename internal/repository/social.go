package repository

import (
	"context"

	"sprout/internal/models"
	"sprout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SocialRepository persists follow edges and favourites.
type SocialRepository interface {
	ToggleFollow(ctx context.Context, followerID, followeeID uint) (bool, error)
	IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error)
	Followers(ctx context.Context, userID uint) ([]models.UserSummary, error)
	Following(ctx context.Context, userID uint) ([]models.UserSummary, error)
	ToggleFavourite(ctx context.Context, userID, postID uint) (bool, error)
}

type socialRepository struct {
	db *gorm.DB
}

// NewSocialRepository returns a new SocialRepository implementation.
func NewSocialRepository(db *gorm.DB) SocialRepository {
	return &socialRepository{db: db}
}

// ToggleFollow removes the edge follower->followee if present, otherwise
// inserts it, and reports whether the edge exists afterwards. Both steps run
// in one transaction so a racing toggle cannot leave a duplicate edge.
func (r *socialRepository) ToggleFollow(ctx context.Context, followerID, followeeID uint) (following bool, err error) {
	ctx, span := observability.StartSpan(ctx, "repository", "follow.toggle",
		attribute.Int("follower.id", int(followerID)),
		attribute.Int("followee.id", int(followeeID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower_id = ? AND followee_id = ?", followerID, followeeID).Delete(&models.Follow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			following = false
			return nil
		}
		edge := models.Follow{FollowerID: followerID, FolloweeID: followeeID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge).Error; err != nil {
			return err
		}
		following = true
		return nil
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return following, nil
}

func (r *socialRepository) IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error) {
	var count int64
	err := readDB(r.db).WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// Followers returns the users following userID, oldest edge first.
func (r *socialRepository) Followers(ctx context.Context, userID uint) ([]models.UserSummary, error) {
	return r.summaries(ctx, "follows.follower_id = users.id", "follows.followee_id = ?", userID)
}

// Following returns the users userID follows, oldest edge first.
func (r *socialRepository) Following(ctx context.Context, userID uint) ([]models.UserSummary, error) {
	return r.summaries(ctx, "follows.followee_id = users.id", "follows.follower_id = ?", userID)
}

func (r *socialRepository) summaries(ctx context.Context, on, where string, userID uint) ([]models.UserSummary, error) {
	out := []models.UserSummary{}
	err := readDB(r.db).WithContext(ctx).
		Table("users").
		Select("users.id, users.name, users.profile_picture").
		Joins("JOIN follows ON "+on).
		Where(where, userID).
		Order("follows.created_at ASC, users.id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

// ToggleFavourite adds or removes postID from the favourites of userID and
// reports whether it is a favourite afterwards.
func (r *socialRepository) ToggleFavourite(ctx context.Context, userID, postID uint) (favourite bool, err error) {
	ctx, span := observability.StartSpan(ctx, "repository", "favourite.toggle",
		attribute.Int("user.id", int(userID)),
		attribute.Int("post.id", int(postID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Favourite{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			favourite = false
			return nil
		}
		fav := models.Favourite{UserID: userID, PostID: postID}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "post_id"}},
			DoNothing: true,
		}).Create(&fav).Error
		if err != nil {
			return err
		}
		favourite = true
		return nil
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return favourite, nil
}

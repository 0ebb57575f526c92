package repository

import (
	"context"
	"errors"
	"time"

	"sprout/internal/models"
	"sprout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// upvoteOrder ranks posts by upvote count, ties broken by insertion order.
const upvoteOrder = "(SELECT COUNT(*) FROM post_votes WHERE post_votes.post_id = posts.id AND post_votes.direction = 'up') DESC, posts.id ASC"

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	Exists(ctx context.Context, id uint) (bool, error)
	List(ctx context.Context, filter models.PostFilter) ([]models.Post, error)
	ListFavourites(ctx context.Context, userID uint, limit, offset int) ([]models.Post, error)
	UpdateFields(ctx context.Context, id uint, patch *models.Post, fields ...string) error
	Delete(ctx context.Context, id uint) error
	SetVote(ctx context.Context, postID, userID uint, direction models.VoteDirection) error
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// withDetails preloads everything NewPostView reads.
func withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author").
		Preload("Votes", func(db *gorm.DB) *gorm.DB {
			return db.Order("post_votes.updated_at ASC, post_votes.user_id ASC")
		}).
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("comments.id ASC")
		}).
		Preload("Comments.Author").
		Preload("Comments.Replies", func(db *gorm.DB) *gorm.DB {
			return db.Order("replies.id ASC")
		}).
		Preload("Comments.Replies.Author")
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// GetByID loads a post with its author, votes, comments and replies.
func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := withDetails(r.db.WithContext(ctx)).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundMessage("Post not found")
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// List returns posts matching every set filter field. The default order is
// insertion order; SortByUpvotes orders by upvote count descending.
func (r *postRepository) List(ctx context.Context, filter models.PostFilter) ([]models.Post, error) {
	limit, offset := normalizePage(filter.Limit, filter.Offset)

	q := readDB(r.db).WithContext(ctx).Model(&models.Post{})
	if filter.Category != "" {
		q = q.Where("posts.category = ?", filter.Category)
	}
	if filter.AuthorID != 0 {
		q = q.Where("posts.author_id = ?", filter.AuthorID)
	}
	if filter.SortBy == models.SortByUpvotes {
		q = q.Order(upvoteOrder)
	} else {
		q = q.Order("posts.id ASC")
	}

	posts := []models.Post{}
	if err := withDetails(q).Limit(limit).Offset(offset).Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// ListFavourites returns the favourite posts of userID in the order they
// were added.
func (r *postRepository) ListFavourites(ctx context.Context, userID uint, limit, offset int) ([]models.Post, error) {
	limit, offset = normalizePage(limit, offset)

	posts := []models.Post{}
	err := withDetails(readDB(r.db).WithContext(ctx)).
		Joins("JOIN favourites ON favourites.post_id = posts.id").
		Where("favourites.user_id = ?", userID).
		Order("favourites.id ASC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// UpdateFields writes only the named columns of patch to post id.
func (r *postRepository) UpdateFields(ctx context.Context, id uint, patch *models.Post, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Post{ID: id}).Select(fields).Updates(patch)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundMessage("Post not found")
	}
	return nil
}

// Delete removes a post together with its comments, replies, votes and
// favourite entries.
func (r *postRepository) Delete(ctx context.Context, id uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "repository", "post.delete", attribute.Int("post.id", int(id)))
	defer func() { observability.EndSpan(span, err) }()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var commentIDs []uint
		if err := tx.Model(&models.Comment{}).Where("post_id = ?", id).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if len(commentIDs) > 0 {
			if err := tx.Where("comment_id IN ?", commentIDs).Delete(&models.Reply{}).Error; err != nil {
				return err
			}
		}
		for _, child := range []any{&models.Comment{}, &models.PostVote{}, &models.Favourite{}} {
			if err := tx.Where("post_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundMessage("Post not found")
		}
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return models.NewInternalError(err)
	}
	return nil
}

// SetVote records direction as the vote of userID on postID in a single
// upsert. Repeating the current direction leaves the row untouched.
func (r *postRepository) SetVote(ctx context.Context, postID, userID uint, direction models.VoteDirection) error {
	vote := models.PostVote{
		PostID:    postID,
		UserID:    userID,
		Direction: direction,
		UpdatedAt: time.Now(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"direction", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "post_votes.direction <> excluded.direction"},
		}},
	}).Create(&vote).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

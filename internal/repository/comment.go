package repository

import (
	"context"
	"errors"

	"sprout/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository defines persistence operations for comments and replies.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, postID, commentID uint) (*models.Comment, error)
	UpdateContent(ctx context.Context, commentID uint, content string) error
	Delete(ctx context.Context, commentID uint) error
	CreateReply(ctx context.Context, reply *models.Reply) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository returns a new CommentRepository implementation.
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// GetByID returns the comment only when it belongs to postID.
func (r *commentRepository) GetByID(ctx context.Context, postID, commentID uint) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).Where("id = ? AND post_id = ?", commentID, postID).First(&comment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundMessage("Comment not found")
		}
		return nil, models.NewInternalError(err)
	}
	return &comment, nil
}

func (r *commentRepository) UpdateContent(ctx context.Context, commentID uint, content string) error {
	res := r.db.WithContext(ctx).Model(&models.Comment{ID: commentID}).Update("content", content)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundMessage("Comment not found")
	}
	return nil
}

// Delete removes a comment and its replies.
func (r *commentRepository) Delete(ctx context.Context, commentID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comment_id = ?", commentID).Delete(&models.Reply{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Comment{}, commentID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundMessage("Comment not found")
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

func (r *commentRepository) CreateReply(ctx context.Context, reply *models.Reply) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(reply).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

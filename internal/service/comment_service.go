package service

import (
	"context"

	"sprout/internal/featureflags"
	"sprout/internal/models"
	"sprout/internal/notifications"
	"sprout/internal/policy"
	"sprout/internal/repository"
	"sprout/internal/validation"
)

type CommentService struct {
	postViews
	comments repository.CommentRepository
	events   EventPublisher
}

// CommentInput is the body of a comment or reply.
type CommentInput struct {
	Content string `json:"content" validate:"notblank,max=5000"`
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	flags *featureflags.Manager,
	events EventPublisher,
) *CommentService {
	return &CommentService{
		postViews: postViews{posts: postRepo, users: userRepo, flags: flags},
		comments:  commentRepo,
		events:    events,
	}
}

// AddComment appends a comment by actor to postID and returns the post with
// its comments expanded.
func (s *CommentService) AddComment(ctx context.Context, actor policy.Actor, postID uint, in CommentInput) (*models.PostView, error) {
	if err := policy.CanMutate(actor, nil, policy.AddComment).Err(); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{PostID: postID, AuthorID: actor.ID, Content: in.Content}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	if post.AuthorID != actor.ID {
		publish(ctx, s.events, notifications.Event{
			Type:        notifications.EventCommentAdded,
			ActorID:     actor.ID,
			RecipientID: post.AuthorID,
			PostID:      postID,
			CommentID:   comment.ID,
		})
	}
	return s.reload(ctx, actor, postID)
}

// EditComment replaces the content of a comment in place. Only its author
// may edit it.
func (s *CommentService) EditComment(ctx context.Context, actor policy.Actor, postID, commentID uint, in CommentInput) (*models.PostView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	comment, err := s.owned(ctx, actor, postID, commentID, policy.EditComment)
	if err != nil {
		return nil, err
	}
	if err := s.comments.UpdateContent(ctx, comment.ID, in.Content); err != nil {
		return nil, err
	}
	return s.reload(ctx, actor, postID)
}

// DeleteComment removes a comment and its replies. Only its author may
// delete it.
func (s *CommentService) DeleteComment(ctx context.Context, actor policy.Actor, postID, commentID uint) (*models.PostView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	comment, err := s.owned(ctx, actor, postID, commentID, policy.DeleteComment)
	if err != nil {
		return nil, err
	}
	if err := s.comments.Delete(ctx, comment.ID); err != nil {
		return nil, err
	}
	return s.reload(ctx, actor, postID)
}

// AddReply appends a reply by actor to a comment of postID.
func (s *CommentService) AddReply(ctx context.Context, actor policy.Actor, postID, commentID uint, in CommentInput) (*models.PostView, error) {
	if err := policy.CanMutate(actor, nil, policy.AddReply).Err(); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	comment, err := s.find(ctx, postID, commentID)
	if err != nil {
		return nil, err
	}

	reply := &models.Reply{CommentID: comment.ID, AuthorID: actor.ID, Content: in.Content}
	if err := s.comments.CreateReply(ctx, reply); err != nil {
		return nil, err
	}

	if comment.AuthorID != actor.ID {
		publish(ctx, s.events, notifications.Event{
			Type:        notifications.EventReplyAdded,
			ActorID:     actor.ID,
			RecipientID: comment.AuthorID,
			PostID:      postID,
			CommentID:   comment.ID,
		})
	}
	return s.reload(ctx, actor, postID)
}

// find resolves a comment of postID. A missing post reports "Post not
// found" before the comment is looked up.
func (s *CommentService) find(ctx context.Context, postID, commentID uint) (*models.Comment, error) {
	exists, err := s.posts.Exists(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundMessage("Post not found")
	}
	return s.comments.GetByID(ctx, postID, commentID)
}

func (s *CommentService) owned(ctx context.Context, actor policy.Actor, postID, commentID uint, action policy.Action) (*models.Comment, error) {
	comment, err := s.find(ctx, postID, commentID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanMutate(actor, comment, action).Err(); err != nil {
		return nil, err
	}
	return comment, nil
}

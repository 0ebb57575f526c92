package service

import (
	"context"
	"strings"

	"sprout/internal/cache"
	"sprout/internal/featureflags"
	"sprout/internal/models"
	"sprout/internal/notifications"
	"sprout/internal/observability"
	"sprout/internal/policy"
	"sprout/internal/repository"
	"sprout/internal/validation"
)

type PostService struct {
	postViews
	social repository.SocialRepository
	events EventPublisher
}

type CreatePostInput struct {
	Title     string          `json:"title" validate:"required,min=5,max=100"`
	Content   string          `json:"content" validate:"required,min=20"`
	Category  models.Category `json:"category" validate:"required,category"`
	Tags      []string        `json:"tags" validate:"omitempty,max=20,dive,notblank,max=30"`
	Images    []string        `json:"images" validate:"omitempty,max=10,dive,url"`
	IsPremium bool            `json:"isPremium"`
}

// UpdatePostInput carries the fields of a post edit. Nil fields are left
// unchanged; the author can never be changed.
type UpdatePostInput struct {
	Title     *string          `json:"title" validate:"omitempty,min=5,max=100"`
	Content   *string          `json:"content" validate:"omitempty,min=20"`
	Category  *models.Category `json:"category" validate:"omitempty,category"`
	Tags      *[]string        `json:"tags" validate:"omitempty,max=20,dive,notblank,max=30"`
	Images    *[]string        `json:"images" validate:"omitempty,max=10,dive,url"`
	IsPremium *bool            `json:"isPremium"`
}

type ListPostsInput struct {
	Category string `query:"category" validate:"omitempty,category"`
	AuthorID uint   `query:"author"`
	SortBy   string `query:"sortBy" validate:"omitempty,oneof=upvotes"`
	// Limit and Offset are clamped by the store, never rejected.
	Limit  int `query:"-"`
	Offset int `query:"-"`
}

func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	socialRepo repository.SocialRepository,
	flags *featureflags.Manager,
	events EventPublisher,
) *PostService {
	return &PostService{
		postViews: postViews{posts: postRepo, users: userRepo, flags: flags},
		social:    socialRepo,
		events:    events,
	}
}

func (s *PostService) CreatePost(ctx context.Context, actor policy.Actor, in CreatePostInput) (*models.PostView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:     in.Title,
		Content:   in.Content,
		Category:  in.Category,
		Tags:      in.Tags,
		Images:    in.Images,
		IsPremium: in.IsPremium,
		AuthorID:  actor.ID,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	publish(ctx, s.events, notifications.Event{
		Type:    notifications.EventPostCreated,
		ActorID: actor.ID,
		PostID:  post.ID,
	})
	return s.reload(ctx, actor, post.ID)
}

func (s *PostService) UpdatePost(ctx context.Context, actor policy.Actor, postID uint, in UpdatePostInput) (*models.PostView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	in.Title = trimmed(in.Title)
	in.Content = trimmed(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanMutate(actor, post, policy.EditPost).Err(); err != nil {
		return nil, err
	}

	patch := &models.Post{}
	var fields []string
	if in.Title != nil {
		patch.Title = *in.Title
		fields = append(fields, "title")
	}
	if in.Content != nil {
		patch.Content = *in.Content
		fields = append(fields, "content")
	}
	if in.Category != nil {
		patch.Category = *in.Category
		fields = append(fields, "category")
	}
	if in.Tags != nil {
		patch.Tags = *in.Tags
		fields = append(fields, "tags")
	}
	if in.Images != nil {
		patch.Images = *in.Images
		fields = append(fields, "images")
	}
	if in.IsPremium != nil {
		patch.IsPremium = *in.IsPremium
		fields = append(fields, "is_premium")
	}

	if err := s.posts.UpdateFields(ctx, postID, patch, fields...); err != nil {
		return nil, err
	}
	return s.reload(ctx, actor, postID)
}

func (s *PostService) DeletePost(ctx context.Context, actor policy.Actor, postID uint) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if err := policy.CanMutate(actor, post, policy.DeletePost).Err(); err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, postID); err != nil {
		return err
	}
	cache.InvalidatePost(ctx, postID)
	return nil
}

// GetPost returns a post as seen by viewer, who may be anonymous.
func (s *PostService) GetPost(ctx context.Context, viewer policy.Actor, postID uint) (*models.PostView, error) {
	return s.load(ctx, viewer, postID)
}

func (s *PostService) ListPosts(ctx context.Context, viewer policy.Actor, in ListPostsInput) ([]models.PostView, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	posts, err := s.posts.List(ctx, models.PostFilter{
		Category: models.Category(in.Category),
		AuthorID: in.AuthorID,
		SortBy:   in.SortBy,
		Limit:    in.Limit,
		Offset:   in.Offset,
	})
	if err != nil {
		return nil, err
	}
	return s.many(ctx, viewer, posts)
}

// Upvote makes actor's vote on postID an upvote. Repeating it is a no-op and
// it replaces an earlier downvote.
func (s *PostService) Upvote(ctx context.Context, actor policy.Actor, postID uint) (*models.PostView, error) {
	return s.vote(ctx, actor, postID, models.VoteUp)
}

// Downvote is the mirror image of Upvote.
func (s *PostService) Downvote(ctx context.Context, actor policy.Actor, postID uint) (*models.PostView, error) {
	return s.vote(ctx, actor, postID, models.VoteDown)
}

func (s *PostService) vote(ctx context.Context, actor policy.Actor, postID uint, direction models.VoteDirection) (*models.PostView, error) {
	if err := policy.CanMutate(actor, nil, policy.Vote).Err(); err != nil {
		return nil, err
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := s.posts.SetVote(ctx, postID, actor.ID, direction); err != nil {
		return nil, err
	}
	observability.VotesTotal.WithLabelValues(string(direction)).Inc()

	if post.AuthorID != actor.ID {
		publish(ctx, s.events, notifications.Event{
			Type:        notifications.EventPostVoted,
			ActorID:     actor.ID,
			RecipientID: post.AuthorID,
			PostID:      postID,
			Detail:      string(direction),
		})
	}
	return s.reload(ctx, actor, postID)
}

// ToggleFavourite adds postID to the actor's favourites, or removes it if
// it is already there.
func (s *PostService) ToggleFavourite(ctx context.Context, actor policy.Actor, postID uint) (*models.FavouriteResult, error) {
	if err := policy.CanMutate(actor, nil, policy.FavouriteToggle).Err(); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, actor.ID); err != nil {
		return nil, err
	}
	exists, err := s.posts.Exists(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundMessage("Post not found")
	}

	favourite, err := s.social.ToggleFavourite(ctx, actor.ID, postID)
	if err != nil {
		return nil, err
	}
	result := "removed"
	if favourite {
		result = "added"
	}
	observability.ToggleTotal.WithLabelValues("favourite", result).Inc()

	view, err := s.load(ctx, actor, postID)
	if err != nil {
		return nil, err
	}
	return &models.FavouriteResult{IsFavourite: favourite, Post: *view}, nil
}

// ListFavourites returns the favourites of userID. Only the owner may read them.
func (s *PostService) ListFavourites(ctx context.Context, actor policy.Actor, userID uint, limit, offset int) ([]models.PostView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.ID != userID {
		return nil, models.NewUnauthorizedError("You are not authorized to view these favourites")
	}
	posts, err := s.posts.ListFavourites(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.many(ctx, actor, posts)
}

// FavouriteMessage is the response message for a favourite toggle result.
func FavouriteMessage(isFavourite bool) string {
	if isFavourite {
		return "Post added to favourites successfully"
	}
	return "Post removed from favourites successfully"
}

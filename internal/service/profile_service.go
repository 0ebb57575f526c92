package service

import (
	"context"

	"sprout/internal/cache"
	"sprout/internal/models"
	"sprout/internal/notifications"
	"sprout/internal/observability"
	"sprout/internal/policy"
	"sprout/internal/repository"
	"sprout/internal/validation"
)

// ProfileService serves the caller's profile and the follow graph.
type ProfileService struct {
	users  repository.UserRepository
	social repository.SocialRepository
	events EventPublisher
}

// UpdateProfileInput lists the only profile fields a user may change.
// Unknown keys in the request body are ignored.
type UpdateProfileInput struct {
	Name           *string `json:"name" validate:"omitempty,min=3,max=30"`
	Phone          *string `json:"phone" validate:"omitempty,min=10,max=15"`
	Address        *string `json:"address" validate:"omitempty,min=5,max=100"`
	ProfilePicture *string `json:"profilePicture" validate:"omitempty,url"`
}

// FollowResult is returned by ToggleFollow.
type FollowResult struct {
	Following bool   `json:"following"`
	Message   string `json:"-"`
}

func NewProfileService(userRepo repository.UserRepository, socialRepo repository.SocialRepository, events EventPublisher) *ProfileService {
	return &ProfileService{users: userRepo, social: socialRepo, events: events}
}

// GetProfile returns the actor's profile with followers and following
// expanded to display projections.
func (s *ProfileService) GetProfile(ctx context.Context, actor policy.Actor) (*models.Profile, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var profile models.Profile
	err := cache.CacheAside(ctx, cache.ProfileKey(actor.ID), &profile, cache.ProfileTTL, func() error {
		user, err := s.users.GetByID(ctx, actor.ID)
		if err != nil {
			return err
		}
		followers, err := s.social.Followers(ctx, actor.ID)
		if err != nil {
			return err
		}
		following, err := s.social.Following(ctx, actor.ID)
		if err != nil {
			return err
		}
		profile = models.Profile{
			ID:             user.ID,
			Name:           user.Name,
			Email:          user.Email,
			Address:        user.Address,
			Phone:          user.Phone,
			Role:           user.Role,
			ProfilePicture: user.ProfilePicture,
			IsVerified:     user.IsVerified,
			Followers:      followers,
			Following:      following,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *ProfileService) UpdateProfile(ctx context.Context, actor policy.Actor, in UpdateProfileInput) (*models.Profile, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	in.Name = trimmed(in.Name)
	in.Phone = trimmed(in.Phone)
	in.Address = trimmed(in.Address)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	patch := &models.User{}
	var fields []string
	if in.Name != nil {
		patch.Name = *in.Name
		fields = append(fields, "name")
	}
	if in.Phone != nil {
		patch.Phone = *in.Phone
		fields = append(fields, "phone")
	}
	if in.Address != nil {
		patch.Address = *in.Address
		fields = append(fields, "address")
	}
	if in.ProfilePicture != nil {
		patch.ProfilePicture = *in.ProfilePicture
		fields = append(fields, "profile_picture")
	}

	if len(fields) > 0 {
		if err := s.users.UpdateFields(ctx, actor.ID, patch, fields...); err != nil {
			return nil, err
		}
		if err := s.invalidateNeighbourhood(ctx, actor.ID); err != nil {
			return nil, err
		}
	}
	return s.GetProfile(ctx, actor)
}

// invalidateNeighbourhood drops the cached profiles that embed userID's
// summary: their own and those of everyone they are connected to.
func (s *ProfileService) invalidateNeighbourhood(ctx context.Context, userID uint) error {
	ids := []uint{userID}
	for _, list := range []func(context.Context, uint) ([]models.UserSummary, error){s.social.Followers, s.social.Following} {
		summaries, err := list(ctx, userID)
		if err != nil {
			return err
		}
		for _, u := range summaries {
			ids = append(ids, u.ID)
		}
	}
	cache.InvalidateProfiles(ctx, ids...)
	return nil
}

// ToggleFollow makes actor follow targetID, or unfollow it when the edge
// already exists.
func (s *ProfileService) ToggleFollow(ctx context.Context, actor policy.Actor, targetID uint) (*FollowResult, error) {
	if err := policy.CanMutate(actor, nil, policy.FollowToggle).Err(); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, actor.ID); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return nil, err
	}
	if actor.ID == targetID {
		return nil, models.NewValidationError("You cannot follow yourself")
	}

	following, err := s.social.ToggleFollow(ctx, actor.ID, targetID)
	if err != nil {
		return nil, err
	}
	cache.InvalidateProfiles(ctx, actor.ID, targetID)

	if !following {
		observability.ToggleTotal.WithLabelValues("follow", "removed").Inc()
		return &FollowResult{Following: false, Message: "Unfollowed successfully"}, nil
	}
	observability.ToggleTotal.WithLabelValues("follow", "added").Inc()
	publish(ctx, s.events, notifications.Event{
		Type:        notifications.EventUserFollowed,
		ActorID:     actor.ID,
		RecipientID: targetID,
	})
	return &FollowResult{Following: true, Message: "Followed successfully"}, nil
}

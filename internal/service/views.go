package service

import (
	"context"
	"strings"

	"sprout/internal/cache"
	"sprout/internal/featureflags"
	"sprout/internal/middleware"
	"sprout/internal/models"
	"sprout/internal/notifications"
	"sprout/internal/policy"
	"sprout/internal/repository"
)

// PremiumGateFlag controls whether premium posts are locked for viewers
// without access.
const PremiumGateFlag = "premium_gate"

// EventPublisher publishes activity events. *notifications.Notifier
// implements it.
type EventPublisher interface {
	Notify(ctx context.Context, ev notifications.Event) error
}

// postViews loads display shapes of posts and applies the premium gate.
type postViews struct {
	posts repository.PostRepository
	users repository.UserRepository
	flags *featureflags.Manager
}

// load returns the view of postID as seen by viewer. The unlocked view is
// cached; the gate runs on every read.
func (v postViews) load(ctx context.Context, viewer policy.Actor, postID uint) (*models.PostView, error) {
	var view models.PostView
	err := cache.CacheAside(ctx, cache.PostKey(postID), &view, cache.PostTTL, func() error {
		post, err := v.posts.GetByID(ctx, postID)
		if err != nil {
			return err
		}
		view = models.NewPostView(post)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := v.gate(ctx, viewer, []models.PostView{view}, func(i int) { view.Lock() }); err != nil {
		return nil, err
	}
	return &view, nil
}

// reload drops the cached view of postID and loads it again.
func (v postViews) reload(ctx context.Context, viewer policy.Actor, postID uint) (*models.PostView, error) {
	cache.InvalidatePost(ctx, postID)
	return v.load(ctx, viewer, postID)
}

// many converts posts to views as seen by viewer.
func (v postViews) many(ctx context.Context, viewer policy.Actor, posts []models.Post) ([]models.PostView, error) {
	views := make([]models.PostView, len(posts))
	for i := range posts {
		views[i] = models.NewPostView(&posts[i])
	}
	if err := v.gate(ctx, viewer, views, func(i int) { views[i].Lock() }); err != nil {
		return nil, err
	}
	return views, nil
}

// gate calls lock for every premium view viewer may not read in full. Authors
// always see their own posts; other viewers need a verified account.
func (v postViews) gate(ctx context.Context, viewer policy.Actor, views []models.PostView, lock func(i int)) error {
	if !v.flags.Enabled(PremiumGateFlag, viewer.ID) {
		return nil
	}

	verified, checked := false, false
	for i := range views {
		if !views[i].IsPremium || (viewer.ID != 0 && views[i].Author.ID == viewer.ID) {
			continue
		}
		if !checked {
			checked = true
			ok, err := v.isVerified(ctx, viewer.ID)
			if err != nil {
				return err
			}
			verified = ok
		}
		if !verified {
			lock(i)
		}
	}
	return nil
}

func (v postViews) isVerified(ctx context.Context, userID uint) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	user, err := v.users.GetByID(ctx, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.IsVerified, nil
}

// publish sends ev without failing the caller's mutation.
func publish(ctx context.Context, events EventPublisher, ev notifications.Event) {
	if events == nil {
		return
	}
	if err := events.Notify(ctx, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish event", "type", ev.Type, "error", err)
	}
}

// requireActor rejects anonymous callers.
// trimmed returns a trimmed copy of an optional patch field.
func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func requireActor(actor policy.Actor) error {
	if actor.ID == 0 {
		return models.NewUnauthenticatedError("No token provided")
	}
	return nil
}

// Package policy decides whether an actor may mutate a piece of content.
// Every function here is pure: no I/O and no clock.
package policy

import (
	"sprout/internal/models"
)

// Action names a mutation guarded by the policy.
type Action string

const (
	EditPost        Action = "editPost"
	DeletePost      Action = "deletePost"
	EditComment     Action = "editComment"
	DeleteComment   Action = "deleteComment"
	Vote            Action = "vote"
	AddComment      Action = "addComment"
	AddReply        Action = "addReply"
	FavouriteToggle Action = "favouriteToggle"
	FollowToggle    Action = "followToggle"
)

// Actor is the authenticated identity making a request.
type Actor struct {
	ID   uint
	Role models.Role
}

// Owned is implemented by entities that have a single owning user.
type Owned interface {
	OwnerID() uint
}

// Decision is the outcome of CanMutate. Reason is set only on denial.
type Decision struct {
	Allowed bool
	Reason  string
}

// Err converts a denial into an Unauthorized AppError, or nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return models.NewUnauthorizedError(d.Reason)
}

var denyReasons = map[Action]string{
	EditPost:      "You are not authorized to edit this post",
	DeletePost:    "You are not authorized to delete this post",
	EditComment:   "You are not authorized to edit this comment",
	DeleteComment: "You are not authorized to delete this comment",
}

// CanMutate reports whether actor may perform action on entity.
// Ownership actions require the actor to be the entity's owner; the admin
// role does not override ownership. Open actions only require an
// authenticated actor.
func CanMutate(actor Actor, entity Owned, action Action) Decision {
	if actor.ID == 0 || !actor.Role.Valid() {
		return Decision{Reason: "You have no access to this route"}
	}

	switch action {
	case EditPost, DeletePost, EditComment, DeleteComment:
		if entity == nil || entity.OwnerID() != actor.ID {
			return Decision{Reason: denyReasons[action]}
		}
		return Decision{Allowed: true}
	case Vote, AddComment, AddReply, FavouriteToggle, FollowToggle:
		return Decision{Allowed: true}
	default:
		return Decision{Reason: "Unknown action"}
	}
}

package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	PostKeyPrefix    = "post:%d"
	ProfileKeyPrefix = "profile:%d"
)

const (
	PostTTL    = 5 * time.Minute
	ProfileTTL = 5 * time.Minute
)

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func ProfileKey(userID uint) string {
	return fmt.Sprintf(ProfileKeyPrefix, userID)
}

// Invalidate drops key from the cache. Missing clients and errors are ignored.
func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
}

// InvalidateProfiles drops the cached profiles of every given user.
func InvalidateProfiles(ctx context.Context, userIDs ...uint) {
	for _, id := range userIDs {
		Invalidate(ctx, ProfileKey(id))
	}
}

package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserProfileKeyPrefix = "user:%d:profile"
)

const (
	UserProfileTTL = 5 * time.Minute
)

// UserProfileKey caches the public profile with follower counts. Lockout
// state and password hashes are never cached.
func UserProfileKey(userID uint) string {
	return fmt.Sprintf(UserProfileKeyPrefix, userID)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidateUsers drops cached profiles, e.g. both ends of a follow edge.
func InvalidateUsers(ctx context.Context, userIDs ...uint) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, UserProfileKey(id))
	}
	Invalidate(ctx, keys...)
}

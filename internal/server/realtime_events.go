package server

import (
	"context"

	"socialhub/internal/events"
	"socialhub/internal/featureflags"
	"socialhub/internal/middleware"
	"socialhub/internal/models"
	"socialhub/internal/notifications"
)

// Event type aliases keep handler code short.
const (
	EventPostCreated         = notifications.EventPostCreated
	EventPostDeleted         = notifications.EventPostDeleted
	EventPostReactionUpdated = notifications.EventPostReactionUpdated
	EventCommentCreated      = notifications.EventCommentCreated
	EventCommentDeleted      = notifications.EventCommentDeleted
	EventFollowerAdded       = notifications.EventFollowerAdded
)

func (s *Server) realtimeEnabled(userID uint) bool {
	return s.notifier != nil && s.featureFlags.Enabled(featureflags.Realtime, userID)
}

// postAudience resolves who may receive realtime updates about post.
// PUBLIC posts go to everyone; otherwise the recipients are exactly the
// users the visibility rule admits.
func (s *Server) postAudience(ctx context.Context, post *models.Post) (broadcast bool, userIDs []uint) {
	switch post.Privacy {
	case models.PrivacyPublic:
		return true, nil
	case models.PrivacyFriends:
		recipients := []uint{post.UserID}
		followers, err := s.followRepo.FollowerIDs(ctx, post.UserID)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "Failed to load followers for fan-out", "post_id", post.ID, "error", err)
			return false, recipients
		}
		for _, id := range followers {
			if id != post.UserID {
				recipients = append(recipients, id)
			}
		}
		return false, recipients
	default:
		return false, []uint{post.UserID}
	}
}

// publishPostEvent delivers an event about post to its audience. Failures
// are logged; the request has already succeeded.
func (s *Server) publishPostEvent(ctx context.Context, post *models.Post, eventType string, payload map[string]any) {
	if post == nil || !s.realtimeEnabled(post.UserID) {
		return
	}

	broadcast, recipients := s.postAudience(ctx, post)
	var err error
	if broadcast {
		err = s.notifier.BroadcastEvent(ctx, eventType, payload)
	} else {
		err = s.notifier.SendEvent(ctx, eventType, payload, recipients...)
	}
	if err != nil {
		middleware.Logger.WarnContext(ctx, "Failed to publish realtime event", "type", eventType, "post_id", post.ID, "error", err)
	}
}

// publishCommentEvent adds the post's current comment count to payload and
// publishes it to the post's audience.
func (s *Server) publishCommentEvent(ctx context.Context, postID uint, eventType string, payload map[string]any) {
	if s.notifier == nil {
		return
	}
	post, err := s.postRepo.GetByID(ctx, postID, 0)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "Failed to load post for realtime event", "type", eventType, "post_id", postID, "error", err)
		return
	}
	payload["post_id"] = post.ID
	payload["comments_count"] = post.CommentsCount
	s.publishPostEvent(ctx, post, eventType, payload)
}

// realtimePublisher passes domain events through to the broker and tells a
// followee about each new follower.
type realtimePublisher struct {
	events.Publisher
	server *Server
}

func (p realtimePublisher) UserFollowed(ctx context.Context, evt events.FollowChanged) error {
	s := p.server
	if s.realtimeEnabled(evt.FolloweeID) {
		payload := map[string]any{"follower_id": evt.FollowerID}
		if follower, err := s.userRepo.GetByID(ctx, evt.FollowerID); err == nil {
			payload["follower"] = follower.Summary()
		}
		if err := s.notifier.SendEvent(ctx, EventFollowerAdded, payload, evt.FolloweeID); err != nil {
			middleware.Logger.WarnContext(ctx, "Failed to publish realtime event", "type", EventFollowerAdded, "error", err)
		}
	}
	return p.Publisher.UserFollowed(ctx, evt)
}

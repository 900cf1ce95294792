package service

import "socialhub/internal/models"

// CanView reports whether viewerID may read post. viewerFollowsAuthor is
// whether viewerID follows the post's author. The repository applies the
// same rule in SQL for feeds and timelines.
func CanView(viewerID uint, post *models.Post, viewerFollowsAuthor bool) bool {
	if post == nil {
		return false
	}
	switch post.Privacy {
	case models.PrivacyPublic:
		return true
	case models.PrivacyFriends:
		return viewerID != 0 && (post.UserID == viewerID || viewerFollowsAuthor)
	case models.PrivacyPrivate:
		return viewerID != 0 && post.UserID == viewerID
	default:
		return false
	}
}

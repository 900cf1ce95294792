package server

import (
	"context"

	"socialhub/internal/models"
	"socialhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetFeed handles GET /api/posts
// @Summary Feed
// @Description Posts visible to the caller, newest first
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} models.Page[models.Post]
// @Router /posts [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page := parsePagination(c, 20)

	feed, err := s.postService.Feed(c.UserContext(), callerID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(feed)
}

// CreatePost handles POST /api/posts
// @Summary Create post
// @Description Media items are base64 or data URIs; any failed upload rejects the post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{content=string,media=[]string,privacy_level=string} true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Content string   `json:"content"`
		Media   []string `json:"media"`
		Privacy string   `json:"privacy_level"`
	}
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	ctx := c.UserContext()
	post, err := s.postService.CreatePost(ctx, service.CreatePostInput{
		UserID:  callerID(c),
		Content: req.Content,
		Media:   req.Media,
		Privacy: req.Privacy,
	})
	if err != nil {
		return respondError(c, err)
	}

	s.publishPostEvent(ctx, post, EventPostCreated, map[string]any{
		"post_id":       post.ID,
		"author_id":     post.UserID,
		"privacy_level": post.Privacy,
		"created_at":    post.CreatedAt,
	})

	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost handles GET /api/posts/:id
// @Summary Get post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), id, callerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete post
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	ctx := c.UserContext()
	post, err := s.postService.DeletePost(ctx, service.DeletePostInput{UserID: callerID(c), PostID: id})
	if err != nil {
		return respondError(c, err)
	}

	s.publishPostEvent(ctx, post, EventPostDeleted, map[string]any{
		"post_id":   post.ID,
		"author_id": post.UserID,
	})

	return c.SendStatus(fiber.StatusNoContent)
}

// LikePost handles POST /api/posts/:id/like
// @Summary Like post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	return s.react(c, s.postService.LikePost)
}

// UnlikePost handles DELETE /api/posts/:id/like
// @Summary Unlike post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Success 204 "Like withdrawn; post no longer visible"
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [delete]
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	return s.react(c, s.postService.UnlikePost)
}

func (s *Server) react(c *fiber.Ctx, fn func(ctx context.Context, userID, postID uint) (*models.Post, error)) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	ctx := c.UserContext()
	post, err := fn(ctx, callerID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	if post == nil {
		// Like withdrawn from a post the caller can no longer see.
		return c.SendStatus(fiber.StatusNoContent)
	}

	s.publishPostEvent(ctx, post, EventPostReactionUpdated, map[string]any{
		"post_id":        post.ID,
		"likes_count":    post.LikesCount,
		"comments_count": post.CommentsCount,
	})

	return c.JSON(post)
}

// GetUserPosts handles GET /api/users/:id/posts
// @Summary User timeline
// @Description Posts by one author that the caller may see
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.Page[models.Post]
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id}/posts [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	authorID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 20)

	posts, err := s.postService.ListByAuthor(c.UserContext(), authorID, callerID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

package server

import (
	"socialhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetComments handles GET /api/posts/:id/comments
// @Summary List comments
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.Page[models.Comment]
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 20)

	comments, err := s.commentService.ListComments(c.UserContext(), postID, callerID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/posts/:id/comments
// @Summary Create comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body object{content=string} true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	ctx := c.UserContext()
	created, err := s.commentService.CreateComment(ctx, service.CreateCommentInput{
		UserID:  callerID(c),
		PostID:  postID,
		Content: req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}

	s.publishCommentEvent(ctx, postID, EventCommentCreated, map[string]any{"comment": created})

	return c.Status(fiber.StatusCreated).JSON(created)
}

// DeleteComment handles DELETE /api/comments/:commentId and
// DELETE /api/posts/:id/comments/:commentId
// @Summary Delete comment
// @Tags comments
// @Security BearerAuth
// @Param commentId path int true "Comment ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments/{commentId} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}
	var postID uint
	if c.Params("id") != "" {
		if postID, err = s.parseID(c, "id"); err != nil {
			return nil
		}
	}

	ctx := c.UserContext()
	comment, err := s.commentService.DeleteComment(ctx, service.DeleteCommentInput{
		UserID:    callerID(c),
		CommentID: commentID,
		PostID:    postID,
	})
	if err != nil {
		return respondError(c, err)
	}

	s.publishCommentEvent(ctx, comment.PostID, EventCommentDeleted, map[string]any{"comment_id": comment.ID})

	return c.SendStatus(fiber.StatusNoContent)
}

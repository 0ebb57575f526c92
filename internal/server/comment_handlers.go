package server

import (
	"sprout/internal/models"
	"sprout/internal/service"

	"github.com/gofiber/fiber/v2"
)

// commentPath parses :postId and, when withComment is set, :commentId.
func commentPath(c *fiber.Ctx, withComment bool) (postID, commentID uint, err error) {
	if postID, err = parseID(c, "postId"); err != nil {
		return 0, 0, err
	}
	if withComment {
		if commentID, err = parseID(c, "commentId"); err != nil {
			return 0, 0, err
		}
	}
	return postID, commentID, nil
}

// AddComment handles POST /api/v1/posts/:postId/comments
// @Summary Comment on a post
// @Tags comments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param postId path int true "Post ID"
// @Param request body service.CommentInput true "Comment"
// @Success 201 {object} models.Envelope{data=models.PostView}
// @Failure 404 {object} models.Envelope
// @Router /posts/{postId}/comments [post]
func (s *Server) AddComment(c *fiber.Ctx) error {
	postID, _, err := commentPath(c, false)
	if err != nil {
		return nil
	}
	var req service.CommentInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.commentService.AddComment(c.UserContext(), actor(c), postID, req)
	if err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusCreated, "Comment added successfully", post)
}

// EditComment handles PUT /api/v1/posts/:postId/comments/:commentId
// @Summary Edit a comment
// @Tags comments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param postId path int true "Post ID"
// @Param commentId path int true "Comment ID"
// @Param request body service.CommentInput true "Comment"
// @Success 200 {object} models.Envelope{data=models.PostView}
// @Failure 403 {object} models.Envelope
// @Router /posts/{postId}/comments/{commentId} [put]
func (s *Server) EditComment(c *fiber.Ctx) error {
	postID, commentID, err := commentPath(c, true)
	if err != nil {
		return nil
	}
	var req service.CommentInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.commentService.EditComment(c.UserContext(), actor(c), postID, commentID, req)
	if err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusOK, "Comment edited successfully", post)
}

// DeleteComment handles DELETE /api/v1/posts/:postId/comments/:commentId
// @Summary Delete a comment and its replies
// @Tags comments
// @Security BearerAuth
// @Produce json
// @Param postId path int true "Post ID"
// @Param commentId path int true "Comment ID"
// @Success 200 {object} models.Envelope{data=models.PostView}
// @Failure 403 {object} models.Envelope
// @Router /posts/{postId}/comments/{commentId} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	postID, commentID, err := commentPath(c, true)
	if err != nil {
		return nil
	}

	post, err := s.commentService.DeleteComment(c.UserContext(), actor(c), postID, commentID)
	if err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusOK, "Comment deleted successfully", post)
}

// AddReply handles POST /api/v1/posts/:postId/comments/:commentId/replies
// @Summary Reply to a comment
// @Tags comments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param postId path int true "Post ID"
// @Param commentId path int true "Comment ID"
// @Param request body service.CommentInput true "Reply"
// @Success 201 {object} models.Envelope{data=models.PostView}
// @Failure 404 {object} models.Envelope
// @Router /posts/{postId}/comments/{commentId}/replies [post]
func (s *Server) AddReply(c *fiber.Ctx) error {
	postID, commentID, err := commentPath(c, true)
	if err != nil {
		return nil
	}
	var req service.CommentInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.commentService.AddReply(c.UserContext(), actor(c), postID, commentID, req)
	if err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusCreated, "Reply added successfully", post)
}

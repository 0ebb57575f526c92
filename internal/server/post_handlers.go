package server

import (
	"sprout/internal/models"
	"sprout/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListPosts handles GET /api/v1/posts
// @Summary List posts
// @Description Premium content is locked unless the caller is verified or the author
// @Tags posts
// @Produce json
// @Param category query string false "Vegetables, Flowers, Landscaping or Fruits"
// @Param author query int false "Author user ID"
// @Param sortBy query string false "upvotes"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Page offset"
// @Success 200 {object} models.Envelope{data=[]models.PostView}
// @Router /posts [get]
func (s *Server) ListPosts(c *fiber.Ctx) error {
	var q service.ListPostsInput
	if err := c.QueryParser(&q); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid query parameters"))
	}
	page := parsePagination(c)
	q.Limit, q.Offset = page.Limit, page.Offset

	posts, err := s.postService.ListPosts(c.UserContext(), actor(c), q)
	if err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusOK, "Posts fetched successfully", posts)
}

// GetPost handles GET /api/v1/posts/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Envelope{data=models.PostView}
// @Failure 404 {object} models.Envelope
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), actor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusOK, "Post fetched successfully", post)
}

// CreatePost handles POST /api/v1/posts/create
// @Summary Create a post
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body service.CreatePostInput true "Post"
// @Success 201 {object} models.Envelope{data=models.PostView}
// @Failure 400 {object} models.Envelope
// @Router /posts/create [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req service.CreatePostInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.CreatePost(c.UserContext(), actor(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusCreated, "Post created successfully", post)
}

// UpdatePost handles PATCH /api/v1/posts/edit/:id
// @Summary Edit a post
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body service.UpdatePostInput true "Fields to change"
// @Success 200 {object} models.Envelope{data=models.PostView}
// @Failure 403 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Router /posts/edit/{id} [patch]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.UpdatePostInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.UpdatePost(c.UserContext(), actor(c), id, req)
	if err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusOK, "Post updated successfully", post)
}

// DeletePost handles DELETE /api/v1/posts/delete/:id
// @Summary Delete a post
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Envelope
// @Failure 403 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Router /posts/delete/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), actor(c), id); err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusOK, "Post deleted successfully", nil)
}

// Upvote handles POST /api/v1/posts/:id/upvote
// @Summary Upvote a post
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Envelope{data=models.PostView}
// @Router /posts/{id}/upvote [post]
func (s *Server) Upvote(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.Upvote(c.UserContext(), actor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusOK, "Post upvoted successfully", post)
}

// Downvote handles POST /api/v1/posts/:id/downvote
// @Summary Downvote a post
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Envelope{data=models.PostView}
// @Router /posts/{id}/downvote [post]
func (s *Server) Downvote(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.Downvote(c.UserContext(), actor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusOK, "Post downvoted successfully", post)
}

// ToggleFavourite handles POST /api/v1/posts/favourites/:postId and
// POST /api/v1/favourites/:postId
// @Summary Add or remove a favourite
// @Tags favourites
// @Security BearerAuth
// @Produce json
// @Param postId path int true "Post ID"
// @Success 200 {object} models.Envelope{data=models.FavouriteResult}
// @Failure 404 {object} models.Envelope
// @Router /favourites/{postId} [post]
func (s *Server) ToggleFavourite(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}

	res, err := s.postService.ToggleFavourite(c.UserContext(), actor(c), postID)
	if err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusOK, service.FavouriteMessage(res.IsFavourite), res)
}

// ListFavourites handles GET /api/v1/posts/favourites/:userId
// @Summary A user's favourite posts
// @Description Only the owner may read a favourites list
// @Tags favourites
// @Security BearerAuth
// @Produce json
// @Param userId path int true "User ID"
// @Success 200 {object} models.Envelope{data=[]models.PostView}
// @Failure 403 {object} models.Envelope
// @Router /posts/favourites/{userId} [get]
func (s *Server) ListFavourites(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	return s.respondFavourites(c, userID)
}

// MyFavourites handles GET /api/v1/favourites
// @Summary The caller's favourite posts
// @Tags favourites
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.Envelope{data=[]models.PostView}
// @Router /favourites [get]
func (s *Server) MyFavourites(c *fiber.Ctx) error {
	return s.respondFavourites(c, actor(c).ID)
}

func (s *Server) respondFavourites(c *fiber.Ctx, userID uint) error {
	page := parsePagination(c)
	posts, err := s.postService.ListFavourites(c.UserContext(), actor(c), userID, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusOK, "Favourite posts retrieved successfully", posts)
}

package server

import (
	"context"

	"socialconnect/internal/models"
	"socialconnect/internal/policy"
	"socialconnect/internal/repository"
	"socialconnect/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetUsers handles GET /api/users
// @Summary List users
// @Description Lists active users, optionally filtered by a name search
// @Tags users
// @Produce json
// @Param search query string false "Username or name search"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset"
// @Success 200 {object} object{users=[]models.User,pagination=models.Pagination}
// @Router /users [get]
func (s *Server) GetUsers(c *fiber.Ctx) error {
	page := parsePage(c)

	users, total, err := s.userService.List(c.UserContext(), c.Query("search"), page)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"users":      users,
		"pagination": pagination(page, total),
	})
}

// GetMyProfile handles GET /api/users/me
// @Summary Get my profile
// @Tags users
// @Produce json
// @Success 200 {object} object{user=models.User}
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.Me(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}

// UpdateMyProfile handles PUT/PATCH /api/users/me
// @Summary Update my profile
// @Description Partial update; omitted fields are left unchanged
// @Tags users
// @Accept json
// @Produce json
// @Param request body service.UpdateProfileInput true "Profile fields"
// @Success 200 {object} object{message=string,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req service.UpdateProfileInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.UserID = currentUserID(c)

	user, err := s.userService.UpdateMe(c.UserContext(), req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Profile updated successfully",
		"user":    user,
	})
}

// GetUserProfile handles GET /api/users/:id
// @Summary Get a user profile
// @Description Returns the profile subject to the owner's visibility. Hidden profiles are 403.
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{user=models.User}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.Profile(c.UserContext(), viewerFrom(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}

// FollowUser handles POST /api/users/:id/follow
// @Summary Follow a user
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/{id}/follow [post]
func (s *Server) FollowUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.userService.Follow(c.UserContext(), currentUserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "User followed successfully"})
}

// UnfollowUser handles DELETE /api/users/:id/follow
// @Summary Unfollow a user
// @Description Idempotent; unfollowing a user you do not follow succeeds
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{message=string}
// @Security BearerAuth
// @Router /users/{id}/follow [delete]
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.userService.Unfollow(c.UserContext(), currentUserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "User unfollowed successfully"})
}

// GetFollowers handles GET /api/users/:id/followers
// @Summary List followers
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset"
// @Success 200 {object} object{users=[]models.User,pagination=models.Pagination}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id}/followers [get]
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	return s.listFollowEdges(c, s.userService.Followers)
}

// GetFollowing handles GET /api/users/:id/following
// @Summary List followed users
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset"
// @Success 200 {object} object{users=[]models.User,pagination=models.Pagination}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id}/following [get]
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	return s.listFollowEdges(c, s.userService.Following)
}

type followLister func(ctx context.Context, viewer policy.Viewer, targetID uint, page repository.Page) ([]models.User, int64, error)

func (s *Server) listFollowEdges(c *fiber.Ctx, list followLister) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePage(c)

	users, total, err := list(c.UserContext(), viewerFrom(c), id, page)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if users == nil {
		users = []models.User{}
	}

	return c.JSON(fiber.Map{
		"users":      users,
		"pagination": pagination(page, total),
	})
}

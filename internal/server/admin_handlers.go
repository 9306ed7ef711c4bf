package server

import (
	"strings"

	"socialconnect/internal/models"

	"github.com/gofiber/fiber/v2"
)

const maxAdminUserSearchLen = 64

// GetAdminStats handles GET /api/admin/stats
// @Summary Dashboard statistics
// @Tags admin
// @Produce json
// @Success 200 {object} models.AdminStats
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/stats [get]
func (s *Server) GetAdminStats(c *fiber.Ctx) error {
	stats, err := s.adminService.Stats(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(stats)
}

// GetAdminUsers handles GET /api/admin/users
// @Summary List all users
// @Tags admin
// @Produce json
// @Param search query string false "Username, email or name search"
// @Param status query string false "active or inactive"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset"
// @Success 200 {object} object{users=[]models.User,pagination=models.Pagination}
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users [get]
func (s *Server) GetAdminUsers(c *fiber.Ctx) error {
	search := strings.TrimSpace(c.Query("search"))
	if len(search) > maxAdminUserSearchLen {
		search = search[:maxAdminUserSearchLen]
	}
	page := parsePage(c)

	users, total, err := s.adminService.ListUsers(c.UserContext(), search, c.Query("status"), page)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"users":      users,
		"pagination": pagination(page, total),
	})
}

// GetAdminUser handles GET /api/admin/users/:id
// @Summary Get a user with moderation counters
// @Tags admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{user=service.AdminUserDetail}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users/{id} [get]
func (s *Server) GetAdminUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.adminService.GetUser(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}

// DeactivateUser handles POST /api/admin/users/:id/deactivate
// @Summary Deactivate a user
// @Description Marks the account inactive and revokes every refresh token it holds
// @Tags admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{message=string,revoked_tokens=int}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users/{id}/deactivate [post]
func (s *Server) DeactivateUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	revoked, err := s.adminService.Deactivate(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":        "User deactivated successfully",
		"revoked_tokens": revoked,
	})
}

// ActivateUser handles POST /api/admin/users/:id/activate
// @Summary Reactivate a user
// @Description Previously revoked refresh tokens stay revoked
// @Tags admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users/{id}/activate [post]
func (s *Server) ActivateUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.adminService.Activate(c.UserContext(), currentUserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "User activated successfully"})
}

// GetAdminPosts handles GET /api/admin/posts
// @Summary List posts for moderation
// @Tags admin
// @Produce json
// @Param include_inactive query bool false "Include deleted posts"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset"
// @Success 200 {object} object{posts=[]models.Post,pagination=models.Pagination}
// @Security BearerAuth
// @Router /admin/posts [get]
func (s *Server) GetAdminPosts(c *fiber.Ctx) error {
	includeInactive := false
	if v := parseBoolQuery(c, "include_inactive"); v != nil {
		includeInactive = *v
	}
	page := parsePage(c)

	posts, total, err := s.adminService.ListPosts(c.UserContext(), includeInactive, page)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"posts":      posts,
		"pagination": pagination(page, total),
	})
}

// DeleteAdminPost handles DELETE /api/admin/posts/:id
// @Summary Remove a post
// @Tags admin
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/posts/{id} [delete]
func (s *Server) DeleteAdminPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.adminService.DeletePost(c.UserContext(), currentUserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post removed successfully"})
}

// ProvisionAdmin handles POST /api/admin/provision
// @Summary Grant admin with the provisioning secret
// @Tags admin
// @Accept json
// @Produce json
// @Param request body object{user_id=int,secret_key=string} true "Target user and provisioning secret"
// @Success 200 {object} object{message=string,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/provision [post]
func (s *Server) ProvisionAdmin(c *fiber.Ctx) error {
	var req struct {
		UserID    uint   `json:"user_id"`
		SecretKey string `json:"secret_key"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.UserID == 0 || req.SecretKey == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("user_id and secret_key are required"))
	}

	user, err := s.adminService.Provision(c.UserContext(), req.UserID, req.SecretKey)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Admin privileges granted. Log in again to refresh your token.",
		"user":    user,
	})
}

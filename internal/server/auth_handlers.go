package server

import (
	"socialconnect/internal/models"
	"socialconnect/internal/service"

	"github.com/gofiber/fiber/v2"
)

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register handles POST /api/auth/register
// @Summary Register a new account
// @Description Creates an active account with public profile visibility
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "Registration request"
// @Success 201 {object} object{message=string,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.authService.Register(c.UserContext(), req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"user":    user,
	})
}

// Login handles POST /api/auth/login
// @Summary Log in
// @Description Authenticates by email or username and returns an access/refresh token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Login credentials"
// @Success 200 {object} service.Session
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req service.LoginInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	session, err := s.authService.Login(c.UserContext(), req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(session)
}

// Refresh handles POST /api/auth/refresh
// @Summary Refresh the access token
// @Description Mints a new access token from an active refresh token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{refresh_token=string} true "Refresh token"
// @Success 200 {object} service.AccessGrant
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/refresh [post]
func (s *Server) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	grant, err := s.authService.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(grant)
}

// Logout handles POST /api/auth/logout
// @Summary Log out
// @Description Revokes the given refresh token of the caller
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{refresh_token=string} true "Refresh token to revoke"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	var req refreshRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.authService.Logout(c.UserContext(), currentUserID(c), req.RefreshToken); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

// ChangePassword handles POST /api/auth/change-password
// @Summary Change password
// @Description Replaces the password and revokes every refresh token of the caller
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.ChangePasswordInput true "Current and new password"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /auth/change-password [post]
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	var req service.ChangePasswordInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.UserID = currentUserID(c)

	if err := s.authService.ChangePassword(c.UserContext(), req); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Password changed successfully. Please log in again."})
}

// CheckUsername handles GET /api/auth/check-username?username=...
// @Summary Check username availability
// @Tags auth
// @Produce json
// @Param username query string true "Username"
// @Success 200 {object} service.UsernameAvailability
// @Router /auth/check-username [get]
func (s *Server) CheckUsername(c *fiber.Ctx) error {
	result, err := s.authService.CheckUsername(c.UserContext(), c.Query("username"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// RequestPasswordReset handles POST /api/auth/password-reset
// @Summary Request a password reset
// @Description Emails a single-use reset link. The response does not reveal whether the account exists.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string} true "Account email"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/password-reset [post]
func (s *Server) RequestPasswordReset(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.authService.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{"message": "If an account exists for that email, a reset link has been sent"})
}

// ConfirmPasswordReset handles POST /api/auth/password-reset/confirm
// @Summary Complete a password reset
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.ConfirmResetInput true "Reset token and new password"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/password-reset/confirm [post]
func (s *Server) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req service.ConfirmResetInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.authService.ConfirmPasswordReset(c.UserContext(), req); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Password has been reset. Please log in."})
}

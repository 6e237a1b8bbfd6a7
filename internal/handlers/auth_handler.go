package handlers

import (
	"errors"

	"clubsite/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// AuthHandler handles HTTP requests for registration and login.
type AuthHandler struct {
	authService *services.AuthService
	log         *logrus.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

// RegisterRoutes registers the account routes on router.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/register", h.HandleRegister)
	router.Post("/login", h.HandleLogin)
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// AccountResponse is the body of every /register and /login response.
type AccountResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Name    string `json:"name,omitempty"`
}

const msgInvalidBody = "Invalid request body"

// HandleRegister handles new user registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		h.log.WithError(err).Warn("failed to parse register request body")
		return c.Status(fiber.StatusBadRequest).JSON(AccountResponse{Message: msgInvalidBody})
	}

	_, err := h.authService.RegisterUser(c.UserContext(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return h.fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(AccountResponse{
		Success: true,
		Message: services.MsgRegistered,
	})
}

// HandleLogin verifies credentials and returns the member's display name.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		h.log.WithError(err).Warn("failed to parse login request body")
		return c.Status(fiber.StatusBadRequest).JSON(AccountResponse{Message: msgInvalidBody})
	}

	user, err := h.authService.LoginUser(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return h.fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(AccountResponse{
		Success: true,
		Message: services.MsgLoggedIn,
		Name:    user.Name,
	})
}

// fail writes the safe message and status code for a service error.
// Detail has already been logged by the service.
func (h *AuthHandler) fail(c *fiber.Ctx, err error) error {
	return c.Status(StatusFor(err)).JSON(AccountResponse{
		Message: services.PublicMessage(err),
	})
}

// StatusFor maps an account service error to its HTTP status code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, services.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrDuplicateEmail):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

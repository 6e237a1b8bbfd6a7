package handlers

import (
	"time"

	"clubsite/internal/services"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler reports liveness and user store connectivity.
type HealthHandler struct {
	authService *services.AuthService
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(authService *services.AuthService) *HealthHandler {
	return &HealthHandler{authService: authService}
}

// RegisterRoutes registers the health route with the Fiber app.
func (h *HealthHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/health", h.HandleHealth)
}

// HandleHealth answers 200 when the store is reachable and 503 otherwise.
func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	health := h.authService.Health(c.UserContext())
	status := fiber.StatusOK
	if !health.Healthy() {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"status":   health.Status,
		"database": health.Database,
		"time":     time.Now().Format(time.RFC3339),
	})
}

package handlers

import (
	"errors"
	"time"

	"marketplace/internal/middleware"
	"marketplace/internal/services"

	"github.com/gofiber/fiber/v2"
)

// UserHandler serves the authenticated user's own resources.
type UserHandler struct {
	authService    *services.AuthService
	productService *services.ProductService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(authService *services.AuthService, productService *services.ProductService) *UserHandler {
	return &UserHandler{
		authService:    authService,
		productService: productService,
	}
}

// RegisterRoutes registers the user routes, all behind auth.
func (h *UserHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	userRoutes := router.Group("/user", auth)
	userRoutes.Get("/profile", h.HandleProfile)
	userRoutes.Get("/products", h.HandleUserProducts)
}

type profileResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// HandleProfile returns the caller's account.
func (h *UserHandler) HandleProfile(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "Access denied")
	}

	user, err := h.authService.GetProfile(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return writeError(c, fiber.StatusNotFound, "User not found")
		}
		return serverError(c, err, "Get profile")
	}

	return c.JSON(profileResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

// HandleUserProducts lists the caller's products, newest first.
func (h *UserHandler) HandleUserProducts(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "Access denied")
	}

	products, err := h.productService.ListUserProducts(c.UserContext(), userID)
	if err != nil {
		return serverError(c, err, "Get user products")
	}
	return c.JSON(products)
}

package repositories

import (
	"context"

	"marketplace/internal/models"
)

// ProductRepository defines the interface for product data access.
// Listings are ordered newest first.
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByUserID(ctx context.Context, userID uint) ([]models.Product, error)
	GetByID(ctx context.Context, id uint) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	// UpdateOwned overwrites the editable fields of the product matching both
	// product.ID and product.UserID. It reports false when no row matched.
	UpdateOwned(ctx context.Context, product *models.Product) (bool, error)
	// DeleteOwned removes the product matching both id and userID. It reports
	// false when no row matched.
	DeleteOwned(ctx context.Context, id, userID uint) (bool, error)
}

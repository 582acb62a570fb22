package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/models"
	"marketplace/internal/repositories"
	"marketplace/internal/storage"
	"marketplace/pkg/rabbitmq"

	"github.com/h2non/filetype"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DefaultSignedURLTTL is the validity of signed image URLs in listings.
const DefaultSignedURLTTL = time.Hour

// Prices are stored as decimal(10,2).
var (
	maxPrice    = decimal.New(1, 8)
	priceDigits = int32(2)
)

// EventPublisher delivers product events to the message broker.
type EventPublisher interface {
	Publish(routingKey string, body []byte) error
}

// ImageUpload is an image file submitted with a product form.
type ImageUpload struct {
	Filename string
	Data     []byte
}

// ProductInput holds the editable fields of a product. Every field is
// written on update; omitted values overwrite stored ones.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Image       *ImageUpload
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo      repositories.ProductRepository
	store     storage.ImageStore
	publisher EventPublisher
	signedTTL time.Duration
}

// NewProductService creates a new ProductService. publisher may be nil, in
// which case no events are published.
func NewProductService(repo repositories.ProductRepository, store storage.ImageStore, publisher EventPublisher, signedTTL time.Duration) *ProductService {
	if signedTTL <= 0 {
		signedTTL = DefaultSignedURLTTL
	}
	return &ProductService{
		repo:      repo,
		store:     store,
		publisher: publisher,
		signedTTL: signedTTL,
	}
}

// ListProducts returns every product, newest first, with signed image URLs.
func (s *ProductService) ListProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.signAll(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// ListUserProducts returns the products owned by ownerID, newest first.
func (s *ProductService) ListUserProducts(ctx context.Context, ownerID uint) ([]models.Product, error) {
	products, err := s.repo.GetByUserID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := s.signAll(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct returns a single product with its signed image URL.
func (s *ProductService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	if err := s.sign(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// CreateProduct stores the optional image and inserts the product.
func (s *ProductService) CreateProduct(ctx context.Context, ownerID uint, in ProductInput) (*models.Product, error) {
	contentType, err := validateInput(in)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		UserID:      ownerID,
	}

	if in.Image != nil {
		key, err := s.upload(ctx, in.Image, contentType)
		if err != nil {
			return nil, err
		}
		product.ImageKey = key
		product.ImageURL = s.store.URL(key)
	}

	if err := s.repo.Create(ctx, product); err != nil {
		s.discard(ctx, product.ImageKey)
		return nil, err
	}

	s.publish(rabbitmq.ProductCreated, product)
	return product, nil
}

// UpdateProduct overwrites the product's fields if ownerID owns it. A new
// image replaces the stored one, which is deleted first.
func (s *ProductService) UpdateProduct(ctx context.Context, id, ownerID uint, in ProductInput) (*models.Product, error) {
	existing, err := s.ownedProduct(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	contentType, err := validateInput(in)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Name = in.Name
	updated.Description = in.Description
	updated.Price = in.Price

	if in.Image != nil {
		if oldKey := imageKey(existing); oldKey != "" {
			if err := s.store.Delete(ctx, oldKey); err != nil {
				return nil, err
			}
		}
		key, err := s.upload(ctx, in.Image, contentType)
		if err != nil {
			return nil, err
		}
		updated.ImageKey = key
		updated.ImageURL = s.store.URL(key)
	}

	ok, err := s.repo.UpdateOwned(ctx, &updated)
	if err == nil && !ok {
		err = s.resolveMiss(ctx, id)
	}
	if err != nil {
		if in.Image != nil {
			s.discard(ctx, updated.ImageKey)
		}
		return nil, err
	}

	s.publish(rabbitmq.ProductUpdated, &updated)
	return &updated, nil
}

// DeleteProduct removes the product and its image if ownerID owns it.
func (s *ProductService) DeleteProduct(ctx context.Context, id, ownerID uint) error {
	existing, err := s.ownedProduct(ctx, id, ownerID)
	if err != nil {
		return err
	}

	if key := imageKey(existing); key != "" {
		if err := s.store.Delete(ctx, key); err != nil {
			return err
		}
	}

	ok, err := s.repo.DeleteOwned(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if !ok {
		return s.resolveMiss(ctx, id)
	}

	s.publish(rabbitmq.ProductDeleted, existing)
	return nil
}

// CheckOwner reports ErrProductNotFound or ErrForbidden unless ownerID owns
// product id.
func (s *ProductService) CheckOwner(ctx context.Context, id, ownerID uint) error {
	_, err := s.ownedProduct(ctx, id, ownerID)
	return err
}

// ownedProduct loads a product and checks that ownerID owns it.
func (s *ProductService) ownedProduct(ctx context.Context, id, ownerID uint) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	if product.UserID != ownerID {
		return nil, ErrForbidden
	}
	return product, nil
}

// resolveMiss explains why an owner-guarded write matched no row: the
// product was deleted, or changed hands, after it was loaded.
func (s *ProductService) resolveMiss(ctx context.Context, id uint) error {
	_, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrProductNotFound
	}
	if err != nil {
		return err
	}
	return ErrForbidden
}

func (s *ProductService) upload(ctx context.Context, img *ImageUpload, contentType string) (string, error) {
	key := storage.NewImageKey(img.Filename)
	if err := s.store.Upload(ctx, key, img.Data, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// discard deletes a blob whose database write failed.
func (s *ProductService) discard(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to delete orphaned image")
	}
}

func (s *ProductService) signAll(ctx context.Context, products []models.Product) error {
	for i := range products {
		if err := s.sign(ctx, &products[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *ProductService) sign(ctx context.Context, product *models.Product) error {
	key := imageKey(product)
	if key == "" {
		return nil
	}
	signed, err := s.store.PresignGet(ctx, key, s.signedTTL)
	if err != nil {
		return err
	}
	product.SignedImageURL = signed
	return nil
}

func (s *ProductService) publish(routingKey string, product *models.Product) {
	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(rabbitmq.ProductEvent{
		Event:      routingKey,
		ProductID:  product.ID,
		UserID:     product.UserID,
		ImageKey:   product.ImageKey,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal product event")
		return
	}
	if err := s.publisher.Publish(routingKey, body); err != nil {
		log.Warn().Err(err).Uint("product_id", product.ID).Str("event", routingKey).Msg("failed to publish product event")
	}
}

// imageKey returns the storage key of a product's image, falling back to
// the URL for rows stored before keys were recorded.
func imageKey(product *models.Product) string {
	if !product.HasImage() {
		return ""
	}
	if product.ImageKey != "" {
		return product.ImageKey
	}
	return storage.KeyFromURL(product.ImageURL)
}

// validateInput checks the price and sniffs the image type. It returns the
// detected MIME type of the image, if any.
func validateInput(in ProductInput) (string, error) {
	if !in.Price.IsPositive() {
		return "", ErrInvalidPrice
	}
	if in.Price.GreaterThanOrEqual(maxPrice) || !in.Price.Equal(in.Price.Truncate(priceDigits)) {
		return "", ErrPriceOutOfRange
	}
	if in.Image == nil {
		return "", nil
	}
	if !filetype.IsImage(in.Image.Data) {
		return "", ErrUnsupportedImage
	}
	kind, err := filetype.Match(in.Image.Data)
	if err != nil || kind == filetype.Unknown {
		return "", ErrUnsupportedImage
	}
	return kind.MIME.Value, nil
}

// ParsePrice parses a submitted price string.
func ParsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
	}
	return price, nil
}

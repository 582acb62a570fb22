package handlers

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"marketplace/internal/middleware"
	"marketplace/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the product routes. Reads are public; writes go
// through auth.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)
	productRoutes.Post("/", auth, h.HandleCreateProduct)
	productRoutes.Put("/:id", auth, h.HandleUpdateProduct)
	productRoutes.Delete("/:id", auth, h.HandleDeleteProduct)
}

// productForm is the multipart body of create and update requests.
type productForm struct {
	Name        string `form:"name" validate:"required,max=255"`
	Description string `form:"description"`
	Price       string `form:"price" validate:"required"`
}

// HandleGetProducts lists all products, newest first.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.service.ListProducts(c.UserContext())
	if err != nil {
		return serverError(c, err, "Get products")
	}
	return c.JSON(products)
}

// HandleGetProductByID returns a single product.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	id, ok := productID(c)
	if !ok {
		return writeError(c, fiber.StatusNotFound, "Product not found")
	}

	product, err := h.service.GetProduct(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			return writeError(c, fiber.StatusNotFound, "Product not found")
		}
		return serverError(c, err, "Get product")
	}
	return c.JSON(product)
}

// HandleCreateProduct creates a product owned by the caller.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "Access denied")
	}

	in, err := h.parseProductInput(c)
	if err != nil {
		return inputError(c, err, "Create product")
	}

	product, err := h.service.CreateProduct(c.UserContext(), ownerID, in)
	if err != nil {
		return inputError(c, err, "Create product")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Product created successfully",
		"product": product,
	})
}

// HandleUpdateProduct overwrites a product owned by the caller.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "Access denied")
	}
	id, ok := productID(c)
	if !ok {
		return writeError(c, fiber.StatusNotFound, "Product not found")
	}

	// Existence and ownership are checked before the form.
	if err := h.service.CheckOwner(c.UserContext(), id, ownerID); err != nil {
		return updateError(c, err)
	}

	in, err := h.parseProductInput(c)
	if err != nil {
		return inputError(c, err, "Update product")
	}

	product, err := h.service.UpdateProduct(c.UserContext(), id, ownerID, in)
	if err != nil {
		return updateError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Product updated successfully",
		"product": product,
	})
}

// HandleDeleteProduct deletes a product owned by the caller.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "Access denied")
	}
	id, ok := productID(c)
	if !ok {
		return writeError(c, fiber.StatusNotFound, "Product not found")
	}

	if err := h.service.DeleteProduct(c.UserContext(), id, ownerID); err != nil {
		switch {
		case errors.Is(err, services.ErrProductNotFound):
			return writeError(c, fiber.StatusNotFound, "Product not found")
		case errors.Is(err, services.ErrForbidden):
			return writeError(c, fiber.StatusForbidden, "Not authorized to delete this product")
		}
		return serverError(c, err, "Delete product")
	}

	return c.JSON(fiber.Map{
		"message": "Product deleted successfully",
	})
}

// parseProductInput reads the multipart product form and its optional image.
func (h *ProductHandler) parseProductInput(c *fiber.Ctx) (services.ProductInput, error) {
	var form productForm
	if err := c.BodyParser(&form); err != nil {
		return services.ProductInput{}, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validate.Struct(form); err != nil {
		return services.ProductInput{}, err
	}

	price, err := services.ParsePrice(form.Price)
	if err != nil {
		return services.ProductInput{}, err
	}

	in := services.ProductInput{
		Name:        form.Name,
		Description: form.Description,
		Price:       price,
	}

	// A missing or empty file part means no image.
	fh, err := c.FormFile("image")
	if err != nil || fh.Size == 0 {
		return in, nil
	}
	f, err := fh.Open()
	if err != nil {
		return services.ProductInput{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return services.ProductInput{}, fmt.Errorf("read upload: %w", err)
	}
	in.Image = &services.ImageUpload{Filename: fh.Filename, Data: data}
	return in, nil
}

func updateError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrProductNotFound):
		return writeError(c, fiber.StatusNotFound, "Product not found")
	case errors.Is(err, services.ErrForbidden):
		return writeError(c, fiber.StatusForbidden, "Not authorized to update this product")
	}
	return inputError(c, err, "Update product")
}

// inputError answers 400 for rejected product input and 500 otherwise.
func inputError(c *fiber.Ctx, err error, action string) error {
	var fiberErr *fiber.Error
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &fiberErr):
		return writeError(c, fiberErr.Code, fiberErr.Message)
	case errors.As(err, &validationErrors):
		return validationError(c, err)
	case errors.Is(err, services.ErrInvalidPrice):
		return writeError(c, fiber.StatusBadRequest, "Price must be a positive number")
	case errors.Is(err, services.ErrPriceOutOfRange):
		return writeError(c, fiber.StatusBadRequest, "Price must be below 100000000 with at most 2 decimal places")
	case errors.Is(err, services.ErrUnsupportedImage):
		return writeError(c, fiber.StatusBadRequest, "Unsupported image type")
	}
	return serverError(c, err, action)
}

func productID(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

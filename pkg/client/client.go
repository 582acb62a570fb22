// Package client is a Go client for the marketplace HTTP API.
//
// The client holds no session state: calls that need authentication take the
// bearer token as an argument.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned status code: %d, error: %s", e.StatusCode, e.Message)
}

// User is the public view of an account.
type User struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Session is the result of registering or logging in.
type Session struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Profile is the caller's account as returned by /user/profile.
type Profile struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is a listed item.
type Product struct {
	ID             uint            `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Price          decimal.Decimal `json:"price"`
	ImageURL       string          `json:"image_url,omitempty"`
	ImageKey       string          `json:"image_key,omitempty"`
	SignedImageURL string          `json:"signed_image_url,omitempty"`
	UserID         uint            `json:"user_id"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ProductForm is the body of create and update calls. Image is optional.
type ProductForm struct {
	Name        string
	Description string
	Price       decimal.Decimal
	ImageName   string
	Image       io.Reader
}

// Client talks to one API server.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a Client for baseURL, e.g. "http://localhost:5000/api".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetTimeout changes the per-request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// Health checks that the server is running.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", "", nil, "", nil)
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, username, email, password string) (*Session, error) {
	var out Session
	err := c.doJSON(ctx, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var out Session
	err := c.doJSON(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile returns the account token was issued to.
func (c *Client) Profile(ctx context.Context, token string) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, http.MethodGet, "/user/profile", token, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProducts returns every product, newest first.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var out []Product
	if err := c.do(ctx, http.MethodGet, "/products", "", nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MyProducts returns the products owned by the token's user.
func (c *Client) MyProducts(ctx context.Context, token string) ([]Product, error) {
	var out []Product
	if err := c.do(ctx, http.MethodGet, "/user/products", token, nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProduct returns a single product.
func (c *Client) GetProduct(ctx context.Context, id uint) (*Product, error) {
	var out Product
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/products/%d", id), "", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProduct lists a new product.
func (c *Client) CreateProduct(ctx context.Context, token string, form ProductForm) (*Product, error) {
	return c.sendProduct(ctx, http.MethodPost, "/products", token, form)
}

// UpdateProduct overwrites a product the token's user owns.
func (c *Client) UpdateProduct(ctx context.Context, token string, id uint, form ProductForm) (*Product, error) {
	return c.sendProduct(ctx, http.MethodPut, fmt.Sprintf("/products/%d", id), token, form)
}

// DeleteProduct removes a product the token's user owns.
func (c *Client) DeleteProduct(ctx context.Context, token string, id uint) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/products/%d", id), token, nil, "", nil)
}

func (c *Client) sendProduct(ctx context.Context, method, endpoint, token string, form ProductForm) (*Product, error) {
	body, contentType, err := encodeProductForm(form)
	if err != nil {
		return nil, err
	}
	var out struct {
		Product Product `json:"product"`
	}
	if err := c.do(ctx, method, endpoint, token, body, contentType, &out); err != nil {
		return nil, err
	}
	return &out.Product, nil
}

func encodeProductForm(form ProductForm) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"name", form.Name},
		{"description", form.Description},
		{"price", form.Price.String()},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", f[0], err)
		}
	}

	if form.Image != nil {
		name := form.ImageName
		if name == "" {
			name = "image"
		}
		part, err := w.CreateFormFile("image", name)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create image part: %w", err)
		}
		if _, err := io.Copy(part, form.Image); err != nil {
			return nil, "", fmt.Errorf("failed to write image: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint, token string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	return c.do(ctx, method, endpoint, token, bytes.NewReader(payload), "application/json", out)
}

func (c *Client) do(ctx context.Context, method, endpoint, token string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(responseBody, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(responseBody))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

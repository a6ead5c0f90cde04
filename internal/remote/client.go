package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront-client/internal/models"
	"storefront-client/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenSource supplies the bearer credential for the current session; an
// empty token means the call goes out unauthenticated.
type TokenSource func() string

// Client is the HTTP implementation of Service.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSource
	logger  *zap.Logger
}

// NewClient creates a facade client for the remote service at baseURL.
func NewClient(baseURL string, timeout time.Duration, token TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		token:   token,
		logger:  util.GetLogger(),
	}
}

type remoteError struct {
	op     string
	status int
	msg    string
}

func (e *remoteError) Error() string {
	return fmt.Sprintf("remote %s failed: status=%d: %s", e.op, e.status, e.msg)
}

func (e *remoteError) Unwrap() error {
	switch e.status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrDenied
	}
	return nil
}

// call performs one remote operation: span, latency metric, bearer auth,
// JSON in and out. out may be nil for operations without a response body.
func (c *Client) call(ctx context.Context, op, method, path string, headers map[string]string, body, out any) error {
	ctx, span := util.StartSpan(ctx, "remote."+op)
	defer span.End()

	start := time.Now()
	defer func() {
		util.RemoteCallLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remote %s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("remote %s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		util.RemoteCallErrorsTotal.WithLabelValues(op).Inc()
		return fmt.Errorf("remote %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		util.RemoteCallErrorsTotal.WithLabelValues(op).Inc()
		msg := readErrorMessage(resp.Body)
		c.logger.Warn("Remote call failed",
			zap.String("operation", op),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return &remoteError{op: op, status: resp.StatusCode, msg: msg}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			util.RemoteCallErrorsTotal.WithLabelValues(op).Inc()
			return fmt.Errorf("remote %s: decode response: %w", op, err)
		}
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}

func (c *Client) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := c.call(ctx, "getAllProducts", http.MethodGet, "/api/v1/products", nil, nil, &products)
	return products, err
}

func (c *Client) GetProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	var products []models.Product
	path := "/api/v1/products?category=" + url.QueryEscape(category)
	err := c.call(ctx, "getProductsByCategory", http.MethodGet, path, nil, nil, &products)
	return products, err
}

func (c *Client) SearchProducts(ctx context.Context, term string) ([]models.Product, error) {
	var products []models.Product
	path := "/api/v1/products/search?q=" + url.QueryEscape(term)
	err := c.call(ctx, "searchProducts", http.MethodGet, path, nil, nil, &products)
	return products, err
}

func (c *Client) GetSellerProducts(ctx context.Context, seller models.Identity) ([]models.Product, error) {
	var products []models.Product
	path := "/api/v1/sellers/" + url.PathEscape(seller.String()) + "/products"
	err := c.call(ctx, "getSellerProducts", http.MethodGet, path, nil, nil, &products)
	return products, err
}

func (c *Client) AddProduct(ctx context.Context, input models.ProductInput) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	err := c.call(ctx, "addProduct", http.MethodPost, "/api/v1/products", nil, input, &resp)
	return resp.ID, err
}

func (c *Client) UpdateProduct(ctx context.Context, id string, input models.ProductInput) error {
	path := "/api/v1/products/" + url.PathEscape(id)
	return c.call(ctx, "updateProduct", http.MethodPut, path, nil, input, nil)
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	path := "/api/v1/products/" + url.PathEscape(id)
	return c.call(ctx, "deleteProduct", http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) GetCart(ctx context.Context) ([]models.CartItem, error) {
	var items []models.CartItem
	err := c.call(ctx, "getCart", http.MethodGet, "/api/v1/cart", nil, nil, &items)
	return items, err
}

type cartLinePayload struct {
	ProductID string `json:"product_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

func (c *Client) AddToCart(ctx context.Context, productID string, quantity int) error {
	body := cartLinePayload{ProductID: productID, Quantity: quantity}
	return c.call(ctx, "addToCart", http.MethodPost, "/api/v1/cart", nil, body, nil)
}

func (c *Client) UpdateCartItem(ctx context.Context, productID string, quantity int) error {
	path := "/api/v1/cart/" + url.PathEscape(productID)
	return c.call(ctx, "updateCartItem", http.MethodPut, path, nil, cartLinePayload{Quantity: quantity}, nil)
}

func (c *Client) RemoveFromCart(ctx context.Context, productID string) error {
	path := "/api/v1/cart/" + url.PathEscape(productID)
	return c.call(ctx, "removeFromCart", http.MethodDelete, path, nil, nil, nil)
}

// Checkout sends an idempotency key so a retried request cannot place the
// order twice.
func (c *Client) Checkout(ctx context.Context) error {
	headers := map[string]string{"Idempotency-Key": uuid.New().String()}
	return c.call(ctx, "checkout", http.MethodPost, "/api/v1/checkout", headers, nil, nil)
}

func (c *Client) GetBuyerOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := c.call(ctx, "getBuyerOrders", http.MethodGet, "/api/v1/orders/buyer", nil, nil, &orders)
	return orders, err
}

func (c *Client) GetSellerOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := c.call(ctx, "getSellerOrders", http.MethodGet, "/api/v1/orders/seller", nil, nil, &orders)
	return orders, err
}

func (c *Client) GetProductReviews(ctx context.Context, productID string) ([]models.Review, error) {
	var reviews []models.Review
	path := "/api/v1/products/" + url.PathEscape(productID) + "/reviews"
	err := c.call(ctx, "getProductReviews", http.MethodGet, path, nil, nil, &reviews)
	return reviews, err
}

func (c *Client) GetProductAverageRating(ctx context.Context, productID string) (float64, error) {
	var resp struct {
		Average float64 `json:"average"`
	}
	path := "/api/v1/products/" + url.PathEscape(productID) + "/rating"
	err := c.call(ctx, "getProductAverageRating", http.MethodGet, path, nil, nil, &resp)
	return resp.Average, err
}

func (c *Client) AddReview(ctx context.Context, productID string, rating int, comment string) error {
	body := struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}{Rating: rating, Comment: comment}
	path := "/api/v1/products/" + url.PathEscape(productID) + "/reviews"
	return c.call(ctx, "addReview", http.MethodPost, path, nil, body, nil)
}

func (c *Client) GetCallerUserProfile(ctx context.Context) (*models.UserProfile, error) {
	var profile *models.UserProfile
	err := c.call(ctx, "getCallerUserProfile", http.MethodGet, "/api/v1/profile", nil, nil, &profile)
	return profile, err
}

func (c *Client) GetUserProfile(ctx context.Context, user models.Identity) (*models.UserProfile, error) {
	var profile *models.UserProfile
	path := "/api/v1/profiles/" + url.PathEscape(user.String())
	err := c.call(ctx, "getUserProfile", http.MethodGet, path, nil, nil, &profile)
	return profile, err
}

func (c *Client) SaveCallerUserProfile(ctx context.Context, profile models.UserProfile) error {
	return c.call(ctx, "saveCallerUserProfile", http.MethodPut, "/api/v1/profile", nil, profile, nil)
}

func (c *Client) GetCallerUserRole(ctx context.Context) (models.CallerRole, error) {
	var resp struct {
		Role models.CallerRole `json:"role"`
	}
	err := c.call(ctx, "getCallerUserRole", http.MethodGet, "/api/v1/role", nil, nil, &resp)
	return resp.Role, err
}

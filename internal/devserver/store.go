// Package devserver is a reference implementation of the remote commerce
// service contract, for local development and integration tests. The real
// service is an external collaborator; this one exists so the client
// synchronization layer can be exercised end to end.
package devserver

import (
	"context"
	"errors"

	"storefront-client/internal/models"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrDenied      = errors.New("denied")
	ErrEmptyCart   = errors.New("cart is empty")
	ErrNotEligible = errors.New("not eligible")
)

// Store is the devserver's persistence surface. Implementations: memory
// (tests, default) and Postgres.
type Store interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	ListProductsByCategory(ctx context.Context, category string) ([]models.Product, error)
	SearchProducts(ctx context.Context, term string) ([]models.Product, error)
	ListSellerProducts(ctx context.Context, seller models.Identity) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	CreateProduct(ctx context.Context, p models.Product) error
	UpdateProduct(ctx context.Context, p models.Product) error
	DeleteProduct(ctx context.Context, id string) error

	GetCart(ctx context.Context, owner models.Identity) ([]models.CartItem, error)
	// AddCartLine merges quantity into an existing line: one line per
	// product, no duplicates.
	AddCartLine(ctx context.Context, owner models.Identity, productID string, quantity int) error
	// SetCartLine replaces a line's quantity.
	SetCartLine(ctx context.Context, owner models.Identity, productID string, quantity int) error
	RemoveCartLine(ctx context.Context, owner models.Identity, productID string) error

	// CreateOrderFromCart atomically snapshots the cart into a pending
	// order (unit prices frozen, total computed here) and clears the cart.
	// An already-seen idempotency key returns the original order.
	CreateOrderFromCart(ctx context.Context, buyer models.Identity, idempotencyKey string) (*models.Order, error)
	ListBuyerOrders(ctx context.Context, buyer models.Identity) ([]models.Order, error)
	ListSellerOrders(ctx context.Context, seller models.Identity) ([]models.Order, error)
	CompleteOrder(ctx context.Context, orderID string) error

	ListReviews(ctx context.Context, productID string) ([]models.Review, error)
	CreateReview(ctx context.Context, r models.Review) error
	// HasCompletedOrderWith is the server-side review-eligibility check.
	HasCompletedOrderWith(ctx context.Context, buyer models.Identity, productID string) (bool, error)

	GetProfile(ctx context.Context, id models.Identity) (*models.UserProfile, error)
	SaveProfile(ctx context.Context, id models.Identity, p models.UserProfile) error
}

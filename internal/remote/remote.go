// Package remote is the typed facade over the remote commerce service. The
// service's internals are out of scope; this is the fixed call surface the
// client synchronizes against.
package remote

import (
	"context"
	"errors"

	"storefront-client/internal/models"
)

// Remote error classes, mapped from the wire by the HTTP client. Every
// remote failure is terminal for that call; retrying is the cache's
// decision, never the facade's.
var (
	ErrNotFound = errors.New("remote: not found")
	ErrDenied   = errors.New("remote: denied")
)

// Service is the remote call surface. Caller-scoped operations (cart,
// orders, profile, checkout) act on the identity the implementation
// authenticates as.
type Service interface {
	GetAllProducts(ctx context.Context) ([]models.Product, error)
	GetProductsByCategory(ctx context.Context, category string) ([]models.Product, error)
	SearchProducts(ctx context.Context, term string) ([]models.Product, error)
	GetSellerProducts(ctx context.Context, seller models.Identity) ([]models.Product, error)
	AddProduct(ctx context.Context, input models.ProductInput) (string, error)
	UpdateProduct(ctx context.Context, id string, input models.ProductInput) error
	DeleteProduct(ctx context.Context, id string) error

	GetCart(ctx context.Context) ([]models.CartItem, error)
	AddToCart(ctx context.Context, productID string, quantity int) error
	UpdateCartItem(ctx context.Context, productID string, quantity int) error
	RemoveFromCart(ctx context.Context, productID string) error
	Checkout(ctx context.Context) error

	GetBuyerOrders(ctx context.Context) ([]models.Order, error)
	GetSellerOrders(ctx context.Context) ([]models.Order, error)

	GetProductReviews(ctx context.Context, productID string) ([]models.Review, error)
	GetProductAverageRating(ctx context.Context, productID string) (float64, error)
	AddReview(ctx context.Context, productID string, rating int, comment string) error

	// GetCallerUserProfile returns (nil, nil) when the caller has no
	// profile yet; that absence is a value, not an error.
	GetCallerUserProfile(ctx context.Context) (*models.UserProfile, error)
	GetUserProfile(ctx context.Context, user models.Identity) (*models.UserProfile, error)
	SaveCallerUserProfile(ctx context.Context, profile models.UserProfile) error
	GetCallerUserRole(ctx context.Context) (models.CallerRole, error)
}

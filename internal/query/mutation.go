package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront-client/internal/aggregate"
	"storefront-client/internal/cache"
	"storefront-client/internal/models"
	"storefront-client/internal/remote"
	"storefront-client/internal/util"

	"go.uber.org/zap"
)

// ErrValidation marks input errors caught before any remote call.
var ErrValidation = errors.New("validation failed")

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// mutation is one remote write with its declared validation and the cache
// key prefixes it invalidates on success. A failed mutation leaves the
// cache exactly as it was: invalidation happens only after the remote
// confirms.
type mutation[A, R any] struct {
	name        string
	cache       *cache.Cache
	validate    func(A) error
	run         func(context.Context, A) (R, error)
	invalidates func(A) []cache.Key
	logger      *zap.Logger
}

func (m *mutation[A, R]) do(ctx context.Context, args A) (R, error) {
	var zero R

	if m.validate != nil {
		if err := m.validate(args); err != nil {
			util.MutationsTotal.WithLabelValues(m.name, "invalid").Inc()
			return zero, err
		}
	}

	ctx, span := util.StartSpan(ctx, "mutation."+m.name)
	defer span.End()

	result, err := m.run(ctx, args)
	if err != nil {
		util.MutationsTotal.WithLabelValues(m.name, "error").Inc()
		m.logger.Warn("Mutation failed",
			zap.String("mutation", m.name),
			zap.Error(err))
		return zero, fmt.Errorf("%s: %w", m.name, err)
	}

	for _, key := range m.invalidates(args) {
		m.cache.Invalidate(key)
	}
	util.MutationsTotal.WithLabelValues(m.name, "success").Inc()
	return result, nil
}

// ProductDraft is seller form input. Price is the raw decimal string the
// form collected; conversion to minor units happens during validation.
type ProductDraft struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Price       string `json:"price"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Input validates the draft and converts it to the wire shape.
func (d ProductDraft) Input() (models.ProductInput, error) {
	if strings.TrimSpace(d.Name) == "" {
		return models.ProductInput{}, validationError("product name is required")
	}
	if strings.TrimSpace(d.Description) == "" {
		return models.ProductInput{}, validationError("product description is required")
	}
	if strings.TrimSpace(d.Category) == "" {
		return models.ProductInput{}, validationError("product category is required")
	}
	price, err := aggregate.ParsePrice(d.Price)
	if err != nil {
		return models.ProductInput{}, validationError("price must be a positive amount")
	}
	return models.ProductInput{
		Name:        strings.TrimSpace(d.Name),
		Description: strings.TrimSpace(d.Description),
		Category:    strings.TrimSpace(d.Category),
		Price:       price,
		ImageURL:    strings.TrimSpace(d.ImageURL),
	}, nil
}

// UpdateProductArgs pairs a product id with its replacement draft.
type UpdateProductArgs struct {
	ID    string
	Draft ProductDraft
}

// CartLineArgs identifies a cart line and its quantity.
type CartLineArgs struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// ReviewArgs is the input for posting a review.
type ReviewArgs struct {
	ProductID string `json:"product_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

// Mutations executes the remote writes for one session. The invalidation
// sets mirror the static dependency table: product writes touch the product
// listings, cart writes touch the cart, checkout touches cart and both
// order views, profile writes touch the caller profile, and a review
// touches that product's reviews and average rating.
type Mutations struct {
	addProduct     *mutation[ProductDraft, string]
	updateProduct  *mutation[UpdateProductArgs, struct{}]
	deleteProduct  *mutation[string, struct{}]
	addToCart      *mutation[CartLineArgs, struct{}]
	updateCartItem *mutation[CartLineArgs, struct{}]
	removeFromCart *mutation[string, struct{}]
	checkout       *mutation[struct{}, struct{}]
	saveProfile    *mutation[models.UserProfile, struct{}]
	addReview      *mutation[ReviewArgs, struct{}]
}

// NewMutations wires every mutation against the cache and remote facade.
func NewMutations(c *cache.Cache, svc remote.Service) *Mutations {
	logger := util.GetLogger()

	productKeys := func(any) []cache.Key {
		return []cache.Key{cache.K("products"), cache.K("sellerProducts")}
	}
	cartKeys := func(any) []cache.Key {
		return []cache.Key{cache.K("cart")}
	}

	validateDraft := func(d ProductDraft) error {
		_, err := d.Input()
		return err
	}

	validateCartLine := func(a CartLineArgs) error {
		if a.ProductID == "" {
			return validationError("product id is required")
		}
		if a.Quantity < 1 {
			return validationError("quantity must be at least 1")
		}
		return nil
	}

	return &Mutations{
		addProduct: &mutation[ProductDraft, string]{
			name:     "addProduct",
			cache:    c,
			logger:   logger,
			validate: validateDraft,
			run: func(ctx context.Context, d ProductDraft) (string, error) {
				input, err := d.Input()
				if err != nil {
					return "", err
				}
				return svc.AddProduct(ctx, input)
			},
			invalidates: func(ProductDraft) []cache.Key { return productKeys(nil) },
		},
		updateProduct: &mutation[UpdateProductArgs, struct{}]{
			name:   "updateProduct",
			cache:  c,
			logger: logger,
			validate: func(a UpdateProductArgs) error {
				if a.ID == "" {
					return validationError("product id is required")
				}
				return validateDraft(a.Draft)
			},
			run: func(ctx context.Context, a UpdateProductArgs) (struct{}, error) {
				input, err := a.Draft.Input()
				if err != nil {
					return struct{}{}, err
				}
				return struct{}{}, svc.UpdateProduct(ctx, a.ID, input)
			},
			invalidates: func(UpdateProductArgs) []cache.Key { return productKeys(nil) },
		},
		deleteProduct: &mutation[string, struct{}]{
			name:   "deleteProduct",
			cache:  c,
			logger: logger,
			validate: func(id string) error {
				if id == "" {
					return validationError("product id is required")
				}
				return nil
			},
			run: func(ctx context.Context, id string) (struct{}, error) {
				return struct{}{}, svc.DeleteProduct(ctx, id)
			},
			invalidates: func(string) []cache.Key { return productKeys(nil) },
		},
		addToCart: &mutation[CartLineArgs, struct{}]{
			name:     "addToCart",
			cache:    c,
			logger:   logger,
			validate: validateCartLine,
			run: func(ctx context.Context, a CartLineArgs) (struct{}, error) {
				return struct{}{}, svc.AddToCart(ctx, a.ProductID, a.Quantity)
			},
			invalidates: func(CartLineArgs) []cache.Key { return cartKeys(nil) },
		},
		updateCartItem: &mutation[CartLineArgs, struct{}]{
			name:     "updateCartItem",
			cache:    c,
			logger:   logger,
			validate: validateCartLine,
			run: func(ctx context.Context, a CartLineArgs) (struct{}, error) {
				return struct{}{}, svc.UpdateCartItem(ctx, a.ProductID, a.Quantity)
			},
			invalidates: func(CartLineArgs) []cache.Key { return cartKeys(nil) },
		},
		removeFromCart: &mutation[string, struct{}]{
			name:   "removeFromCart",
			cache:  c,
			logger: logger,
			validate: func(id string) error {
				if id == "" {
					return validationError("product id is required")
				}
				return nil
			},
			run: func(ctx context.Context, id string) (struct{}, error) {
				return struct{}{}, svc.RemoveFromCart(ctx, id)
			},
			invalidates: func(string) []cache.Key { return cartKeys(nil) },
		},
		checkout: &mutation[struct{}, struct{}]{
			name:   "checkout",
			cache:  c,
			logger: logger,
			run: func(ctx context.Context, _ struct{}) (struct{}, error) {
				return struct{}{}, svc.Checkout(ctx)
			},
			invalidates: func(struct{}) []cache.Key {
				return []cache.Key{
					cache.K("cart"),
					cache.K("buyerOrders"),
					cache.K("sellerOrders"),
				}
			},
		},
		saveProfile: &mutation[models.UserProfile, struct{}]{
			name:   "saveProfile",
			cache:  c,
			logger: logger,
			validate: func(p models.UserProfile) error {
				if strings.TrimSpace(p.Name) == "" {
					return validationError("name is required")
				}
				if p.Role != models.RoleBuyer && p.Role != models.RoleSeller {
					return validationError("role must be %q or %q", models.RoleBuyer, models.RoleSeller)
				}
				return nil
			},
			run: func(ctx context.Context, p models.UserProfile) (struct{}, error) {
				p.Name = strings.TrimSpace(p.Name)
				return struct{}{}, svc.SaveCallerUserProfile(ctx, p)
			},
			invalidates: func(models.UserProfile) []cache.Key {
				return []cache.Key{cache.K("currentUserProfile")}
			},
		},
		addReview: &mutation[ReviewArgs, struct{}]{
			name:   "addReview",
			cache:  c,
			logger: logger,
			validate: func(a ReviewArgs) error {
				if a.ProductID == "" {
					return validationError("product id is required")
				}
				if a.Rating < 1 || a.Rating > 5 {
					return validationError("rating must be between 1 and 5")
				}
				if strings.TrimSpace(a.Comment) == "" {
					return validationError("comment is required")
				}
				if len(a.Comment) > models.MaxReviewCommentLen {
					return validationError("comment must be at most %d characters", models.MaxReviewCommentLen)
				}
				return nil
			},
			run: func(ctx context.Context, a ReviewArgs) (struct{}, error) {
				return struct{}{}, svc.AddReview(ctx, a.ProductID, a.Rating, strings.TrimSpace(a.Comment))
			},
			invalidates: func(a ReviewArgs) []cache.Key {
				return []cache.Key{
					cache.K("productReviews", a.ProductID),
					cache.K("productAverageRating", a.ProductID),
				}
			},
		},
	}
}

func (m *Mutations) AddProduct(ctx context.Context, draft ProductDraft) (string, error) {
	return m.addProduct.do(ctx, draft)
}

func (m *Mutations) UpdateProduct(ctx context.Context, args UpdateProductArgs) error {
	_, err := m.updateProduct.do(ctx, args)
	return err
}

func (m *Mutations) DeleteProduct(ctx context.Context, id string) error {
	_, err := m.deleteProduct.do(ctx, id)
	return err
}

func (m *Mutations) AddToCart(ctx context.Context, args CartLineArgs) error {
	_, err := m.addToCart.do(ctx, args)
	return err
}

func (m *Mutations) UpdateCartItem(ctx context.Context, args CartLineArgs) error {
	_, err := m.updateCartItem.do(ctx, args)
	return err
}

func (m *Mutations) RemoveFromCart(ctx context.Context, productID string) error {
	_, err := m.removeFromCart.do(ctx, productID)
	return err
}

func (m *Mutations) Checkout(ctx context.Context) error {
	_, err := m.checkout.do(ctx, struct{}{})
	return err
}

func (m *Mutations) SaveProfile(ctx context.Context, profile models.UserProfile) error {
	_, err := m.saveProfile.do(ctx, profile)
	return err
}

func (m *Mutations) AddReview(ctx context.Context, args ReviewArgs) error {
	_, err := m.addReview.do(ctx, args)
	return err
}

package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"storefront-client/internal/cache"
	"storefront-client/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDraft() ProductDraft {
	return ProductDraft{
		Name:        "Mug",
		Description: "A mug",
		Category:    "kitchen",
		Price:       "10.50",
	}
}

func TestProductDraftInput(t *testing.T) {
	input, err := validDraft().Input()
	require.NoError(t, err)
	assert.Equal(t, int64(1050), input.Price)

	for name, mutate := range map[string]func(*ProductDraft){
		"empty name":        func(d *ProductDraft) { d.Name = "  " },
		"empty description": func(d *ProductDraft) { d.Description = "" },
		"empty category":    func(d *ProductDraft) { d.Category = "" },
		"bad price":         func(d *ProductDraft) { d.Price = "free" },
		"negative price":    func(d *ProductDraft) { d.Price = "-1" },
	} {
		d := validDraft()
		mutate(&d)
		_, err := d.Input()
		assert.ErrorIs(t, err, ErrValidation, name)
	}
}

func TestValidationFailsBeforeRemoteCall(t *testing.T) {
	svc := newFakeService()
	m := NewMutations(cache.New(nil), svc)
	ctx := context.Background()

	_, err := m.AddProduct(ctx, ProductDraft{})
	assert.ErrorIs(t, err, ErrValidation)

	assert.ErrorIs(t, m.AddToCart(ctx, CartLineArgs{ProductID: "p1", Quantity: 0}), ErrValidation)
	assert.ErrorIs(t, m.UpdateCartItem(ctx, CartLineArgs{Quantity: 1}), ErrValidation)
	assert.ErrorIs(t, m.RemoveFromCart(ctx, ""), ErrValidation)
	assert.ErrorIs(t, m.SaveProfile(ctx, models.UserProfile{Name: "Ana", Role: "admin"}), ErrValidation)
	assert.ErrorIs(t, m.AddReview(ctx, ReviewArgs{ProductID: "p1", Rating: 6, Comment: "ok"}), ErrValidation)
	assert.ErrorIs(t, m.AddReview(ctx, ReviewArgs{ProductID: "p1", Rating: 4, Comment: strings.Repeat("x", models.MaxReviewCommentLen+1)}), ErrValidation)

	for op, n := range svc.calls {
		assert.Zero(t, n, "unexpected remote call %s", op)
	}
}

func TestProductMutationInvalidatesListings(t *testing.T) {
	svc := newFakeService()
	c := cache.New(nil)
	q := New(c, svc, newIdent("seller-1"), 0)
	m := NewMutations(c, svc)
	ctx := context.Background()

	q.Products().Resolve(ctx)
	q.SellerProducts("seller-1").Resolve(ctx)
	q.Cart().Resolve(ctx)
	require.Equal(t, 1, svc.callCount("getAllProducts"))

	id, err := m.AddProduct(ctx, validDraft())
	require.NoError(t, err)
	assert.Equal(t, "new-id", id)

	q.Products().Resolve(ctx)
	q.SellerProducts("seller-1").Resolve(ctx)
	q.Cart().Resolve(ctx)
	assert.Equal(t, 2, svc.callCount("getAllProducts"))
	assert.Equal(t, 2, svc.callCount("getSellerProducts"))
	assert.Equal(t, 1, svc.callCount("getCart"), "cart is untouched by product writes")
}

func TestCheckoutInvalidatesCartAndOrders(t *testing.T) {
	svc := newFakeService()
	c := cache.New(nil)
	q := New(c, svc, newIdent("user-1"), 0)
	m := NewMutations(c, svc)
	ctx := context.Background()

	q.Cart().Resolve(ctx)
	q.BuyerOrders().Resolve(ctx)
	q.SellerOrders().Resolve(ctx)
	q.Products().Resolve(ctx)

	require.NoError(t, m.Checkout(ctx))

	q.Cart().Resolve(ctx)
	q.BuyerOrders().Resolve(ctx)
	q.SellerOrders().Resolve(ctx)
	q.Products().Resolve(ctx)

	assert.Equal(t, 2, svc.callCount("getCart"))
	assert.Equal(t, 2, svc.callCount("getBuyerOrders"))
	assert.Equal(t, 2, svc.callCount("getSellerOrders"))
	assert.Equal(t, 1, svc.callCount("getAllProducts"))
}

func TestReviewMutationInvalidatesOnlyItsProduct(t *testing.T) {
	svc := newFakeService()
	c := cache.New(nil)
	q := New(c, svc, newIdent("user-1"), 0)
	m := NewMutations(c, svc)
	ctx := context.Background()

	q.ProductReviews("p1").Resolve(ctx)
	q.ProductAverageRating("p1").Resolve(ctx)
	q.ProductReviews("p2").Resolve(ctx)
	require.Equal(t, 2, svc.callCount("getProductReviews"))

	require.NoError(t, m.AddReview(ctx, ReviewArgs{ProductID: "p1", Rating: 5, Comment: "great"}))

	q.ProductReviews("p1").Resolve(ctx)
	q.ProductAverageRating("p1").Resolve(ctx)
	q.ProductReviews("p2").Resolve(ctx)
	assert.Equal(t, 3, svc.callCount("getProductReviews"), "only p1's reviews refetch")
	assert.Equal(t, 2, svc.callCount("getProductAverageRating"))
}

func TestFailedMutationLeavesCacheUntouched(t *testing.T) {
	svc := newFakeService()
	c := cache.New(nil)
	q := New(c, svc, newIdent("user-1"), 0)
	m := NewMutations(c, svc)
	ctx := context.Background()

	q.Cart().Resolve(ctx)
	require.Equal(t, 1, svc.callCount("getCart"))

	svc.err = errors.New("remote down")
	err := m.AddToCart(ctx, CartLineArgs{ProductID: "p1", Quantity: 1})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)
	svc.err = nil

	_, res := q.Cart().Resolve(ctx)
	assert.Equal(t, cache.StatusSuccess, res.Status)
	assert.Equal(t, 1, svc.callCount("getCart"), "no invalidation after a failed write")
}

func TestSaveProfileInvalidatesCallerProfile(t *testing.T) {
	svc := newFakeService()
	svc.profile = &models.UserProfile{Name: "Ana", Role: models.RoleBuyer}
	c := cache.New(nil)
	q := New(c, svc, newIdent("user-1"), 0)
	m := NewMutations(c, svc)
	ctx := context.Background()

	q.CurrentUserProfile().Resolve(ctx)
	require.Equal(t, 1, svc.callCount("getCallerUserProfile"))

	require.NoError(t, m.SaveProfile(ctx, models.UserProfile{Name: "Ana", Role: models.RoleSeller}))

	q.CurrentUserProfile().Resolve(ctx)
	assert.Equal(t, 2, svc.callCount("getCallerUserProfile"))
}

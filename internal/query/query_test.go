package query

import (
	"context"
	"sync"
	"testing"

	"storefront-client/internal/cache"
	"storefront-client/internal/identity"
	"storefront-client/internal/models"
	"storefront-client/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService counts facade calls and serves canned data. Methods a test
// does not exercise return zero values.
type fakeService struct {
	mu       sync.Mutex
	calls    map[string]int
	products []models.Product
	cart     []models.CartItem
	orders   []models.Order
	profile  *models.UserProfile
	err      error
}

var _ remote.Service = (*fakeService)(nil)

func newFakeService() *fakeService {
	return &fakeService{calls: make(map[string]int)}
}

func (f *fakeService) count(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeService) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	f.count("getAllProducts")
	return f.products, f.err
}

func (f *fakeService) GetProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	f.count("getProductsByCategory")
	return f.products, f.err
}

func (f *fakeService) SearchProducts(ctx context.Context, term string) ([]models.Product, error) {
	f.count("searchProducts")
	return f.products, f.err
}

func (f *fakeService) GetSellerProducts(ctx context.Context, seller models.Identity) ([]models.Product, error) {
	f.count("getSellerProducts")
	return f.products, f.err
}

func (f *fakeService) AddProduct(ctx context.Context, input models.ProductInput) (string, error) {
	f.count("addProduct")
	return "new-id", f.err
}

func (f *fakeService) UpdateProduct(ctx context.Context, id string, input models.ProductInput) error {
	f.count("updateProduct")
	return f.err
}

func (f *fakeService) DeleteProduct(ctx context.Context, id string) error {
	f.count("deleteProduct")
	return f.err
}

func (f *fakeService) GetCart(ctx context.Context) ([]models.CartItem, error) {
	f.count("getCart")
	return f.cart, f.err
}

func (f *fakeService) AddToCart(ctx context.Context, productID string, quantity int) error {
	f.count("addToCart")
	return f.err
}

func (f *fakeService) UpdateCartItem(ctx context.Context, productID string, quantity int) error {
	f.count("updateCartItem")
	return f.err
}

func (f *fakeService) RemoveFromCart(ctx context.Context, productID string) error {
	f.count("removeFromCart")
	return f.err
}

func (f *fakeService) Checkout(ctx context.Context) error {
	f.count("checkout")
	return f.err
}

func (f *fakeService) GetBuyerOrders(ctx context.Context) ([]models.Order, error) {
	f.count("getBuyerOrders")
	return f.orders, f.err
}

func (f *fakeService) GetSellerOrders(ctx context.Context) ([]models.Order, error) {
	f.count("getSellerOrders")
	return f.orders, f.err
}

func (f *fakeService) GetProductReviews(ctx context.Context, productID string) ([]models.Review, error) {
	f.count("getProductReviews")
	return nil, f.err
}

func (f *fakeService) GetProductAverageRating(ctx context.Context, productID string) (float64, error) {
	f.count("getProductAverageRating")
	return 4.5, f.err
}

func (f *fakeService) AddReview(ctx context.Context, productID string, rating int, comment string) error {
	f.count("addReview")
	return f.err
}

func (f *fakeService) GetCallerUserProfile(ctx context.Context) (*models.UserProfile, error) {
	f.count("getCallerUserProfile")
	return f.profile, f.err
}

func (f *fakeService) GetUserProfile(ctx context.Context, user models.Identity) (*models.UserProfile, error) {
	f.count("getUserProfile")
	return f.profile, f.err
}

func (f *fakeService) SaveCallerUserProfile(ctx context.Context, profile models.UserProfile) error {
	f.count("saveCallerUserProfile")
	return f.err
}

func (f *fakeService) GetCallerUserRole(ctx context.Context) (models.CallerRole, error) {
	f.count("getCallerUserRole")
	return models.CallerRoleUser, f.err
}

func newIdent(id models.Identity) *identity.Context {
	return identity.NewContext(id)
}

func newTestQueries(svc remote.Service, id models.Identity) (*Queries, *cache.Cache, *identity.Context) {
	c := cache.New(nil)
	ident := newIdent(id)
	return New(c, svc, ident, 0), c, ident
}

func TestProductsQueryResolves(t *testing.T) {
	svc := newFakeService()
	svc.products = []models.Product{{ID: "p1", Name: "Mug", Price: 1050}}
	q, _, _ := newTestQueries(svc, "")

	products, res := q.Products().Resolve(context.Background())
	require.Equal(t, cache.StatusSuccess, res.Status)
	assert.Equal(t, svc.products, products)
	assert.Equal(t, 1, svc.callCount("getAllProducts"))

	// Second read is a cache hit.
	q.Products().Resolve(context.Background())
	assert.Equal(t, 1, svc.callCount("getAllProducts"))
}

func TestIdentityScopedQueriesDisabledWhenAnonymous(t *testing.T) {
	svc := newFakeService()
	q, _, _ := newTestQueries(svc, "")

	_, res := q.Cart().Resolve(context.Background())
	assert.Equal(t, cache.StatusIdle, res.Status)

	_, res = q.CurrentUserProfile().Resolve(context.Background())
	assert.Equal(t, cache.StatusIdle, res.Status)

	_, res = q.SellerProducts("").Resolve(context.Background())
	assert.Equal(t, cache.StatusIdle, res.Status)

	assert.Equal(t, 0, svc.callCount("getCart"))
	assert.Equal(t, 0, svc.callCount("getCallerUserProfile"))
}

func TestSearchDisabledForEmptyTerm(t *testing.T) {
	svc := newFakeService()
	q, _, _ := newTestQueries(svc, "")

	_, res := q.SearchProducts("").Resolve(context.Background())
	assert.Equal(t, cache.StatusIdle, res.Status)
	assert.Equal(t, 0, svc.callCount("searchProducts"))

	_, res = q.SearchProducts("mug").Resolve(context.Background())
	assert.Equal(t, cache.StatusSuccess, res.Status)
	assert.Equal(t, 1, svc.callCount("searchProducts"))
}

func TestIdentityChangeInvalidatesScopedKeys(t *testing.T) {
	svc := newFakeService()
	svc.cart = []models.CartItem{{ProductID: "p1", Quantity: 1}}
	q, _, ident := newTestQueries(svc, "user-1")

	q.Cart().Resolve(context.Background())
	q.Products().Resolve(context.Background())
	require.Equal(t, 1, svc.callCount("getCart"))
	require.Equal(t, 1, svc.callCount("getAllProducts"))

	ident.Set("user-2")

	q.Cart().Resolve(context.Background())
	q.Products().Resolve(context.Background())
	assert.Equal(t, 2, svc.callCount("getCart"), "cart is identity-scoped and must refetch")
	assert.Equal(t, 1, svc.callCount("getAllProducts"), "public catalog survives an identity change")
}

func TestCurrentUserProfileAbsenceIsSuccess(t *testing.T) {
	svc := newFakeService()
	svc.profile = nil
	q, _, _ := newTestQueries(svc, "user-1")

	profile, res := q.CurrentUserProfile().Resolve(context.Background())
	assert.Equal(t, cache.StatusSuccess, res.Status)
	assert.Nil(t, profile, "a missing profile is a settled value, not an error")
}

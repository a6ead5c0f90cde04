package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront-client/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// immediateFulfiller completes orders synchronously so tests need no timers.
type immediateFulfiller struct {
	store Store
}

func (f *immediateFulfiller) OrderPlaced(ctx context.Context, order *models.Order) error {
	return f.store.CompleteOrder(ctx, order.ID)
}

type testServer struct {
	store  *MemStore
	router *gin.Engine
}

func newTestServer(t *testing.T, admins ...string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := NewMemStore()
	router := gin.New()
	NewHandler(store, &immediateFulfiller{store: store}, admins).SetupRoutes(router)
	return &testServer{store: store, router: router}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) asSeller(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, s.store.SaveProfile(context.Background(),
		models.Identity(id), models.UserProfile{Name: id, Role: models.RoleSeller}))
}

func (s *testServer) asBuyer(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, s.store.SaveProfile(context.Background(),
		models.Identity(id), models.UserProfile{Name: id, Role: models.RoleBuyer}))
}

func productBody(name string, price int64) models.ProductInput {
	return models.ProductInput{Name: name, Category: "misc", Price: price}
}

func TestAddProductRequiresSellerRole(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/v1/products", "", productBody("Mug", 1050))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	srv.asBuyer(t, "buyer-1")
	w = srv.do(t, http.MethodPost, "/api/v1/products", "buyer-1", productBody("Mug", 1050))
	assert.Equal(t, http.StatusForbidden, w.Code)

	srv.asSeller(t, "seller-1")
	w = srv.do(t, http.MethodPost, "/api/v1/products", "seller-1", productBody("Mug", 1050))
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
}

func TestProductValidation(t *testing.T) {
	srv := newTestServer(t)
	srv.asSeller(t, "seller-1")

	w := srv.do(t, http.MethodPost, "/api/v1/products", "seller-1", productBody("", 1050))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodPost, "/api/v1/products", "seller-1", productBody("Mug", 0))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateProductOwnership(t *testing.T) {
	srv := newTestServer(t, "admin-1")
	srv.asSeller(t, "seller-1")
	srv.asSeller(t, "seller-2")
	seedProduct(t, srv.store, "p1", "seller-1", 1050)

	w := srv.do(t, http.MethodPut, "/api/v1/products/p1", "seller-2", productBody("Stolen", 1))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = srv.do(t, http.MethodPut, "/api/v1/products/p1", "seller-1", productBody("Renamed", 1100))
	assert.Equal(t, http.StatusOK, w.Code)

	// Admins may modify any product.
	w = srv.do(t, http.MethodDelete, "/api/v1/products/p1", "admin-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCartUpdateBelowOneRemovesLine(t *testing.T) {
	srv := newTestServer(t)
	srv.asBuyer(t, "buyer-1")
	seedProduct(t, srv.store, "p1", "seller-1", 1050)

	w := srv.do(t, http.MethodPost, "/api/v1/cart", "buyer-1", gin.H{"product_id": "p1", "quantity": 2})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = srv.do(t, http.MethodPut, "/api/v1/cart/p1", "buyer-1", gin.H{"quantity": 0})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = srv.do(t, http.MethodGet, "/api/v1/cart", "buyer-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var items []models.CartItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	assert.Empty(t, items)
}

func TestCheckoutFlow(t *testing.T) {
	srv := newTestServer(t)
	srv.asBuyer(t, "buyer-1")
	seedProduct(t, srv.store, "p1", "seller-1", 1050)

	w := srv.do(t, http.MethodPost, "/api/v1/checkout", "buyer-1", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "empty cart cannot check out")

	w = srv.do(t, http.MethodPost, "/api/v1/cart", "buyer-1", gin.H{"product_id": "p1", "quantity": 2})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = srv.do(t, http.MethodPost, "/api/v1/checkout", "buyer-1", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var order models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Equal(t, int64(2100), order.Total)

	w = srv.do(t, http.MethodGet, "/api/v1/orders/buyer", "buyer-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var orders []models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusCompleted, orders[0].Status, "test fulfiller completes synchronously")

	w = srv.do(t, http.MethodGet, "/api/v1/orders/seller", "seller-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orders))
	assert.Len(t, orders, 1)
}

func TestReviewEligibilityEnforced(t *testing.T) {
	srv := newTestServer(t)
	srv.asBuyer(t, "buyer-1")
	seedProduct(t, srv.store, "p1", "seller-1", 1050)
	review := gin.H{"rating": 5, "comment": "great"}

	w := srv.do(t, http.MethodPost, "/api/v1/products/p1/reviews", "buyer-1", review)
	assert.Equal(t, http.StatusForbidden, w.Code, "no completed order yet")

	srv.do(t, http.MethodPost, "/api/v1/cart", "buyer-1", gin.H{"product_id": "p1", "quantity": 1})
	w = srv.do(t, http.MethodPost, "/api/v1/checkout", "buyer-1", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = srv.do(t, http.MethodPost, "/api/v1/products/p1/reviews", "buyer-1", review)
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Review
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "buyer-1", created.BuyerName, "profile name is attached to the review")

	w = srv.do(t, http.MethodGet, "/api/v1/products/p1/rating", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rating struct {
		Average float64 `json:"average"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rating))
	assert.Equal(t, 5.0, rating.Average)
}

func TestReviewValidation(t *testing.T) {
	srv := newTestServer(t)
	srv.asBuyer(t, "buyer-1")
	seedProduct(t, srv.store, "p1", "seller-1", 1050)

	w := srv.do(t, http.MethodPost, "/api/v1/products/p1/reviews", "buyer-1", gin.H{"rating": 6, "comment": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodPost, "/api/v1/products/p1/reviews", "buyer-1", gin.H{"rating": 4, "comment": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfileAbsenceIsNull(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/v1/profile", "user-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", w.Body.String())

	w = srv.do(t, http.MethodPut, "/api/v1/profile", "user-1", models.UserProfile{Name: "Ana", Role: models.RoleBuyer})
	require.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, http.MethodGet, "/api/v1/profile", "user-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var profile models.UserProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, "Ana", profile.Name)
}

func TestProfileValidation(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPut, "/api/v1/profile", "user-1", models.UserProfile{Name: "", Role: models.RoleBuyer})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodPut, "/api/v1/profile", "user-1", models.UserProfile{Name: "Ana", Role: "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallerRole(t *testing.T) {
	srv := newTestServer(t, "admin-1")

	var resp struct {
		Role models.CallerRole `json:"role"`
	}

	w := srv.do(t, http.MethodGet, "/api/v1/role", "", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.CallerRoleGuest, resp.Role)

	w = srv.do(t, http.MethodGet, "/api/v1/role", "user-1", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.CallerRoleUser, resp.Role)

	w = srv.do(t, http.MethodGet, "/api/v1/role", "admin-1", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.CallerRoleAdmin, resp.Role)
}

func TestCatalogIsPublic(t *testing.T) {
	srv := newTestServer(t)
	seedProduct(t, srv.store, "p1", "seller-1", 1050)

	w := srv.do(t, http.MethodGet, "/api/v1/products", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var products []models.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
	assert.Len(t, products, 1)

	w = srv.do(t, http.MethodGet, "/api/v1/products/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

package devserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront-client/internal/aggregate"
	"storefront-client/internal/models"
	"storefront-client/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler serves the remote commerce contract over HTTP.
type Handler struct {
	store     Store
	fulfiller Fulfiller
	admins    map[models.Identity]bool
	logger    *zap.Logger
}

func NewHandler(store Store, fulfiller Fulfiller, admins []string) *Handler {
	adminSet := make(map[models.Identity]bool, len(admins))
	for _, a := range admins {
		adminSet[models.Identity(a)] = true
	}
	return &Handler{
		store:     store,
		fulfiller: fulfiller,
		admins:    adminSet,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes configures all routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.health)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/search", h.searchProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.POST("/products", h.addProduct)
		v1.PUT("/products/:id", h.updateProduct)
		v1.DELETE("/products/:id", h.deleteProduct)
		v1.GET("/sellers/:id/products", h.sellerProducts)

		v1.GET("/cart", h.getCart)
		v1.POST("/cart", h.addToCart)
		v1.PUT("/cart/:productId", h.updateCartItem)
		v1.DELETE("/cart/:productId", h.removeFromCart)
		v1.POST("/checkout", h.checkout)

		v1.GET("/orders/buyer", h.buyerOrders)
		v1.GET("/orders/seller", h.sellerOrders)

		v1.GET("/products/:id/reviews", h.listReviews)
		v1.POST("/products/:id/reviews", h.addReview)
		v1.GET("/products/:id/rating", h.productRating)

		v1.GET("/profile", h.getProfile)
		v1.PUT("/profile", h.saveProfile)
		v1.GET("/profiles/:identity", h.getUserProfile)
		v1.GET("/role", h.callerRole)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// caller extracts the bearer identity. The token is opaque; whatever string
// the client presents is the principal.
func caller(c *gin.Context) models.Identity {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return models.Identity(strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
}

// requireAuth aborts with 401 for anonymous callers.
func (h *Handler) requireAuth(c *gin.Context) (models.Identity, bool) {
	id := caller(c)
	if id.IsAnonymous() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return "", false
	}
	return id, true
}

// requireRole aborts with 403 unless the caller's profile carries the role.
func (h *Handler) requireRole(c *gin.Context, role string) (models.Identity, bool) {
	id, ok := h.requireAuth(c)
	if !ok {
		return "", false
	}
	profile, err := h.store.GetProfile(c.Request.Context(), id)
	if err != nil {
		h.serverError(c, err)
		return "", false
	}
	if profile == nil || profile.Role != role {
		c.JSON(http.StatusForbidden, gin.H{"error": role + " role required"})
		return "", false
	}
	return id, true
}

func (h *Handler) serverError(c *gin.Context, err error) {
	h.logger.Error("Request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func (h *Handler) renderStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, ErrDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "denied"})
	case errors.Is(err, ErrEmptyCart):
		c.JSON(http.StatusConflict, gin.H{"error": "cart is empty"})
	case errors.Is(err, ErrNotEligible):
		c.JSON(http.StatusForbidden, gin.H{"error": "not eligible to review"})
	default:
		h.serverError(c, err)
	}
}

func (h *Handler) listProducts(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		products []models.Product
		err      error
	)
	if category := c.Query("category"); category != "" {
		products, err = h.store.ListProductsByCategory(ctx, category)
	} else {
		products, err = h.store.ListProducts(ctx)
	}
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) searchProducts(c *gin.Context) {
	products, err := h.store.SearchProducts(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.store.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) sellerProducts(c *gin.Context) {
	products, err := h.store.ListSellerProducts(c.Request.Context(), models.Identity(c.Param("id")))
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func validateProductInput(input models.ProductInput) string {
	switch {
	case strings.TrimSpace(input.Name) == "":
		return "name is required"
	case strings.TrimSpace(input.Category) == "":
		return "category is required"
	case input.Price <= 0:
		return "price must be positive"
	}
	return ""
}

func (h *Handler) addProduct(c *gin.Context) {
	seller, ok := h.requireRole(c, models.RoleSeller)
	if !ok {
		return
	}

	var input models.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if msg := validateProductInput(input); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	product := models.Product{
		ID:          uuid.New().String(),
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		Price:       input.Price,
		Seller:      seller,
		ImageURL:    input.ImageURL,
	}
	if err := h.store.CreateProduct(c.Request.Context(), product); err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": product.ID})
}

// ownedProduct loads a product and checks the caller may modify it. Admins
// may modify any product.
func (h *Handler) ownedProduct(c *gin.Context) (*models.Product, models.Identity, bool) {
	id, ok := h.requireAuth(c)
	if !ok {
		return nil, "", false
	}
	product, err := h.store.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderStoreError(c, err)
		return nil, "", false
	}
	if product.Seller != id && !h.admins[id] {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the product owner"})
		return nil, "", false
	}
	return product, id, true
}

func (h *Handler) updateProduct(c *gin.Context) {
	product, _, ok := h.ownedProduct(c)
	if !ok {
		return
	}

	var input models.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if msg := validateProductInput(input); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	product.Name = input.Name
	product.Description = input.Description
	product.Category = input.Category
	product.Price = input.Price
	product.ImageURL = input.ImageURL
	if err := h.store.UpdateProduct(c.Request.Context(), *product); err != nil {
		h.renderStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": product.ID})
}

func (h *Handler) deleteProduct(c *gin.Context) {
	product, _, ok := h.ownedProduct(c)
	if !ok {
		return
	}
	if err := h.store.DeleteProduct(c.Request.Context(), product.ID); err != nil {
		h.renderStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getCart(c *gin.Context) {
	id, ok := h.requireRole(c, models.RoleBuyer)
	if !ok {
		return
	}
	items, err := h.store.GetCart(c.Request.Context(), id)
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

type cartLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) addToCart(c *gin.Context) {
	id, ok := h.requireRole(c, models.RoleBuyer)
	if !ok {
		return
	}
	var req cartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.ProductID == "" || req.Quantity < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id and positive quantity required"})
		return
	}
	if err := h.store.AddCartLine(c.Request.Context(), id, req.ProductID, req.Quantity); err != nil {
		h.renderStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) updateCartItem(c *gin.Context) {
	id, ok := h.requireRole(c, models.RoleBuyer)
	if !ok {
		return
	}
	var req cartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ctx := c.Request.Context()
	productID := c.Param("productId")

	// Dropping the quantity below one removes the line.
	var err error
	if req.Quantity < 1 {
		err = h.store.RemoveCartLine(ctx, id, productID)
	} else {
		err = h.store.SetCartLine(ctx, id, productID, req.Quantity)
	}
	if err != nil {
		h.renderStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) removeFromCart(c *gin.Context) {
	id, ok := h.requireRole(c, models.RoleBuyer)
	if !ok {
		return
	}
	if err := h.store.RemoveCartLine(c.Request.Context(), id, c.Param("productId")); err != nil {
		h.renderStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) checkout(c *gin.Context) {
	id, ok := h.requireRole(c, models.RoleBuyer)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	order, err := h.store.CreateOrderFromCart(ctx, id, c.GetHeader("Idempotency-Key"))
	if err != nil {
		h.renderStoreError(c, err)
		return
	}

	if order.Status == models.OrderStatusPending {
		if err := h.fulfiller.OrderPlaced(ctx, order); err != nil {
			h.logger.Error("Failed to schedule fulfillment",
				zap.String("order_id", order.ID), zap.Error(err))
		}
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) buyerOrders(c *gin.Context) {
	id, ok := h.requireAuth(c)
	if !ok {
		return
	}
	orders, err := h.store.ListBuyerOrders(c.Request.Context(), id)
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) sellerOrders(c *gin.Context) {
	id, ok := h.requireAuth(c)
	if !ok {
		return
	}
	orders, err := h.store.ListSellerOrders(c.Request.Context(), id)
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) listReviews(c *gin.Context) {
	reviews, err := h.store.ListReviews(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

func (h *Handler) productRating(c *gin.Context) {
	reviews, err := h.store.ListReviews(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"average": aggregate.AverageRating(reviews)})
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *Handler) addReview(c *gin.Context) {
	id, ok := h.requireRole(c, models.RoleBuyer)
	if !ok {
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	switch {
	case req.Rating < 1 || req.Rating > 5:
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be between 1 and 5"})
		return
	case strings.TrimSpace(req.Comment) == "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "comment is required"})
		return
	case len(req.Comment) > models.MaxReviewCommentLen:
		c.JSON(http.StatusBadRequest, gin.H{"error": "comment too long"})
		return
	}

	ctx := c.Request.Context()
	productID := c.Param("id")

	if _, err := h.store.GetProduct(ctx, productID); err != nil {
		h.renderStoreError(c, err)
		return
	}
	eligible, err := h.store.HasCompletedOrderWith(ctx, id, productID)
	if err != nil {
		h.serverError(c, err)
		return
	}
	if !eligible {
		h.renderStoreError(c, ErrNotEligible)
		return
	}

	buyerName := id.String()
	if profile, err := h.store.GetProfile(ctx, id); err == nil && profile != nil && profile.Name != "" {
		buyerName = profile.Name
	}

	review := models.Review{
		ReviewID:  uuid.New().String(),
		ProductID: productID,
		Buyer:     id,
		BuyerName: buyerName,
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: time.Now(),
	}
	if err := h.store.CreateReview(ctx, review); err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

func (h *Handler) getProfile(c *gin.Context) {
	id, ok := h.requireAuth(c)
	if !ok {
		return
	}
	profile, err := h.store.GetProfile(c.Request.Context(), id)
	if err != nil {
		h.serverError(c, err)
		return
	}
	// A missing profile is a JSON null, not a 404: absence is a normal state.
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) saveProfile(c *gin.Context) {
	id, ok := h.requireAuth(c)
	if !ok {
		return
	}
	var profile models.UserProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(profile.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if profile.Role != models.RoleBuyer && profile.Role != models.RoleSeller {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be buyer or seller"})
		return
	}
	if err := h.store.SaveProfile(c.Request.Context(), id, profile); err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) getUserProfile(c *gin.Context) {
	profile, err := h.store.GetProfile(c.Request.Context(), models.Identity(c.Param("identity")))
	if err != nil {
		h.serverError(c, err)
		return
	}
	if profile == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) callerRole(c *gin.Context) {
	id := caller(c)
	role := models.CallerRoleGuest
	switch {
	case id.IsAnonymous():
	case h.admins[id]:
		role = models.CallerRoleAdmin
	default:
		role = models.CallerRoleUser
	}
	c.JSON(http.StatusOK, gin.H{"role": role})
}

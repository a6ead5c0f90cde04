// Package api is the client gateway: the storefront route surface rendered
// as JSON. Every view passes the access gate first, then renders from
// whatever per-key cache state is available; a failing key degrades only
// its own section of the view.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"storefront-client/internal/cache"
	"storefront-client/internal/gate"
	"storefront-client/internal/identity"
	"storefront-client/internal/models"
	"storefront-client/internal/query"
	"storefront-client/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler contains the gateway HTTP handlers for one session.
type Handler struct {
	queries   *query.Queries
	mutations *query.Mutations
	ident     *identity.Context
	logger    *zap.Logger
}

// NewHandler creates the gateway handler set.
func NewHandler(q *query.Queries, m *query.Mutations, ident *identity.Context) *Handler {
	return &Handler{
		queries:   q,
		mutations: m,
		ident:     ident,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes registers the route surface.
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/products", h.catalog)
	router.GET("/products/:id", h.productDetail)
	router.POST("/products/:id/reviews", h.addReview)

	router.GET("/cart", h.cart)
	router.POST("/cart/items", h.addToCart)
	router.PUT("/cart/items/:productId", h.updateCartItem)
	router.DELETE("/cart/items/:productId", h.removeFromCart)

	router.POST("/checkout", h.checkout)
	router.GET("/order-confirmation", h.orderConfirmation)
	router.GET("/orders/buyer", h.buyerOrders)
	router.GET("/orders/seller", h.sellerOrders)

	router.GET("/seller/dashboard", h.sellerDashboard)
	router.POST("/seller/products", h.addProduct)
	router.PUT("/seller/products/:id", h.updateProduct)
	router.DELETE("/seller/products/:id", h.deleteProduct)

	router.GET("/profile", h.profile)
	router.PUT("/profile", h.saveProfile)
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// session resolves the gate's view of the caller. The profile probe settles
// to resolved on success or error; while it is still loading the session
// stays unresolved and no route may redirect.
func (h *Handler) session(c *gin.Context) gate.Session {
	s := gate.Session{Authenticated: h.ident.Authenticated()}
	if !s.Authenticated {
		s.ProfileResolved = true
		return s
	}
	profile, res := h.queries.CurrentUserProfile().Resolve(c.Request.Context())
	s.ProfileResolved = res.Status == cache.StatusSuccess || res.Status == cache.StatusError
	if res.Status == cache.StatusSuccess {
		s.Profile = profile
	}
	return s
}

// enforce writes the response for a non-granted decision and reports
// whether the handler may proceed.
func (h *Handler) enforce(c *gin.Context, d gate.Decision) bool {
	switch d.State {
	case gate.Granted:
		return true
	case gate.Unresolved:
		c.JSON(http.StatusOK, gin.H{"status": "loading"})
	default:
		c.JSON(http.StatusForbidden, gin.H{"redirect": d.Redirect})
	}
	return false
}

// mutationError maps executor failures: validation errors were caught
// before any remote call and are the caller's to fix; everything else is a
// remote failure surfaced as a transient notification.
func (h *Handler) mutationError(c *gin.Context, err error) {
	if errors.Is(err, query.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}

func (h *Handler) catalog(c *gin.Context) {
	ctx := c.Request.Context()

	q := h.queries.Products()
	if term := c.Query("search"); term != "" {
		q = h.queries.SearchProducts(term)
	} else if category := c.Query("category"); category != "" {
		q = h.queries.ProductsByCategory(category)
	}

	products, res := q.Resolve(ctx)
	resp := gin.H{"status": string(res.Status), "products": products}
	if res.Err != nil {
		resp["error"] = res.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) productDetail(c *gin.Context) {
	ctx := c.Request.Context()
	productID := c.Param("id")
	s := h.session(c)

	products, res := h.queries.Products().Resolve(ctx)
	if res.Status == cache.StatusLoading || res.Status == cache.StatusIdle {
		c.JSON(http.StatusOK, gin.H{"status": "loading"})
		return
	}

	var product *models.Product
	for i := range products {
		if products[i].ID == productID {
			product = &products[i]
			break
		}
	}
	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found", "redirect": gate.RouteCatalog})
		return
	}

	view := ProductDetailView{Product: *product, Reviews: []models.Review{}}

	if sellerProfile, pres := h.queries.UserProfile(product.Seller).Resolve(ctx); pres.Status == cache.StatusSuccess && sellerProfile != nil {
		view.SellerName = sellerProfile.Name
	}

	reviews, rres := h.queries.ProductReviews(productID).Resolve(ctx)
	view.ReviewsStatus = string(rres.Status)
	if reviews != nil {
		view.Reviews = reviews
	}

	// The remote average is the one source of truth for displayed ratings.
	rating, ares := h.queries.ProductAverageRating(productID).Resolve(ctx)
	view.RatingStatus = string(ares.Status)
	view.AverageRating = rating

	eligibility := h.reviewEligibility(c, s, productID)
	view.CanReview = eligibility.Offered
	view.ReviewPending = !eligibility.Resolved

	c.JSON(http.StatusOK, view)
}

func (h *Handler) reviewEligibility(c *gin.Context, s gate.Session, productID string) gate.ReviewEligibility {
	var orders []models.Order
	ordersResolved := false
	if s.Authenticated && s.Profile != nil && s.Profile.Role == models.RoleBuyer {
		var res cache.Result
		orders, res = h.queries.BuyerOrders().Resolve(c.Request.Context())
		ordersResolved = res.Status == cache.StatusSuccess
	}
	return gate.CanReview(s, ordersResolved, orders, productID)
}

func (h *Handler) cart(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.enforce(c, gate.BuyerRoute(h.session(c))) {
		return
	}

	cartItems, res := h.queries.Cart().Resolve(ctx)
	if res.Status == cache.StatusLoading || res.Status == cache.StatusIdle {
		c.JSON(http.StatusOK, gin.H{"status": "loading"})
		return
	}

	view := buildCartView(cartItems, h.resolveProductIndex(ctx))
	if res.Err != nil {
		view.Status = string(cache.StatusError)
		view.Error = res.Err.Error()
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) addToCart(c *gin.Context) {
	var args query.CartLineArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.mutations.AddToCart(c.Request.Context(), args); err != nil {
		h.mutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) updateCartItem(c *gin.Context) {
	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	args := query.CartLineArgs{ProductID: c.Param("productId"), Quantity: body.Quantity}
	if err := h.mutations.UpdateCartItem(c.Request.Context(), args); err != nil {
		h.mutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) removeFromCart(c *gin.Context) {
	if err := h.mutations.RemoveFromCart(c.Request.Context(), c.Param("productId")); err != nil {
		h.mutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) checkout(c *gin.Context) {
	ctx := c.Request.Context()
	s := h.session(c)

	cartItems, res := h.queries.Cart().Resolve(ctx)
	cartResolved := res.Status == cache.StatusSuccess
	if !h.enforce(c, gate.CheckoutRoute(s, cartResolved, cartItems)) {
		return
	}

	if err := h.mutations.Checkout(ctx); err != nil {
		h.mutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "redirect": "/order-confirmation"})
}

func (h *Handler) orderConfirmation(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.enforce(c, gate.BuyerRoute(h.session(c))) {
		return
	}

	orders, res := h.queries.BuyerOrders().Resolve(ctx)
	if res.Status != cache.StatusSuccess {
		c.JSON(http.StatusOK, gin.H{"status": string(res.Status)})
		return
	}
	order, ok := latestOrder(orders)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "order": nil})
		return
	}
	view := buildOrderView(order, h.resolveProductIndex(ctx), "")
	c.JSON(http.StatusOK, gin.H{"status": "ok", "order": view})
}

func (h *Handler) buyerOrders(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.enforce(c, gate.BuyerRoute(h.session(c))) {
		return
	}

	orders, res := h.queries.BuyerOrders().Resolve(ctx)
	if res.Status != cache.StatusSuccess {
		h.renderOrdersFallback(c, res)
		return
	}
	idx := h.resolveProductIndex(ctx)
	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, buildOrderView(order, idx, ""))
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "orders": views})
}

func (h *Handler) sellerOrders(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.enforce(c, gate.SellerRoute(h.session(c))) {
		return
	}

	orders, res := h.queries.SellerOrders().Resolve(ctx)
	if res.Status != cache.StatusSuccess {
		h.renderOrdersFallback(c, res)
		return
	}
	idx := h.resolveProductIndex(ctx)
	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		buyerName := ""
		if profile, pres := h.queries.UserProfile(order.Buyer).Resolve(ctx); pres.Status == cache.StatusSuccess && profile != nil {
			buyerName = profile.Name
		}
		views = append(views, buildOrderView(order, idx, buyerName))
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "orders": views})
}

func (h *Handler) renderOrdersFallback(c *gin.Context, res cache.Result) {
	resp := gin.H{"status": string(res.Status)}
	if res.Err != nil {
		resp["error"] = res.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) sellerDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.enforce(c, gate.SellerRoute(h.session(c))) {
		return
	}

	products, res := h.queries.SellerProducts(h.ident.Current()).Resolve(ctx)
	resp := gin.H{"status": string(res.Status), "products": products}
	if res.Err != nil {
		resp["error"] = res.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) addProduct(c *gin.Context) {
	if !h.enforce(c, gate.SellerRoute(h.session(c))) {
		return
	}
	var draft query.ProductDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	id, err := h.mutations.AddProduct(c.Request.Context(), draft)
	if err != nil {
		h.mutationError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "ok", "id": id})
}

func (h *Handler) updateProduct(c *gin.Context) {
	if !h.enforce(c, gate.SellerRoute(h.session(c))) {
		return
	}
	var draft query.ProductDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	args := query.UpdateProductArgs{ID: c.Param("id"), Draft: draft}
	if err := h.mutations.UpdateProduct(c.Request.Context(), args); err != nil {
		h.mutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if !h.enforce(c, gate.SellerRoute(h.session(c))) {
		return
	}
	if err := h.mutations.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.mutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) addReview(c *gin.Context) {
	s := h.session(c)
	eligibility := h.reviewEligibility(c, s, c.Param("id"))
	if !eligibility.Resolved {
		c.JSON(http.StatusOK, gin.H{"status": "loading"})
		return
	}
	if !eligibility.Offered {
		c.JSON(http.StatusForbidden, gin.H{"error": "review not available for this product"})
		return
	}

	var body struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	args := query.ReviewArgs{ProductID: c.Param("id"), Rating: body.Rating, Comment: body.Comment}
	if err := h.mutations.AddReview(c.Request.Context(), args); err != nil {
		h.mutationError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "ok"})
}

// profile reports the session state the layout needs: anonymous, profile
// still loading, needs first-time setup, or ready.
func (h *Handler) profile(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.ident.Authenticated() {
		c.JSON(http.StatusOK, gin.H{"status": "anonymous"})
		return
	}

	profile, res := h.queries.CurrentUserProfile().Resolve(ctx)
	switch {
	case res.Status == cache.StatusLoading || res.Status == cache.StatusIdle:
		c.JSON(http.StatusOK, gin.H{"status": "loading"})
	case res.Status == cache.StatusError:
		c.JSON(http.StatusOK, gin.H{"status": "error", "error": res.Err.Error()})
	case profile == nil:
		c.JSON(http.StatusOK, gin.H{"status": "needs_setup"})
	default:
		role, _ := h.queries.CallerRole().Resolve(ctx)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "profile": profile, "caller_role": role})
	}
}

func (h *Handler) saveProfile(c *gin.Context) {
	var profile models.UserProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.mutations.SaveProfile(c.Request.Context(), profile); err != nil {
		h.mutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

package devserver

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront-client/internal/models"

	"github.com/google/uuid"
)

// MemStore is the in-memory Store used by tests and the default devserver
// configuration.
type MemStore struct {
	mu       sync.RWMutex
	products map[string]models.Product
	carts    map[models.Identity]map[string]int
	orders   map[string]models.Order
	reviews  map[string][]models.Review
	profiles map[models.Identity]models.UserProfile
	idem     map[string]string
	clock    func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		products: make(map[string]models.Product),
		carts:    make(map[models.Identity]map[string]int),
		orders:   make(map[string]models.Order),
		reviews:  make(map[string][]models.Review),
		profiles: make(map[models.Identity]models.UserProfile),
		idem:     make(map[string]string),
		clock:    time.Now,
	}
}

func (s *MemStore) listProducts(filter func(models.Product) bool) []models.Product {
	out := []models.Product{}
	for _, p := range s.products {
		if filter == nil || filter(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listProducts(nil), nil
}

func (s *MemStore) ListProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listProducts(func(p models.Product) bool {
		return strings.EqualFold(p.Category, category)
	}), nil
}

func (s *MemStore) SearchProducts(ctx context.Context, term string) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(term)
	return s.listProducts(func(p models.Product) bool {
		return strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Description), needle)
	}), nil
}

func (s *MemStore) ListSellerProducts(ctx context.Context, seller models.Identity) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listProducts(func(p models.Product) bool { return p.Seller == seller }), nil
}

func (s *MemStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemStore) CreateProduct(ctx context.Context, p models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return nil
}

func (s *MemStore) UpdateProduct(ctx context.Context, p models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return ErrNotFound
	}
	s.products[p.ID] = p
	return nil
}

func (s *MemStore) DeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *MemStore) GetCart(ctx context.Context, owner models.Identity) ([]models.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cartItems(s.carts[owner]), nil
}

func cartItems(cart map[string]int) []models.CartItem {
	items := []models.CartItem{}
	for productID, qty := range cart {
		items = append(items, models.CartItem{ProductID: productID, Quantity: qty})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	return items
}

func (s *MemStore) AddCartLine(ctx context.Context, owner models.Identity, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[productID]; !ok {
		return ErrNotFound
	}
	cart := s.carts[owner]
	if cart == nil {
		cart = make(map[string]int)
		s.carts[owner] = cart
	}
	cart[productID] += quantity
	return nil
}

func (s *MemStore) SetCartLine(ctx context.Context, owner models.Identity, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.carts[owner]
	if _, ok := cart[productID]; !ok {
		return ErrNotFound
	}
	cart[productID] = quantity
	return nil
}

func (s *MemStore) RemoveCartLine(ctx context.Context, owner models.Identity, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.carts[owner]
	if _, ok := cart[productID]; !ok {
		return ErrNotFound
	}
	delete(cart, productID)
	return nil
}

func (s *MemStore) CreateOrderFromCart(ctx context.Context, buyer models.Identity, idempotencyKey string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idempotencyKey != "" {
		if orderID, ok := s.idem[idempotencyKey]; ok {
			order := s.orders[orderID]
			return &order, nil
		}
	}

	cart := s.carts[buyer]
	items := []models.OrderItem{}
	var total int64
	for _, line := range cartItems(cart) {
		p, ok := s.products[line.ProductID]
		if !ok {
			// A line pointing at a deleted product is dropped, not fatal.
			continue
		}
		items = append(items, models.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: p.Price,
			Seller:    p.Seller,
		})
		total += p.Price * int64(line.Quantity)
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	order := models.Order{
		ID:        uuid.New().String(),
		Status:    models.OrderStatusPending,
		Buyer:     buyer,
		Total:     total,
		Items:     items,
		CreatedAt: s.clock(),
	}
	s.orders[order.ID] = order
	delete(s.carts, buyer)
	if idempotencyKey != "" {
		s.idem[idempotencyKey] = order.ID
	}
	return &order, nil
}

func (s *MemStore) listOrders(filter func(models.Order) bool) []models.Order {
	out := []models.Order{}
	for _, o := range s.orders {
		if filter(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *MemStore) ListBuyerOrders(ctx context.Context, buyer models.Identity) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listOrders(func(o models.Order) bool { return o.Buyer == buyer }), nil
}

func (s *MemStore) ListSellerOrders(ctx context.Context, seller models.Identity) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listOrders(func(o models.Order) bool {
		for _, item := range o.Items {
			if item.Seller == seller {
				return true
			}
		}
		return false
	}), nil
}

func (s *MemStore) CompleteOrder(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	order.Status = models.OrderStatusCompleted
	s.orders[orderID] = order
	return nil
}

func (s *MemStore) ListReviews(ctx context.Context, productID string) ([]models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reviews := s.reviews[productID]
	out := make([]models.Review, len(reviews))
	copy(out, reviews)
	return out, nil
}

func (s *MemStore) CreateReview(ctx context.Context, r models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[r.ProductID] = append(s.reviews[r.ProductID], r)
	return nil
}

func (s *MemStore) HasCompletedOrderWith(ctx context.Context, buyer models.Identity, productID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.Buyer != buyer || o.Status != models.OrderStatusCompleted {
			continue
		}
		for _, item := range o.Items {
			if item.ProductID == productID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *MemStore) GetProfile(ctx context.Context, id models.Identity) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *MemStore) SaveProfile(ctx context.Context, id models.Identity, p models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[id] = p
	return nil
}

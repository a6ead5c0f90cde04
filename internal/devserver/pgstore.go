package devserver

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront-client/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PGStore is the Postgres-backed Store.
type PGStore struct {
	db *sqlx.DB
}

// NewPGStore connects to Postgres and verifies the connection.
func NewPGStore(databaseURL string) (*PGStore, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PGStore{db: db}, nil
}

// Close closes the database connection
func (s *PGStore) Close() error {
	return s.db.Close()
}

func (s *PGStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY id")
	return products, err
}

func (s *PGStore) ListProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE LOWER(category) = LOWER($1) ORDER BY id", category)
	return products, err
}

func (s *PGStore) SearchProducts(ctx context.Context, term string) ([]models.Product, error) {
	products := []models.Product{}
	pattern := "%" + term + "%"
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE name ILIKE $1 OR description ILIKE $1 ORDER BY id", pattern)
	return products, err
}

func (s *PGStore) ListSellerProducts(ctx context.Context, seller models.Identity) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE seller = $1 ORDER BY id", seller)
	return products, err
}

func (s *PGStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *PGStore) CreateProduct(ctx context.Context, p models.Product) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, category, price, seller, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Name, p.Description, p.Category, p.Price, p.Seller, p.ImageURL)
	return err
}

func (s *PGStore) UpdateProduct(ctx context.Context, p models.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, description = $2, category = $3, price = $4, image_url = $5
		WHERE id = $6`,
		p.Name, p.Description, p.Category, p.Price, p.ImageURL, p.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) GetCart(ctx context.Context, owner models.Identity) ([]models.CartItem, error) {
	items := []models.CartItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT product_id, quantity FROM cart_items WHERE owner = $1 ORDER BY product_id", owner)
	return items, err
}

func (s *PGStore) AddCartLine(ctx context.Context, owner models.Identity, productID string, quantity int) error {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", productID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cart_items (owner, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner, product_id) DO UPDATE SET quantity = cart_items.quantity + $3`,
		owner, productID, quantity)
	return err
}

func (s *PGStore) SetCartLine(ctx context.Context, owner models.Identity, productID string, quantity int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1 WHERE owner = $2 AND product_id = $3",
		quantity, owner, productID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) RemoveCartLine(ctx context.Context, owner models.Identity, productID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE owner = $1 AND product_id = $2", owner, productID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) CreateOrderFromCart(ctx context.Context, buyer models.Identity, idempotencyKey string) (*models.Order, error) {
	if idempotencyKey != "" {
		if order, err := s.getOrderByIdempotencyKey(ctx, idempotencyKey); err != nil {
			return nil, err
		} else if order != nil {
			return order, nil
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Cart lines joined against live products; lines for deleted products
	// fall out of the join.
	type cartRow struct {
		ProductID string          `db:"product_id"`
		Quantity  int             `db:"quantity"`
		Price     int64           `db:"price"`
		Seller    models.Identity `db:"seller"`
	}
	rows := []cartRow{}
	err = tx.SelectContext(ctx, &rows, `
		SELECT c.product_id, c.quantity, p.price, p.seller
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.owner = $1
		ORDER BY c.product_id`, buyer)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyCart
	}

	order := models.Order{
		ID:     uuid.New().String(),
		Status: models.OrderStatusPending,
		Buyer:  buyer,
	}
	for _, r := range rows {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: r.ProductID,
			Quantity:  r.Quantity,
			UnitPrice: r.Price,
			Seller:    r.Seller,
		})
		order.Total += r.Price * int64(r.Quantity)
	}

	err = tx.GetContext(ctx, &order.CreatedAt, `
		INSERT INTO orders (id, status, buyer, total, idempotency_key)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING created_at`,
		order.ID, order.Status, order.Buyer, order.Total, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price, seller)
			VALUES ($1, $2, $3, $4, $5)`,
			order.ID, item.ProductID, item.Quantity, item.UnitPrice, item.Seller)
		if err != nil {
			return nil, fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM cart_items WHERE owner = $1", buyer)
	if err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *PGStore) getOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT id, status, buyer, total, created_at FROM orders WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	order.Items, err = s.orderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *PGStore) orderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT product_id, quantity, unit_price, seller FROM order_items WHERE order_id = $1 ORDER BY product_id",
		orderID)
	return items, err
}

func (s *PGStore) listOrders(ctx context.Context, query string, arg interface{}) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, query, arg)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items, err = s.orderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *PGStore) ListBuyerOrders(ctx context.Context, buyer models.Identity) ([]models.Order, error) {
	return s.listOrders(ctx,
		"SELECT id, status, buyer, total, created_at FROM orders WHERE buyer = $1 ORDER BY created_at DESC",
		buyer)
}

func (s *PGStore) ListSellerOrders(ctx context.Context, seller models.Identity) ([]models.Order, error) {
	return s.listOrders(ctx, `
		SELECT DISTINCT o.id, o.status, o.buyer, o.total, o.created_at
		FROM orders o
		JOIN order_items i ON i.order_id = o.id
		WHERE i.seller = $1
		ORDER BY o.created_at DESC`, seller)
}

func (s *PGStore) CompleteOrder(ctx context.Context, orderID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1 WHERE id = $2", models.OrderStatusCompleted, orderID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) ListReviews(ctx context.Context, productID string) ([]models.Review, error) {
	reviews := []models.Review{}
	err := s.db.SelectContext(ctx, &reviews,
		"SELECT * FROM reviews WHERE product_id = $1 ORDER BY created_at", productID)
	return reviews, err
}

func (s *PGStore) CreateReview(ctx context.Context, r models.Review) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reviews (review_id, product_id, buyer, buyer_name, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ReviewID, r.ProductID, r.Buyer, r.BuyerName, r.Rating, r.Comment, r.CreatedAt)
	return err
}

func (s *PGStore) HasCompletedOrderWith(ctx context.Context, buyer models.Identity, productID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM orders o
			JOIN order_items i ON i.order_id = o.id
			WHERE o.buyer = $1 AND o.status = $2 AND i.product_id = $3)`,
		buyer, models.OrderStatusCompleted, productID)
	return exists, err
}

func (s *PGStore) GetProfile(ctx context.Context, id models.Identity) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := s.db.GetContext(ctx, &profile,
		"SELECT name, role FROM profiles WHERE identity = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *PGStore) SaveProfile(ctx context.Context, id models.Identity, p models.UserProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (identity, name, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity) DO UPDATE SET name = $2, role = $3`,
		id, p.Name, p.Role)
	return err
}

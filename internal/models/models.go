package models

import "time"

// Identity is an opaque caller credential. The empty string means
// unauthenticated.
type Identity string

func (id Identity) IsAnonymous() bool {
	return id == ""
}

func (id Identity) String() string {
	return string(id)
}

// Product is a catalog entry owned by its seller. Price is in integer
// minor currency units (cents).
type Product struct {
	ID          string   `db:"id" json:"id"`
	Name        string   `db:"name" json:"name"`
	Description string   `db:"description" json:"description"`
	Category    string   `db:"category" json:"category"`
	Price       int64    `db:"price" json:"price"`
	Seller      Identity `db:"seller" json:"seller"`
	ImageURL    string   `db:"image_url" json:"image_url,omitempty"`
}

// ProductInput is the payload for creating or updating a product.
type ProductInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Price       int64  `json:"price"`
	ImageURL    string `json:"image_url,omitempty"`
}

// CartItem is one cart line. A cart holds at most one line per product.
type CartItem struct {
	ProductID string `db:"product_id" json:"product_id"`
	Quantity  int    `db:"quantity" json:"quantity"`
}

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
)

// Order is an immutable checkout snapshot. Item prices and quantities are
// frozen at checkout time; Total is computed by the remote service and never
// recomputed from live product prices.
type Order struct {
	ID        string      `db:"id" json:"id"`
	Status    string      `db:"status" json:"status"`
	Buyer     Identity    `db:"buyer" json:"buyer"`
	Total     int64       `db:"total" json:"total"`
	Items     []OrderItem `json:"items"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// OrderItem is a snapshotted cart line inside an order. Seller is
// denormalized at checkout so seller-side order listings survive product
// deletion.
type OrderItem struct {
	ProductID string   `db:"product_id" json:"product_id"`
	Quantity  int      `db:"quantity" json:"quantity"`
	UnitPrice int64    `db:"unit_price" json:"unit_price"`
	Seller    Identity `db:"seller" json:"seller,omitempty"`
}

// Review is immutable once created. Rating is an integer in 1..5 and the
// comment is capped at MaxReviewCommentLen characters.
type Review struct {
	ReviewID  string    `db:"review_id" json:"review_id"`
	ProductID string    `db:"product_id" json:"product_id"`
	Buyer     Identity  `db:"buyer" json:"buyer"`
	BuyerName string    `db:"buyer_name" json:"buyer_name"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const MaxReviewCommentLen = 500

// Profile roles
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
)

// UserProfile holds the mutable per-identity profile. Admin is not a profile
// role; it is a caller-level elevation (see CallerRole).
type UserProfile struct {
	Name string `db:"name" json:"name"`
	Role string `db:"role" json:"role"`
}

// CallerRole is the identity-level role resolved by the remote service,
// independent of the profile role.
type CallerRole string

const (
	CallerRoleAdmin CallerRole = "admin"
	CallerRoleUser  CallerRole = "user"
	CallerRoleGuest CallerRole = "guest"
)

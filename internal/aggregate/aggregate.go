// Package aggregate computes derived values from already-fetched entities.
// Nothing here calls the remote service; missing cross-references (a cart or
// order line whose product has been deleted) are skipped, never an error.
package aggregate

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"storefront-client/internal/models"
)

// ProductIndex is a lookup over fetched products. The boolean result makes
// absence explicit; a line whose product cannot be resolved is omitted from
// every aggregate.
type ProductIndex map[string]models.Product

// IndexProducts builds a ProductIndex from a fetched product list.
func IndexProducts(products []models.Product) ProductIndex {
	idx := make(ProductIndex, len(products))
	for _, p := range products {
		idx[p.ID] = p
	}
	return idx
}

func (idx ProductIndex) Lookup(productID string) (models.Product, bool) {
	p, ok := idx[productID]
	return p, ok
}

// CartItemCount is the total quantity across all cart lines.
func CartItemCount(cart []models.CartItem) int {
	var n int
	for _, item := range cart {
		n += item.Quantity
	}
	return n
}

// LineTotalMinor is the value of one cart line in minor units.
func LineTotalMinor(item models.CartItem, product models.Product) int64 {
	return product.Price * int64(item.Quantity)
}

// CartTotalMinor sums the resolvable cart lines in minor units. Lines whose
// product is absent from the index are skipped.
func CartTotalMinor(cart []models.CartItem, products ProductIndex) int64 {
	var total int64
	for _, item := range cart {
		p, ok := products.Lookup(item.ProductID)
		if !ok {
			continue
		}
		total += LineTotalMinor(item, p)
	}
	return total
}

// AverageRating is the arithmetic mean of the ratings, or 0 for an empty
// review set.
func AverageRating(reviews []models.Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	var sum int
	for _, r := range reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(reviews))
}

// HasCompletedOrderFor reports whether any completed order contains the
// product. This is the review-eligibility predicate: pending orders do not
// qualify.
func HasCompletedOrderFor(orders []models.Order, productID string) bool {
	for _, order := range orders {
		if order.Status != models.OrderStatusCompleted {
			continue
		}
		for _, item := range order.Items {
			if item.ProductID == productID {
				return true
			}
		}
	}
	return false
}

// FormatMinor renders a minor-unit amount with two decimal places, e.g.
// 2100 -> "21.00".
func FormatMinor(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}

// ErrInvalidPrice is returned by ParsePrice for non-numeric or non-positive
// input.
var ErrInvalidPrice = errors.New("invalid price")

// ParsePrice converts a decimal currency string to minor units by
// multiplying by 100 and rounding. A non-numeric or non-positive result is
// a validation error, never a remote call.
func ParsePrice(s string) (int64, error) {
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	minor := int64(math.Round(f * 100))
	if minor <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	return minor, nil
}

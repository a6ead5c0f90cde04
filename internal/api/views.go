package api

import (
	"context"
	"sort"

	"storefront-client/internal/aggregate"
	"storefront-client/internal/cache"
	"storefront-client/internal/models"
)

// View payloads rendered by the gateway. Monetary fields carry both the
// minor-unit integer and its two-decimal rendering.

type CartLineView struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	LineTotal   int64  `json:"line_total"`
	LineDisplay string `json:"line_total_display"`
}

type CartView struct {
	Status       string         `json:"status"`
	Items        []CartLineView `json:"items"`
	ItemCount    int            `json:"item_count"`
	Total        int64          `json:"total"`
	TotalDisplay string         `json:"total_display"`
	Error        string         `json:"error,omitempty"`
}

type OrderItemView struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	LineTotal   int64  `json:"line_total"`
	LineDisplay string `json:"line_total_display"`
}

type OrderView struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	BuyerName    string          `json:"buyer_name,omitempty"`
	Total        int64           `json:"total"`
	TotalDisplay string          `json:"total_display"`
	Items        []OrderItemView `json:"items"`
}

type ProductDetailView struct {
	Product       models.Product  `json:"product"`
	SellerName    string          `json:"seller_name,omitempty"`
	AverageRating float64         `json:"average_rating"`
	RatingStatus  string          `json:"rating_status"`
	Reviews       []models.Review `json:"reviews"`
	ReviewsStatus string          `json:"reviews_status"`
	CanReview     bool            `json:"can_review"`
	ReviewPending bool            `json:"review_eligibility_pending"`
}

// buildCartView renders cart lines against the product index. Lines whose
// product is gone are dropped, not errored.
func buildCartView(cart []models.CartItem, idx aggregate.ProductIndex) CartView {
	view := CartView{Status: "ok", Items: []CartLineView{}}
	for _, item := range cart {
		p, ok := idx.Lookup(item.ProductID)
		if !ok {
			continue
		}
		line := aggregate.LineTotalMinor(item, p)
		view.Items = append(view.Items, CartLineView{
			ProductID:   item.ProductID,
			Name:        p.Name,
			Quantity:    item.Quantity,
			UnitPrice:   p.Price,
			LineTotal:   line,
			LineDisplay: aggregate.FormatMinor(line),
		})
	}
	view.ItemCount = aggregate.CartItemCount(cart)
	total := aggregate.CartTotalMinor(cart, idx)
	view.Total = total
	view.TotalDisplay = aggregate.FormatMinor(total)
	return view
}

// buildOrderView renders an order snapshot. Totals come from the snapshot,
// never from live prices; the index only supplies display names.
func buildOrderView(order models.Order, idx aggregate.ProductIndex, buyerName string) OrderView {
	view := OrderView{
		ID:           order.ID,
		Status:       order.Status,
		BuyerName:    buyerName,
		Total:        order.Total,
		TotalDisplay: aggregate.FormatMinor(order.Total),
		Items:        []OrderItemView{},
	}
	for _, item := range order.Items {
		line := item.UnitPrice * int64(item.Quantity)
		iv := OrderItemView{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   line,
			LineDisplay: aggregate.FormatMinor(line),
		}
		if p, ok := idx.Lookup(item.ProductID); ok {
			iv.Name = p.Name
		}
		view.Items = append(view.Items, iv)
	}
	return view
}

// latestOrder picks the most recent order, for the confirmation view.
func latestOrder(orders []models.Order) (models.Order, bool) {
	if len(orders) == 0 {
		return models.Order{}, false
	}
	sorted := make([]models.Order, len(orders))
	copy(sorted, orders)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return sorted[0], true
}

// resolveProductIndex fetches the catalog for cross-reference lookups.
// A failed fetch yields an empty index: views fall back to snapshot data
// they already carry rather than failing.
func (h *Handler) resolveProductIndex(ctx context.Context) aggregate.ProductIndex {
	products, res := h.queries.Products().Resolve(ctx)
	if res.Status != cache.StatusSuccess && products == nil {
		return aggregate.ProductIndex{}
	}
	return aggregate.IndexProducts(products)
}

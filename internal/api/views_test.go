package api

import (
	"testing"
	"time"

	"storefront-client/internal/aggregate"
	"storefront-client/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCartView(t *testing.T) {
	idx := aggregate.IndexProducts([]models.Product{
		{ID: "p1", Name: "Mug", Price: 1050},
	})
	cart := []models.CartItem{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "deleted", Quantity: 1},
	}

	view := buildCartView(cart, idx)

	require.Len(t, view.Items, 1, "unresolvable lines are dropped from display")
	assert.Equal(t, "21.00", view.Items[0].LineDisplay)
	assert.Equal(t, int64(2100), view.Total)
	assert.Equal(t, "21.00", view.TotalDisplay)
	assert.Equal(t, 3, view.ItemCount)
}

func TestBuildOrderViewUsesSnapshotPrices(t *testing.T) {
	// The live price differs from the snapshot; the view must show the
	// snapshot.
	idx := aggregate.IndexProducts([]models.Product{
		{ID: "p1", Name: "Mug", Price: 9999},
	})
	order := models.Order{
		ID:     "o1",
		Status: models.OrderStatusPending,
		Total:  2100,
		Items: []models.OrderItem{
			{ProductID: "p1", Quantity: 2, UnitPrice: 1050},
			{ProductID: "gone", Quantity: 1, UnitPrice: 500},
		},
	}

	view := buildOrderView(order, idx, "Ana")

	assert.Equal(t, "21.00", view.TotalDisplay)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "Mug", view.Items[0].Name)
	assert.Equal(t, int64(2100), view.Items[0].LineTotal)
	assert.Empty(t, view.Items[1].Name, "deleted products still render their snapshot line")
	assert.Equal(t, int64(500), view.Items[1].LineTotal)
}

func TestLatestOrder(t *testing.T) {
	_, ok := latestOrder(nil)
	assert.False(t, ok)

	now := time.Now()
	orders := []models.Order{
		{ID: "old", CreatedAt: now.Add(-time.Hour)},
		{ID: "new", CreatedAt: now},
	}
	latest, ok := latestOrder(orders)
	require.True(t, ok)
	assert.Equal(t, "new", latest.ID)
	assert.Equal(t, "old", orders[0].ID, "input order is not mutated")
}

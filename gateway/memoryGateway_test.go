package gateway

import (
	"context"
	"testing"

	"go-restaurant-ordering/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGatewayLines(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGateway()

	id, err := g.CreateLine(ctx, models.CartLine{ItemID: "pizza", UserID: "u1", UnitPrice: 2500, Quantity: 2})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	stored, ok := g.Line(id)
	require.True(t, ok)
	assert.Equal(t, int64(5000), stored.Total)
	assert.Equal(t, models.LinePending, stored.Status)

	require.NoError(t, g.UpdateLine(ctx, id, 5, 12500))
	stored, _ = g.Line(id)
	assert.Equal(t, 5, stored.Quantity)
	assert.Equal(t, int64(12500), stored.Total)

	assert.Error(t, g.UpdateLine(ctx, id, 0, 0), "zero quantity rows are never written")

	lines, err := g.ListLines(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, lines, 1)

	require.NoError(t, g.DeleteLine(ctx, id))
	assert.ErrorIs(t, g.DeleteLine(ctx, id), ErrNotFound)
	assert.ErrorIs(t, g.UpdateLine(ctx, id, 1, 2500), ErrNotFound)
}

func TestMemoryGatewayRejectsDuplicateOrder(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGateway()
	order := models.Order{ID: "order-1", UserID: "u1", Status: models.StatusPending, Total: 100}

	require.NoError(t, g.CreateOrder(ctx, order))
	order.Total = 999
	assert.ErrorIs(t, g.CreateOrder(ctx, order), ErrDuplicate)

	stored, err := g.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), stored.Total, "duplicate create must not overwrite")

	orders, err := g.ListOrders(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestMemoryGatewayOrderStatus(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGateway()
	require.NoError(t, g.CreateOrder(ctx, models.Order{ID: "o", UserID: "u", Status: models.StatusPending}))

	order, err := g.UpdateOrderStatus(ctx, "o", models.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, order.Status)

	_, err = g.UpdateOrderStatus(ctx, "o", models.StatusDelivered)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = g.UpdateOrderStatus(ctx, "missing", models.StatusConfirmed)
	assert.ErrorIs(t, err, ErrNotFound)
}

// Package gateway is the client's view of the backend document store holding
// cart lines and orders.
package gateway

import (
	"context"
	"errors"

	"go-restaurant-ordering/models"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("document already exists")
	ErrConflict  = errors.New("document changed concurrently")
)

// OrderGateway creates, updates, deletes and fetches cart lines and orders.
// CreateOrder must reject an existing id with ErrDuplicate rather than overwrite it.
type OrderGateway interface {
	CreateLine(ctx context.Context, line models.CartLine) (string, error)
	UpdateLine(ctx context.Context, id string, quantity int, total int64) error
	DeleteLine(ctx context.Context, id string) error
	ListLines(ctx context.Context, userID string) ([]models.CartLine, error)

	CreateOrder(ctx context.Context, order models.Order) error
	GetOrder(ctx context.Context, id string) (models.Order, error)
	ListOrders(ctx context.Context, userID string) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (models.Order, error)
}

package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go-restaurant-ordering/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryGateway keeps documents in process. It backs local runs without MongoDB
// and the package tests of everything above the gateway.
type MemoryGateway struct {
	mu     sync.RWMutex
	lines  map[string]models.CartLine
	orders map[string]models.Order
	now    func() time.Time
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		lines:  make(map[string]models.CartLine),
		orders: make(map[string]models.Order),
		now:    time.Now,
	}
}

func (g *MemoryGateway) CreateLine(ctx context.Context, line models.CartLine) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	line.ID = primitive.NewObjectID().Hex()
	line.Recompute()
	line.CreatedAt = g.now().UTC()
	line.UpdatedAt = line.CreatedAt
	if line.Status == "" {
		line.Status = models.LinePending
	}
	g.lines[line.ID] = line
	return line.ID, nil
}

func (g *MemoryGateway) UpdateLine(ctx context.Context, id string, quantity int, total int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if quantity <= 0 {
		return fmt.Errorf("update cart line %s: quantity %d must be positive", id, quantity)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	line, ok := g.lines[id]
	if !ok {
		return fmt.Errorf("update cart line %s: %w", id, ErrNotFound)
	}
	line.Quantity = quantity
	line.Total = total
	line.UpdatedAt = g.now().UTC()
	g.lines[id] = line
	return nil
}

func (g *MemoryGateway) DeleteLine(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.lines[id]; !ok {
		return fmt.Errorf("delete cart line %s: %w", id, ErrNotFound)
	}
	delete(g.lines, id)
	return nil
}

func (g *MemoryGateway) ListLines(ctx context.Context, userID string) ([]models.CartLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	lines := []models.CartLine{}
	for _, l := range g.lines {
		if l.UserID == userID && l.Status == models.LinePending {
			lines = append(lines, l)
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].CreatedAt.Equal(lines[j].CreatedAt) {
			return lines[i].ID < lines[j].ID
		}
		return lines[i].CreatedAt.Before(lines[j].CreatedAt)
	})
	return lines, nil
}

// Line returns the stored copy of a cart line.
func (g *MemoryGateway) Line(id string) (models.CartLine, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	l, ok := g.lines[id]
	return l, ok
}

func (g *MemoryGateway) CreateOrder(ctx context.Context, order models.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.orders[order.ID]; ok {
		return fmt.Errorf("insert order %s: %w", order.ID, ErrDuplicate)
	}
	order.Lines = append([]models.OrderLine(nil), order.Lines...)
	g.orders[order.ID] = order
	return nil
}

func (g *MemoryGateway) GetOrder(ctx context.Context, id string) (models.Order, error) {
	if err := ctx.Err(); err != nil {
		return models.Order{}, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	order, ok := g.orders[id]
	if !ok {
		return models.Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return order, nil
}

func (g *MemoryGateway) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	orders := []models.Order{}
	for _, o := range g.orders {
		if o.UserID == userID {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (g *MemoryGateway) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (models.Order, error) {
	if err := ctx.Err(); err != nil {
		return models.Order{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	order, ok := g.orders[id]
	if !ok {
		return models.Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err := order.Transition(status, g.now().UTC()); err != nil {
		return models.Order{}, err
	}
	g.orders[id] = order
	return order, nil
}

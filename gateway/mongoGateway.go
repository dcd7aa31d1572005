package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-restaurant-ordering/database"
	"go-restaurant-ordering/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CartCollection  = "cart"
	OrderCollection = "order"
)

// MongoGateway stores cart lines in the cart collection and orders in the order
// collection. Orders are keyed by their client-generated id so the primary key
// index rejects a second insert of the same checkout.
type MongoGateway struct {
	cart  *mongo.Collection
	order *mongo.Collection
	now   func() time.Time
}

func NewMongoGateway(client *mongo.Client, dbName string) *MongoGateway {
	return &MongoGateway{
		cart:  database.OpenCollection(client, dbName, CartCollection),
		order: database.OpenCollection(client, dbName, OrderCollection),
		now:   time.Now,
	}
}

// EnsureIndexes creates the lookup indexes used by ListLines and ListOrders.
func (g *MongoGateway) EnsureIndexes(ctx context.Context) error {
	if _, err := g.cart.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}},
	}); err != nil {
		return fmt.Errorf("cart index: %w", err)
	}
	if _, err := g.order.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return fmt.Errorf("order index: %w", err)
	}
	return nil
}

func (g *MongoGateway) CreateLine(ctx context.Context, line models.CartLine) (string, error) {
	line.ID = primitive.NewObjectID().Hex()
	line.Recompute()
	line.CreatedAt = g.now().UTC()
	line.UpdatedAt = line.CreatedAt
	if line.Status == "" {
		line.Status = models.LinePending
	}
	if _, err := g.cart.InsertOne(ctx, line); err != nil {
		return "", fmt.Errorf("insert cart line: %w", err)
	}
	return line.ID, nil
}

func (g *MongoGateway) UpdateLine(ctx context.Context, id string, quantity int, total int64) error {
	if quantity <= 0 {
		return fmt.Errorf("update cart line %s: quantity %d must be positive", id, quantity)
	}
	var updateObj primitive.D
	updateObj = append(updateObj, bson.E{Key: "quantity", Value: quantity})
	updateObj = append(updateObj, bson.E{Key: "total", Value: total})
	updateObj = append(updateObj, bson.E{Key: "updated_at", Value: g.now().UTC()})

	result, err := g.cart.UpdateOne(ctx, bson.M{"_id": id}, bson.D{{Key: "$set", Value: updateObj}})
	if err != nil {
		return fmt.Errorf("update cart line %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("update cart line %s: %w", id, ErrNotFound)
	}
	return nil
}

func (g *MongoGateway) DeleteLine(ctx context.Context, id string) error {
	result, err := g.cart.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete cart line %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("delete cart line %s: %w", id, ErrNotFound)
	}
	return nil
}

func (g *MongoGateway) ListLines(ctx context.Context, userID string) ([]models.CartLine, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := g.cart.Find(ctx, bson.M{"user_id": userID, "status": models.LinePending}, opts)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	defer cursor.Close(ctx)

	lines := []models.CartLine{}
	if err := cursor.All(ctx, &lines); err != nil {
		return nil, fmt.Errorf("decode cart lines: %w", err)
	}
	return lines, nil
}

func (g *MongoGateway) CreateOrder(ctx context.Context, order models.Order) error {
	if _, err := g.order.InsertOne(ctx, order); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert order %s: %w", order.ID, ErrDuplicate)
		}
		return fmt.Errorf("insert order %s: %w", order.ID, err)
	}
	return nil
}

func (g *MongoGateway) GetOrder(ctx context.Context, id string) (models.Order, error) {
	var order models.Order
	err := g.order.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("find order %s: %w", id, err)
	}
	return order, nil
}

func (g *MongoGateway) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := g.order.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}

// UpdateOrderStatus applies one state-machine step. The update is conditioned on
// the status that was read so two concurrent admins cannot both advance it.
func (g *MongoGateway) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (models.Order, error) {
	order, err := g.GetOrder(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	from := order.Status
	if err := order.Transition(status, g.now().UTC()); err != nil {
		return models.Order{}, err
	}

	filter := bson.M{"_id": id, "status": from}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "status", Value: order.Status},
			{Key: "updated_at", Value: order.UpdatedAt},
		}},
	}
	result, err := g.order.UpdateOne(ctx, filter, update, options.Update().SetUpsert(false))
	if err != nil {
		return models.Order{}, fmt.Errorf("update order status %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return models.Order{}, fmt.Errorf("update order status %s: %w", id, ErrConflict)
	}
	return order, nil
}

package notify

import (
	"context"
	"fmt"
	"sync"

	"go-restaurant-ordering/database"
	"go-restaurant-ordering/models"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const NotificationCollection = "notification"

var validate = validator.New()

type NotificationStore interface {
	SaveNotification(ctx context.Context, n models.Notification) error
}

type MongoNotificationStore struct {
	collection *mongo.Collection
}

func NewMongoNotificationStore(client *mongo.Client, dbName string) *MongoNotificationStore {
	return &MongoNotificationStore{collection: database.OpenCollection(client, dbName, NotificationCollection)}
}

func (s *MongoNotificationStore) SaveNotification(ctx context.Context, n models.Notification) error {
	if err := validate.Struct(&n); err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}
	if _, err := s.collection.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListForUser returns a customer's notifications, newest first.
func (s *MongoNotificationStore) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer cursor.Close(ctx)

	out := []models.Notification{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return out, nil
}

// MemoryNotificationStore keeps notifications in process for local runs.
type MemoryNotificationStore struct {
	mu    sync.Mutex
	items []models.Notification
}

func NewMemoryNotificationStore() *MemoryNotificationStore {
	return &MemoryNotificationStore{}
}

func (s *MemoryNotificationStore) SaveNotification(ctx context.Context, n models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate.Struct(&n); err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}
	s.mu.Lock()
	s.items = append(s.items, n)
	s.mu.Unlock()
	return nil
}

func (s *MemoryNotificationStore) ListForUser(_ context.Context, userID string) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Notification{}
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].UserID == userID {
			out = append(out, s.items[i])
		}
	}
	return out, nil
}

func (s *MemoryNotificationStore) All() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Notification(nil), s.items...)
}

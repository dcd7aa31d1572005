package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-restaurant-ordering/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const (
	TargetAdmin    = "admin"
	TargetCustomer = "customer"
	TargetSMS      = "sms"
	TargetEvents   = "events"
)

// FormatAmount renders minor units with two decimals.
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// InAppTarget stores a notification record and pushes it to connected clients.
type InAppTarget struct {
	role      string
	store     NotificationStore
	publisher Publisher
	now       func() time.Time
}

func NewAdminTarget(store NotificationStore, publisher Publisher) *InAppTarget {
	return &InAppTarget{role: models.RoleAdmin, store: store, publisher: publisher, now: time.Now}
}

func NewCustomerTarget(store NotificationStore, publisher Publisher) *InAppTarget {
	return &InAppTarget{role: models.RoleCustomer, store: store, publisher: publisher, now: time.Now}
}

func (t *InAppTarget) Name() string {
	if t.role == models.RoleAdmin {
		return TargetAdmin
	}
	return TargetCustomer
}

func (t *InAppTarget) Send(ctx context.Context, order models.Order) error {
	n := models.Notification{
		ID:        uuid.NewString(),
		UserRole:  t.role,
		OrderID:   order.ID,
		CreatedAt: t.now().UTC(),
	}
	if t.role == models.RoleAdmin {
		n.Message = fmt.Sprintf("New order #%s: %d items, total %s", shortID(order.ID), len(order.Lines), FormatAmount(order.Total))
	} else {
		n.UserID = order.UserID
		n.Message = fmt.Sprintf("Your order #%s has been received", shortID(order.ID))
	}
	if err := t.store.SaveNotification(ctx, n); err != nil {
		return fmt.Errorf("save %s notification: %w", t.Name(), err)
	}

	if t.publisher != nil {
		if t.role == models.RoleAdmin {
			t.publisher.PublishToRole(models.RoleAdmin, Event{Event: EventNewOrder, Payload: order})
		} else {
			t.publisher.PublishToUser(order.UserID, Event{Event: EventNotification, Payload: n})
		}
	}
	return nil
}

// SMSSender delivers a text message. A false result without an error means the
// provider refused the message.
type SMSSender interface {
	Send(ctx context.Context, phone, message string) (bool, error)
}

var ErrSMSRejected = errors.New("sms provider rejected message")

type SMSTarget struct {
	sender SMSSender
}

func NewSMSTarget(sender SMSSender) *SMSTarget {
	return &SMSTarget{sender: sender}
}

func (t *SMSTarget) Name() string { return TargetSMS }

func (t *SMSTarget) Send(ctx context.Context, order models.Order) error {
	msg := fmt.Sprintf("Order #%s confirmed. Total %s. Delivery to %s.", shortID(order.ID), FormatAmount(order.Total), order.Address)
	ok, err := t.sender.Send(ctx, order.Phone, msg)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	if !ok {
		return ErrSMSRejected
	}
	return nil
}

// MessageWriter is the subset of *kafka.Writer used to publish events.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OrderPlacedEvent is the payload published on the order events topic.
type OrderPlacedEvent struct {
	EventID  string       `json:"event_id"`
	Type     string       `json:"type"`
	OrderID  string       `json:"order_id"`
	UserID   string       `json:"user_id"`
	BranchID string       `json:"branch_id"`
	Total    int64        `json:"total"`
	Order    models.Order `json:"order"`
	At       time.Time    `json:"at"`
}

// EventTarget publishes order.placed to Kafka, keyed by order id.
type EventTarget struct {
	writer MessageWriter
	now    func() time.Time
}

func NewEventTarget(writer MessageWriter) *EventTarget {
	return &EventTarget{writer: writer, now: time.Now}
}

func (t *EventTarget) Name() string { return TargetEvents }

func (t *EventTarget) Send(ctx context.Context, order models.Order) error {
	evt := OrderPlacedEvent{
		EventID:  uuid.NewString(),
		Type:     "order.placed",
		OrderID:  order.ID,
		UserID:   order.UserID,
		BranchID: order.BranchID,
		Total:    order.Total,
		Order:    order,
		At:       t.now().UTC(),
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode order event: %w", err)
	}
	if err := t.writer.WriteMessages(ctx, kafka.Message{Key: []byte(order.ID), Value: data, Time: evt.At}); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

// NewKafkaWriter builds the writer for the order events topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

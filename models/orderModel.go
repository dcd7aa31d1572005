package models

import (
	"errors"
	"fmt"
	"time"
)

type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusPreparing      OrderStatus = "preparing"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
)

var ErrInvalidTransition = errors.New("invalid order status transition")

// next holds the single forward step allowed from each status.
var next = map[OrderStatus]OrderStatus{
	StatusPending:        StatusConfirmed,
	StatusConfirmed:      StatusPreparing,
	StatusPreparing:      StatusOutForDelivery,
	StatusOutForDelivery: StatusDelivered,
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusOutForDelivery, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether an order may move from one status to another.
// Orders advance one step at a time; cancellation is allowed up to preparing.
func CanTransition(from, to OrderStatus) bool {
	if to == StatusCancelled {
		return from == StatusPending || from == StatusConfirmed || from == StatusPreparing
	}
	n, ok := next[from]
	return ok && n == to
}

const (
	PaymentCash = "cash"
	PaymentCard = "card"
)

// OrderLine is the snapshot of a cart line taken when the order was placed.
type OrderLine struct {
	LineID    string `bson:"line_id" json:"line_id"`
	ItemID    string `bson:"item_id" json:"item_id"`
	Name      string `bson:"name" json:"name"`
	UnitPrice int64  `bson:"unit_price" json:"unit_price"`
	Quantity  int    `bson:"quantity" json:"quantity"`
	Total     int64  `bson:"total" json:"total"`
}

type Order struct {
	ID             string      `bson:"_id" json:"order_id" validate:"required"`
	UserID         string      `bson:"user_id" json:"user_id" validate:"required"`
	Email          string      `bson:"email" json:"email"`
	Lines          []OrderLine `bson:"lines" json:"lines" validate:"required,min=1"`
	Address        string      `bson:"address" json:"address" validate:"required"`
	Phone          string      `bson:"phone" json:"phone" validate:"required,e164"`
	PaymentMethod  string      `bson:"payment_method" json:"payment_method" validate:"required,oneof=cash card"`
	DeliveryWindow string      `bson:"delivery_window" json:"delivery_window"`
	Subtotal       int64       `bson:"subtotal" json:"subtotal"`
	DeliveryFee    int64       `bson:"delivery_fee" json:"delivery_fee"`
	Total          int64       `bson:"total" json:"total"`
	Status         OrderStatus `bson:"status" json:"status"`
	Paid           bool        `bson:"paid" json:"paid"`
	BranchID       string      `bson:"branch_id" json:"branch_id"`
	CreatedAt      time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `bson:"updated_at" json:"updated_at"`
}

// LinesFromCart snapshots cart lines into order lines.
func LinesFromCart(lines []CartLine) []OrderLine {
	out := make([]OrderLine, 0, len(lines))
	for _, l := range lines {
		l.Recompute()
		out = append(out, OrderLine{
			LineID:    l.ID,
			ItemID:    l.ItemID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Total:     l.Total,
		})
	}
	return out
}

// RecomputeTotal derives subtotal and total from the stored lines and fee.
func (o *Order) RecomputeTotal() {
	var subtotal int64
	for _, l := range o.Lines {
		subtotal += l.UnitPrice * int64(l.Quantity)
	}
	o.Subtotal = subtotal
	o.Total = subtotal + o.DeliveryFee
}

// Transition moves the order to status to, or returns ErrInvalidTransition.
func (o *Order) Transition(to OrderStatus, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}

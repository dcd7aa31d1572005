package models

import "time"

const (
	RoleAdmin    = "ADMIN"
	RoleCustomer = "CUSTOMER"
)

// Notification is the in-app record written for one fan-out target of an order.
type Notification struct {
	ID        string    `bson:"_id" json:"notification_id"`
	UserRole  string    `bson:"user_role" json:"user_role" validate:"required,eq=ADMIN|eq=CUSTOMER"`
	UserID    string    `bson:"user_id" json:"user_id"`
	OrderID   string    `bson:"order_id" json:"order_id" validate:"required"`
	Message   string    `bson:"message" json:"message"`
	IsRead    bool      `bson:"is_read" json:"is_read"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

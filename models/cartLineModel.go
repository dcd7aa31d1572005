package models

import "time"

const MaxInstructionsLength = 200

type LineSource string

const (
	SourceMenu     LineSource = "menu"
	SourceFeatured LineSource = "featured"
	SourcePopular  LineSource = "popular"
	SourceDiscount LineSource = "discount"
)

type LineStatus string

const (
	LinePending    LineStatus = "pending"
	LineProcessing LineStatus = "processing"
	LineSuccess    LineStatus = "success"
)

// CartLine is one item the user intends to order. Prices are integer minor units.
type CartLine struct {
	ID           string     `bson:"_id,omitempty" json:"line_id"`
	ItemID       string     `bson:"item_id" json:"item_id" validate:"required"`
	UserID       string     `bson:"user_id" json:"user_id"`
	Name         string     `bson:"name" json:"name" validate:"required,max=120"`
	Image        string     `bson:"image" json:"image"`
	UnitPrice    int64      `bson:"unit_price" json:"unit_price" validate:"gte=0"`
	Quantity     int        `bson:"quantity" json:"quantity" validate:"gte=0"`
	Total        int64      `bson:"total" json:"total"`
	Instructions string     `bson:"instructions" json:"instructions" validate:"max=200"`
	Source       LineSource `bson:"source" json:"source" validate:"omitempty,oneof=menu featured popular discount"`
	Status       LineStatus `bson:"status" json:"status" validate:"omitempty,oneof=pending processing success"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
}

// Recompute sets Total from UnitPrice and Quantity. Total is never set any other way.
func (l *CartLine) Recompute() {
	l.Total = l.UnitPrice * int64(l.Quantity)
}

// WithQuantity returns a copy of the line at quantity q with its total recomputed.
func (l CartLine) WithQuantity(q int) CartLine {
	l.Quantity = q
	l.Recompute()
	return l
}

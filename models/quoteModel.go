package models

import (
	"strings"
	"time"
)

type Branch struct {
	ID   string  `mapstructure:"id" json:"id"`
	Name string  `mapstructure:"name" json:"name"`
	Lat  float64 `mapstructure:"lat" json:"lat"`
	Lng  float64 `mapstructure:"lng" json:"lng"`
}

// DeliveryFeeQuote is derived and never persisted. Fallback quotes have no
// distance or duration.
type DeliveryFeeQuote struct {
	Fee        int64     `json:"fee"`
	Distance   string    `json:"distance,omitempty"`
	Duration   string    `json:"duration,omitempty"`
	Address    string    `json:"address"`
	BranchID   string    `json:"branch_id"`
	ComputedAt time.Time `json:"computed_at"`
	Fallback   bool      `json:"fallback"`
	Reason     string    `json:"reason,omitempty"`
}

// NormalizeAddress folds case and whitespace so equal addresses compare equal.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

// ValidFor reports whether the quote was computed for this address and branch.
func (q DeliveryFeeQuote) ValidFor(address, branchID string) bool {
	return q.BranchID == branchID && NormalizeAddress(q.Address) == NormalizeAddress(address)
}

// Identity is the signed-in user as read from the auth token.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Role   string
}

func (i Identity) Anonymous() bool {
	return strings.TrimSpace(i.UserID) == ""
}

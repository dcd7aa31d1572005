package checkout

import (
	"errors"
	"fmt"
)

// ValidationError is a failed checkout precondition. Reason is shown to the user.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

var (
	ErrUnauthenticated = &ValidationError{Field: "identity", Reason: "sign in to place an order"}
	ErrEmptyCart       = &ValidationError{Field: "cart", Reason: "your cart is empty"}
	ErrMissingAddress  = &ValidationError{Field: "address", Reason: "enter a delivery address"}
	ErrMissingPhone    = &ValidationError{Field: "phone", Reason: "enter a phone number"}
	ErrInvalidPhone    = &ValidationError{Field: "phone", Reason: "phone number must be in international format, e.g. +998901234567"}
	ErrInvalidPayment  = &ValidationError{Field: "payment_method", Reason: "payment method must be cash or card"}
)

var (
	ErrCheckoutInProgress = errors.New("a checkout is already in progress")
	ErrDuplicateOrder     = errors.New("order was already placed")
	ErrCartChanged        = errors.New("your cart changed because a change could not be saved, please review it")
)

// PlacementError means the order record could not be created. Nothing was
// charged or cleared; retrying with OrderID is safe.
type PlacementError struct {
	OrderID string
	Err     error
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("place order %s: %v", e.OrderID, e.Err)
}

func (e *PlacementError) Unwrap() error { return e.Err }

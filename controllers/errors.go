package controllers

import (
	"errors"
	"net/http"

	"go-restaurant-ordering/cart"
	"go-restaurant-ordering/cartsync"
	"go-restaurant-ordering/checkout"
	"go-restaurant-ordering/gateway"
	"go-restaurant-ordering/models"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// respondError maps domain errors to status codes. Unknown errors are 500.
func respondError(c *gin.Context, err error) {
	var (
		verr *checkout.ValidationError
		perr *checkout.PlacementError
		serr cartsync.SyncError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason, "field": verr.Field})
	case errors.As(err, &perr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "order could not be placed, please retry", "order_id": perr.OrderID})
	case errors.Is(err, checkout.ErrCheckoutInProgress), errors.Is(err, checkout.ErrDuplicateOrder), errors.Is(err, checkout.ErrCartChanged),
		errors.Is(err, cart.ErrLineNotSynced), errors.Is(err, gateway.ErrConflict), errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, cart.ErrLineNotFound), errors.Is(err, gateway.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, cart.ErrZeroDelta):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &serr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not save your cart, please try again"})
	case errors.Is(err, cartsync.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

package controllers

import (
	"net/http"

	"go-restaurant-ordering/checkout"
	"go-restaurant-ordering/middleware"
	"go-restaurant-ordering/session"

	"github.com/gin-gonic/gin"
)

type quoteRequest struct {
	Address  string `json:"address"`
	BranchID string `json:"branch_id" validate:"required"`
}

func bindQuote(c *gin.Context) (quoteRequest, bool) {
	var req quoteRequest
	if err := c.BindJSON(&req); err != nil {
		return req, false
	}
	if err := validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, false
	}
	return req, true
}

// QuoteDelivery returns the fee for the address now.
func QuoteDelivery(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindQuote(c)
		if !ok {
			return
		}
		s, ok := userSession(c, sessions)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, s.Quote(c.Request.Context(), req.Address, req.BranchID))
	}
}

// SetAddress is sent while the user types. The quote is pushed over the
// websocket once the address settles.
func SetAddress(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindQuote(c)
		if !ok {
			return
		}
		s, ok := userSession(c, sessions)
		if !ok {
			return
		}
		s.Quoter.SetAddress(req.Address, req.BranchID)
		c.Status(http.StatusAccepted)
	}
}

func PlaceOrder(sessions *session.Manager, orch *checkout.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checkout.Request
		if err := c.BindJSON(&req); err != nil {
			return
		}
		who := middleware.Identity(c)
		if who.Anonymous() {
			respondError(c, checkout.ErrUnauthenticated)
			return
		}
		s, ok := userSession(c, sessions)
		if !ok {
			return
		}
		res, err := orch.PlaceOrder(c.Request.Context(), who, s, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, res)
	}
}

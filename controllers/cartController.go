package controllers

import (
	"net/http"

	"go-restaurant-ordering/middleware"
	"go-restaurant-ordering/models"
	"go-restaurant-ordering/session"

	"github.com/gin-gonic/gin"
)

type addLineRequest struct {
	ItemID       string            `json:"item_id" validate:"required"`
	Name         string            `json:"name" validate:"required,max=120"`
	Image        string            `json:"image"`
	UnitPrice    int64             `json:"unit_price" validate:"gte=0"`
	Quantity     int               `json:"quantity" validate:"gte=0,lte=99"`
	Instructions string            `json:"instructions"`
	Source       models.LineSource `json:"source" validate:"omitempty,oneof=menu featured popular discount"`
}

type changeLineRequest struct {
	Delta int `json:"delta"`
}

func cartView(s *session.Session) gin.H {
	return gin.H{
		"lines":    s.Cart().Lines(),
		"subtotal": s.Cart().Subtotal(),
		"dirty":    s.Sync.Dirty(),
	}
}

// userSession resolves the caller's session or writes the error response.
func userSession(c *gin.Context, sessions *session.Manager) (*session.Session, bool) {
	who := middleware.Identity(c)
	if who.Anonymous() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "sign in first"})
		return nil, false
	}
	s, err := sessions.Get(c.Request.Context(), who.UserID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return s, true
}

func GetCart(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := userSession(c, sessions)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, cartView(s))
	}
}

func AddCartLine(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addLineRequest
		if err := c.BindJSON(&req); err != nil {
			return
		}
		if err := validate.Struct(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s, ok := userSession(c, sessions)
		if !ok {
			return
		}
		line, err := s.Sync.AddLine(c.Request.Context(), models.CartLine{
			ItemID:       req.ItemID,
			UserID:       s.UserID,
			Name:         req.Name,
			Image:        req.Image,
			UnitPrice:    req.UnitPrice,
			Quantity:     req.Quantity,
			Instructions: req.Instructions,
			Source:       req.Source,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, line)
	}
}

// ChangeCartLine applies the delta at once; the backend write follows after
// the debounce window.
func ChangeCartLine(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req changeLineRequest
		if err := c.BindJSON(&req); err != nil {
			return
		}
		s, ok := userSession(c, sessions)
		if !ok {
			return
		}
		lineID := c.Param("line_id")
		qty, err := s.Sync.ChangeQuantity(lineID, req.Delta)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"line_id": lineID, "quantity": qty, "removed": qty == 0, "subtotal": s.Cart().Subtotal()})
	}
}

func DeleteCartLine(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := userSession(c, sessions)
		if !ok {
			return
		}
		if err := s.Sync.RemoveLine(c.Param("line_id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, cartView(s))
	}
}

package controllers

import (
	"net/http"

	"go-restaurant-ordering/gateway"
	"go-restaurant-ordering/middleware"
	"go-restaurant-ordering/models"
	"go-restaurant-ordering/notify"

	"github.com/gin-gonic/gin"
)

type statusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required"`
}

func GetOrders(gw gateway.OrderGateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := gw.ListOrders(c.Request.Context(), middleware.Identity(c).UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

// GetOrder returns one order. Customers only see their own.
func GetOrder(gw gateway.OrderGateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		who := middleware.Identity(c)
		order, err := gw.GetOrder(c.Request.Context(), c.Param("order_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		if who.Role != models.RoleAdmin && order.UserID != who.UserID {
			respondError(c, gateway.ErrNotFound)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// UpdateOrderStatus moves an order along its status machine and tells the
// customer.
func UpdateOrderStatus(gw gateway.OrderGateway, pub notify.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statusRequest
		if err := c.BindJSON(&req); err != nil {
			return
		}
		if err := validate.Struct(&req); err != nil || !req.Status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown order status"})
			return
		}
		order, err := gw.UpdateOrderStatus(c.Request.Context(), c.Param("order_id"), req.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		if pub != nil {
			pub.PublishToUser(order.UserID, notify.Event{Event: notify.EventStatusChanged, Payload: gin.H{
				"order_id": order.ID,
				"status":   order.Status,
			}})
		}
		c.JSON(http.StatusOK, order)
	}
}

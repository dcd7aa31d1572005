package routes

import (
	"go-restaurant-ordering/checkout"
	controller "go-restaurant-ordering/controllers"
	"go-restaurant-ordering/session"

	"github.com/gin-gonic/gin"
)

func CheckoutRoutes(incomingRoutes gin.IRoutes, sessions *session.Manager, orch *checkout.Orchestrator) {
	incomingRoutes.POST("/checkout/quote", controller.QuoteDelivery(sessions))
	incomingRoutes.PUT("/checkout/address", controller.SetAddress(sessions))
	incomingRoutes.POST("/checkout", controller.PlaceOrder(sessions, orch))
}

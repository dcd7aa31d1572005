package routes

import (
	controller "go-restaurant-ordering/controllers"
	"go-restaurant-ordering/gateway"
	"go-restaurant-ordering/middleware"
	"go-restaurant-ordering/models"
	"go-restaurant-ordering/notify"

	"github.com/gin-gonic/gin"
)

func OrderRoutes(incomingRoutes gin.IRoutes, gw gateway.OrderGateway, pub notify.Publisher) {
	incomingRoutes.GET("/orders", controller.GetOrders(gw))
	incomingRoutes.GET("/orders/:order_id", controller.GetOrder(gw))
	incomingRoutes.PATCH("/orders/:order_id/status", middleware.RequireRole(models.RoleAdmin), controller.UpdateOrderStatus(gw, pub))
}

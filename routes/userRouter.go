package routes

import (
	controller "go-restaurant-ordering/controllers"
	"go-restaurant-ordering/notify"

	"github.com/gin-gonic/gin"
)

func UserRoutes(incomingRoutes gin.IRoutes, hub *notify.Hub, allowedOrigins []string, notifications controller.NotificationLister) {
	incomingRoutes.GET("/ws", controller.HandleWebSocket(hub, allowedOrigins))
	incomingRoutes.GET("/notifications", controller.GetNotifications(notifications))
}

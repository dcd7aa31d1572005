package routes

import (
	controller "go-restaurant-ordering/controllers"
	"go-restaurant-ordering/session"

	"github.com/gin-gonic/gin"
)

func CartRoutes(incomingRoutes gin.IRoutes, sessions *session.Manager) {
	incomingRoutes.GET("/cart", controller.GetCart(sessions))
	incomingRoutes.POST("/cart/lines", controller.AddCartLine(sessions))
	incomingRoutes.PATCH("/cart/lines/:line_id", controller.ChangeCartLine(sessions))
	incomingRoutes.DELETE("/cart/lines/:line_id", controller.DeleteCartLine(sessions))
}

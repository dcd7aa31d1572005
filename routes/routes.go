package routes

import (
	"net/http"

	"go-restaurant-ordering/checkout"
	controller "go-restaurant-ordering/controllers"
	"go-restaurant-ordering/gateway"
	"go-restaurant-ordering/helpers"
	"go-restaurant-ordering/middleware"
	"go-restaurant-ordering/notify"
	"go-restaurant-ordering/session"

	"github.com/gin-gonic/gin"
)

type Deps struct {
	Tokens        *helpers.TokenHelper
	Sessions      *session.Manager
	Gateway       gateway.OrderGateway
	Checkout      *checkout.Orchestrator
	Hub           *notify.Hub
	WSOrigins     []string
	Notifications controller.NotificationLister
	Metrics       http.Handler
}

// Register mounts the public routes, then everything behind authentication.
func Register(router *gin.Engine, d Deps) {
	router.GET("/health", controller.Health())
	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics))
	}
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Page not found"})
	})

	var pub notify.Publisher
	if d.Hub != nil {
		pub = d.Hub
	}

	authed := router.Group("/", middleware.Authentication(d.Tokens))
	UserRoutes(authed, d.Hub, d.WSOrigins, d.Notifications)
	CartRoutes(authed, d.Sessions)
	CheckoutRoutes(authed, d.Sessions, d.Checkout)
	OrderRoutes(authed, d.Gateway, pub)
}

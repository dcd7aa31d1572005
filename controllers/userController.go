package controllers

import (
	"context"
	"net/http"
	"strings"

	"go-restaurant-ordering/middleware"
	"go-restaurant-ordering/models"
	"go-restaurant-ordering/notify"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// newUpgrader accepts browser connections only from the allowed origins.
// Requests without an Origin header come from non-browser clients.
func newUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range allowedOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// HandleWebSocket subscribes the caller to their cart, quote and order events.
// Admins also receive new orders.
func HandleWebSocket(hub *notify.Hub, allowedOrigins []string) gin.HandlerFunc {
	upgrader := newUpgrader(allowedOrigins)
	return func(c *gin.Context) {
		who := middleware.Identity(c)
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			_ = c.Error(err)
			return
		}
		hub.Serve(conn, who.UserID, who.Role)
	}
}

type NotificationLister interface {
	ListForUser(ctx context.Context, userID string) ([]models.Notification, error)
}

func GetNotifications(store NotificationLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := store.ListForUser(c.Request.Context(), middleware.Identity(c).UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

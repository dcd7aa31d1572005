package middleware

import (
	"net/http"

	"go-restaurant-ordering/helpers"
	"go-restaurant-ordering/models"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// Authentication reads the token header and stores the caller's identity.
// Websocket clients cannot set headers and pass ?token= instead.
func Authentication(tokens *helpers.TokenHelper) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientToken := c.Request.Header.Get("token")
		if clientToken == "" {
			clientToken = c.Query("token")
		}
		if clientToken == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no token header provided"})
			return
		}
		who, err := tokens.ValidateToken(clientToken)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(identityKey, who)
		c.Next()
	}
}

// RequireRole rejects callers whose role differs from role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if Identity(c).Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "unauthorized to access this resource"})
			return
		}
		c.Next()
	}
}

// Identity returns the caller set by Authentication, or an anonymous identity.
func Identity(c *gin.Context) models.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}
	}
	who, _ := v.(models.Identity)
	return who
}

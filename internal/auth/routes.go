package auth

import "github.com/gin-gonic/gin"

// RegisterRoutes registers Auth routes
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, tokens *TokenService) {
	authGroup := router.Group("/auth")
	{
		authGroup.GET("/ping", handler.Ping)
		authGroup.GET("/me", RequireViewer(tokens), handler.Me)
	}
}

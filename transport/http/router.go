package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/layer-3/tollgate/ports"
	"github.com/layer-3/tollgate/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(verifier *service.Verifier, issuer *service.Issuer, registry ports.Registry, blobs ports.BlobStore, events ports.EventPublisher, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	handlers := NewGatewayHandlers(registry, blobs, events, logger)

	router.GET("/healthz", handlers.Health)

	// Registration surface
	registryGroup := router.Group("/registry")
	{
		registryGroup.PUT("", handlers.Register)
		registryGroup.GET("", handlers.List)
	}

	// Protected content routes
	content := router.Group("/content")
	content.Use(PaymentMiddleware(verifier, issuer, registry, logger))
	{
		content.GET("/*resource", handlers.Content)
	}

	return router
}

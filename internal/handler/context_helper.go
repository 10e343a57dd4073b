package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/berrihq/berri-api/internal/middleware"
	"github.com/berrihq/berri-api/internal/models"
)

func actorFromContext(c *gin.Context) *models.Actor {
	value, exists := c.Get(middleware.ContextActorKey)
	if !exists {
		return nil
	}
	actor, ok := value.(*models.Actor)
	if !ok {
		return nil
	}
	return actor
}

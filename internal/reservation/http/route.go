package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler) {
	group := g.Group("/reservations")
	{
		group.POST("", h.Reserve)
		group.POST("/query", h.Query)
		group.POST("/filter", h.Filter)
		group.GET("/:id", h.Get)
		group.POST("/:id/confirm", h.Confirm)
		group.PATCH("/:id", h.Update)
		group.DELETE("/:id", h.Delete)
	}
}

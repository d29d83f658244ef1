package http

import "github.com/gin-gonic/gin"

func RegisterConsoleRoutes(r gin.IRouter, handler *ConsoleHandler) {
	console := r.Group("/console")
	{
		console.GET("", handler.ListKinds)
		console.GET("/:kind", handler.Search)
		console.POST("/:kind", handler.Create)
		console.PUT("/:kind/:id", handler.Update)
		console.DELETE("/:kind/:id", handler.Delete)
	}
}

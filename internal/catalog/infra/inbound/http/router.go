package http

import (
	"github.com/gin-gonic/gin"

	catalogDomain "github.com/alkimyk/cmr/internal/catalog/domain"
	"github.com/alkimyk/cmr/pkg/utils"
)

// RegisterRecordRoutes publica cada recurso bajo todos sus alias.
func RegisterRecordRoutes(r gin.IRouter, handler *RecordHandler) {
	for _, res := range catalogDomain.Resources() {
		for _, alias := range res.Aliases {
			group := r.Group("/"+alias, withResource(res.Name))
			{
				group.GET("/search", handler.Search) // Búsqueda paginada
				group.GET("", handler.List)          // Listado heredado sin total
				group.GET("/:id", handler.Get)
				group.POST("", handler.Create)
				group.PUT("/:id", handler.Update)
				group.DELETE("/:id", handler.Delete)
			}
		}
	}
}

// NoRoute responde las rutas inexistentes con el mismo sobre de error.
func NoRoute(c *gin.Context) {
	utils.SendNotFound(c, "route not found")
}

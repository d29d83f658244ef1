package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	catalogDomain "github.com/alkimyk/cmr/internal/catalog/domain"
	"github.com/alkimyk/cmr/pkg/utils"
)

const resourceKey = "catalog.resource"

// Parámetros de query que no son filtros.
var reservedParams = map[string]bool{"page": true, "limit": true, "q": true, "sort": true}

// RecordService son los casos de uso que necesita el handler.
type RecordService interface {
	Search(ctx context.Context, resource string, q catalogDomain.SearchQuery) (catalogDomain.SearchResult, error)
	List(ctx context.Context, resource string, q catalogDomain.SearchQuery) ([]catalogDomain.Record, error)
	Get(ctx context.Context, resource, id string) (catalogDomain.Record, error)
	Create(ctx context.Context, resource string, input map[string]any) (catalogDomain.Record, error)
	Update(ctx context.Context, resource, id string, input map[string]any) (catalogDomain.Record, error)
	Delete(ctx context.Context, resource, id string) error
}

// RecordHandler encapsula los endpoints HTTP del catálogo.
type RecordHandler struct {
	service RecordService
	log     *zap.Logger
}

func NewRecordHandler(service RecordService, log *zap.Logger) *RecordHandler {
	return &RecordHandler{service: service, log: log}
}

// withResource deja en el contexto el recurso del grupo de rutas.
func withResource(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(resourceKey, name)
		c.Next()
	}
}

func searchQuery(c *gin.Context) catalogDomain.SearchQuery {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	q := catalogDomain.SearchQuery{
		Page:    page,
		Limit:   limit,
		Query:   c.Query("q"),
		Sort:    c.Query("sort"),
		Filters: map[string]string{},
	}
	for k, v := range c.Request.URL.Query() {
		if reservedParams[k] || len(v) == 0 || v[0] == "" {
			continue
		}
		q.Filters[k] = v[0]
	}
	return q
}

// --- Handlers ---

// Search endpoint GET /<alias>/search
func (h *RecordHandler) Search(c *gin.Context) {
	res, err := h.service.Search(c.Request.Context(), c.GetString(resourceKey), searchQuery(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// List endpoint GET /<alias>: listado heredado, sin total.
func (h *RecordHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), c.GetString(resourceKey), searchQuery(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, items)
}

// Get endpoint GET /<alias>/:id
func (h *RecordHandler) Get(c *gin.Context) {
	rec, err := h.service.Get(c.Request.Context(), c.GetString(resourceKey), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, rec)
}

// Create endpoint POST /<alias>
func (h *RecordHandler) Create(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.SendBadRequest(c, "invalid JSON body")
		return
	}
	rec, err := h.service.Create(c.Request.Context(), c.GetString(resourceKey), body)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusCreated, rec)
}

// Update endpoint PUT /<alias>/:id
func (h *RecordHandler) Update(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.SendBadRequest(c, "invalid JSON body")
		return
	}
	rec, err := h.service.Update(c.Request.Context(), c.GetString(resourceKey), c.Param("id"), body)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, rec)
}

// Delete endpoint DELETE /<alias>/:id: responde ok aunque el registro no exista.
func (h *RecordHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.GetString(resourceKey), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *RecordHandler) fail(c *gin.Context, err error) {
	var vErr *catalogDomain.ValidationError
	switch {
	case errors.As(err, &vErr):
		utils.SendBadRequest(c, vErr.Message)
	case errors.Is(err, catalogDomain.ErrRecordNotFound):
		utils.SendRecordNotFound(c, "record not found")
	case errors.Is(err, catalogDomain.ErrUnknownResource):
		utils.SendNotFound(c, "unknown resource")
	default:
		h.log.Error("Catalog request failed",
			zap.String("resource", c.GetString(resourceKey)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		utils.SendInternalServerError(c, "internal error")
	}
}

package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/alkimyk/cmr/internal/console/domain"
	"github.com/alkimyk/cmr/pkg/utils"
	"github.com/alkimyk/cmr/shared/platform/query"
)

// Parámetros de query que no son filtros.
var reservedParams = map[string]bool{"page": true, "limit": true, "q": true, "sort": true, "lookup": true}

// ConsoleService es lo que expone el resolver a la presentación.
type ConsoleService interface {
	SearchOutcome(ctx context.Context, kind domain.Kind, params domain.SearchParams) domain.Outcome
	Create(ctx context.Context, kind domain.Kind, fields map[string]any) (domain.Record, error)
	Update(ctx context.Context, kind domain.Kind, id string, fields map[string]any) (domain.Record, error)
	Delete(ctx context.Context, kind domain.Kind, id string) error
	Columns(kind domain.Kind) []string
}

// ConsoleHandler expone la consola como JSON para cualquier cliente de presentación.
type ConsoleHandler struct {
	service ConsoleService
	log     *zap.Logger
}

func NewConsoleHandler(service ConsoleService, log *zap.Logger) *ConsoleHandler {
	return &ConsoleHandler{service: service, log: log}
}

type searchResponse struct {
	Items   []domain.Record      `json:"items"`
	Page    int                  `json:"page"`
	Limit   int                  `json:"limit"`
	Total   *int                 `json:"total,omitempty"`
	Pages   *int                 `json:"pages,omitempty"`
	Status  domain.OutcomeStatus `json:"status"`
	HasPrev bool                 `json:"has_prev"`
	HasNext bool                 `json:"has_next"`
}

type kindInfo struct {
	Kind    domain.Kind `json:"kind"`
	Columns []string    `json:"columns"`
}

// ---------------- Handlers ----------------

// ListKinds endpoint GET /console
func (h *ConsoleHandler) ListKinds(c *gin.Context) {
	kinds := make([]kindInfo, 0, len(domain.Kinds()))
	for _, k := range domain.Kinds() {
		kinds = append(kinds, kindInfo{Kind: k, Columns: h.service.Columns(k)})
	}
	c.JSON(http.StatusOK, gin.H{"kinds": kinds})
}

// Search endpoint GET /console/:kind. Nunca falla por el backend: a lo sumo status "unreachable".
func (h *ConsoleHandler) Search(c *gin.Context) {
	kind, ok := h.kind(c)
	if !ok {
		return
	}

	out := h.service.SearchOutcome(c.Request.Context(), kind, searchParams(c))
	res := out.Result
	c.JSON(http.StatusOK, searchResponse{
		Items:   res.Items,
		Page:    res.Page,
		Limit:   res.Limit,
		Total:   res.Total,
		Pages:   res.Pages,
		Status:  out.Status,
		HasPrev: res.HasPrev(),
		HasNext: res.HasNext(),
	})
}

// Create endpoint POST /console/:kind
func (h *ConsoleHandler) Create(c *gin.Context) {
	kind, ok := h.kind(c)
	if !ok {
		return
	}
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		utils.SendBadRequest(c, "invalid JSON body")
		return
	}

	rec, err := h.service.Create(c.Request.Context(), kind, fields)
	if err != nil {
		h.sendWriteError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusCreated, rec)
}

// Update endpoint PUT /console/:kind/:id
func (h *ConsoleHandler) Update(c *gin.Context) {
	kind, ok := h.kind(c)
	if !ok {
		return
	}
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		utils.SendBadRequest(c, "invalid JSON body")
		return
	}

	rec, err := h.service.Update(c.Request.Context(), kind, c.Param("id"), fields)
	if err != nil {
		h.sendWriteError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, rec)
}

// Delete endpoint DELETE /console/:kind/:id
func (h *ConsoleHandler) Delete(c *gin.Context) {
	kind, ok := h.kind(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), kind, c.Param("id")); err != nil {
		h.sendWriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ---------------- Helpers ----------------

func (h *ConsoleHandler) kind(c *gin.Context) (domain.Kind, bool) {
	kind, err := domain.ParseKind(c.Param("kind"))
	if err != nil {
		utils.SendNotFound(c, err.Error())
		return "", false
	}
	return kind, true
}

func (h *ConsoleHandler) sendWriteError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	var berr *domain.BackendError

	switch {
	case errors.As(err, &verr):
		utils.SendError(c, verr.Status, utils.CodeValidation, verr.Error())
	case errors.Is(err, domain.ErrRecordNotFound):
		utils.SendRecordNotFound(c, "record not found")
	case errors.Is(err, domain.ErrExhaustedCandidates):
		utils.SendError(c, http.StatusBadGateway, utils.CodeUnavailable, "acción no disponible en el backend")
	case errors.As(err, &berr):
		utils.SendError(c, http.StatusBadGateway, utils.CodeUnavailable, "could not save")
	default:
		h.log.Error("❌ Error inesperado en escritura", zap.String("path", c.FullPath()), zap.Error(err))
		utils.SendInternalServerError(c, "internal error")
	}
}

// searchParams lee page, limit, q, sort y lookup; cualquier otro parámetro es un filtro.
func searchParams(c *gin.Context) domain.SearchParams {
	p := domain.SearchParams{
		Page:  query.ParsePage(c.Query("page")),
		Limit: query.ParseLimit(c.Query("limit")),
		Query: c.Query("q"),
		Sort:  domain.ParseSort(c.Query("sort")),
	}
	if lookup, err := strconv.ParseBool(c.Query("lookup")); err == nil {
		p.Lookup = lookup
	}
	for key, values := range c.Request.URL.Query() {
		if reservedParams[key] || len(values) == 0 {
			continue
		}
		if p.Filters == nil {
			p.Filters = map[string]string{}
		}
		p.Filters[key] = values[0]
	}
	return p
}

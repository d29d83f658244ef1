package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alkimyk/cmr/internal/catalog/application"
	catalogDomain "github.com/alkimyk/cmr/internal/catalog/domain"
	"github.com/alkimyk/cmr/internal/mocks"
	sharedQuery "github.com/alkimyk/cmr/shared/platform/query"
)

func setupRouter() (*gin.Engine, *mocks.InMemoryRecordRepo) {
	gin.SetMode(gin.TestMode)
	repo := mocks.NewInMemoryRecordRepo()
	service := application.NewRecordService(repo, nil, zap.NewNop())

	router := gin.New()
	RegisterRecordRoutes(router, NewRecordHandler(service, zap.NewNop()))
	router.NoRoute(NoRoute)
	return router, repo
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestRecordHandler_CreateGetUpdateDelete(t *testing.T) {
	router, repo := setupRouter()

	w := doRequest(router, http.MethodPost, "/clientes", `{"nombre":"Ferretería Sur","saldo":"12.5"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]any)
	id := data["id"].(string)
	assert.Equal(t, 12.5, data["saldo"])

	w = doRequest(router, http.MethodGet, "/clients/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ferretería Sur", decode(t, w)["data"].(map[string]any)["nombre"])

	w = doRequest(router, http.MethodPut, "/clients/"+id, `{"nombre":"Ferretería Sur","email":"ventas@sur.com"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data = decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "ventas@sur.com", data["email"])
	assert.Nil(t, data["saldo"], "PUT reemplaza el registro completo")

	w = doRequest(router, http.MethodDelete, "/clients/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	// Borrar de nuevo también responde ok
	w = doRequest(router, http.MethodDelete, "/clientes/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	assert.Len(t, repo.Outbox, 3)
}

func TestRecordHandler_Errors(t *testing.T) {
	router, _ := setupRouter()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"validación", http.MethodPost, "/clients", `{"email":"x@y.z"}`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"json inválido", http.MethodPost, "/clients", `{nombre`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"id inexistente", http.MethodGet, "/clients/nope", "", http.StatusNotFound, "RECORD_NOT_FOUND"},
		{"update inexistente", http.MethodPut, "/clients/nope", `{"nombre":"X"}`, http.StatusNotFound, "RECORD_NOT_FOUND"},
		{"update sin requeridas", http.MethodPut, "/clients/nope", `{"email":"a@b.c"}`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"ruta inexistente", http.MethodGet, "/clients-v2/search", "", http.StatusNotFound, "NOT_FOUND"},
		{"filtro inválido", http.MethodGet, "/products/search?precio=caro", "", http.StatusBadRequest, "VALIDATION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode(t, w)["error"].(map[string]any)["code"])
		})
	}
}

func TestRecordHandler_SearchAndLegacyList(t *testing.T) {
	router, repo := setupRouter()
	repo.Records["uoms"] = map[string]catalogDomain.Record{}
	for i := 1; i <= 25; i++ {
		id := fmt.Sprintf("u-%02d", i)
		repo.Records["uoms"][id] = catalogDomain.Record{"id": id, "codigo": fmt.Sprintf("U%02d", i), "nombre": fmt.Sprintf("Unidad %02d", i)}
	}

	w := doRequest(router, http.MethodGet, "/units/search?page=2&limit=10&sort=-codigo", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, 25.0, body["total"])
	assert.Equal(t, 3.0, body["pages"])
	assert.Equal(t, 2.0, body["page"])
	items := body["items"].([]any)
	require.Len(t, items, 10)
	assert.Equal(t, "U15", items[0].(map[string]any)["codigo"])

	// Una página enorme se acota, no desborda el offset
	w = doRequest(router, http.MethodGet, "/units/search?page=9223372036854775807", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decode(t, w)
	assert.Equal(t, float64(sharedQuery.MaxPage), body["page"])
	assert.Empty(t, body["items"])

	// /uoms no es un alias publicado
	w = doRequest(router, http.MethodGet, "/uoms/search", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodGet, "/units?q=unidad%202", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.NotContains(t, body, "total")
	assert.Len(t, body["data"].([]any), 6) // Unidad 20 a 25
}

func TestSearchQuery_SplitsFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/x?page=2&limit=50&q=ab&sort=-nombre&activo=true&estado=", bytes.NewReader(nil))

	q := searchQuery(c)
	assert.Equal(t, catalogDomain.SearchQuery{
		Page: 2, Limit: 50, Query: "ab", Sort: "-nombre",
		Filters: map[string]string{"activo": "true"},
	}, q)
}

package backend

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	catalogApp "github.com/alkimyk/cmr/internal/catalog/application"
	catalogHTTP "github.com/alkimyk/cmr/internal/catalog/infra/inbound/http"
	"github.com/alkimyk/cmr/internal/catalog/infra/outbound/sqldb"
	"github.com/alkimyk/cmr/internal/console/application"
	"github.com/alkimyk/cmr/internal/console/domain"
)

// setupCatalog levanta el catálogo real sobre SQLite en memoria y un resolver que le habla por HTTP.
func setupCatalog(t *testing.T) (*application.Resolver, *catalogApp.RecordService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqldb.Open(sqldb.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := sqldb.NewStore(db, sqldb.SQLite)
	require.NoError(t, store.InitSchema(context.Background()))

	service := catalogApp.NewRecordService(store, nil, zap.NewNop())
	router := gin.New()
	catalogHTTP.RegisterRecordRoutes(router, catalogHTTP.NewRecordHandler(service, zap.NewNop()))
	router.NoRoute(catalogHTTP.NoRoute)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	tr, err := NewHTTPTransport(srv.URL, 2*time.Second)
	require.NoError(t, err)
	resolver := application.NewResolver(tr, domain.DefaultRoutes(), domain.NewNormalizer(domain.DefaultFieldMap()), zap.NewNop())
	return resolver, service
}

func TestCatalogContract_SearchFallsBackToPublishedAlias(t *testing.T) {
	resolver, service := setupCatalog(t)
	ctx := context.Background()

	for i := 1; i <= 45; i++ {
		_, err := service.Create(ctx, "sales_orders", map[string]any{
			"numero":     fmt.Sprintf("%04d", i),
			"cliente_id": "c-1",
			"total":      float64(i * 100),
		})
		require.NoError(t, err)
	}

	// /sales-orders/search no existe en el catálogo; responde /orders/search
	out := resolver.SearchOutcome(ctx, domain.KindSalesOrder, domain.SearchParams{Page: 3, Limit: 20})
	require.Equal(t, domain.StatusOK, out.Status)
	res := out.Result
	require.NotNil(t, res.Total)
	assert.Equal(t, 45, *res.Total)
	require.NotNil(t, res.Pages)
	assert.Equal(t, 3, *res.Pages)
	require.Len(t, res.Items, 5)
	assert.False(t, res.HasNext())
	assert.True(t, res.HasPrev())
	assert.Equal(t, "0041", res.Items[0].String("number"))
	assert.Equal(t, 4100.0, res.Items[0].Number("total"))
}

func TestCatalogContract_ThirdCandidateAndFilters(t *testing.T) {
	resolver, service := setupCatalog(t)
	ctx := context.Background()

	_, err := service.Create(ctx, "price_lists", map[string]any{"nombre": "Mayorista", "moneda": "USD", "activo": true})
	require.NoError(t, err)
	_, err = service.Create(ctx, "price_lists", map[string]any{"nombre": "Minorista", "activo": false})
	require.NoError(t, err)

	res := resolver.Search(ctx, domain.KindPriceList, domain.SearchParams{
		Filters: map[string]string{"active": "true"},
		Sort:    domain.ParseSort("-label"),
	})
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Mayorista", res.Items[0].Label())
	assert.Equal(t, "USD", res.Items[0].String("currency"))
	assert.True(t, res.Items[0].Bool("active"))

	res = resolver.Search(ctx, domain.KindPriceList, domain.SearchParams{Query: "mino"})
	require.Len(t, res.Items, 1)
	// Sin moneda guardada se usa el default del mapa de campos
	assert.Equal(t, "ARS", res.Items[0].String("currency"))
	assert.False(t, res.Items[0].Bool("active"))
}

func TestCatalogContract_Writes(t *testing.T) {
	resolver, service := setupCatalog(t)
	ctx := context.Background()

	created, err := resolver.Create(ctx, domain.KindUom, map[string]any{"code": "kg", "label": "Kilogramo", "factor": 1000})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID())
	assert.Equal(t, "Kilogramo", created.Label())

	stored, err := service.Get(ctx, "uoms", created.ID())
	require.NoError(t, err)
	assert.Equal(t, "kg", stored["codigo"])
	assert.Equal(t, 1000.0, stored["factor"])

	updated, err := resolver.Update(ctx, domain.KindUom, created.ID(), map[string]any{"code": "kg", "label": "Kilo"})
	require.NoError(t, err)
	assert.Equal(t, "Kilo", updated.Label())
	assert.Equal(t, "kg", updated.String("code"))
	assert.Equal(t, 1.0, updated.Number("factor"), "factor omitido vuelve al valor por defecto")

	_, err = resolver.Update(ctx, domain.KindUom, "missing", map[string]any{"code": "x"})
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	_, err = resolver.Create(ctx, domain.KindUom, map[string]any{"label": "sin código"})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, 400, vErr.Status)

	require.NoError(t, resolver.Delete(ctx, domain.KindUom, created.ID()))
	require.NoError(t, resolver.Delete(ctx, domain.KindUom, created.ID()))
	_, err = service.Get(ctx, "uoms", created.ID())
	assert.Error(t, err)
}

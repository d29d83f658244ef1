package application

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alkimyk/cmr/internal/console/domain"
	infraCache "github.com/alkimyk/cmr/internal/infra/cache"
	"github.com/alkimyk/cmr/internal/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var errRefused = errors.New("connection refused")

func newTestResolver(tr domain.Transport, opts ...Option) *Resolver {
	return NewResolver(tr, domain.DefaultRoutes(), domain.NewNormalizer(domain.DefaultFieldMap()), zap.NewNop(), opts...)
}

func TestResolver_Search_ThirdCandidateWins(t *testing.T) {
	tr := mocks.NewFakeTransport().
		Fail(http.MethodGet, "/price-lists/search", errRefused).
		OnRaw(http.MethodGet, "/pricelists/search", 500, []byte(`oops`)).
		OnJSON(http.MethodGet, "/price_lists/search", 200, map[string]any{
			"items": []any{
				map[string]any{"id": 1, "nombre": "Mayorista", "margen": "0.25"},
				map[string]any{"id": 2, "nombre": "Minorista"},
			},
			"total": 2,
			"page":  1,
		}).
		OnJSON(http.MethodGet, "/price_lists", 200, []any{})

	out := newTestResolver(tr).SearchOutcome(context.Background(), domain.KindPriceList, domain.DefaultParams())

	assert.Equal(t, domain.StatusOK, out.Status)
	require.Len(t, out.Result.Items, 2)
	assert.Equal(t, "Mayorista", out.Result.Items[0].Label())
	assert.Equal(t, 0.25, out.Result.Items[0].Number("margin"))
	assert.Equal(t, "ARS", out.Result.Items[1].String("currency"))
	assert.Equal(t, 2, *out.Result.Total)
	assert.Equal(t, 1, *out.Result.Pages)

	assert.Equal(t, []string{
		"GET /price-lists/search",
		"GET /pricelists/search",
		"GET /price_lists/search",
	}, tr.Paths())
}

func TestResolver_Search_Exhausted(t *testing.T) {
	tr := mocks.NewFakeTransport().
		Fail(http.MethodGet, "/cheques/search", errRefused).
		OnRaw(http.MethodGet, "/checks/search", 502, nil).
		OnRaw(http.MethodGet, "/cheques", 200, []byte(`{not json`))

	params := domain.SearchParams{Page: 4, Limit: 50}
	out := newTestResolver(tr).SearchOutcome(context.Background(), domain.KindCheque, params)

	assert.Equal(t, domain.StatusUnreachable, out.Status)
	assert.Empty(t, out.Result.Items)
	assert.NotNil(t, out.Result.Items)
	assert.Equal(t, 4, out.Result.Page)
	assert.Equal(t, 0, *out.Result.Total)
	assert.Equal(t, 1, *out.Result.Pages)
	assert.Len(t, tr.Calls(), 4)

	// Search expone la misma página vacía sin distinguir
	res := newTestResolver(tr).Search(context.Background(), domain.KindCheque, params)
	assert.True(t, res.IsEmpty())
}

func TestResolver_Search_ResponseShapes(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		items     int
		total     *int
		pages     *int
		firstName string
	}{
		{"array", `[{"nombre":"A"},{"nombre":"B"}]`, 2, nil, nil, "A"},
		{"items", `{"items":[{"nombre":"A"}],"total":41}`, 1, intp(41), intp(3), "A"},
		{"data legacy", `{"data":[{"name":"D"}]}`, 1, nil, nil, "D"},
		{"results con pages", `{"results":[{"nombre":"R"}],"pages":7}`, 1, nil, intp(7), "R"},
		{"total como texto", `{"items":[{"nombre":"T"}],"total":"20"}`, 1, intp(20), intp(1), "T"},
		{"forma desconocida", `{"rows":[{"nombre":"X"}]}`, 0, nil, nil, ""},
		{"escalar", `42`, 0, nil, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := mocks.NewFakeTransport().OnRaw(http.MethodGet, "/clients/search", 200, []byte(tt.body))
			res := newTestResolver(tr).Search(context.Background(), domain.KindClient, domain.DefaultParams())

			require.Len(t, res.Items, tt.items)
			assert.Equal(t, tt.total, res.Total)
			assert.Equal(t, tt.pages, res.Pages)
			if tt.items > 0 {
				assert.Equal(t, tt.firstName, res.Items[0].Label())
			}
			assert.Len(t, tr.Calls(), 1)
		})
	}
}

func TestResolver_Search_TruncatesAndPaginatesLegacy(t *testing.T) {
	all := make([]any, 45)
	for i := range all {
		all[i] = map[string]any{"id": i + 1}
	}
	tr := mocks.NewFakeTransport().OnJSON(http.MethodGet, "/clients", 200, map[string]any{"data": all})
	r := newTestResolver(tr)

	// el backend ignora la paginación: se pagina localmente
	res := r.Search(context.Background(), domain.KindClient, domain.SearchParams{Page: 3, Limit: 20})
	require.Len(t, res.Items, 5)
	assert.Equal(t, "41", res.Items[0].ID())
	assert.Equal(t, 45, *res.Total)
	assert.Equal(t, 3, *res.Pages)
	assert.False(t, res.HasNext())

	// con total informado solo se recorta
	tr.OnJSON(http.MethodGet, "/clients/search", 200, map[string]any{"items": all, "total": 45})
	res = r.Search(context.Background(), domain.KindClient, domain.SearchParams{Page: 1, Limit: 10})
	assert.Len(t, res.Items, 10)
	assert.Equal(t, 5, *res.Pages)
}

func TestResolver_Search_QueryParams(t *testing.T) {
	tr := mocks.NewFakeTransport().OnJSON(http.MethodGet, "/clients/search", 200, []any{})
	params := domain.SearchParams{
		Page:    2,
		Limit:   99,
		Query:   "  ferre ",
		Sort:    domain.Sort{Field: "label", Dir: domain.SortDesc},
		Filters: map[string]string{"active": "true", "custom": "x"},
	}
	newTestResolver(tr).Search(context.Background(), domain.KindClient, params)

	calls := tr.Calls()
	require.Len(t, calls, 1)
	q := calls[0].Query
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "20", q.Get("limit"))
	assert.Equal(t, "ferre", q.Get("q"))
	assert.Equal(t, "-nombre", q.Get("sort"))
	assert.Equal(t, "true", q.Get("activo"))
	assert.Equal(t, "x", q.Get("custom"))
}

func TestResolver_Search_LookupMinimum(t *testing.T) {
	tr := mocks.NewFakeTransport().OnJSON(http.MethodGet, "/suppliers/search", 200, []any{map[string]any{"nombre": "Acme"}})
	r := newTestResolver(tr)

	out := r.SearchOutcome(context.Background(), domain.KindSupplier, domain.SearchParams{Query: " a ", Lookup: true})
	assert.Equal(t, domain.StatusEmpty, out.Status)
	assert.Empty(t, tr.Calls())

	// sin Lookup no hay mínimo
	res := r.Search(context.Background(), domain.KindSupplier, domain.SearchParams{Query: "a"})
	assert.Len(t, res.Items, 1)

	res = r.Search(context.Background(), domain.KindSupplier, domain.SearchParams{Query: "ac", Lookup: true})
	assert.Len(t, res.Items, 1)
	assert.Len(t, tr.Calls(), 2)
}

func TestResolver_Search_RetriesTransportErrors(t *testing.T) {
	attempts := 0
	tr := mocks.NewFakeTransport().On(http.MethodGet, "/uoms/search", func(ctx context.Context, req domain.Request) (*domain.Response, error) {
		attempts++
		if attempts < 3 {
			return nil, errRefused
		}
		return &domain.Response{Status: 200, Body: []byte(`[{"codigo":"kg"}]`)}, nil
	})

	res := newTestResolver(tr, WithRetries(3, time.Millisecond)).Search(context.Background(), domain.KindUom, domain.DefaultParams())
	require.Len(t, res.Items, 1)
	assert.Equal(t, "kg", res.Items[0].Label())
	assert.Equal(t, 3, attempts)
}

func TestResolver_Search_CancelledContext(t *testing.T) {
	tr := mocks.NewFakeTransport().OnJSON(http.MethodGet, "/clients/search", 200, []any{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := newTestResolver(tr).SearchOutcome(ctx, domain.KindClient, domain.DefaultParams())
	assert.Equal(t, domain.StatusUnreachable, out.Status)
	assert.Empty(t, tr.Calls())
}

func TestResolver_Search_UnknownKind(t *testing.T) {
	out := newTestResolver(mocks.NewFakeTransport()).SearchOutcome(context.Background(), domain.Kind("planeta"), domain.DefaultParams())
	assert.Equal(t, domain.StatusUnreachable, out.Status)
}

func TestResolver_Search_CacheAndInvalidation(t *testing.T) {
	c := mocks.NewDummyCache()
	tr := mocks.NewFakeTransport().OnJSON(http.MethodGet, "/products/search", 200, map[string]any{
		"items": []any{map[string]any{"id": "p1", "nombre": "Tornillo", "precio": 10}},
		"total": 1,
	})
	tr.OnJSON(http.MethodPost, "/products", 201, map[string]any{"id": "p2", "nombre": "Tuerca"})
	r := newTestResolver(tr, WithCache(c, 60))
	ctx := context.Background()

	first := r.Search(ctx, domain.KindProduct, domain.DefaultParams())
	require.Len(t, first.Items, 1)

	key := SearchCacheKey(domain.KindProduct, domain.DefaultParams().Normalized())
	assert.Len(t, c.Keys(key), 1, "la entrada está guardada al volver del search")

	second := r.Search(ctx, domain.KindProduct, domain.DefaultParams())
	assert.Len(t, tr.Calls(), 1, "el segundo search sale de caché")
	require.Len(t, second.Items, 1)
	assert.Equal(t, domain.KindProduct, second.Items[0].Kind)
	assert.Equal(t, "Tornillo", second.Items[0].Label())
	assert.Equal(t, float64(10), second.Items[0].Number("price"))

	// otra combinación de parámetros es otra entrada
	assert.NotEqual(t, key, SearchCacheKey(domain.KindProduct, domain.SearchParams{Page: 2, Limit: 20}))

	_, err := r.Create(ctx, domain.KindProduct, map[string]any{"label": "Tuerca"})
	require.NoError(t, err)
	assert.Empty(t, c.Keys(SearchCachePrefix(domain.KindProduct)))

	r.Search(ctx, domain.KindProduct, domain.DefaultParams())
	assert.Len(t, tr.Calls(), 3)
}

func TestResolver_Search_NoStaleListAfterCreate(t *testing.T) {
	stored := []any{}
	tr := mocks.NewFakeTransport()
	tr.On(http.MethodGet, "/products/search", func(context.Context, domain.Request) (*domain.Response, error) {
		body, _ := json.Marshal(map[string]any{"items": stored, "total": len(stored)})
		return &domain.Response{Status: 200, Body: body}, nil
	})
	tr.On(http.MethodPost, "/products", func(context.Context, domain.Request) (*domain.Response, error) {
		stored = append(stored, map[string]any{"id": "p1", "nombre": "Tuerca"})
		return &domain.Response{Status: 201, Body: []byte(`{"id":"p1","nombre":"Tuerca"}`)}, nil
	})
	r := newTestResolver(tr, WithCache(infraCache.NewInMemoryCache(time.Minute, 0), 60))
	ctx := context.Background()

	assert.Empty(t, r.Search(ctx, domain.KindProduct, domain.DefaultParams()).Items)

	_, err := r.Create(ctx, domain.KindProduct, map[string]any{"label": "Tuerca"})
	require.NoError(t, err)

	// Sin esperas: la lectura siguiente ya ve el alta
	after := r.Search(ctx, domain.KindProduct, domain.DefaultParams())
	require.Len(t, after.Items, 1)
	assert.Equal(t, "Tuerca", after.Items[0].Label())
}

func TestResolver_Search_InvalidatedDuringFetchIsNotCached(t *testing.T) {
	c := mocks.NewDummyCache()
	tr := mocks.NewFakeTransport()
	r := newTestResolver(tr, WithCache(c, 60))
	tr.On(http.MethodGet, "/products/search", func(ctx context.Context, _ domain.Request) (*domain.Response, error) {
		// Una escritura concurrente invalida mientras la búsqueda sigue en vuelo
		r.Invalidate(ctx, domain.KindProduct)
		return &domain.Response{Status: 200, Body: []byte(`{"items":[{"id":"p1","nombre":"Tornillo"}]}`)}, nil
	})
	ctx := context.Background()

	res := r.Search(ctx, domain.KindProduct, domain.DefaultParams())
	require.Len(t, res.Items, 1)
	assert.Empty(t, c.Keys(SearchCachePrefix(domain.KindProduct)))

	// Otro tipo no se ve afectado
	tr.OnJSON(http.MethodGet, "/clients/search", 200, map[string]any{"items": []any{}})
	r.Search(ctx, domain.KindClient, domain.DefaultParams())
	assert.Len(t, c.Keys(SearchCachePrefix(domain.KindClient)), 1)
}

func TestResolver_Search_CancelledIsNotReportedAsDown(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx, cancel := context.WithCancel(context.Background())
	tr := mocks.NewFakeTransport()
	tr.On(http.MethodGet, "/cheques/search", func(ctx context.Context, _ domain.Request) (*domain.Response, error) {
		cancel()
		return nil, ctx.Err()
	})
	r := NewResolver(tr, domain.DefaultRoutes(), domain.NewNormalizer(domain.DefaultFieldMap()), zap.New(core))

	out := r.SearchOutcome(ctx, domain.KindCheque, domain.DefaultParams())
	assert.Equal(t, domain.StatusUnreachable, out.Status)
	assert.Len(t, tr.Calls(), 1, "no sigue probando candidatas")
	assert.Zero(t, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestResolver_Search_CacheErrorIsIgnored(t *testing.T) {
	c := mocks.NewDummyCache()
	c.FailGet = true
	tr := mocks.NewFakeTransport().OnJSON(http.MethodGet, "/clients/search", 200, []any{map[string]any{"nombre": "A"}})

	res := newTestResolver(tr, WithCache(c, 60)).Search(context.Background(), domain.KindClient, domain.DefaultParams())
	assert.Len(t, res.Items, 1)
}

func TestResolver_InvalidateResource(t *testing.T) {
	c := mocks.NewDummyCache()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, SearchCacheKey(domain.KindProduct, domain.DefaultParams()), "x", 0))
	require.NoError(t, c.Set(ctx, SearchCacheKey(domain.KindInventoryMove, domain.DefaultParams()), "x", 0))
	require.NoError(t, c.Set(ctx, SearchCacheKey(domain.KindClient, domain.DefaultParams()), "x", 0))

	kinds := newTestResolver(mocks.NewFakeTransport(), WithCache(c, 60)).InvalidateResource(ctx, "products")

	assert.Equal(t, []domain.Kind{domain.KindProduct, domain.KindInventoryMove}, kinds)
	assert.Empty(t, c.Keys(SearchCachePrefix(domain.KindProduct)))
	assert.Empty(t, c.Keys(SearchCachePrefix(domain.KindInventoryMove)))
	assert.Len(t, c.Keys(SearchCachePrefix(domain.KindClient)), 1)
}

// ---------------- Escrituras ----------------

func TestResolver_Create_FallsBackOnMissingRoute(t *testing.T) {
	tr := mocks.NewFakeTransport().
		Fail(http.MethodPost, "/suppliers", errRefused).
		OnJSON(http.MethodPost, "/proveedores", 201, map[string]any{
			"data": map[string]any{"id": "s-9", "nombre": "Acme", "cuit": "30-1"},
		})

	rec, err := newTestResolver(tr).Create(context.Background(), domain.KindSupplier, map[string]any{
		"label": "Acme", "taxId": "30-1", "id": "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "s-9", rec.ID())
	assert.Equal(t, "Acme", rec.Label())

	calls := tr.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, map[string]any{"nombre": "Acme", "cuit": "30-1"}, calls[1].Body)
}

func TestResolver_Write_ExhaustedIsSingleError(t *testing.T) {
	tr := mocks.NewFakeTransport().
		Fail(http.MethodPut, "/clients/c1", errRefused).
		OnRaw(http.MethodPut, "/clientes/c1", 405, nil)
	r := newTestResolver(tr)
	ctx := context.Background()

	_, err := r.Update(ctx, domain.KindClient, "c1", map[string]any{"label": "X"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExhaustedCandidates)
	assert.Len(t, tr.Calls(), 2)

	_, err = r.Create(ctx, domain.KindClient, map[string]any{"label": "X"})
	assert.ErrorIs(t, err, domain.ErrExhaustedCandidates)

	err = r.Delete(ctx, domain.KindClient, "c1")
	assert.ErrorIs(t, err, domain.ErrExhaustedCandidates)
}

func TestResolver_Write_ValidationStops(t *testing.T) {
	tr := mocks.NewFakeTransport().
		OnJSON(http.MethodPost, "/clients", 400, map[string]any{
			"error": map[string]any{"code": "VALIDATION_FAILED", "message": "nombre is required"},
		}).
		OnJSON(http.MethodPost, "/clientes", 201, map[string]any{"id": "never"})

	_, err := newTestResolver(tr).Create(context.Background(), domain.KindClient, map[string]any{})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 400, verr.Status)
	assert.Equal(t, "nombre is required", verr.Message)
	assert.Equal(t, "/clients", verr.Path)
	assert.Len(t, tr.Calls(), 1)
}

func TestResolver_Write_ServerErrorStops(t *testing.T) {
	tr := mocks.NewFakeTransport().
		OnJSON(http.MethodPost, "/clients", 500, map[string]any{"message": "boom"})

	_, err := newTestResolver(tr).Create(context.Background(), domain.KindClient, map[string]any{"label": "x"})

	var berr *domain.BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, 500, berr.Status)
	assert.Contains(t, err.Error(), "boom")
	assert.Len(t, tr.Calls(), 1)
}

func TestResolver_Write_RecordNotFound(t *testing.T) {
	notFound := map[string]any{"error": map[string]any{"code": domain.CodeRecordNotFound, "message": "record not found"}}
	tr := mocks.NewFakeTransport().
		OnJSON(http.MethodPut, "/products/p9", 404, notFound).
		OnJSON(http.MethodDelete, "/products/p9", 404, notFound)
	r := newTestResolver(tr)
	ctx := context.Background()

	_, err := r.Update(ctx, domain.KindProduct, "p9", map[string]any{"label": "x"})
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	assert.Len(t, tr.Calls(), 1, "un registro inexistente no prueba otras rutas")

	// borrar algo que ya no existe es éxito
	assert.NoError(t, r.Delete(ctx, domain.KindProduct, "p9"))
}

func TestResolver_Update_FallbackRecord(t *testing.T) {
	tr := mocks.NewFakeTransport().OnRaw(http.MethodPut, "/uoms/u1", 204, nil)

	rec, err := newTestResolver(tr).Update(context.Background(), domain.KindUom, "u1", map[string]any{"code": "lt", "factor": 1000})
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.ID())
	assert.Equal(t, "lt", rec.Label())
	assert.Equal(t, float64(1000), rec.Number("factor"))
}

func TestResolver_Delete_EscapesID(t *testing.T) {
	tr := mocks.NewFakeTransport().OnJSON(http.MethodDelete, "/cheques/a%2Fb", 200, map[string]any{"ok": true})
	require.NoError(t, newTestResolver(tr).Delete(context.Background(), domain.KindCheque, "a/b"))
}

func TestResolver_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	tr := mocks.NewFakeTransport().
		Fail(http.MethodGet, "/cheques/search", errRefused).
		OnJSON(http.MethodGet, "/checks/search", 200, []any{})
	newTestResolver(tr, WithMetrics(m)).Search(context.Background(), domain.KindCheque, domain.DefaultParams())

	assert.Equal(t, float64(1), testutil.ToFloat64(m.attempts.WithLabelValues("cheque", "search", outcomeTransport)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.attempts.WithLabelValues("cheque", "search", outcomeOK)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "registrar dos veces en el mismo registry falla")
}

func intp(v int) *int { return &v }

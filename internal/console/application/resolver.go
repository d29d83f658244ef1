package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/alkimyk/cmr/internal/console/domain"
	"github.com/alkimyk/cmr/shared/platform/cache"
	"github.com/alkimyk/cmr/shared/utils"
	"go.uber.org/zap"
)

const searchCachePrefix = "console:search:"

// Resolver ejecuta búsquedas y escrituras probando las rutas candidatas de cada tipo en orden.
type Resolver struct {
	transport  domain.Transport
	routes     domain.RouteTable
	norm       *domain.Normalizer
	cache      cache.Cache
	cacheTTL   int
	attempts   int
	retryDelay time.Duration
	metrics    *Metrics
	log        *zap.Logger

	// gens cuenta las invalidaciones por tipo. Una búsqueda que empezó antes de la
	// última invalidación no escribe su resultado en la caché.
	mu   sync.Mutex
	gens map[domain.Kind]uint64
}

type Option func(*Resolver)

// WithCache activa la caché de búsquedas. ttlSecs <= 0 usa el TTL por defecto de la caché.
func WithCache(c cache.Cache, ttlSecs int) Option {
	return func(r *Resolver) {
		r.cache = c
		r.cacheTTL = ttlSecs
	}
}

// WithRetries reintenta cada candidata ante errores de conexión. attempts incluye el primer intento.
func WithRetries(attempts int, delay time.Duration) Option {
	return func(r *Resolver) {
		r.attempts = attempts
		r.retryDelay = delay
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

func NewResolver(transport domain.Transport, routes domain.RouteTable, norm *domain.Normalizer, log *zap.Logger, opts ...Option) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Resolver{
		transport: transport,
		routes:    routes,
		norm:      norm,
		attempts:  1,
		log:       log,
		gens:      make(map[domain.Kind]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Columns devuelve los campos normalizados de un tipo, en orden de presentación.
func (r *Resolver) Columns(kind domain.Kind) []string {
	return r.norm.FieldMap().Columns(kind)
}

// ---------------- Lectura ----------------

// Search nunca falla: si ninguna ruta responde devuelve la página vacía.
func (r *Resolver) Search(ctx context.Context, kind domain.Kind, params domain.SearchParams) domain.SearchResult {
	return r.SearchOutcome(ctx, kind, params).Result
}

// SearchOutcome es Search con el resultado etiquetado (ok, empty, unreachable).
func (r *Resolver) SearchOutcome(ctx context.Context, kind domain.Kind, params domain.SearchParams) domain.Outcome {
	p := params.Normalized()

	routes, ok := r.routes[kind]
	if !ok {
		r.log.Warn("⚠️ Tipo sin rutas configuradas", zap.String("kind", string(kind)))
		return domain.Unreachable(kind, p.Page, p.Limit)
	}

	if p.Lookup && utf8.RuneCountInString(p.Query) < routes.LookupMin {
		return domain.Found(domain.Empty(kind, p.Page, p.Limit))
	}

	key := SearchCacheKey(kind, p)
	if r.cache != nil {
		var cached domain.SearchResult
		if hit, err := r.cache.Get(ctx, key, &cached); err == nil && hit {
			cached.Kind = kind
			for i := range cached.Items {
				cached.Items[i].Kind = kind
			}
			return domain.Found(cached)
		}
	}

	start := time.Now()
	defer r.metrics.observe(kind, domain.OpSearch, start)

	gen := r.generation(kind)
	q := r.searchQuery(kind, p)
	for i, tpl := range routes.Search {
		if ctx.Err() != nil {
			break
		}
		resp, err := r.do(ctx, domain.Request{Method: http.MethodGet, Path: tpl, Query: q})
		if err != nil {
			r.metrics.attempt(kind, domain.OpSearch, outcomeTransport)
			r.log.Debug("Candidata sin conexión",
				zap.String("kind", string(kind)), zap.String("path", tpl), zap.Int("candidate", i), zap.Error(err))
			continue
		}
		if !resp.OK() {
			r.metrics.attempt(kind, domain.OpSearch, outcomeStatus)
			r.log.Debug("Candidata rechazada",
				zap.String("kind", string(kind)), zap.String("path", tpl), zap.Int("status", resp.Status))
			continue
		}
		payload, err := parseSearchBody(resp.Body)
		if err != nil {
			r.metrics.attempt(kind, domain.OpSearch, outcomeMalformed)
			r.log.Debug("Respuesta inválida",
				zap.String("kind", string(kind)), zap.String("path", tpl), zap.Error(err))
			continue
		}

		r.metrics.attempt(kind, domain.OpSearch, outcomeOK)
		res := buildResult(r.norm, kind, p, payload)
		r.store(ctx, kind, gen, key, res)
		return domain.Found(res)
	}

	// Una búsqueda cancelada por el llamador no es un backend caído
	if ctx.Err() != nil {
		r.log.Debug("Búsqueda cancelada", zap.String("kind", string(kind)), zap.Error(ctx.Err()))
		return domain.Unreachable(kind, p.Page, p.Limit)
	}
	r.log.Warn("⚠️ Ninguna ruta candidata respondió",
		zap.String("kind", string(kind)), zap.Int("candidates", len(routes.Search)))
	return domain.Unreachable(kind, p.Page, p.Limit)
}

// searchQuery arma los parámetros de cable traduciendo campos de orden y filtros a columnas del backend.
func (r *Resolver) searchQuery(kind domain.Kind, p domain.SearchParams) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("limit", strconv.Itoa(p.Limit))
	if p.Query != "" {
		q.Set("q", p.Query)
	}
	if !p.Sort.IsZero() {
		s := p.Sort
		s.Field = r.backendField(kind, s.Field)
		q.Set("sort", s.String())
	}
	for _, k := range p.FilterKeys() {
		q.Set(r.backendField(kind, k), p.Filters[k])
	}
	return q
}

func (r *Resolver) backendField(kind domain.Kind, field string) string {
	if col, ok := r.norm.FieldMap().WriteColumn(kind, field); ok {
		return col
	}
	return field
}

// ---------------- Escritura ----------------

// Create crea un registro y devuelve su forma normalizada.
func (r *Resolver) Create(ctx context.Context, kind domain.Kind, fields map[string]any) (domain.Record, error) {
	body := r.norm.Denormalize(kind, fields)
	resp, err := r.write(ctx, kind, domain.OpCreate, http.MethodPost, "", body)
	if err != nil {
		return domain.Record{}, err
	}
	return r.writtenRecord(kind, "", fields, resp), nil
}

// Update reemplaza los campos escribibles de un registro.
func (r *Resolver) Update(ctx context.Context, kind domain.Kind, id string, fields map[string]any) (domain.Record, error) {
	body := r.norm.Denormalize(kind, fields)
	resp, err := r.write(ctx, kind, domain.OpUpdate, http.MethodPut, id, body)
	if err != nil {
		return domain.Record{}, err
	}
	return r.writtenRecord(kind, id, fields, resp), nil
}

// Delete es idempotente: un registro que ya no existe cuenta como borrado.
func (r *Resolver) Delete(ctx context.Context, kind domain.Kind, id string) error {
	_, err := r.write(ctx, kind, domain.OpDelete, http.MethodDelete, id, nil)
	if err != nil && errors.Is(err, domain.ErrRecordNotFound) {
		r.Invalidate(ctx, kind)
		return nil
	}
	return err
}

// write prueba las rutas de la operación. Solo avanza si la ruta no existe (404, 405)
// o si no hubo conexión; cualquier otra respuesta del backend se devuelve tal cual.
func (r *Resolver) write(ctx context.Context, kind domain.Kind, op domain.Op, method, id string, body any) (*domain.Response, error) {
	routes, ok := r.routes[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownKind, kind)
	}

	start := time.Now()
	defer r.metrics.observe(kind, op, start)

	for _, tpl := range routes.Candidates(op) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := domain.ExpandPath(tpl, id)
		resp, err := r.do(ctx, domain.Request{Method: method, Path: path, Body: body})
		if err != nil {
			r.metrics.attempt(kind, op, outcomeTransport)
			r.log.Debug("Candidata sin conexión",
				zap.String("kind", string(kind)), zap.String("op", string(op)), zap.String("path", path), zap.Error(err))
			continue
		}

		switch {
		case resp.OK():
			r.metrics.attempt(kind, op, outcomeOK)
			r.Invalidate(ctx, kind)
			return resp, nil

		case resp.Status == http.StatusNotFound || resp.Status == http.StatusMethodNotAllowed:
			code, _ := parseErrorBody(resp.Body)
			if code == domain.CodeRecordNotFound {
				r.metrics.attempt(kind, op, outcomeRejected)
				return nil, fmt.Errorf("%w: %s %s", domain.ErrRecordNotFound, kind, id)
			}
			r.metrics.attempt(kind, op, outcomeNotFound)
			continue

		case resp.Status >= 400 && resp.Status < 500:
			r.metrics.attempt(kind, op, outcomeRejected)
			_, msg := parseErrorBody(resp.Body)
			return nil, &domain.ValidationError{Status: resp.Status, Message: msg, Path: path}

		default:
			r.metrics.attempt(kind, op, outcomeStatus)
			_, msg := parseErrorBody(resp.Body)
			r.log.Error("❌ Error del backend en escritura",
				zap.String("kind", string(kind)), zap.String("op", string(op)),
				zap.String("path", path), zap.Int("status", resp.Status))
			return nil, &domain.BackendError{Status: resp.Status, Message: msg, Path: path}
		}
	}

	r.log.Warn("⚠️ Escritura sin rutas disponibles",
		zap.String("kind", string(kind)), zap.String("op", string(op)))
	return nil, fmt.Errorf("%w: %s %s", domain.ErrExhaustedCandidates, op, kind)
}

// writtenRecord normaliza la respuesta; si el backend no devolvió el registro se usan los campos enviados.
func (r *Resolver) writtenRecord(kind domain.Kind, id string, sent map[string]any, resp *domain.Response) domain.Record {
	if raw := parseRecordBody(resp.Body); len(raw) > 0 {
		return r.norm.Normalize(kind, raw)
	}
	fallback := make(map[string]any, len(sent)+1)
	for k, v := range sent {
		if k != domain.RawKey {
			fallback[k] = v
		}
	}
	if id != "" {
		fallback["id"] = id
	}
	return r.norm.Normalize(kind, fallback)
}

func (r *Resolver) do(ctx context.Context, req domain.Request) (*domain.Response, error) {
	var resp *domain.Response
	err := utils.Retry(ctx, r.attempts, r.retryDelay, func() error {
		var err error
		resp, err = r.transport.Do(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ---------------- Caché ----------------

// Invalidate borra todas las búsquedas cacheadas de un tipo.
func (r *Resolver) Invalidate(ctx context.Context, kind domain.Kind) {
	r.mu.Lock()
	r.gens[kind]++
	r.mu.Unlock()
	cache.InvalidatePrefix(ctx, r.cache, SearchCachePrefix(kind), r.log)
}

func (r *Resolver) generation(kind domain.Kind) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gens[kind]
}

// store guarda el resultado antes de volver, salvo que el tipo se haya invalidado
// mientras se consultaba el backend.
func (r *Resolver) store(ctx context.Context, kind domain.Kind, gen uint64, key string, res domain.SearchResult) {
	if r.cache == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gens[kind] != gen {
		r.log.Debug("Resultado descartado por invalidación", zap.String("kind", string(kind)))
		return
	}
	cache.CacheSet(ctx, r.cache, key, res, r.cacheTTL, r.log)
}

// InvalidateResource invalida los tipos que listan un recurso del backend y los devuelve.
func (r *Resolver) InvalidateResource(ctx context.Context, resource string) []domain.Kind {
	kinds := r.routes.KindsForResource(resource)
	for _, k := range kinds {
		r.Invalidate(ctx, k)
	}
	return kinds
}

// SearchCachePrefix es el prefijo común de la familia de búsquedas de un tipo.
func SearchCachePrefix(kind domain.Kind) string {
	return searchCachePrefix + string(kind) + "|"
}

// SearchCacheKey identifica una búsqueda por (tipo, página, límite, texto, orden, filtros).
func SearchCacheKey(kind domain.Kind, p domain.SearchParams) string {
	filters := make([]string, 0, len(p.Filters))
	for _, k := range p.FilterKeys() {
		filters = append(filters, url.QueryEscape(k)+"="+url.QueryEscape(p.Filters[k]))
	}
	sort.Strings(filters)
	return fmt.Sprintf("%sp=%d|l=%d|q=%s|s=%s|f=%s",
		SearchCachePrefix(kind), p.Page, p.Limit, url.QueryEscape(p.Query), p.Sort.String(), strings.Join(filters, "&"))
}

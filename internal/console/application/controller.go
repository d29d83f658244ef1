package application

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/alkimyk/cmr/internal/console/domain"
	"github.com/alkimyk/cmr/shared/platform/query"
	"go.uber.org/zap"
)

// DefaultDebounce es la espera de inactividad antes de buscar por texto libre.
const DefaultDebounce = 250 * time.Millisecond

// Fetcher es lo que el controlador necesita del resolver.
type Fetcher interface {
	SearchOutcome(ctx context.Context, kind domain.Kind, params domain.SearchParams) domain.Outcome
}

// State es lo que ve la presentación. Version crece con cada cambio para que
// un suscriptor pueda descartar notificaciones que lleguen desordenadas.
type State struct {
	Params  domain.SearchParams
	Result  domain.SearchResult
	Status  domain.OutcomeStatus
	Loading bool
	Error   bool
	Version uint64
}

// ParamsUpdate es un cambio parcial de parámetros. Los nil no se tocan.
// En Filters un valor vacío quita el filtro.
type ParamsUpdate struct {
	Page    *int
	Limit   *int
	Query   *string
	Sort    *domain.Sort
	Filters map[string]string
}

// ListController mantiene los parámetros de una lista y el resultado sincronizado con ellos.
// Solo se aplica el resultado de la última búsqueda despachada.
type ListController struct {
	kind     domain.Kind
	fetcher  Fetcher
	debounce time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	state   State
	seq     uint64
	cancel  context.CancelFunc
	timer   *time.Timer
	subs    map[int]func(State)
	nextSub int
	closed  bool

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

type ControllerOption func(*ListController)

func WithDebounce(d time.Duration) ControllerOption {
	return func(c *ListController) { c.debounce = d }
}

func WithInitialParams(p domain.SearchParams) ControllerOption {
	return func(c *ListController) { c.state.Params = p.Normalized() }
}

func WithControllerLogger(log *zap.Logger) ControllerOption {
	return func(c *ListController) { c.log = log }
}

func NewListController(kind domain.Kind, fetcher Fetcher, opts ...ControllerOption) *ListController {
	base, stop := context.WithCancel(context.Background())
	c := &ListController{
		kind:     kind,
		fetcher:  fetcher,
		debounce: DefaultDebounce,
		log:      zap.NewNop(),
		subs:     map[int]func(State){},
		base:     base,
		stop:     stop,
	}
	c.state.Params = domain.DefaultParams()
	for _, opt := range opts {
		opt(c)
	}
	c.state.Result = domain.Empty(kind, c.state.Params.Page, c.state.Params.Limit)
	c.state.Status = domain.StatusEmpty
	return c
}

func (c *ListController) Kind() domain.Kind {
	return c.kind
}

// State devuelve una copia del estado actual.
func (c *ListController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registra fn para cada cambio de estado. Devuelve la función para darse de baja.
func (c *ListController) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// ---------------- Cambios de parámetros ----------------

// Set aplica un cambio parcial. Cualquier cambio que no sea de página vuelve a la página 1,
// salvo que el mismo cambio indique la página explícitamente.
func (c *ListController) Set(u ParamsUpdate) {
	c.mutate(func(domain.SearchParams) ParamsUpdate { return u })
}

func (c *ListController) SetQuery(q string) {
	c.Set(ParamsUpdate{Query: &q})
}

func (c *ListController) SetLimit(limit int) {
	c.Set(ParamsUpdate{Limit: &limit})
}

func (c *ListController) SetFilter(key, value string) {
	c.Set(ParamsUpdate{Filters: map[string]string{key: value}})
}

// ToggleSort avanza el ciclo asc → desc → sin orden de una columna.
func (c *ListController) ToggleSort(field string) {
	c.mutate(func(p domain.SearchParams) ParamsUpdate {
		s := p.Sort.Toggle(field)
		return ParamsUpdate{Sort: &s}
	})
}

// NextPage avanza si hay página siguiente.
func (c *ListController) NextPage() bool {
	moved := false
	c.mutate(func(p domain.SearchParams) ParamsUpdate {
		if !c.canNextLocked() {
			return ParamsUpdate{}
		}
		moved = true
		next := p.Page + 1
		return ParamsUpdate{Page: &next}
	})
	return moved
}

// PrevPage retrocede si no está en la primera página.
func (c *ListController) PrevPage() bool {
	moved := false
	c.mutate(func(p domain.SearchParams) ParamsUpdate {
		if p.Page <= 1 {
			return ParamsUpdate{}
		}
		moved = true
		prev := p.Page - 1
		return ParamsUpdate{Page: &prev}
	})
	return moved
}

func (c *ListController) CanPrev() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Params.Page > 1
}

// CanNext usa pages si el total es conocido; si no, la heurística de página llena.
func (c *ListController) CanNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canNextLocked()
}

func (c *ListController) canNextLocked() bool {
	if c.state.Loading {
		return false
	}
	return c.state.Result.HasNext()
}

// Refresh vuelve a buscar con los parámetros actuales.
func (c *ListController) Refresh() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.dispatchLocked()
	snap, subs := c.snapshotLocked(), c.subscribersLocked()
	c.mu.Unlock()
	notify(subs, snap)
}

// Await espera a que no haya búsqueda pendiente y devuelve ese estado.
func (c *ListController) Await(ctx context.Context) (State, error) {
	signal := make(chan struct{}, 1)
	unsubscribe := c.Subscribe(func(State) {
		select {
		case signal <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	for {
		if s := c.State(); !s.Loading {
			return s, nil
		}
		select {
		case <-signal:
		case <-ctx.Done():
			return c.State(), ctx.Err()
		}
	}
}

// Close cancela la búsqueda en curso y espera a que termine.
func (c *ListController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.stop()
	c.wg.Wait()
}

// ---------------- Internos ----------------

func (c *ListController) mutate(build func(domain.SearchParams) ParamsUpdate) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	prev := c.state.Params
	u := build(prev.Clone())
	next, queryOnly := applyUpdate(prev, u)
	if next.Equal(prev) {
		c.mu.Unlock()
		return
	}
	c.state.Params = next

	if queryOnly && c.debounce > 0 {
		c.scheduleLocked()
	} else {
		c.dispatchLocked()
	}
	snap, subs := c.snapshotLocked(), c.subscribersLocked()
	c.mu.Unlock()
	notify(subs, snap)
}

// applyUpdate mezcla u sobre p. queryOnly indica que solo cambió el texto libre.
func applyUpdate(p domain.SearchParams, u ParamsUpdate) (domain.SearchParams, bool) {
	next := p.Clone()
	queryChanged, otherChanged := false, false

	if u.Limit != nil {
		if l := query.NormalizeLimit(*u.Limit); l != next.Limit {
			next.Limit = l
			otherChanged = true
		}
	}
	if u.Query != nil {
		if q := strings.TrimSpace(*u.Query); q != next.Query {
			next.Query = q
			queryChanged = true
		}
	}
	if u.Sort != nil {
		s := *u.Sort
		if s.IsZero() {
			s = domain.Sort{}
		}
		if s != next.Sort {
			next.Sort = s
			otherChanged = true
		}
	}
	for k, v := range u.Filters {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" {
			continue
		}
		current, exists := next.Filters[k]
		switch {
		case v == "" && exists:
			delete(next.Filters, k)
			otherChanged = true
		case v != "" && current != v:
			if next.Filters == nil {
				next.Filters = map[string]string{}
			}
			next.Filters[k] = v
			otherChanged = true
		}
	}
	if len(next.Filters) == 0 {
		next.Filters = nil
	}

	if queryChanged || otherChanged {
		next.Page = query.DefaultPage
	}
	if u.Page != nil {
		next.Page = query.NormalizePage(*u.Page)
	}
	return next, queryChanged && !otherChanged && u.Page == nil
}

// scheduleLocked pospone la búsqueda hasta que pase la ventana de debounce sin cambios.
func (c *ListController) scheduleLocked() {
	c.seq++
	gen := c.seq
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.state.Loading = true
	c.state.Version++

	c.timer = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		if c.closed || gen != c.seq {
			c.mu.Unlock()
			return
		}
		c.timer = nil
		c.dispatchLocked()
		snap, subs := c.snapshotLocked(), c.subscribersLocked()
		c.mu.Unlock()
		notify(subs, snap)
	})
}

// dispatchLocked cancela la búsqueda anterior y lanza una nueva con el snapshot actual.
func (c *ListController) dispatchLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
	}

	c.seq++
	seq := c.seq
	params := c.state.Params.Clone()
	ctx, cancel := context.WithCancel(c.base)
	c.cancel = cancel
	c.state.Loading = true
	c.state.Version++

	c.wg.Add(1)
	go c.run(ctx, cancel, seq, params)
}

func (c *ListController) run(ctx context.Context, cancel context.CancelFunc, seq uint64, params domain.SearchParams) {
	defer c.wg.Done()
	defer cancel()

	out := c.fetcher.SearchOutcome(ctx, c.kind, params)

	c.mu.Lock()
	if c.closed || seq != c.seq || !params.Equal(c.state.Params) {
		c.mu.Unlock()
		c.log.Debug("Resultado descartado por parámetros obsoletos",
			zap.String("kind", string(c.kind)), zap.String("q", params.Query), zap.Int("page", params.Page))
		return
	}
	c.cancel = nil
	c.state.Result = out.Result
	c.state.Status = out.Status
	c.state.Loading = false
	c.state.Error = out.Status == domain.StatusUnreachable
	c.state.Version++
	snap, subs := c.snapshotLocked(), c.subscribersLocked()
	c.mu.Unlock()

	notify(subs, snap)
}

func (c *ListController) snapshotLocked() State {
	s := c.state
	s.Params = c.state.Params.Clone()
	return s
}

func (c *ListController) subscribersLocked() []func(State) {
	out := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(State), s State) {
	for _, fn := range subs {
		fn(s)
	}
}

package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	catalogDomain "github.com/alkimyk/cmr/internal/catalog/domain"
	sharedDomain "github.com/alkimyk/cmr/shared/domain"
	sharedEvents "github.com/alkimyk/cmr/shared/events"
	sharedCache "github.com/alkimyk/cmr/shared/platform/cache"
	sharedQuery "github.com/alkimyk/cmr/shared/platform/query"
	sharedUtils "github.com/alkimyk/cmr/shared/utils"
)

const (
	recordCacheTTL = 120
	// maxListItems acota el listado sin paginar de las rutas heredadas.
	maxListItems = 1000
)

// RecordService define los casos de uso del catálogo sobre cualquier recurso.
type RecordService struct {
	repo  catalogDomain.RecordRepository
	cache sharedCache.Cache
	log   *zap.Logger
	now   func() time.Time
}

func NewRecordService(repo catalogDomain.RecordRepository, cache sharedCache.Cache, log *zap.Logger) *RecordService {
	return &RecordService{
		repo:  repo,
		cache: cache,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *RecordService) resource(name string) (catalogDomain.Resource, error) {
	res, ok := catalogDomain.ResourceByName(name)
	if !ok {
		return catalogDomain.Resource{}, catalogDomain.ErrUnknownResource
	}
	return res, nil
}

// Search pagina con el mismo conjunto de límites que la consola.
func (s *RecordService) Search(ctx context.Context, resource string, q catalogDomain.SearchQuery) (catalogDomain.SearchResult, error) {
	res, err := s.resource(resource)
	if err != nil {
		return catalogDomain.SearchResult{}, err
	}

	criteria, err := catalogDomain.BuildCriteria(res, q)
	if err != nil {
		return catalogDomain.SearchResult{}, err
	}
	page := sharedQuery.NormalizePage(q.Page)
	limit := sharedQuery.NormalizeLimit(q.Limit)

	items, total, err := s.repo.Search(ctx, res, criteria, catalogDomain.ResolveSort(res, q.Sort), sharedQuery.Page(page, limit))
	if err != nil {
		s.log.Error("Failed to search records", zap.String("resource", res.Name), zap.Error(err))
		return catalogDomain.SearchResult{}, err
	}
	if items == nil {
		items = []catalogDomain.Record{}
	}

	return catalogDomain.SearchResult{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: sharedQuery.PagesFor(total, limit),
	}, nil
}

// List devuelve todos los registros que cumplen la búsqueda, sin paginar, hasta maxListItems.
func (s *RecordService) List(ctx context.Context, resource string, q catalogDomain.SearchQuery) ([]catalogDomain.Record, error) {
	res, err := s.resource(resource)
	if err != nil {
		return nil, err
	}
	criteria, err := catalogDomain.BuildCriteria(res, q)
	if err != nil {
		return nil, err
	}

	items, _, err := s.repo.Search(ctx, res, criteria, catalogDomain.ResolveSort(res, q.Sort), sharedQuery.OffsetPagination{Limit: maxListItems})
	if err != nil {
		s.log.Error("Failed to list records", zap.String("resource", res.Name), zap.Error(err))
		return nil, err
	}
	if items == nil {
		items = []catalogDomain.Record{}
	}
	return items, nil
}

// Get usa cache-aside con reintentos; un registro inexistente no se reintenta.
func (s *RecordService) Get(ctx context.Context, resource, id string) (catalogDomain.Record, error) {
	res, err := s.resource(resource)
	if err != nil {
		return nil, err
	}
	key := catalogDomain.RecordCacheKey(res.Name, id)

	// 1. Caché
	if s.cache != nil {
		var cached catalogDomain.Record
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return cached, nil
		}
	}

	// 2. Repositorio
	var rec catalogDomain.Record
	notFound := false
	err = sharedUtils.Retry(ctx, 3, 100*time.Millisecond, func() error {
		var errRetry error
		rec, errRetry = s.repo.GetByID(ctx, res, id)
		if errors.Is(errRetry, catalogDomain.ErrRecordNotFound) {
			notFound = true
			return nil
		}
		return errRetry
	})
	if err != nil {
		s.log.Error("Failed to fetch record", zap.String("resource", res.Name), zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if notFound {
		s.log.Debug("Record not found", zap.String("resource", res.Name), zap.String("id", id))
		return nil, catalogDomain.ErrRecordNotFound
	}

	// 3. Poblar caché para la próxima lectura
	sharedCache.CacheSet(ctx, s.cache, key, rec, recordCacheTTL, s.log)
	return rec, nil
}

// Create valida, asigna id y guarda el registro junto con su evento.
func (s *RecordService) Create(ctx context.Context, resource string, input map[string]any) (catalogDomain.Record, error) {
	res, err := s.resource(resource)
	if err != nil {
		return nil, err
	}
	rec, err := catalogDomain.Validate(res, input)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stamp := sharedDomain.FormatTimestamp(now)
	for _, col := range res.Columns {
		if _, ok := rec[col.Name]; !ok {
			rec[col.Name] = nil
		}
	}
	rec[catalogDomain.ColID] = uuid.NewString()
	rec[catalogDomain.ColCreatedAt] = stamp
	rec[catalogDomain.ColUpdatedAt] = stamp

	evt := s.event(res, rec.ID(), sharedEvents.RecordCreated, now)
	if err := s.repo.Create(ctx, res, rec, evt); err != nil {
		s.log.Error("Failed to create record", zap.String("resource", res.Name), zap.Error(err))
		return nil, err
	}

	s.log.Info("✅ Record created", zap.String("resource", res.Name), zap.String("id", rec.ID()))
	return rec, nil
}

// Update reemplaza todas las columnas escribibles: las que faltan en la entrada quedan en NULL.
// Devuelve el registro completo.
func (s *RecordService) Update(ctx context.Context, resource, id string, input map[string]any) (catalogDomain.Record, error) {
	res, err := s.resource(resource)
	if err != nil {
		return nil, err
	}
	changes, err := catalogDomain.Validate(res, input)
	if err != nil {
		return nil, err
	}
	for _, col := range res.Columns {
		if _, ok := changes[col.Name]; !ok {
			changes[col.Name] = nil
		}
	}

	now := s.now()
	changes[catalogDomain.ColUpdatedAt] = sharedDomain.FormatTimestamp(now)

	evt := s.event(res, id, sharedEvents.RecordUpdated, now)
	if err := s.repo.Update(ctx, res, id, changes, evt); err != nil {
		if !errors.Is(err, catalogDomain.ErrRecordNotFound) {
			s.log.Error("Failed to update record", zap.String("resource", res.Name), zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}

	// La caché tiene la versión anterior; la próxima lectura la vuelve a poblar
	sharedCache.CacheDelete(ctx, s.cache, catalogDomain.RecordCacheKey(res.Name, id), s.log)
	return s.repo.GetByID(ctx, res, id)
}

// Delete es idempotente: borrar un id inexistente no es un error.
func (s *RecordService) Delete(ctx context.Context, resource, id string) error {
	res, err := s.resource(resource)
	if err != nil {
		return err
	}

	evt := s.event(res, id, sharedEvents.RecordDeleted, s.now())
	deleted, err := s.repo.Delete(ctx, res, id, evt)
	if err != nil {
		s.log.Error("Failed to delete record", zap.String("resource", res.Name), zap.String("id", id), zap.Error(err))
		return err
	}
	if !deleted {
		s.log.Debug("Delete of missing record ignored", zap.String("resource", res.Name), zap.String("id", id))
	}

	sharedCache.CacheDelete(ctx, s.cache, catalogDomain.RecordCacheKey(res.Name, id), s.log)
	return nil
}

func (s *RecordService) event(res catalogDomain.Resource, id, eventType string, at time.Time) sharedDomain.OutboxEvent {
	evt := sharedDomain.NewOutboxEvent(res.Name, id, eventType, sharedEvents.RecordChanged{
		Resource: res.Name,
		ID:       id,
		Action:   eventType,
		At:       at,
	})
	evt.CreatedAt = at
	return evt
}

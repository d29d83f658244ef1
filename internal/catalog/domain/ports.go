package domain

import (
	"context"
	"fmt"

	sharedDomain "github.com/alkimyk/cmr/shared/domain"
	sharedQuery "github.com/alkimyk/cmr/shared/platform/query"
)

// --- Repositorio de registros ---
// Todas las escrituras guardan el evento de outbox en la misma transacción.
type RecordRepository interface {
	Search(ctx context.Context, res Resource, criteria sharedDomain.Criteria, sort sharedQuery.Sort, page sharedQuery.OffsetPagination) ([]Record, int, error)
	GetByID(ctx context.Context, res Resource, id string) (Record, error)
	Create(ctx context.Context, res Resource, rec Record, evt sharedDomain.OutboxEvent) error
	// Update devuelve ErrRecordNotFound si el id no existe.
	Update(ctx context.Context, res Resource, id string, changes Record, evt sharedDomain.OutboxEvent) error
	// Delete devuelve false si no había nada que borrar; en ese caso no se escribe evento.
	Delete(ctx context.Context, res Resource, id string, evt sharedDomain.OutboxEvent) (bool, error)
}

func RecordCacheKey(resource, id string) string {
	return fmt.Sprintf("catalog:%s:%s", resource, id)
}

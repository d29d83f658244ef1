package events

import "time"

// Tipos de evento del catálogo.
const (
	RecordCreated = "record.created"
	RecordUpdated = "record.updated"
	RecordDeleted = "record.deleted"
)

// CatalogTopic es el topic donde se publican los cambios del catálogo.
const CatalogTopic = "catalog-events"

// RecordChanged se emite ante cualquier alta, modificación o baja de un registro.
type RecordChanged struct {
	Resource string    `json:"resource"`
	ID       string    `json:"id"`
	Action   string    `json:"action"`
	At       time.Time `json:"at"`
}

func (e RecordChanged) PartitionKey() string {
	return e.Resource + ":" + e.ID
}

// IsRecordEvent indica si el tipo pertenece a la familia record.*.
func IsRecordEvent(eventType string) bool {
	switch eventType {
	case RecordCreated, RecordUpdated, RecordDeleted:
		return true
	}
	return false
}

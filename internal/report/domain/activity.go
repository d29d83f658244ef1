package domain

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidRange = errors.New("invalid date range")

// ActivityEvent es un cambio del catálogo tal como lo registra el reporte.
type ActivityEvent struct {
	Resource  string
	RecordID  string
	EventType string
	At        time.Time
}

// DailyActivity cuenta los cambios de un recurso en un día (UTC).
type DailyActivity struct {
	Day      time.Time `json:"day"`
	Resource string    `json:"resource"`
	Created  int       `json:"created"`
	Updated  int       `json:"updated"`
	Deleted  int       `json:"deleted"`
}

// ResourceTotals son los KPIs de un recurso en un rango.
type ResourceTotals struct {
	Resource string `json:"resource"`
	Created  int    `json:"created"`
	Updated  int    `json:"updated"`
	Deleted  int    `json:"deleted"`
	// Net es altas menos bajas en el rango.
	Net int `json:"net"`
}

type ActivityRepository interface {
	LogBatch(ctx context.Context, events []ActivityEvent) error
	// DailyActivity devuelve filas ordenadas por día y recurso, con from y to inclusivos.
	DailyActivity(ctx context.Context, from, to time.Time) ([]DailyActivity, error)
}

// DayStart trunca a medianoche UTC.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

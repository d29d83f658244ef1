package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	reportDomain "github.com/alkimyk/cmr/internal/report/domain"
	sharedEvents "github.com/alkimyk/cmr/shared/events"
)

// ActivityRepo guarda los eventos en memoria; se usa cuando no hay ClickHouse configurado.
type ActivityRepo struct {
	mu     sync.RWMutex
	events []reportDomain.ActivityEvent
}

var _ reportDomain.ActivityRepository = (*ActivityRepo)(nil)

func NewActivityRepo() *ActivityRepo {
	return &ActivityRepo{}
}

func (r *ActivityRepo) LogBatch(ctx context.Context, events []reportDomain.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *ActivityRepo) DailyActivity(ctx context.Context, from, to time.Time) ([]reportDomain.DailyActivity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type key struct {
		day      time.Time
		resource string
	}
	rows := map[key]*reportDomain.DailyActivity{}
	for _, e := range r.events {
		day := reportDomain.DayStart(e.At)
		if day.Before(from) || day.After(to) {
			continue
		}
		k := key{day: day, resource: e.Resource}
		row, ok := rows[k]
		if !ok {
			row = &reportDomain.DailyActivity{Day: day, Resource: e.Resource}
			rows[k] = row
		}
		switch e.EventType {
		case sharedEvents.RecordCreated:
			row.Created++
		case sharedEvents.RecordUpdated:
			row.Updated++
		case sharedEvents.RecordDeleted:
			row.Deleted++
		}
	}

	out := make([]reportDomain.DailyActivity, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Day.Equal(out[j].Day) {
			return out[i].Day.Before(out[j].Day)
		}
		return out[i].Resource < out[j].Resource
	})
	return out, nil
}

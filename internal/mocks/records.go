package mocks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	catalogDomain "github.com/alkimyk/cmr/internal/catalog/domain"
	sharedDomain "github.com/alkimyk/cmr/shared/domain"
	sharedQuery "github.com/alkimyk/cmr/shared/platform/query"
)

// ErrTransient simula una caída momentánea de la base.
var ErrTransient = errors.New("transient db error")

// InMemoryRecordRepo simula RecordRepository con outbox incluido.
type InMemoryRecordRepo struct {
	Records map[string]map[string]catalogDomain.Record
	Outbox  []sharedDomain.OutboxEvent
	mu      sync.Mutex

	// FailGets hace fallar las próximas N lecturas por id con ErrTransient.
	FailGets int
	Gets     int
}

var _ catalogDomain.RecordRepository = (*InMemoryRecordRepo)(nil)

func NewInMemoryRecordRepo() *InMemoryRecordRepo {
	return &InMemoryRecordRepo{Records: make(map[string]map[string]catalogDomain.Record)}
}

func (r *InMemoryRecordRepo) table(res catalogDomain.Resource) map[string]catalogDomain.Record {
	t, ok := r.Records[res.Name]
	if !ok {
		t = make(map[string]catalogDomain.Record)
		r.Records[res.Name] = t
	}
	return t
}

func clone(rec catalogDomain.Record) catalogDomain.Record {
	out := make(catalogDomain.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

func (r *InMemoryRecordRepo) Create(ctx context.Context, res catalogDomain.Resource, rec catalogDomain.Record, evt sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.table(res)
	if _, ok := t[rec.ID()]; ok {
		return fmt.Errorf("duplicate id %s", rec.ID())
	}
	t[rec.ID()] = clone(rec)
	r.Outbox = append(r.Outbox, evt)
	return nil
}

func (r *InMemoryRecordRepo) GetByID(ctx context.Context, res catalogDomain.Resource, id string) (catalogDomain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Gets++
	if r.FailGets > 0 {
		r.FailGets--
		return nil, ErrTransient
	}
	rec, ok := r.table(res)[id]
	if !ok {
		return nil, catalogDomain.ErrRecordNotFound
	}
	return clone(rec), nil
}

func (r *InMemoryRecordRepo) Update(ctx context.Context, res catalogDomain.Resource, id string, changes catalogDomain.Record, evt sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.table(res)[id]
	if !ok {
		return catalogDomain.ErrRecordNotFound
	}
	for k, v := range changes {
		rec[k] = v
	}
	r.Outbox = append(r.Outbox, evt)
	return nil
}

func (r *InMemoryRecordRepo) Delete(ctx context.Context, res catalogDomain.Resource, id string, evt sharedDomain.OutboxEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.table(res)
	if _, ok := t[id]; !ok {
		return false, nil
	}
	delete(t, id)
	r.Outbox = append(r.Outbox, evt)
	return true, nil
}

func (r *InMemoryRecordRepo) Search(ctx context.Context, res catalogDomain.Resource, criteria sharedDomain.Criteria, s sharedQuery.Sort, page sharedQuery.OffsetPagination) ([]catalogDomain.Record, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	match, ok := sharedDomain.Visit(criteria, sharedDomain.Visitor[func(catalogDomain.Record) bool]{
		Leaf: matchCriterion,
		Group: func(op sharedDomain.LogicalOperator, parts []func(catalogDomain.Record) bool) func(catalogDomain.Record) bool {
			return func(rec catalogDomain.Record) bool {
				for _, p := range parts {
					if p(rec) == (op == sharedDomain.OpOr) {
						return op == sharedDomain.OpOr
					}
				}
				return op != sharedDomain.OpOr
			}
		},
	})

	var list []catalogDomain.Record
	for _, rec := range r.table(res) {
		if !ok || match(rec) {
			list = append(list, clone(rec))
		}
	}

	sort.SliceStable(list, func(i, j int) bool {
		vi, vj := fmt.Sprint(list[i][s.Field]), fmt.Sprint(list[j][s.Field])
		if vi == vj {
			return list[i].ID() < list[j].ID()
		}
		if s.Desc {
			return vi > vj
		}
		return vi < vj
	})

	total := len(list)
	start := page.Offset
	if start > total {
		return []catalogDomain.Record{}, total, nil
	}
	end := start + page.Limit
	if end > total {
		end = total
	}
	return list[start:end], total, nil
}

func matchCriterion(c sharedDomain.Criterion) func(catalogDomain.Record) bool {
	return func(rec catalogDomain.Record) bool {
		switch c.Op {
		case sharedDomain.OpLike, sharedDomain.OpILike:
			needle := strings.ToLower(strings.Trim(fmt.Sprint(c.Value), "%"))
			s, ok := rec[c.Field].(string)
			return ok && strings.Contains(strings.ToLower(s), needle)
		default:
			return fmt.Sprint(rec[c.Field]) == fmt.Sprint(c.Value)
		}
	}
}

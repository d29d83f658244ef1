package application

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	reportDomain "github.com/alkimyk/cmr/internal/report/domain"
)

// ReportService expone los KPIs de actividad del catálogo.
type ReportService struct {
	repo reportDomain.ActivityRepository
	log  *zap.Logger
}

func NewReportService(repo reportDomain.ActivityRepository, log *zap.Logger) *ReportService {
	return &ReportService{repo: repo, log: log}
}

// Record guarda un evento de cambio.
func (s *ReportService) Record(ctx context.Context, evt reportDomain.ActivityEvent) error {
	return s.repo.LogBatch(ctx, []reportDomain.ActivityEvent{evt})
}

func checkRange(from, to time.Time) (time.Time, time.Time, error) {
	from, to = reportDomain.DayStart(from), reportDomain.DayStart(to)
	if to.Before(from) {
		return from, to, reportDomain.ErrInvalidRange
	}
	return from, to, nil
}

// DailyActivity devuelve la serie diaria entre dos fechas inclusivas.
func (s *ReportService) DailyActivity(ctx context.Context, from, to time.Time) ([]reportDomain.DailyActivity, error) {
	from, to, err := checkRange(from, to)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.DailyActivity(ctx, from, to)
	if err != nil {
		s.log.Error("Failed to query daily activity", zap.Error(err))
		return nil, err
	}
	if rows == nil {
		rows = []reportDomain.DailyActivity{}
	}
	return rows, nil
}

// Totals suma la serie diaria por recurso, ordenado por nombre.
func (s *ReportService) Totals(ctx context.Context, from, to time.Time) ([]reportDomain.ResourceTotals, error) {
	rows, err := s.DailyActivity(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byResource := map[string]*reportDomain.ResourceTotals{}
	for _, r := range rows {
		t, ok := byResource[r.Resource]
		if !ok {
			t = &reportDomain.ResourceTotals{Resource: r.Resource}
			byResource[r.Resource] = t
		}
		t.Created += r.Created
		t.Updated += r.Updated
		t.Deleted += r.Deleted
	}

	out := make([]reportDomain.ResourceTotals, 0, len(byResource))
	for _, t := range byResource {
		t.Net = t.Created - t.Deleted
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out, nil
}

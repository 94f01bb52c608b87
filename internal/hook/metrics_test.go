package hook

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/cache"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
)

func TestSeriesSynthesizesForEmptyRemote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rows, source := f.hook.Metrics.Series(ctx, models.MetricDownloads, 7)
	if source != SourceSynthetic {
		t.Fatalf("expected synthetic source, got %s", source)
	}
	if len(rows) != 7 {
		t.Fatalf("expected 7 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.MetricType != models.MetricDownloads {
			t.Fatalf("row %d has type %s", i, row.MetricType)
		}
		if row.Value < 1000 || row.Value >= 2000 {
			t.Fatalf("row %d value %v outside [1000, 2000)", i, row.Value)
		}
		if i > 0 {
			if gap := row.Date.Sub(rows[i-1].Date); gap != 24*time.Hour {
				t.Fatalf("row %d is %v after the previous row", i, gap)
			}
		}
	}
	today := midnight(f.clock.Now())
	if !rows[len(rows)-1].Date.Equal(today) {
		t.Fatalf("expected series to end today, got %v", rows[len(rows)-1].Date)
	}

	again, _ := f.hook.Metrics.Series(ctx, models.MetricDownloads, 7)
	if !reflect.DeepEqual(rows, again) {
		t.Fatalf("expected a deterministic series")
	}
}

func TestSeriesCoversEveryTypeWithinRange(t *testing.T) {
	f := newFixture(t)
	rows, _ := f.hook.Metrics.Series(context.Background(), "", 3)
	if len(rows) != 3*len(models.AllMetricTypes) {
		t.Fatalf("expected %d rows, got %d", 3*len(models.AllMetricTypes), len(rows))
	}
	for _, row := range rows {
		low, high, ok := MetricRange(row.MetricType)
		if !ok {
			t.Fatalf("unexpected type %s", row.MetricType)
		}
		if row.Value < low || row.Value >= high {
			t.Fatalf("%s value %v outside [%v, %v)", row.MetricType, row.Value, low, high)
		}
	}
}

func TestSeriesPrefersCachedRowsWhenOffline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.SetOffline(true)

	today := midnight(f.clock.Now())
	seed := []models.SystemMetric{
		{ID: "m-2", MetricType: models.MetricUsers, Value: 51, Date: today},
		{ID: "m-1", MetricType: models.MetricUsers, Value: 48, Date: today.AddDate(0, 0, -1)},
		{ID: "m-0", MetricType: models.MetricUsers, Value: 10, Date: today.AddDate(0, 0, -30)},
		{ID: "m-x", MetricType: models.MetricErrors, Value: 3, Date: today},
	}
	if err := cache.NewCollection[models.SystemMetric](f.cache, tableSystemMetrics).Replace(ctx, seed); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	rows, source := f.hook.Metrics.Series(ctx, models.MetricUsers, 7)
	if source != SourceLocal {
		t.Fatalf("expected local source, got %s", source)
	}
	if len(rows) != 2 || rows[0].ID != "m-1" || rows[1].ID != "m-2" {
		t.Fatalf("expected the two in-window user rows oldest first, got %+v", rows)
	}
}

func TestSeriesUnknownTypeIsEmpty(t *testing.T) {
	f := newFixture(t)
	rows, _ := f.hook.Metrics.Series(context.Background(), "latency", 7)
	if len(rows) != 0 {
		t.Fatalf("expected no rows for unknown type, got %d", len(rows))
	}
}

func TestNormalizeDays(t *testing.T) {
	for input, want := range map[int]int{-3: 7, 0: 7, 1: 1, 30: 30, 400: 365} {
		if got := NormalizeDays(input); got != want {
			t.Fatalf("NormalizeDays(%d) = %d, want %d", input, got, want)
		}
	}
}

package hook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/cache"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/remote"
	"go.uber.org/zap"
)

const (
	columnID        = "id"
	columnUpdatedAt = "updated_at"
)

// Change is a partial update: Columns go to the remote store, Apply patches a cached copy.
type Change[T any] struct {
	Columns map[string]any
	Apply   func(item *T)
}

func (c Change[T]) empty() bool {
	return len(c.Columns) == 0
}

// Selection describes a list read for both stores.
type Selection[T any] struct {
	Query remote.Query
	// Match filters cached items the same way Query filters remote rows.
	Match func(item *T) bool
}

type repositoryConfig[T any] struct {
	table      string
	touch      string
	order      string
	sortCached func(items []T)
}

// Repository implements the remote-first contract for one entity table.
type Repository[T any, P models.Record[T]] struct {
	*core
	table      string
	touch      string
	order      string
	sortCached func(items []T)
	local      *cache.Collection[T]
}

func newRepository[T any, P models.Record[T]](shared *core, cfg repositoryConfig[T]) *Repository[T, P] {
	return &Repository[T, P]{
		core:       shared,
		table:      cfg.table,
		touch:      cfg.touch,
		order:      cfg.order,
		sortCached: cfg.sortCached,
		local:      cache.NewCollection[T](shared.cache, cfg.table),
	}
}

func (r *Repository[T, P]) op(action string) string {
	return "hook." + r.table + "." + action
}

// Table returns the remote table name, which is also the cache collection name.
func (r *Repository[T, P]) Table() string {
	return r.table
}

// CacheKey returns the namespaced local cache key.
func (r *Repository[T, P]) CacheKey() string {
	return r.local.Key()
}

// List returns remote rows, or the cached rows when the remote call fails or comes back empty.
func (r *Repository[T, P]) List(ctx context.Context, selection Selection[T]) ([]T, Source) {
	query := selection.Query
	if query.Order == "" {
		query.Order = r.order
	}
	var rows []T
	err := r.remote.Select(ctx, r.table, query, &rows)
	if err == nil && len(rows) > 0 {
		return rows, SourceRemote
	}
	if err != nil {
		r.logFallback(r.table, "list", err)
	}

	cached := r.filterCached(ctx, selection)
	if err == nil && len(cached) == 0 {
		return []T{}, SourceRemote
	}
	if err == nil {
		r.metrics.fallback(r.table, "list")
	}
	return cached, SourceLocal
}

func (r *Repository[T, P]) filterCached(ctx context.Context, selection Selection[T]) []T {
	items := r.local.Read(ctx)
	matched := make([]T, 0, len(items))
	for i := range items {
		if selection.Match == nil || selection.Match(&items[i]) {
			matched = append(matched, items[i])
		}
	}
	if r.sortCached != nil {
		r.sortCached(matched)
	}
	if limit := selection.Query.Limit; limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

// Get looks a record up by id, remote first.
func (r *Repository[T, P]) Get(ctx context.Context, id string) (T, Source, bool) {
	var zero T
	id = strings.TrimSpace(id)
	if id == "" {
		return zero, SourceRemote, false
	}
	if item, ok, err := r.getRemote(ctx, id); err == nil && ok {
		return item, SourceRemote, true
	} else if err != nil {
		r.logFallback(r.table, "get", err)
	}
	item, ok := r.getCached(ctx, id)
	return item, SourceLocal, ok
}

func (r *Repository[T, P]) getRemote(ctx context.Context, id string) (T, bool, error) {
	var zero T
	var rows []T
	query := remote.Query{Filters: []remote.Filter{remote.Eq(columnID, id)}, Limit: 1}
	if err := r.remote.Select(ctx, r.table, query, &rows); err != nil {
		return zero, false, err
	}
	if len(rows) == 0 {
		return zero, false, nil
	}
	return rows[0], true, nil
}

func (r *Repository[T, P]) getCached(ctx context.Context, id string) (T, bool) {
	var zero T
	for _, item := range r.local.Read(ctx) {
		if P(&item).GetID() == id {
			return item, true
		}
	}
	return zero, false
}

// prepare assigns an id and creation timestamps.
func (r *Repository[T, P]) prepare(item *T) error {
	record := P(item)
	if strings.TrimSpace(record.GetID()) == "" {
		id, err := r.newID()
		if err != nil {
			return err
		}
		record.SetID(id)
	}
	if stamper, ok := any(record).(models.Stamper); ok {
		stamper.Stamp(r.now(), true)
	}
	return nil
}

// Create inserts remotely, or appends to the cached collection when the remote insert fails.
func (r *Repository[T, P]) Create(ctx context.Context, item T) (T, Source, error) {
	if err := r.prepare(&item); err != nil {
		return item, SourceLocal, r.fail(r.op("create"), "id_generation_failed", "Could not generate an identifier.", err)
	}
	err := r.remote.Insert(ctx, r.table, &item)
	if err == nil {
		return item, SourceRemote, nil
	}
	r.logFallback(r.table, "create", err)
	stored, localErr := r.CreateLocal(ctx, item)
	return stored, SourceLocal, localErr
}

// CreateLocal writes straight to the cached collection, replacing any record with the same id.
func (r *Repository[T, P]) CreateLocal(ctx context.Context, item T) (T, error) {
	if err := r.prepare(&item); err != nil {
		return item, r.fail(r.op("create"), "id_generation_failed", "Could not generate an identifier.", err)
	}
	id := P(&item).GetID()
	err := r.local.Update(ctx, func(items []T) ([]T, error) {
		for i := range items {
			if P(&items[i]).GetID() == id {
				items[i] = item
				return items, nil
			}
		}
		return append(items, item), nil
	})
	if err != nil {
		return item, r.fail(r.op("create"), "local_write_failed",
			fmt.Sprintf("Could not save %s locally.", r.table), err, zap.String("id", id))
	}
	return item, nil
}

// Update patches the remote row, or the cached copy when the remote update fails or matches nothing.
func (r *Repository[T, P]) Update(ctx context.Context, id string, change Change[T]) (T, Source, error) {
	var zero T
	id = strings.TrimSpace(id)
	if id == "" {
		return zero, SourceRemote, r.fail(r.op("update"), "invalid_id", "A record id is required.", ErrInvalidID)
	}
	if change.empty() {
		return zero, SourceRemote, r.fail(r.op("update"), "empty_change", "Nothing to update.", ErrInvalidInput)
	}

	now := r.now()
	columns := make(map[string]any, len(change.Columns)+1)
	for column, value := range change.Columns {
		columns[column] = value
	}
	if r.touch != "" {
		columns[r.touch] = now
	}

	_, err := r.remote.Update(ctx, r.table, columns, remote.Eq(columnID, id))
	if err == nil {
		item, ok, readErr := r.getRemote(ctx, id)
		if readErr != nil || !ok {
			r.logger.Warn("updated row could not be re-read",
				zap.String("table", r.table), zap.String("id", id), zap.Error(readErr))
		}
		return item, SourceRemote, nil
	}
	r.logFallback(r.table, "update", err)
	item, localErr := r.UpdateLocal(ctx, id, change)
	return item, SourceLocal, localErr
}

// UpdateLocal patches the cached copy only.
func (r *Repository[T, P]) UpdateLocal(ctx context.Context, id string, change Change[T]) (T, error) {
	var updated T
	err := r.local.Update(ctx, func(items []T) ([]T, error) {
		for i := range items {
			record := P(&items[i])
			if record.GetID() != id {
				continue
			}
			if change.Apply != nil {
				change.Apply(&items[i])
			}
			if stamper, ok := any(record).(models.Stamper); ok {
				stamper.Stamp(r.now(), false)
			}
			updated = items[i]
			return items, nil
		}
		return nil, ErrNotFound
	})
	if errors.Is(err, ErrNotFound) {
		return updated, r.fail(r.op("update"), "not_found",
			fmt.Sprintf("Record %s was not found.", id), err, zap.String("id", id))
	}
	if err != nil {
		return updated, r.fail(r.op("update"), "local_write_failed",
			fmt.Sprintf("Could not update %s locally.", r.table), err, zap.String("id", id))
	}
	return updated, nil
}

// Delete removes the remote row, or the cached copy when the remote delete fails or matches nothing.
func (r *Repository[T, P]) Delete(ctx context.Context, id string) (Source, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return SourceRemote, r.fail(r.op("delete"), "invalid_id", "A record id is required.", ErrInvalidID)
	}
	_, err := r.remote.Delete(ctx, r.table, remote.Eq(columnID, id))
	if err == nil {
		return SourceRemote, nil
	}
	r.logFallback(r.table, "delete", err)

	localErr := r.local.Update(ctx, func(items []T) ([]T, error) {
		for i := range items {
			if P(&items[i]).GetID() == id {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
	if errors.Is(localErr, ErrNotFound) {
		return SourceLocal, r.fail(r.op("delete"), "not_found",
			fmt.Sprintf("Record %s was not found.", id), localErr, zap.String("id", id))
	}
	if localErr != nil {
		return SourceLocal, r.fail(r.op("delete"), "local_write_failed",
			fmt.Sprintf("Could not delete %s locally.", r.table), localErr, zap.String("id", id))
	}
	return SourceLocal, nil
}

// Cached returns the cached collection as-is.
func (r *Repository[T, P]) Cached(ctx context.Context) []T {
	return r.local.Read(ctx)
}

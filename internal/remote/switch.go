package remote

import (
	"context"
	"sync"
)

// Switch wraps a Client and can take the whole store, or single tables, offline.
// The dashboard uses it for the remote.offline setting; tests use it to drive the fallback paths.
type Switch struct {
	next Client

	mu            sync.RWMutex
	offline       bool
	offlineTables map[string]bool
}

// NewSwitch wraps next. A nil next behaves as a permanently offline store.
func NewSwitch(next Client) *Switch {
	return &Switch{next: next, offlineTables: make(map[string]bool)}
}

// SetOffline toggles the whole store.
func (s *Switch) SetOffline(offline bool) {
	s.mu.Lock()
	s.offline = offline
	s.mu.Unlock()
}

// SetTableOffline toggles a single table.
func (s *Switch) SetTableOffline(table string, offline bool) {
	s.mu.Lock()
	if offline {
		s.offlineTables[table] = true
	} else {
		delete(s.offlineTables, table)
	}
	s.mu.Unlock()
}

// Offline reports whether operations on table are currently refused.
func (s *Switch) Offline(table string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.next == nil || s.offline || s.offlineTables[table]
}

func (s *Switch) refuse(op, table string) error {
	return &StoreError{Op: op, Table: table, Kind: KindUnavailable, Err: ErrUnavailable}
}

func (s *Switch) Select(ctx context.Context, table string, query Query, dest any) error {
	if s.Offline(table) {
		return s.refuse(opSelect, table)
	}
	return s.next.Select(ctx, table, query, dest)
}

func (s *Switch) Insert(ctx context.Context, table string, rows any) error {
	if s.Offline(table) {
		return s.refuse(opInsert, table)
	}
	return s.next.Insert(ctx, table, rows)
}

func (s *Switch) Update(ctx context.Context, table string, patch map[string]any, filters ...Filter) (int64, error) {
	if s.Offline(table) {
		return 0, s.refuse(opUpdate, table)
	}
	return s.next.Update(ctx, table, patch, filters...)
}

func (s *Switch) Delete(ctx context.Context, table string, filters ...Filter) (int64, error) {
	if s.Offline(table) {
		return 0, s.refuse(opDelete, table)
	}
	return s.next.Delete(ctx, table, filters...)
}

var _ Client = (*Switch)(nil)

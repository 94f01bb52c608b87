package hook

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/cache"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/database"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/remote"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sequenceIDs struct {
	mu   sync.Mutex
	next int
}

func (s *sequenceIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("id-%04d", s.next), nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []models.Notification
}

func (p *recordingPublisher) Publish(notification models.Notification) {
	p.mu.Lock()
	p.published = append(p.published, notification)
	p.mu.Unlock()
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type fixture struct {
	hook      *Hook
	db        *gorm.DB
	remote    *remote.Switch
	cache     *cache.Cache
	store     *cache.MemoryStore
	clock     *stubClock
	registry  *prometheus.Registry
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:hook_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := database.OpenSQLite(dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open remote database: %v", err)
	}
	client, err := remote.NewGormClient(db)
	if err != nil {
		t.Fatalf("failed to build remote client: %v", err)
	}

	store := cache.NewMemoryStore()
	local := cache.New(cache.Config{Store: store, Prefix: "dashboard"})
	clock := &stubClock{now: time.Date(2026, time.October, 17, 9, 30, 0, 0, time.UTC)}
	registry := prometheus.NewRegistry()
	publisher := &recordingPublisher{}
	gate := remote.NewSwitch(client)

	h, err := New(Config{
		Remote:     gate,
		Cache:      local,
		Clock:      clock.Now,
		IDProvider: &sequenceIDs{},
		Logger:     zap.NewNop(),
		Registerer: registry,
		Publisher:  publisher,
	})
	if err != nil {
		t.Fatalf("failed to build hook: %v", err)
	}
	return &fixture{
		hook:      h,
		db:        db,
		remote:    gate,
		cache:     local,
		store:     store,
		clock:     clock,
		registry:  registry,
		publisher: publisher,
	}
}

// raw returns the stored blob for a collection name, or nil.
func (f *fixture) raw(t *testing.T, name string) []byte {
	t.Helper()
	value, err := f.store.Get(context.Background(), f.cache.Key(name))
	if err != nil {
		t.Fatalf("failed to read cache key %s: %v", name, err)
	}
	return value
}

func cachedItems[T any](f *fixture, name string) []T {
	return cache.NewCollection[T](f.cache, name).Read(context.Background())
}

func (f *fixture) remoteCount(t *testing.T, table string) int64 {
	t.Helper()
	var count int64
	if err := f.db.Table(table).Count(&count).Error; err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return count
}

func (f *fixture) mustCreateUser(t *testing.T, name string, grade models.Grade) models.User {
	t.Helper()
	user, _, err := f.hook.Users.Create(context.Background(), models.User{Name: name, Grade: grade})
	if err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
	return user
}

func counterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if labels[pair.GetName()] != pair.GetValue() {
					continue metrics
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

package remote

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
	"gorm.io/gorm"
)

func newTestClient(t *testing.T) (*GormClient, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:remote_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	client, err := NewGormClient(db)
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	return client, db
}

func TestGormClientTableOperations(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	rows := []models.User{
		{ID: "u-1", Name: "Ada", Grade: models.GradeV4, TotalDownloads: 1},
		{ID: "u-2", Name: "Bob", Grade: models.GradeV5, TotalDownloads: 2},
		{ID: "u-3", Name: "Cy", Grade: models.GradeV5, TotalDownloads: 3},
	}
	if err := client.Insert(ctx, "users", &rows); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	var selected []models.User
	query := Query{Filters: []Filter{Eq("grade", "v5")}, Order: "total_downloads DESC", Limit: 1}
	if err := client.Select(ctx, "users", query, &selected); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if len(selected) != 1 || selected[0].ID != "u-3" {
		t.Fatalf("unexpected selection %+v", selected)
	}

	affected, err := client.Update(ctx, "users", map[string]any{"total_downloads": 7}, Eq("id", "u-1"))
	if err != nil || affected != 1 {
		t.Fatalf("update failed: %d %v", affected, err)
	}
	selected = nil
	if err := client.Select(ctx, "users", Query{Filters: []Filter{Eq("id", "u-1")}}, &selected); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if len(selected) != 1 || selected[0].TotalDownloads != 7 {
		t.Fatalf("expected updated counter, got %+v", selected)
	}

	affected, err = client.Delete(ctx, "users", Eq("id", "u-2"))
	if err != nil || affected != 1 {
		t.Fatalf("delete failed: %d %v", affected, err)
	}
	selected = nil
	if err := client.Select(ctx, "users", Query{}, &selected); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if len(selected) != 2 {
		t.Fatalf("expected two users left, got %d", len(selected))
	}
}

func TestGormClientReportsNoRowsAndEmptyFilter(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.Update(ctx, "users", map[string]any{"name": "x"}, Eq("id", "missing"))
	if !errors.Is(err, ErrNoRows) || KindOf(err) != KindNotFound {
		t.Fatalf("expected not_found, got %v (%s)", err, KindOf(err))
	}
	_, err = client.Delete(ctx, "users", Eq("id", "missing"))
	if !errors.Is(err, ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
	if _, err := client.Update(ctx, "users", map[string]any{"name": "x"}); !errors.Is(err, ErrEmptyFilter) {
		t.Fatalf("expected ErrEmptyFilter on update, got %v", err)
	}
	if _, err := client.Delete(ctx, "users"); !errors.Is(err, ErrEmptyFilter) {
		t.Fatalf("expected ErrEmptyFilter on delete, got %v", err)
	}
}

func TestGormClientRejectsDuplicateInsert(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	user := models.User{ID: "dup", Name: "One", Grade: models.GradeGuest}
	if err := client.Insert(ctx, "users", &user); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	again := user
	err := client.Insert(ctx, "users", &again)
	if err == nil {
		t.Fatalf("expected duplicate key error")
	}
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || storeErr.Kind != KindRejected || storeErr.Op != opInsert || storeErr.Table != "users" {
		t.Fatalf("expected rejected insert StoreError, got %#v", err)
	}
}

func TestGormClientCanceledContextIsUnavailable(t *testing.T) {
	client, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var rows []models.User
	err := client.Select(ctx, "users", Query{}, &rows)
	if err == nil {
		t.Skip("driver did not observe the canceled context")
	}
	if KindOf(err) != KindUnavailable {
		t.Fatalf("expected unavailable, got %s (%v)", KindOf(err), err)
	}
}

func TestSwitchRefusesOfflineTables(t *testing.T) {
	client, _ := newTestClient(t)
	gate := NewSwitch(client)
	ctx := context.Background()

	gate.SetTableOffline("users", true)
	var rows []models.User
	if err := gate.Select(ctx, "users", Query{}, &rows); !errors.Is(err, ErrUnavailable) || KindOf(err) != KindUnavailable {
		t.Fatalf("expected unavailable users table, got %v", err)
	}
	var files []models.ServerFile
	if err := gate.Select(ctx, "server_files", Query{}, &files); err != nil {
		t.Fatalf("expected other tables reachable, got %v", err)
	}

	gate.SetTableOffline("users", false)
	gate.SetOffline(true)
	if _, err := gate.Delete(ctx, "server_files", Eq("id", "x")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected whole store offline, got %v", err)
	}
	gate.SetOffline(false)
	if err := gate.Select(ctx, "users", Query{}, &rows); err != nil {
		t.Fatalf("expected store back online, got %v", err)
	}
}

func TestSwitchWithoutClientIsAlwaysOffline(t *testing.T) {
	gate := NewSwitch(nil)
	if !gate.Offline("users") {
		t.Fatalf("expected nil client to be offline")
	}
	if err := gate.Insert(context.Background(), "users", &models.User{}); KindOf(err) != KindUnavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

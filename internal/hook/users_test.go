package hook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
)

func TestIsBlockedRequiresFutureExpiry(t *testing.T) {
	now := time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Second)
	past := now.Add(-time.Second)

	testCases := []struct {
		name string
		user models.User
		want bool
	}{
		{name: "active", user: models.User{}, want: false},
		{name: "blocked until future", user: models.User{IsBlocked: true, BlockedUntil: &future}, want: true},
		{name: "blocked until now", user: models.User{IsBlocked: true, BlockedUntil: &now}, want: false},
		{name: "soft expired", user: models.User{IsBlocked: true, BlockedUntil: &past}, want: false},
		{name: "flag without expiry", user: models.User{IsBlocked: true}, want: false},
		{name: "expiry without flag", user: models.User{BlockedUntil: &future}, want: false},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := IsBlocked(testCase.user, now); got != testCase.want {
				t.Fatalf("IsBlocked = %v, want %v", got, testCase.want)
			}
		})
	}
}

func TestBlockExpiresWithoutUnblock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.mustCreateUser(t, "Troll", models.GradeV4)

	blocked, source, err := f.hook.Users.Block(ctx, user.ID, Block30Minutes)
	if err != nil || source != SourceRemote {
		t.Fatalf("block failed: %s %v", source, err)
	}
	if !blocked.IsBlocked || blocked.BlockedUntil == nil {
		t.Fatalf("expected blocked user, got %+v", blocked)
	}
	if want := f.clock.Now().Add(30 * time.Minute); !blocked.BlockedUntil.Equal(want) {
		t.Fatalf("expected blocked_until %v, got %v", want, blocked.BlockedUntil)
	}
	if !f.hook.Users.IsBlocked(blocked) {
		t.Fatalf("expected block in effect")
	}

	f.clock.Advance(30*time.Minute + time.Nanosecond)
	if f.hook.Users.IsBlocked(blocked) {
		t.Fatalf("expected block to lapse once blocked_until passed")
	}
	stored, _, _ := f.hook.Users.Get(ctx, user.ID)
	if !stored.IsBlocked {
		t.Fatalf("expected is_blocked to remain set until an explicit unblock")
	}

	unblocked, _, err := f.hook.Users.Unblock(ctx, user.ID)
	if err != nil {
		t.Fatalf("unblock failed: %v", err)
	}
	if unblocked.IsBlocked || unblocked.BlockedUntil != nil {
		t.Fatalf("expected cleared block, got %+v", unblocked)
	}
}

func TestBlockOffline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.SetOffline(true)
	user := f.mustCreateUser(t, "Offline", models.GradeV4)

	blocked, source, err := f.hook.Users.Block(ctx, user.ID, Block7Days)
	if err != nil || source != SourceLocal {
		t.Fatalf("expected local block, got %s %v", source, err)
	}
	if !f.hook.Users.IsBlocked(blocked) {
		t.Fatalf("expected block in effect")
	}
	cached := cachedItems[models.User](f, tableUsers)
	if len(cached) != 1 || !cached[0].IsBlocked {
		t.Fatalf("expected cached block, got %+v", cached)
	}
}

func TestParseBlockDuration(t *testing.T) {
	for raw, want := range map[string]time.Duration{
		"30m": 30 * time.Minute,
		"1D":  24 * time.Hour,
		"7d":  7 * 24 * time.Hour,
		"30d": 30 * 24 * time.Hour,
	} {
		duration, err := ParseBlockDuration(raw)
		if err != nil {
			t.Fatalf("ParseBlockDuration(%q) failed: %v", raw, err)
		}
		if duration.Offset() != want {
			t.Fatalf("ParseBlockDuration(%q) offset %v, want %v", raw, duration.Offset(), want)
		}
	}
	if _, err := ParseBlockDuration("2h"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateUserValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, _, err := f.hook.Users.Create(ctx, models.User{Name: " "}); err == nil {
		t.Fatalf("expected missing name to fail")
	}
	if _, _, err := f.hook.Users.Create(ctx, models.User{Name: "X", Grade: "root"}); !errors.Is(err, models.ErrInvalidGrade) {
		t.Fatalf("expected invalid grade error, got %v", err)
	}
	user, _, err := f.hook.Users.Create(ctx, models.User{Name: "Mixed", Email: " Mixed@Example.COM ", Grade: "V5"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if user.Email != "mixed@example.com" || user.Grade != models.GradeV5 {
		t.Fatalf("expected normalized email and grade, got %+v", user)
	}
	if user.JoinDate.IsZero() || user.LastActive.IsZero() {
		t.Fatalf("expected join_date and last_active stamped")
	}
}

func TestUpdateNotesAndCurrentUserPatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.mustCreateUser(t, "Noted", models.GradeV4)
	if err := f.hook.Users.SetCurrentUser(ctx, user); err != nil {
		t.Fatalf("set current failed: %v", err)
	}

	updated, _, err := f.hook.Users.UpdateNotes(ctx, user.ID, "  watch closely ")
	if err != nil {
		t.Fatalf("update notes failed: %v", err)
	}
	if updated.AdminNotes == nil || *updated.AdminNotes != "watch closely" {
		t.Fatalf("expected trimmed notes, got %v", updated.AdminNotes)
	}
	current, ok := f.hook.Users.CurrentUser(ctx)
	if !ok || current.AdminNotes == nil || *current.AdminNotes != "watch closely" {
		t.Fatalf("expected current user patched, got %+v", current)
	}

	cleared, _, err := f.hook.Users.UpdateNotes(ctx, user.ID, "")
	if err != nil || cleared.AdminNotes != nil {
		t.Fatalf("expected notes cleared, got %v %v", cleared.AdminNotes, err)
	}
}

func TestBootstrapGuestReusesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	guest, source, err := f.hook.Users.BootstrapGuest(ctx)
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if source != SourceRemote || !guest.IsGuest || guest.Grade != models.GradeGuest {
		t.Fatalf("unexpected guest %s %+v", source, guest)
	}
	again, source, err := f.hook.Users.BootstrapGuest(ctx)
	if err != nil || again.ID != guest.ID || source != SourceLocal {
		t.Fatalf("expected cached guest session, got %s %+v %v", source, again, err)
	}

	if _, err := f.hook.Users.Delete(ctx, guest.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok := f.hook.Users.CurrentUser(ctx); ok {
		t.Fatalf("expected session cleared after deleting its user")
	}
}

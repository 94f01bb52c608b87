package hook

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/cache"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/remote"
	"go.uber.org/zap"
)

const (
	cacheCurrentUser = "current_user"

	columnGrade        = "grade"
	columnIsBlocked    = "is_blocked"
	columnBlockedUntil = "blocked_until"
	columnAdminNotes   = "admin_notes"
	columnLastActive   = "last_active"
)

// BlockDuration is one of the fixed block lengths offered to admins.
type BlockDuration string

const (
	Block30Minutes BlockDuration = "30m"
	Block1Day      BlockDuration = "1d"
	Block7Days     BlockDuration = "7d"
	Block30Days    BlockDuration = "30d"
)

var blockOffsets = map[BlockDuration]time.Duration{
	Block30Minutes: 30 * time.Minute,
	Block1Day:      24 * time.Hour,
	Block7Days:     7 * 24 * time.Hour,
	Block30Days:    30 * 24 * time.Hour,
}

// ParseBlockDuration validates a block length.
func ParseBlockDuration(raw string) (BlockDuration, error) {
	duration := BlockDuration(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := blockOffsets[duration]; !ok {
		return "", fmt.Errorf("%w: unknown block duration %q", ErrInvalidInput, raw)
	}
	return duration, nil
}

// Offset returns the length of the block, or zero for an unknown duration.
func (d BlockDuration) Offset() time.Duration {
	return blockOffsets[d]
}

// IsBlocked reports whether the block on user is in effect at now. Expired blocks keep
// is_blocked set until an explicit unblock, but no longer count.
func IsBlocked(user models.User, now time.Time) bool {
	return user.IsBlocked && user.BlockedUntil != nil && user.BlockedUntil.After(now)
}

// Users manages accounts and the cached current-session user.
type Users struct {
	*core
	repo    *Repository[models.User, *models.User]
	current *cache.Value[models.User]
}

func newUsers(shared *core) *Users {
	return &Users{
		core: shared,
		repo: newRepository[models.User, *models.User](shared, repositoryConfig[models.User]{
			table: tableUsers,
			order: "join_date DESC",
			sortCached: func(items []models.User) {
				sort.SliceStable(items, func(i, j int) bool {
					return items[i].JoinDate.After(items[j].JoinDate)
				})
			},
		}),
		current: cache.NewValue[models.User](shared.cache, cacheCurrentUser),
	}
}

// Repository exposes the generic operations for users.
func (u *Users) Repository() *Repository[models.User, *models.User] {
	return u.repo
}

func (u *Users) List(ctx context.Context) ([]models.User, Source) {
	return u.repo.List(ctx, Selection[models.User]{})
}

// Known merges the listed users with every user held only in the local cache, so accounts
// created during an outage are still reachable. Listed rows win on duplicate ids.
func (u *Users) Known(ctx context.Context) []models.User {
	listed, source := u.List(ctx)
	if source == SourceLocal {
		return listed
	}
	seen := make(map[string]struct{}, len(listed))
	for _, user := range listed {
		seen[user.ID] = struct{}{}
	}
	for _, user := range u.repo.Cached(ctx) {
		if _, dup := seen[user.ID]; dup {
			continue
		}
		seen[user.ID] = struct{}{}
		listed = append(listed, user)
	}
	return listed
}

func (u *Users) Get(ctx context.Context, id string) (models.User, Source, bool) {
	return u.repo.Get(ctx, id)
}

// Create validates and stores a new account. An empty grade defaults to guest.
func (u *Users) Create(ctx context.Context, user models.User) (models.User, Source, error) {
	user.Name = strings.TrimSpace(user.Name)
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Name == "" {
		return user, SourceRemote, u.fail("hook.users.create", "missing_name", "A user name is required.", ErrInvalidInput)
	}
	if user.Grade == "" {
		user.Grade = models.GradeGuest
	}
	grade, err := models.ParseGrade(string(user.Grade))
	if err != nil {
		return user, SourceRemote, u.fail("hook.users.create", "invalid_grade", "Unknown grade.", err)
	}
	user.Grade = grade
	if user.TotalDownloads < 0 {
		user.TotalDownloads = 0
	}
	return u.repo.Create(ctx, user)
}

func (u *Users) UpdateGrade(ctx context.Context, id string, grade models.Grade) (models.User, Source, error) {
	parsed, err := models.ParseGrade(string(grade))
	if err != nil {
		return models.User{}, SourceRemote, u.fail("hook.users.update_grade", "invalid_grade", "Unknown grade.", err)
	}
	return u.update(ctx, id, Change[models.User]{
		Columns: map[string]any{columnGrade: string(parsed)},
		Apply:   func(user *models.User) { user.Grade = parsed },
	})
}

// UpdateNotes sets the admin notes; blank notes clear them.
func (u *Users) UpdateNotes(ctx context.Context, id, notes string) (models.User, Source, error) {
	var value *string
	if trimmed := strings.TrimSpace(notes); trimmed != "" {
		value = &trimmed
	}
	return u.update(ctx, id, Change[models.User]{
		Columns: map[string]any{columnAdminNotes: value},
		Apply:   func(user *models.User) { user.AdminNotes = value },
	})
}

// Block marks the user blocked until now+duration.
func (u *Users) Block(ctx context.Context, id string, duration BlockDuration) (models.User, Source, error) {
	offset := duration.Offset()
	if offset <= 0 {
		return models.User{}, SourceRemote, u.fail("hook.users.block", "invalid_duration", "Unknown block duration.",
			fmt.Errorf("%w: %q", ErrInvalidInput, duration))
	}
	until := u.now().Add(offset)
	return u.update(ctx, id, Change[models.User]{
		Columns: map[string]any{columnIsBlocked: true, columnBlockedUntil: until},
		Apply: func(user *models.User) {
			user.IsBlocked = true
			user.BlockedUntil = &until
		},
	})
}

func (u *Users) Unblock(ctx context.Context, id string) (models.User, Source, error) {
	return u.update(ctx, id, Change[models.User]{
		Columns: map[string]any{columnIsBlocked: false, columnBlockedUntil: nil},
		Apply: func(user *models.User) {
			user.IsBlocked = false
			user.BlockedUntil = nil
		},
	})
}

// Touch refreshes last_active.
func (u *Users) Touch(ctx context.Context, id string) (models.User, Source, error) {
	now := u.now()
	return u.update(ctx, id, Change[models.User]{
		Columns: map[string]any{columnLastActive: now},
		Apply:   func(user *models.User) { user.LastActive = now },
	})
}

// IsBlocked evaluates the block against the hook clock.
func (u *Users) IsBlocked(user models.User) bool {
	return IsBlocked(user, u.now())
}

// Delete removes the account. Logs and bug reports that reference it are kept.
func (u *Users) Delete(ctx context.Context, id string) (Source, error) {
	source, err := u.repo.Delete(ctx, id)
	if err != nil {
		return source, err
	}
	if current, ok := u.CurrentUser(ctx); ok && current.ID == id {
		u.ClearCurrentUser(ctx)
	}
	return source, nil
}

func (u *Users) update(ctx context.Context, id string, change Change[models.User]) (models.User, Source, error) {
	user, source, err := u.repo.Update(ctx, id, change)
	if err != nil {
		return user, source, err
	}
	u.patchCurrentUser(ctx, id, change.Apply)
	return user, source, nil
}

// BootstrapGuest creates a guest account for an anonymous session and makes it current.
func (u *Users) BootstrapGuest(ctx context.Context) (models.User, Source, error) {
	if current, ok := u.CurrentUser(ctx); ok && current.IsGuest {
		return current, SourceLocal, nil
	}
	created, source, err := u.CreateGuest(ctx)
	if err != nil {
		return created, source, err
	}
	if err := u.SetCurrentUser(ctx, created); err != nil {
		return created, source, err
	}
	return created, source, nil
}

// CreateGuest stores a new guest account named after the tail of its id.
func (u *Users) CreateGuest(ctx context.Context) (models.User, Source, error) {
	id, err := u.newID()
	if err != nil {
		return models.User{}, SourceLocal, u.fail("hook.users.create_guest", "id_generation_failed",
			"Could not start a guest session.", err)
	}
	suffix := id
	if len(suffix) > 8 {
		suffix = suffix[len(suffix)-8:]
	}
	return u.repo.Create(ctx, models.User{
		ID:      id,
		Name:    "Guest " + suffix,
		Grade:   models.GradeGuest,
		IsGuest: true,
	})
}

// CurrentUser returns the cached session user.
func (u *Users) CurrentUser(ctx context.Context) (models.User, bool) {
	user, ok := u.current.Read(ctx)
	if !ok || user.ID == "" {
		return models.User{}, false
	}
	return user, true
}

func (u *Users) SetCurrentUser(ctx context.Context, user models.User) error {
	if err := u.current.Write(ctx, user); err != nil {
		return u.fail("hook.users.set_current", "local_write_failed", "Could not save the session user.", err)
	}
	return nil
}

func (u *Users) ClearCurrentUser(ctx context.Context) {
	if err := u.current.Clear(ctx); err != nil {
		u.logger.Warn("current user not cleared", zap.Error(err))
	}
}

// patchCurrentUser applies apply to the cached session user when its id matches.
func (u *Users) patchCurrentUser(ctx context.Context, id string, apply func(user *models.User)) {
	if apply == nil {
		return
	}
	err := u.current.Update(ctx, func(current models.User, found bool) (models.User, bool) {
		if !found || current.ID != id {
			return current, false
		}
		apply(&current)
		return current, true
	})
	if err != nil {
		u.logger.Warn("current user not patched", zap.String("user_id", id), zap.Error(err))
	}
}

// RecountDownloads recomputes total_downloads from the download logs held in both stores and
// writes corrected counters back to whichever store owns each user. Remote counters are left
// alone when the remote download logs cannot be read. It returns the number of users whose
// counter changed.
func (u *Users) RecountDownloads(ctx context.Context) (int, error) {
	counts := make(map[string]int64)
	seen := make(map[string]struct{})
	count := func(logs []models.DownloadLog) {
		for _, entry := range logs {
			if _, dup := seen[entry.ID]; dup {
				continue
			}
			seen[entry.ID] = struct{}{}
			counts[entry.UserID]++
		}
	}

	var remoteLogs []models.DownloadLog
	remoteLogsRead := true
	if err := u.remote.Select(ctx, tableDownloadLogs, remote.Query{}, &remoteLogs); err != nil {
		u.logFallback(tableDownloadLogs, "recount", err)
		remoteLogsRead = false
	}
	count(remoteLogs)
	count(cache.NewCollection[models.DownloadLog](u.cache, tableDownloadLogs).Read(ctx))

	changed := 0
	var remoteUsers []models.User
	if err := u.remote.Select(ctx, tableUsers, remote.Query{}, &remoteUsers); err != nil {
		u.logFallback(tableUsers, "recount", err)
	}
	owned := make(map[string]struct{}, len(remoteUsers))
	if !remoteLogsRead && len(remoteUsers) > 0 {
		u.logger.Warn("remote download totals left unchanged; remote download logs unreadable",
			zap.Int("users", len(remoteUsers)))
	}
	for _, user := range remoteUsers {
		owned[user.ID] = struct{}{}
		if !remoteLogsRead {
			continue
		}
		want := counts[user.ID]
		if user.TotalDownloads == want {
			continue
		}
		patch := map[string]any{columnTotalDownloads: want}
		if _, err := u.remote.Update(ctx, tableUsers, patch, remote.Eq(columnID, user.ID)); err != nil {
			return changed, u.fail("hook.users.recount", "remote_write_failed",
				"Could not correct download counters.", err, zap.String("user_id", user.ID))
		}
		changed++
	}

	localChanged := 0
	err := u.repo.local.Update(ctx, func(items []models.User) ([]models.User, error) {
		for i := range items {
			if _, remoteOwned := owned[items[i].ID]; remoteOwned {
				continue
			}
			want := counts[items[i].ID]
			if items[i].TotalDownloads != want {
				items[i].TotalDownloads = want
				localChanged++
			}
		}
		return items, nil
	})
	if err != nil {
		return changed, u.fail("hook.users.recount", "local_write_failed",
			"Could not correct download counters.", err)
	}
	if current, ok := u.CurrentUser(ctx); ok {
		if want := counts[current.ID]; current.TotalDownloads != want {
			u.patchCurrentUser(ctx, current.ID, func(user *models.User) { user.TotalDownloads = want })
		}
	}
	return changed + localChanged, nil
}

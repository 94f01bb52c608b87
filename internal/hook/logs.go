package hook

import (
	"context"
	"sort"
	"strings"

	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/remote"
	"go.uber.org/zap"
)

const (
	tableActivityLogs = "activity_logs"
	tableDownloadLogs = "download_logs"
	columnUserID      = "user_id"

	defaultLogLimit = 100
)

func logLimit(limit int) int {
	if limit <= 0 {
		return defaultLogLimit
	}
	return limit
}

// ActivityLogs is the append-only audit trail.
type ActivityLogs struct {
	*core
	repo *Repository[models.ActivityLog, *models.ActivityLog]
}

func newActivityLogs(shared *core) *ActivityLogs {
	return &ActivityLogs{
		core: shared,
		repo: newRepository[models.ActivityLog, *models.ActivityLog](shared, repositoryConfig[models.ActivityLog]{
			table: tableActivityLogs,
			order: "created_at DESC",
			sortCached: func(items []models.ActivityLog) {
				sort.SliceStable(items, func(i, j int) bool {
					return items[i].CreatedAt.After(items[j].CreatedAt)
				})
			},
		}),
	}
}

func (a *ActivityLogs) Repository() *Repository[models.ActivityLog, *models.ActivityLog] {
	return a.repo
}

// Record appends an audit entry. Entries for users unknown to the remote store stay local.
func (a *ActivityLogs) Record(ctx context.Context, entry models.ActivityLog) (models.ActivityLog, Source, error) {
	entry.UserID = strings.TrimSpace(entry.UserID)
	if entry.UserID == "" {
		return entry, SourceRemote, a.fail("hook.activity_logs.create", "missing_user", "A user is required.", ErrInvalidID)
	}
	if !a.userExistsRemotely(ctx, entry.UserID) {
		a.metrics.redirect(tableActivityLogs)
		stored, err := a.repo.CreateLocal(ctx, entry)
		return stored, SourceLocal, err
	}
	return a.repo.Create(ctx, entry)
}

func (a *ActivityLogs) Recent(ctx context.Context, limit int) ([]models.ActivityLog, Source) {
	return a.repo.List(ctx, Selection[models.ActivityLog]{Query: remote.Query{Limit: logLimit(limit)}})
}

func (a *ActivityLogs) ForUser(ctx context.Context, userID string, limit int) ([]models.ActivityLog, Source) {
	return a.repo.List(ctx, Selection[models.ActivityLog]{
		Query: remote.Query{Filters: []remote.Filter{remote.Eq(columnUserID, userID)}, Limit: logLimit(limit)},
		Match: func(entry *models.ActivityLog) bool { return entry.UserID == userID },
	})
}

// DownloadLogs records file downloads and keeps the denormalized counters in step.
type DownloadLogs struct {
	*core
	repo  *Repository[models.DownloadLog, *models.DownloadLog]
	users *Users
	files *Files
}

func newDownloadLogs(shared *core, users *Users, files *Files) *DownloadLogs {
	return &DownloadLogs{
		core: shared,
		repo: newRepository[models.DownloadLog, *models.DownloadLog](shared, repositoryConfig[models.DownloadLog]{
			table: tableDownloadLogs,
			order: "created_at DESC",
			sortCached: func(items []models.DownloadLog) {
				sort.SliceStable(items, func(i, j int) bool {
					return items[i].CreatedAt.After(items[j].CreatedAt)
				})
			},
		}),
		users: users,
		files: files,
	}
}

func (d *DownloadLogs) Repository() *Repository[models.DownloadLog, *models.DownloadLog] {
	return d.repo
}

// DownloadReceipt reports where a download log and its counter increment landed.
type DownloadReceipt struct {
	Log    models.DownloadLog
	Source Source
	// CounterSource is SourceNone when the user's total_downloads was not incremented anywhere.
	CounterSource Source
}

// Record appends a download log and, once stored, increments the user's total_downloads and
// the file's download_count. Logs for users unknown to the remote store stay local.
func (d *DownloadLogs) Record(ctx context.Context, entry models.DownloadLog) (DownloadReceipt, error) {
	const operation = "hook.download_logs.create"
	entry.UserID = strings.TrimSpace(entry.UserID)
	entry.FileID = strings.TrimSpace(entry.FileID)
	if entry.UserID == "" {
		return DownloadReceipt{Log: entry}, d.fail(operation, "missing_user", "A user is required.", ErrInvalidID)
	}
	if entry.FileID == "" {
		return DownloadReceipt{Log: entry}, d.fail(operation, "missing_file", "A file is required.", ErrInvalidID)
	}

	var (
		stored models.DownloadLog
		source Source
		err    error
	)
	if d.userExistsRemotely(ctx, entry.UserID) {
		stored, source, err = d.repo.Create(ctx, entry)
	} else {
		d.metrics.redirect(tableDownloadLogs)
		source = SourceLocal
		stored, err = d.repo.CreateLocal(ctx, entry)
	}
	if err != nil {
		return DownloadReceipt{Log: stored, Source: source}, err
	}

	counter := d.users.incrementDownloads(ctx, stored.UserID)
	d.files.incrementDownloadCount(ctx, stored.FileID)
	d.logger.Debug("download recorded",
		zap.String("user_id", stored.UserID),
		zap.String("file_id", stored.FileID),
		zap.String("source", string(source)),
		zap.String("counter_source", string(counter)))
	return DownloadReceipt{Log: stored, Source: source, CounterSource: counter}, nil
}

func (d *DownloadLogs) Recent(ctx context.Context, limit int) ([]models.DownloadLog, Source) {
	return d.repo.List(ctx, Selection[models.DownloadLog]{Query: remote.Query{Limit: logLimit(limit)}})
}

func (d *DownloadLogs) ForUser(ctx context.Context, userID string, limit int) ([]models.DownloadLog, Source) {
	return d.repo.List(ctx, Selection[models.DownloadLog]{
		Query: remote.Query{Filters: []remote.Filter{remote.Eq(columnUserID, userID)}, Limit: logLimit(limit)},
		Match: func(entry *models.DownloadLog) bool { return entry.UserID == userID },
	})
}

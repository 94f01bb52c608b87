package hook

import (
	"context"

	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/remote"
	"go.uber.org/zap"
)

const (
	tableUsers           = "users"
	columnTotalDownloads = "total_downloads"
	columnDownloadCount  = "download_count"
)

// userExistsRemotely reports whether the remote store returned a row for userID.
// Errors count as "not found": the dependent write then stays local.
func (c *core) userExistsRemotely(ctx context.Context, userID string) bool {
	if userID == "" {
		return false
	}
	var rows []models.User
	query := remote.Query{Filters: []remote.Filter{remote.Eq(columnID, userID)}, Limit: 1}
	if err := c.remote.Select(ctx, tableUsers, query, &rows); err != nil {
		c.logger.Warn("user pre-check failed", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return len(rows) > 0
}

// incrementDownloads bumps User.total_downloads in the store that owns the user.
// The remote path is read-then-write without a version check, so concurrent increments can
// collide; when a remote write succeeds but reports failure the local fallback also applies,
// which makes the counter at-least-once. SourceNone means no store holds a copy of the user.
func (u *Users) incrementDownloads(ctx context.Context, userID string) Source {
	user, found, err := u.repo.getRemote(ctx, userID)
	if err == nil && found {
		patch := map[string]any{columnTotalDownloads: user.TotalDownloads + 1}
		_, err = u.remote.Update(ctx, tableUsers, patch, remote.Eq(columnID, userID))
		if err == nil {
			u.metrics.increment(SourceRemote)
			return SourceRemote
		}
	}
	if err != nil {
		u.logFallback(tableUsers, "increment_downloads", err)
	}

	err = u.repo.local.Update(ctx, func(items []models.User) ([]models.User, error) {
		for i := range items {
			if items[i].ID == userID {
				items[i].TotalDownloads++
				return items, nil
			}
		}
		return nil, ErrNotFound
	})
	u.patchCurrentUser(ctx, userID, func(user *models.User) { user.TotalDownloads++ })
	if err != nil {
		u.logger.Warn("download counter not updated in either store", zap.String("user_id", userID), zap.Error(err))
		return SourceNone
	}
	u.metrics.increment(SourceLocal)
	return SourceLocal
}

// incrementDownloadCount bumps ServerFile.download_count, remote first. Best effort.
func (f *Files) incrementDownloadCount(ctx context.Context, fileID string) {
	if fileID == "" {
		return
	}
	if file, ok, err := f.repo.getRemote(ctx, fileID); err == nil && ok {
		patch := map[string]any{columnDownloadCount: file.DownloadCount + 1}
		if _, updateErr := f.remote.Update(ctx, f.repo.table, patch, remote.Eq(columnID, fileID)); updateErr == nil {
			return
		}
	}
	err := f.repo.local.Update(ctx, func(items []models.ServerFile) ([]models.ServerFile, error) {
		for i := range items {
			if items[i].ID == fileID {
				items[i].DownloadCount++
				return items, nil
			}
		}
		return nil, ErrNotFound
	})
	if err != nil {
		f.logger.Debug("file download counter not updated", zap.String("file_id", fileID), zap.Error(err))
	}
}

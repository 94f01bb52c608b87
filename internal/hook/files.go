package hook

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
	"gorm.io/datatypes"
)

const tableServerFiles = "server_files"

// ParseVersion validates a release version such as "1.0" or "v5.2.1".
func ParseVersion(raw string) (*semver.Version, error) {
	version, err := semver.NewVersion(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: version %q: %v", ErrInvalidInput, raw, err)
	}
	return version, nil
}

// newerFirst orders versions descending; unparseable versions sort last, by string.
func newerFirst(a, b string) bool {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA == nil && errB == nil:
		return va.GreaterThan(vb)
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a > b
	}
}

func validFileType(fileType models.FileType) bool {
	switch fileType {
	case models.FileTypeClient, models.FileTypeServer, models.FileTypePatch, models.FileTypeTool, models.FileTypeOther:
		return true
	}
	return false
}

func validFileStatus(status models.FileStatus) bool {
	switch status {
	case models.FileStatusActive, models.FileStatusBeta, models.FileStatusDeprecated:
		return true
	}
	return false
}

// FilePatch is a partial ServerFile update; nil fields are left unchanged.
type FilePatch struct {
	Name        *string
	Version     *string
	Description *string
	FileURL     *string
	FileSize    *int64
	FileType    *models.FileType
	MinGrade    *models.Grade
	Status      *models.FileStatus
	Changelog   []string
}

// Files manages downloadable builds.
type Files struct {
	*core
	repo          *Repository[models.ServerFile, *models.ServerFile]
	users         *Users
	notifications *Notifications
}

func newFiles(shared *core, users *Users, notifications *Notifications) *Files {
	return &Files{
		core: shared,
		repo: newRepository[models.ServerFile, *models.ServerFile](shared, repositoryConfig[models.ServerFile]{
			table: tableServerFiles,
			touch: columnUpdatedAt,
			order: "created_at DESC",
			sortCached: func(items []models.ServerFile) {
				sort.SliceStable(items, func(i, j int) bool {
					return items[i].CreatedAt.After(items[j].CreatedAt)
				})
			},
		}),
		users:         users,
		notifications: notifications,
	}
}

func (f *Files) Repository() *Repository[models.ServerFile, *models.ServerFile] {
	return f.repo
}

func (f *Files) List(ctx context.Context) ([]models.ServerFile, Source) {
	return f.repo.List(ctx, Selection[models.ServerFile]{})
}

// ListAccessible returns the files whose access floor grade meets.
func (f *Files) ListAccessible(ctx context.Context, grade models.Grade) ([]models.ServerFile, Source) {
	files, source := f.List(ctx)
	accessible := make([]models.ServerFile, 0, len(files))
	for _, file := range files {
		if grade.Meets(file.MinGrade) {
			accessible = append(accessible, file)
		}
	}
	return accessible, source
}

// LatestVersions returns the newest non-deprecated build per file name that grade can access,
// sorted by name.
func (f *Files) LatestVersions(ctx context.Context, grade models.Grade) ([]models.ServerFile, Source) {
	files, source := f.ListAccessible(ctx, grade)
	latest := make(map[string]models.ServerFile)
	for _, file := range files {
		if file.Status == models.FileStatusDeprecated {
			continue
		}
		current, ok := latest[file.Name]
		if !ok || newerFirst(file.Version, current.Version) {
			latest[file.Name] = file
		}
	}
	result := make([]models.ServerFile, 0, len(latest))
	for _, file := range latest {
		result = append(result, file)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, source
}

func (f *Files) Get(ctx context.Context, id string) (models.ServerFile, Source, bool) {
	return f.repo.Get(ctx, id)
}

// Create stores a new build. Active builds notify every user who can download them.
func (f *Files) Create(ctx context.Context, file models.ServerFile) (models.ServerFile, Source, error) {
	const operation = "hook.server_files.create"
	file.Name = strings.TrimSpace(file.Name)
	if file.Name == "" {
		return file, SourceRemote, f.fail(operation, "missing_name", "A file name is required.", ErrInvalidInput)
	}
	version, err := ParseVersion(file.Version)
	if err != nil {
		return file, SourceRemote, f.fail(operation, "invalid_version", "The version must look like 1.2.3.", err)
	}
	file.Version = version.Original()
	if file.FileType == "" {
		file.FileType = models.FileTypeOther
	}
	if !validFileType(file.FileType) {
		return file, SourceRemote, f.fail(operation, "invalid_file_type", "Unknown file type.", ErrInvalidInput)
	}
	if file.MinGrade == "" {
		file.MinGrade = models.GradeGuest
	}
	if !file.MinGrade.Valid() {
		return file, SourceRemote, f.fail(operation, "invalid_grade", "Unknown grade.", models.ErrInvalidGrade)
	}
	if file.Status == "" {
		file.Status = models.FileStatusActive
	}
	if !validFileStatus(file.Status) {
		return file, SourceRemote, f.fail(operation, "invalid_status", "Unknown file status.", ErrInvalidInput)
	}
	if file.Changelog == nil {
		file.Changelog = datatypes.JSONSlice[string]{}
	}
	file.DownloadCount = 0

	created, source, err := f.repo.Create(ctx, file)
	if err != nil {
		return created, source, err
	}
	if created.Status == models.FileStatusActive {
		f.announce(ctx, created)
	}
	return created, source, nil
}

func (f *Files) announce(ctx context.Context, file models.ServerFile) {
	users := f.users.Known(ctx)
	f.notifications.FanOut(ctx, recipients(users, file.MinGrade, file.CreatedBy), models.Notification{
		Type:    models.NotificationFile,
		Title:   fmt.Sprintf("New file: %s %s", file.Name, file.Version),
		Message: file.Description,
		Link:    "/files/" + file.ID,
	})
}

func (f *Files) Update(ctx context.Context, id string, patch FilePatch) (models.ServerFile, Source, error) {
	const operation = "hook.server_files.update"
	columns := make(map[string]any)
	var apply []func(file *models.ServerFile)

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return models.ServerFile{}, SourceRemote, f.fail(operation, "missing_name", "A file name is required.", ErrInvalidInput)
		}
		columns["name"] = name
		apply = append(apply, func(file *models.ServerFile) { file.Name = name })
	}
	if patch.Version != nil {
		version, err := ParseVersion(*patch.Version)
		if err != nil {
			return models.ServerFile{}, SourceRemote, f.fail(operation, "invalid_version", "The version must look like 1.2.3.", err)
		}
		value := version.Original()
		columns["version"] = value
		apply = append(apply, func(file *models.ServerFile) { file.Version = value })
	}
	if patch.Description != nil {
		value := *patch.Description
		columns["description"] = value
		apply = append(apply, func(file *models.ServerFile) { file.Description = value })
	}
	if patch.FileURL != nil {
		value := strings.TrimSpace(*patch.FileURL)
		columns["file_url"] = value
		apply = append(apply, func(file *models.ServerFile) { file.FileURL = value })
	}
	if patch.FileSize != nil {
		value := *patch.FileSize
		if value < 0 {
			return models.ServerFile{}, SourceRemote, f.fail(operation, "invalid_size", "File size cannot be negative.", ErrInvalidInput)
		}
		columns["file_size"] = value
		apply = append(apply, func(file *models.ServerFile) { file.FileSize = value })
	}
	if patch.FileType != nil {
		value := *patch.FileType
		if !validFileType(value) {
			return models.ServerFile{}, SourceRemote, f.fail(operation, "invalid_file_type", "Unknown file type.", ErrInvalidInput)
		}
		columns["file_type"] = string(value)
		apply = append(apply, func(file *models.ServerFile) { file.FileType = value })
	}
	if patch.MinGrade != nil {
		value := *patch.MinGrade
		if !value.Valid() {
			return models.ServerFile{}, SourceRemote, f.fail(operation, "invalid_grade", "Unknown grade.", models.ErrInvalidGrade)
		}
		columns["min_grade"] = string(value)
		apply = append(apply, func(file *models.ServerFile) { file.MinGrade = value })
	}
	if patch.Status != nil {
		value := *patch.Status
		if !validFileStatus(value) {
			return models.ServerFile{}, SourceRemote, f.fail(operation, "invalid_status", "Unknown file status.", ErrInvalidInput)
		}
		columns["status"] = string(value)
		apply = append(apply, func(file *models.ServerFile) { file.Status = value })
	}
	if patch.Changelog != nil {
		value := datatypes.JSONSlice[string](append([]string(nil), patch.Changelog...))
		columns["changelog"] = value
		apply = append(apply, func(file *models.ServerFile) { file.Changelog = value })
	}

	return f.repo.Update(ctx, id, Change[models.ServerFile]{
		Columns: columns,
		Apply: func(file *models.ServerFile) {
			for _, fn := range apply {
				fn(file)
			}
		},
	})
}

func (f *Files) Delete(ctx context.Context, id string) (Source, error) {
	return f.repo.Delete(ctx, id)
}

package hook

import (
	"context"
	"sort"
	"strings"

	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/remote"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	tableBugReports  = "bug_reports"
	columnReporterID = "reporter_id"
	columnComments   = "comments"
)

func validSeverity(severity models.BugSeverity) bool {
	switch severity {
	case models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical:
		return true
	}
	return false
}

func validBugStatus(status models.BugStatus) bool {
	switch status {
	case models.BugStatusOpen, models.BugStatusInProgress, models.BugStatusResolved, models.BugStatusClosed:
		return true
	}
	return false
}

// BugFilter narrows a bug listing; zero fields match everything.
type BugFilter struct {
	Status     models.BugStatus
	ReporterID string
}

// BugPatch is a partial BugReport update; nil fields are left unchanged.
type BugPatch struct {
	Title            *string
	Description      *string
	Severity         *models.BugSeverity
	Category         *string
	ExpectedBehavior *string
	ActualBehavior   *string
}

// BugReports manages user-filed defects.
type BugReports struct {
	*core
	repo *Repository[models.BugReport, *models.BugReport]
}

func newBugReports(shared *core) *BugReports {
	return &BugReports{
		core: shared,
		repo: newRepository[models.BugReport, *models.BugReport](shared, repositoryConfig[models.BugReport]{
			table: tableBugReports,
			touch: columnUpdatedAt,
			order: "created_at DESC",
			sortCached: func(items []models.BugReport) {
				sort.SliceStable(items, func(i, j int) bool {
					return items[i].CreatedAt.After(items[j].CreatedAt)
				})
			},
		}),
	}
}

func (b *BugReports) Repository() *Repository[models.BugReport, *models.BugReport] {
	return b.repo
}

func (b *BugReports) List(ctx context.Context, filter BugFilter) ([]models.BugReport, Source) {
	var filters []remote.Filter
	if filter.Status != "" {
		filters = append(filters, remote.Eq(columnStatus, string(filter.Status)))
	}
	if filter.ReporterID != "" {
		filters = append(filters, remote.Eq(columnReporterID, filter.ReporterID))
	}
	return b.repo.List(ctx, Selection[models.BugReport]{
		Query: remote.Query{Filters: filters},
		Match: func(report *models.BugReport) bool {
			if filter.Status != "" && report.Status != filter.Status {
				return false
			}
			return filter.ReporterID == "" || report.ReporterID == filter.ReporterID
		},
	})
}

func (b *BugReports) Get(ctx context.Context, id string) (models.BugReport, Source, bool) {
	return b.repo.Get(ctx, id)
}

// Create files a report. Reports from users the remote store does not know are kept locally.
func (b *BugReports) Create(ctx context.Context, report models.BugReport) (models.BugReport, Source, error) {
	const operation = "hook.bug_reports.create"
	report.Title = strings.TrimSpace(report.Title)
	if report.Title == "" {
		return report, SourceRemote, b.fail(operation, "missing_title", "A title is required.", ErrInvalidInput)
	}
	report.ReporterID = strings.TrimSpace(report.ReporterID)
	if report.ReporterID == "" {
		return report, SourceRemote, b.fail(operation, "missing_reporter", "A reporter is required.", ErrInvalidID)
	}
	if report.Severity == "" {
		report.Severity = models.SeverityMedium
	}
	if !validSeverity(report.Severity) {
		return report, SourceRemote, b.fail(operation, "invalid_severity", "Unknown severity.", ErrInvalidInput)
	}
	report.Status = models.BugStatusOpen
	if report.Steps == nil {
		report.Steps = datatypes.JSONSlice[string]{}
	}
	if report.Attachments == nil {
		report.Attachments = datatypes.JSONSlice[string]{}
	}
	if report.Environment == nil {
		report.Environment = datatypes.JSONMap{}
	}
	report.Comments = datatypes.JSONSlice[models.BugComment]{}

	if !b.userExistsRemotely(ctx, report.ReporterID) {
		b.metrics.redirect(tableBugReports)
		stored, err := b.repo.CreateLocal(ctx, report)
		return stored, SourceLocal, err
	}
	return b.repo.Create(ctx, report)
}

func (b *BugReports) Update(ctx context.Context, id string, patch BugPatch) (models.BugReport, Source, error) {
	const operation = "hook.bug_reports.update"
	columns := make(map[string]any)
	var apply []func(report *models.BugReport)

	if patch.Title != nil {
		value := strings.TrimSpace(*patch.Title)
		if value == "" {
			return models.BugReport{}, SourceRemote, b.fail(operation, "missing_title", "A title is required.", ErrInvalidInput)
		}
		columns["title"] = value
		apply = append(apply, func(report *models.BugReport) { report.Title = value })
	}
	if patch.Description != nil {
		value := *patch.Description
		columns["description"] = value
		apply = append(apply, func(report *models.BugReport) { report.Description = value })
	}
	if patch.Severity != nil {
		value := *patch.Severity
		if !validSeverity(value) {
			return models.BugReport{}, SourceRemote, b.fail(operation, "invalid_severity", "Unknown severity.", ErrInvalidInput)
		}
		columns["severity"] = string(value)
		apply = append(apply, func(report *models.BugReport) { report.Severity = value })
	}
	if patch.Category != nil {
		value := strings.TrimSpace(*patch.Category)
		columns["category"] = value
		apply = append(apply, func(report *models.BugReport) { report.Category = value })
	}
	if patch.ExpectedBehavior != nil {
		value := *patch.ExpectedBehavior
		columns["expected_behavior"] = value
		apply = append(apply, func(report *models.BugReport) { report.ExpectedBehavior = value })
	}
	if patch.ActualBehavior != nil {
		value := *patch.ActualBehavior
		columns["actual_behavior"] = value
		apply = append(apply, func(report *models.BugReport) { report.ActualBehavior = value })
	}

	return b.repo.Update(ctx, id, Change[models.BugReport]{
		Columns: columns,
		Apply: func(report *models.BugReport) {
			for _, fn := range apply {
				fn(report)
			}
		},
	})
}

func (b *BugReports) UpdateStatus(ctx context.Context, id string, status models.BugStatus) (models.BugReport, Source, error) {
	if !validBugStatus(status) {
		return models.BugReport{}, SourceRemote, b.fail("hook.bug_reports.update_status", "invalid_status",
			"Unknown bug status.", ErrInvalidInput, zap.String("status", string(status)))
	}
	return b.repo.Update(ctx, id, Change[models.BugReport]{
		Columns: map[string]any{columnStatus: string(status)},
		Apply:   func(report *models.BugReport) { report.Status = status },
	})
}

// AddComment appends a comment by writing back the whole comment list. Two concurrent
// comments on the same remote report can overwrite each other.
func (b *BugReports) AddComment(ctx context.Context, id, author, content string) (models.BugReport, Source, error) {
	const operation = "hook.bug_reports.add_comment"
	content = strings.TrimSpace(content)
	if content == "" {
		return models.BugReport{}, SourceRemote, b.fail(operation, "missing_content", "A comment cannot be empty.", ErrInvalidInput)
	}
	report, source, ok := b.repo.Get(ctx, id)
	if !ok {
		return report, source, b.fail(operation, "not_found", "Bug report not found.", ErrNotFound, zap.String("id", id))
	}
	commentID, err := b.newID()
	if err != nil {
		return report, source, b.fail(operation, "id_generation_failed", "Could not add the comment.", err)
	}
	comment := models.BugComment{
		ID:        commentID,
		Author:    strings.TrimSpace(author),
		Content:   content,
		CreatedAt: b.now(),
	}
	comments := make(datatypes.JSONSlice[models.BugComment], 0, len(report.Comments)+1)
	comments = append(comments, report.Comments...)
	comments = append(comments, comment)

	return b.repo.Update(ctx, id, Change[models.BugReport]{
		Columns: map[string]any{columnComments: comments},
		Apply:   func(report *models.BugReport) { report.Comments = comments },
	})
}

func (b *BugReports) Delete(ctx context.Context, id string) (Source, error) {
	return b.repo.Delete(ctx, id)
}

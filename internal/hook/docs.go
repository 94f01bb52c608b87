package hook

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/remote"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	tableDocumentation = "documentation"
	columnSlug         = "slug"
	columnCategory     = "category"
	columnVersionType  = "version_type"
	columnOrderIndex   = "order_index"
)

// Slugify lowercases title and joins its alphanumeric runs with dashes.
func Slugify(title string) string {
	var builder strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
			dash = false
			continue
		}
		if !dash && builder.Len() > 0 {
			builder.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(builder.String(), "-")
}

func validDocVersionType(versionType models.DocVersionType) bool {
	switch versionType {
	case models.DocVersionV4, models.DocVersionV5, models.DocVersionGeneral:
		return true
	}
	return false
}

func validPublishStatus(status models.PublishStatus) bool {
	return status == models.StatusDraft || status == models.StatusPublished
}

func sortDocs(items []models.Documentation) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].VersionType != items[j].VersionType {
			return items[i].VersionType < items[j].VersionType
		}
		if items[i].Category != items[j].Category {
			return items[i].Category < items[j].Category
		}
		return items[i].OrderIndex < items[j].OrderIndex
	})
}

// DocFilter narrows a documentation listing; zero fields match everything.
type DocFilter struct {
	VersionType   models.DocVersionType
	Category      string
	PublishedOnly bool
}

func (f DocFilter) selection() Selection[models.Documentation] {
	var filters []remote.Filter
	if f.VersionType != "" {
		filters = append(filters, remote.Eq(columnVersionType, string(f.VersionType)))
	}
	if f.Category != "" {
		filters = append(filters, remote.Eq(columnCategory, f.Category))
	}
	if f.PublishedOnly {
		filters = append(filters, remote.Eq(columnStatus, string(models.StatusPublished)))
	}
	return Selection[models.Documentation]{
		Query: remote.Query{Filters: filters},
		Match: func(doc *models.Documentation) bool {
			if f.VersionType != "" && doc.VersionType != f.VersionType {
				return false
			}
			if f.Category != "" && doc.Category != f.Category {
				return false
			}
			return !f.PublishedOnly || doc.Status == models.StatusPublished
		},
	}
}

// DocPatch is a partial Documentation update; nil fields are left unchanged.
type DocPatch struct {
	Title       *string
	Slug        *string
	Content     *string
	Category    *string
	VersionType *models.DocVersionType
	Status      *models.PublishStatus
	Tags        []string
}

// Docs manages ordered documentation pages.
type Docs struct {
	*core
	repo *Repository[models.Documentation, *models.Documentation]
}

func newDocs(shared *core) *Docs {
	return &Docs{
		core: shared,
		repo: newRepository[models.Documentation, *models.Documentation](shared, repositoryConfig[models.Documentation]{
			table:      tableDocumentation,
			touch:      columnUpdatedAt,
			order:      "version_type ASC, category ASC, order_index ASC",
			sortCached: sortDocs,
		}),
	}
}

func (d *Docs) Repository() *Repository[models.Documentation, *models.Documentation] {
	return d.repo
}

// List returns matching pages in display order.
func (d *Docs) List(ctx context.Context, filter DocFilter) ([]models.Documentation, Source) {
	docs, source := d.repo.List(ctx, filter.selection())
	sortDocs(docs)
	return docs, source
}

func (d *Docs) Get(ctx context.Context, id string) (models.Documentation, Source, bool) {
	return d.repo.Get(ctx, id)
}

func (d *Docs) GetBySlug(ctx context.Context, slug string) (models.Documentation, Source, bool) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return models.Documentation{}, SourceRemote, false
	}
	docs, source := d.repo.List(ctx, Selection[models.Documentation]{
		Query: remote.Query{Filters: []remote.Filter{remote.Eq(columnSlug, slug)}, Limit: 1},
		Match: func(doc *models.Documentation) bool { return doc.Slug == slug },
	})
	if len(docs) == 0 {
		return models.Documentation{}, source, false
	}
	return docs[0], source, true
}

// Create stores a page. A missing slug is derived from the title and a zero order_index puts
// the page last within its version type and category.
func (d *Docs) Create(ctx context.Context, doc models.Documentation) (models.Documentation, Source, error) {
	const operation = "hook.documentation.create"
	doc.Title = strings.TrimSpace(doc.Title)
	if doc.Title == "" {
		return doc, SourceRemote, d.fail(operation, "missing_title", "A title is required.", ErrInvalidInput)
	}
	doc.Slug = Slugify(doc.Slug)
	if doc.Slug == "" {
		doc.Slug = Slugify(doc.Title)
	}
	if doc.Slug == "" {
		return doc, SourceRemote, d.fail(operation, "invalid_slug", "The title must contain letters or digits.", ErrInvalidInput)
	}
	if doc.VersionType == "" {
		doc.VersionType = models.DocVersionGeneral
	}
	if !validDocVersionType(doc.VersionType) {
		return doc, SourceRemote, d.fail(operation, "invalid_version_type", "Unknown documentation version.", ErrInvalidInput)
	}
	if doc.Status == "" {
		doc.Status = models.StatusDraft
	}
	if !validPublishStatus(doc.Status) {
		return doc, SourceRemote, d.fail(operation, "invalid_status", "Unknown status.", ErrInvalidInput)
	}
	if doc.Tags == nil {
		doc.Tags = datatypes.JSONSlice[string]{}
	}
	if doc.OrderIndex <= 0 {
		doc.OrderIndex = d.nextOrderIndex(ctx, doc.VersionType, doc.Category)
	}
	return d.repo.Create(ctx, doc)
}

func (d *Docs) nextOrderIndex(ctx context.Context, versionType models.DocVersionType, category string) int {
	siblings, _ := d.List(ctx, DocFilter{VersionType: versionType, Category: category})
	next := 1
	for _, sibling := range siblings {
		if sibling.OrderIndex >= next {
			next = sibling.OrderIndex + 1
		}
	}
	return next
}

func (d *Docs) Update(ctx context.Context, id string, patch DocPatch) (models.Documentation, Source, error) {
	const operation = "hook.documentation.update"
	columns := make(map[string]any)
	var apply []func(doc *models.Documentation)

	if patch.Title != nil {
		value := strings.TrimSpace(*patch.Title)
		if value == "" {
			return models.Documentation{}, SourceRemote, d.fail(operation, "missing_title", "A title is required.", ErrInvalidInput)
		}
		columns["title"] = value
		apply = append(apply, func(doc *models.Documentation) { doc.Title = value })
	}
	if patch.Slug != nil {
		value := Slugify(*patch.Slug)
		if value == "" {
			return models.Documentation{}, SourceRemote, d.fail(operation, "invalid_slug", "The slug must contain letters or digits.", ErrInvalidInput)
		}
		columns[columnSlug] = value
		apply = append(apply, func(doc *models.Documentation) { doc.Slug = value })
	}
	if patch.Content != nil {
		value := *patch.Content
		columns["content"] = value
		apply = append(apply, func(doc *models.Documentation) { doc.Content = value })
	}
	if patch.Category != nil {
		value := strings.TrimSpace(*patch.Category)
		columns[columnCategory] = value
		apply = append(apply, func(doc *models.Documentation) { doc.Category = value })
	}
	if patch.VersionType != nil {
		value := *patch.VersionType
		if !validDocVersionType(value) {
			return models.Documentation{}, SourceRemote, d.fail(operation, "invalid_version_type", "Unknown documentation version.", ErrInvalidInput)
		}
		columns[columnVersionType] = string(value)
		apply = append(apply, func(doc *models.Documentation) { doc.VersionType = value })
	}
	if patch.Status != nil {
		value := *patch.Status
		if !validPublishStatus(value) {
			return models.Documentation{}, SourceRemote, d.fail(operation, "invalid_status", "Unknown status.", ErrInvalidInput)
		}
		columns[columnStatus] = string(value)
		apply = append(apply, func(doc *models.Documentation) { doc.Status = value })
	}
	if patch.Tags != nil {
		value := datatypes.JSONSlice[string](append([]string(nil), patch.Tags...))
		columns["tags"] = value
		apply = append(apply, func(doc *models.Documentation) { doc.Tags = value })
	}

	return d.repo.Update(ctx, id, Change[models.Documentation]{
		Columns: columns,
		Apply: func(doc *models.Documentation) {
			for _, fn := range apply {
				fn(doc)
			}
		},
	})
}

// Reorder assigns order_index 1..n following ids. It stops at the first page that cannot be updated.
func (d *Docs) Reorder(ctx context.Context, ids []string) error {
	for i, id := range ids {
		index := i + 1
		_, _, err := d.repo.Update(ctx, id, Change[models.Documentation]{
			Columns: map[string]any{columnOrderIndex: index},
			Apply:   func(doc *models.Documentation) { doc.OrderIndex = index },
		})
		if err != nil {
			d.logger.Warn("reorder stopped", zap.String("id", id), zap.Int("position", index), zap.Error(err))
			return err
		}
	}
	return nil
}

func (d *Docs) Delete(ctx context.Context, id string) (Source, error) {
	return d.repo.Delete(ctx, id)
}

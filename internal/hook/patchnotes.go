package hook

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/remote"
	"go.uber.org/zap"
)

const (
	tablePatchNotes = "patch_notes"
	columnStatus    = "status"
)

// PatchNotePatch is a partial PatchNote update; nil fields are left unchanged.
type PatchNotePatch struct {
	Version *string
	Title   *string
	Content *string
}

// PatchNotes manages release notes.
type PatchNotes struct {
	*core
	repo          *Repository[models.PatchNote, *models.PatchNote]
	users         *Users
	notifications *Notifications
}

func newPatchNotes(shared *core, users *Users, notifications *Notifications) *PatchNotes {
	return &PatchNotes{
		core: shared,
		repo: newRepository[models.PatchNote, *models.PatchNote](shared, repositoryConfig[models.PatchNote]{
			table: tablePatchNotes,
			touch: columnUpdatedAt,
			order: "created_at DESC",
			sortCached: func(items []models.PatchNote) {
				sort.SliceStable(items, func(i, j int) bool {
					if items[i].Version != items[j].Version {
						return newerFirst(items[i].Version, items[j].Version)
					}
					return items[i].CreatedAt.After(items[j].CreatedAt)
				})
			},
		}),
		users:         users,
		notifications: notifications,
	}
}

func (p *PatchNotes) Repository() *Repository[models.PatchNote, *models.PatchNote] {
	return p.repo
}

// List returns every note, or only published ones, newest version first.
func (p *PatchNotes) List(ctx context.Context, publishedOnly bool) ([]models.PatchNote, Source) {
	selection := Selection[models.PatchNote]{}
	if publishedOnly {
		selection.Query.Filters = []remote.Filter{remote.Eq(columnStatus, string(models.StatusPublished))}
		selection.Match = func(note *models.PatchNote) bool { return note.Status == models.StatusPublished }
	}
	notes, source := p.repo.List(ctx, selection)
	sort.SliceStable(notes, func(i, j int) bool {
		return newerFirst(notes[i].Version, notes[j].Version)
	})
	return notes, source
}

func (p *PatchNotes) Get(ctx context.Context, id string) (models.PatchNote, Source, bool) {
	return p.repo.Get(ctx, id)
}

// Create stores a draft note.
func (p *PatchNotes) Create(ctx context.Context, note models.PatchNote) (models.PatchNote, Source, error) {
	const operation = "hook.patch_notes.create"
	note.Title = strings.TrimSpace(note.Title)
	if note.Title == "" {
		return note, SourceRemote, p.fail(operation, "missing_title", "A title is required.", ErrInvalidInput)
	}
	version, err := ParseVersion(note.Version)
	if err != nil {
		return note, SourceRemote, p.fail(operation, "invalid_version", "The version must look like 1.2.3.", err)
	}
	note.Version = version.Original()
	note.Status = models.StatusDraft
	return p.repo.Create(ctx, note)
}

func (p *PatchNotes) Update(ctx context.Context, id string, patch PatchNotePatch) (models.PatchNote, Source, error) {
	const operation = "hook.patch_notes.update"
	columns := make(map[string]any)
	var apply []func(note *models.PatchNote)
	if patch.Version != nil {
		version, err := ParseVersion(*patch.Version)
		if err != nil {
			return models.PatchNote{}, SourceRemote, p.fail(operation, "invalid_version", "The version must look like 1.2.3.", err)
		}
		value := version.Original()
		columns["version"] = value
		apply = append(apply, func(note *models.PatchNote) { note.Version = value })
	}
	if patch.Title != nil {
		value := strings.TrimSpace(*patch.Title)
		if value == "" {
			return models.PatchNote{}, SourceRemote, p.fail(operation, "missing_title", "A title is required.", ErrInvalidInput)
		}
		columns["title"] = value
		apply = append(apply, func(note *models.PatchNote) { note.Title = value })
	}
	if patch.Content != nil {
		value := *patch.Content
		columns["content"] = value
		apply = append(apply, func(note *models.PatchNote) { note.Content = value })
	}
	return p.repo.Update(ctx, id, Change[models.PatchNote]{
		Columns: columns,
		Apply: func(note *models.PatchNote) {
			for _, fn := range apply {
				fn(note)
			}
		},
	})
}

// Publish moves a draft to published and notifies every other user. Publishing an already
// published note changes nothing and sends nothing.
func (p *PatchNotes) Publish(ctx context.Context, id string) (models.PatchNote, Source, error) {
	const operation = "hook.patch_notes.publish"
	note, source, ok := p.repo.Get(ctx, id)
	if !ok {
		return note, source, p.fail(operation, "not_found", "Patch note not found.", ErrNotFound, zap.String("id", id))
	}
	if note.Status == models.StatusPublished {
		return note, source, nil
	}
	published, source, err := p.repo.Update(ctx, id, Change[models.PatchNote]{
		Columns: map[string]any{columnStatus: string(models.StatusPublished)},
		Apply:   func(note *models.PatchNote) { note.Status = models.StatusPublished },
	})
	if err != nil {
		return published, source, err
	}
	if published.ID == "" {
		note.Status = models.StatusPublished
		published = note
	}

	users := p.users.Known(ctx)
	delivered := p.notifications.FanOut(ctx, recipients(users, "", published.AuthorID), models.Notification{
		Type:    models.NotificationPatchNote,
		Title:   fmt.Sprintf("Patch %s released", published.Version),
		Message: published.Title,
		Link:    "/patch-notes/" + published.ID,
	})
	p.logger.Info("patch note published",
		zap.String("id", published.ID),
		zap.String("version", published.Version),
		zap.Int("notified", delivered))
	return published, source, nil
}

func (p *PatchNotes) Delete(ctx context.Context, id string) (Source, error) {
	return p.repo.Delete(ctx, id)
}

package hook

import (
	"context"
	"testing"

	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
)

func TestFilesGradeFilterAndLatestVersions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.mustCreateUser(t, "Admin", models.GradeAdmin)
	guest := f.mustCreateUser(t, "Guest", models.GradeGuest)
	v5 := f.mustCreateUser(t, "Veteran", models.GradeV5)

	seed := []models.ServerFile{
		{Name: "client", Version: "1.2.0", MinGrade: models.GradeGuest, CreatedBy: admin.ID},
		{Name: "client", Version: "1.10.0", MinGrade: models.GradeGuest, CreatedBy: admin.ID},
		{Name: "client", Version: "2.0.0", MinGrade: models.GradeGuest, Status: models.FileStatusDeprecated, CreatedBy: admin.ID},
		{Name: "server", Version: "5.0.1", MinGrade: models.GradeV5, Status: models.FileStatusBeta, CreatedBy: admin.ID},
	}
	for _, file := range seed {
		if _, _, err := f.hook.Files.Create(ctx, file); err != nil {
			t.Fatalf("create %s %s failed: %v", file.Name, file.Version, err)
		}
	}

	guestFiles, _ := f.hook.Files.ListAccessible(ctx, models.GradeGuest)
	if len(guestFiles) != 3 {
		t.Fatalf("expected 3 files for guests, got %d", len(guestFiles))
	}
	latest, _ := f.hook.Files.LatestVersions(ctx, models.GradeV5)
	if len(latest) != 2 || latest[0].Name != "client" || latest[0].Version != "1.10.0" || latest[1].Name != "server" {
		t.Fatalf("unexpected latest versions %+v", latest)
	}

	if got := len(f.hook.Notifications.List(ctx, guest.ID)); got != 2 {
		t.Fatalf("expected guest notified of the two active guest files, got %d", got)
	}
	if got := len(f.hook.Notifications.List(ctx, v5.ID)); got != 2 {
		t.Fatalf("expected v5 user notified of the two active files, got %d", got)
	}
	if got := len(f.hook.Notifications.List(ctx, admin.ID)); got != 0 {
		t.Fatalf("expected the uploader skipped, got %d", got)
	}
}

func TestFileValidationAndPatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, _, err := f.hook.Files.Create(ctx, models.ServerFile{Name: "tool", Version: "latest"}); err == nil {
		t.Fatalf("expected invalid version to fail")
	}
	if _, _, err := f.hook.Files.Create(ctx, models.ServerFile{Name: "tool", Version: "1.0", FileType: "binary"}); err == nil {
		t.Fatalf("expected invalid file type to fail")
	}
	file, _, err := f.hook.Files.Create(ctx, models.ServerFile{Name: "tool", Version: "1.0", FileType: models.FileTypeTool})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if file.Status != models.FileStatusActive || file.MinGrade != models.GradeGuest {
		t.Fatalf("expected defaults, got %+v", file)
	}

	status := models.FileStatusDeprecated
	grade := models.GradeV4
	updated, source, err := f.hook.Files.Update(ctx, file.ID, FilePatch{
		Status:    &status,
		MinGrade:  &grade,
		Changelog: []string{"fixed crash", "faster load"},
	})
	if err != nil || source != SourceRemote {
		t.Fatalf("update failed: %s %v", source, err)
	}
	if updated.Status != status || updated.MinGrade != grade || len(updated.Changelog) != 2 {
		t.Fatalf("unexpected update result %+v", updated)
	}
	bad := "nope"
	if _, _, err := f.hook.Files.Update(ctx, file.ID, FilePatch{Version: &bad}); err == nil {
		t.Fatalf("expected invalid version patch to fail")
	}
	if _, _, err := f.hook.Files.Update(ctx, file.ID, FilePatch{}); err == nil {
		t.Fatalf("expected empty patch to fail")
	}
}

func TestDocsOrderingSlugAndReorder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	titles := []string{"Getting Started!", "Server Setup", "FAQ & Troubleshooting"}
	ids := make([]string, 0, len(titles))
	for _, title := range titles {
		doc, _, err := f.hook.Docs.Create(ctx, models.Documentation{
			Title:       title,
			Category:    "guides",
			VersionType: models.DocVersionV5,
			Status:      models.StatusPublished,
		})
		if err != nil {
			t.Fatalf("create %q failed: %v", title, err)
		}
		ids = append(ids, doc.ID)
	}

	docs, _ := f.hook.Docs.List(ctx, DocFilter{VersionType: models.DocVersionV5, Category: "guides"})
	if len(docs) != 3 {
		t.Fatalf("expected 3 docs, got %d", len(docs))
	}
	for i, doc := range docs {
		if doc.OrderIndex != i+1 {
			t.Fatalf("expected order_index %d, got %d for %q", i+1, doc.OrderIndex, doc.Title)
		}
	}
	found, _, ok := f.hook.Docs.GetBySlug(ctx, "faq-troubleshooting")
	if !ok || found.Title != "FAQ & Troubleshooting" {
		t.Fatalf("expected slug lookup to work, got %v %+v", ok, found)
	}

	reversed := []string{ids[2], ids[1], ids[0]}
	if err := f.hook.Docs.Reorder(ctx, reversed); err != nil {
		t.Fatalf("reorder failed: %v", err)
	}
	docs, _ = f.hook.Docs.List(ctx, DocFilter{VersionType: models.DocVersionV5})
	for i, doc := range docs {
		if doc.ID != reversed[i] {
			t.Fatalf("position %d: expected %s, got %s", i, reversed[i], doc.ID)
		}
	}
	if err := f.hook.Docs.Reorder(ctx, []string{"missing"}); err == nil {
		t.Fatalf("expected reorder of an unknown page to fail")
	}
}

func TestSlugify(t *testing.T) {
	for input, want := range map[string]string{
		"Getting Started!":        "getting-started",
		"  FAQ & Troubleshooting": "faq-troubleshooting",
		"v5 -- Setup":             "v5-setup",
		"!!!":                     "",
	} {
		if got := Slugify(input); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestBugCommentsAppendByReplacingList(t *testing.T) {
	for _, offline := range []bool{false, true} {
		name := "remote"
		if offline {
			name = "local"
		}
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			reporter := f.mustCreateUser(t, "Reporter", models.GradeV4)
			f.remote.SetOffline(offline)

			report, _, err := f.hook.Bugs.Create(ctx, models.BugReport{
				Title:       "Crash on login",
				ReporterID:  reporter.ID,
				Steps:       []string{"open client", "log in"},
				Environment: map[string]any{"os": "linux"},
			})
			if err != nil {
				t.Fatalf("create failed: %v", err)
			}
			if report.Status != models.BugStatusOpen || report.Severity != models.SeverityMedium {
				t.Fatalf("expected defaults, got %+v", report)
			}

			if _, _, err := f.hook.Bugs.AddComment(ctx, report.ID, "support", "Reproduced."); err != nil {
				t.Fatalf("first comment failed: %v", err)
			}
			commented, _, err := f.hook.Bugs.AddComment(ctx, report.ID, "dev", "Fixed in 1.2.")
			if err != nil {
				t.Fatalf("second comment failed: %v", err)
			}
			if len(commented.Comments) != 2 || commented.Comments[0].Content != "Reproduced." || commented.Comments[1].Author != "dev" {
				t.Fatalf("unexpected comments %+v", commented.Comments)
			}

			resolved, _, err := f.hook.Bugs.UpdateStatus(ctx, report.ID, models.BugStatusResolved)
			if err != nil || resolved.Status != models.BugStatusResolved {
				t.Fatalf("status update failed: %+v %v", resolved, err)
			}
			if _, _, err := f.hook.Bugs.UpdateStatus(ctx, report.ID, "wontfix"); err == nil {
				t.Fatalf("expected invalid status to fail")
			}
			open, _ := f.hook.Bugs.List(ctx, BugFilter{Status: models.BugStatusOpen})
			if len(open) != 0 {
				t.Fatalf("expected no open reports, got %d", len(open))
			}
		})
	}
}

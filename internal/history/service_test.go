package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/heimdex/heimdex-slicer/internal/db"
)

func setupTestDB(t *testing.T) (*db.DB, Repository) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	repo := NewRepository(database.Conn())
	return database, repo
}

func TestService_StartAndComplete(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil)
	ctx := context.Background()

	e, err := svc.Start(ctx, "holiday.mp4", "mp4", 2)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if e.ID == "" {
		t.Fatal("export ID is empty")
	}

	svc.Progress(ctx, e.ID, 1)
	got, err := svc.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusRunning || got.Done != 1 || got.Progress() != 50 {
		t.Errorf("running export = %+v", got)
	}

	svc.Finish(ctx, e.ID, 2048, "/tmp/video_slices_export.zip", nil)
	got, err = svc.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.Done != 2 || got.ArchiveBytes != 2048 {
		t.Errorf("done = %d, archive_bytes = %d", got.Done, got.ArchiveBytes)
	}
	if got.OutputPath != "/tmp/video_slices_export.zip" {
		t.Errorf("output_path = %q", got.OutputPath)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not parsed")
	}
}

func TestService_FinishWithError(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil)
	ctx, cancel := context.WithCancel(context.Background())

	e, err := svc.Start(ctx, "clip.webm", "webm", 3)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	cancel()
	svc.Finish(ctx, e.ID, 0, "", errors.New("slice 2 failed: exit status 1"))

	got, err := svc.Get(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.Error != "slice 2 failed: exit status 1" {
		t.Errorf("error = %q", got.Error)
	}
}

func TestService_GetMissing(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	got, err := NewService(repo, nil).Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("Get(missing) = %+v, want nil", got)
	}
}

func TestService_ListNewestFirst(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		e, err := svc.Start(ctx, "a.mp4", "mp4", 1)
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		ids = append(ids, e.ID)
	}

	list, err := svc.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
	if list[0].ID != ids[2] || list[1].ID != ids[1] {
		t.Errorf("list order = [%s %s], want [%s %s]", list[0].ID, list[1].ID, ids[2], ids[1])
	}
}

func TestTracker_NothingRecordedUntilStart(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil)
	ctx := context.Background()

	refused := svc.Track(ctx, "a.mp4", "mp4")
	if id := refused.Finish(0, "", errors.New("an export is already running")); id != "" {
		t.Fatalf("Finish() id = %q, want none for a refused export", id)
	}
	list, err := svc.List(ctx, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("refused export left %d records", len(list))
	}

	tr := svc.Track(ctx, "a.mp4", "mp4")
	tr.Progress(0, 2)
	tr.Progress(1, 2)
	id := tr.ID()
	if id == "" {
		t.Fatal("started export has no record")
	}
	got, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusRunning || got.SliceCount != 2 || got.Done != 1 {
		t.Errorf("running export = %+v", got)
	}

	if fin := tr.Finish(10, "/out.zip", nil); fin != id {
		t.Errorf("Finish() id = %q, want %q", fin, id)
	}
	got, _ = svc.Get(ctx, id)
	if got.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
}

func TestTracker_Nil(t *testing.T) {
	var svc *Service
	tr := svc.Track(context.Background(), "a.mp4", "mp4")
	tr.Progress(0, 1)
	if id := tr.Finish(0, "", nil); id != "" {
		t.Errorf("nil tracker id = %q", id)
	}
}

func TestRepository_Config(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	ctx := context.Background()
	v, err := repo.GetConfig(ctx, "auth_token")
	if err != nil || v != "" {
		t.Fatalf("GetConfig(missing) = %q, %v", v, err)
	}

	if err := repo.SetConfig(ctx, "auth_token", "one"); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	if err := repo.SetConfig(ctx, "auth_token", "two"); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	v, err = repo.GetConfig(ctx, "auth_token")
	if err != nil || v != "two" {
		t.Fatalf("GetConfig = %q, %v, want two", v, err)
	}
}

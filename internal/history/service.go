package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Service tracks the lifecycle of exports in the repository. Recording
// failures are logged and never fail the export itself.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Start records a running export.
func (s *Service) Start(ctx context.Context, sourceName, container string, sliceCount int) (*Export, error) {
	now := time.Now().UTC()
	e := &Export{
		ID:         NewID(),
		Status:     StatusRunning,
		SourceName: sourceName,
		Container:  container,
		SliceCount: sliceCount,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateExport(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to record export: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("export recorded", "export_id", e.ID, "slices", sliceCount)
	}
	return e, nil
}

func (s *Service) Progress(ctx context.Context, id string, done int) {
	if err := s.repo.UpdateExportProgress(context.WithoutCancel(ctx), id, done); err != nil && s.logger != nil {
		s.logger.Warn("failed to update export progress", "export_id", id, "error", err)
	}
}

// Finish marks the export completed, or failed with runErr's message.
func (s *Service) Finish(ctx context.Context, id string, archiveBytes int64, outputPath string, runErr error) {
	// The export may have ended because ctx was cancelled.
	ctx = context.WithoutCancel(ctx)

	var err error
	if runErr != nil {
		err = s.repo.UpdateExportStatus(ctx, id, StatusFailed, runErr.Error())
	} else {
		err = s.repo.CompleteExport(ctx, id, archiveBytes, outputPath)
	}
	if err != nil && s.logger != nil {
		s.logger.Warn("failed to finish export record", "export_id", id, "error", err)
	}
}

func (s *Service) Get(ctx context.Context, id string) (*Export, error) {
	return s.repo.GetExport(ctx, id)
}

func (s *Service) List(ctx context.Context, limit int) ([]*Export, error) {
	return s.repo.ListExports(ctx, limit)
}

// Tracker records one export lazily. Nothing is written until the export
// reports its start (done == 0), so an export refused before it begins
// leaves no record. A nil *Tracker records nothing.
type Tracker struct {
	svc        *Service
	ctx        context.Context
	sourceName string
	container  string

	mu  sync.Mutex
	rec *Export
}

// Track prepares a Tracker for an export of sourceName.
func (s *Service) Track(ctx context.Context, sourceName, container string) *Tracker {
	if s == nil {
		return nil
	}
	return &Tracker{svc: s, ctx: ctx, sourceName: sourceName, container: container}
}

// Progress has the shape of export.ProgressFunc.
func (t *Tracker) Progress(done, total int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rec == nil {
		rec, err := t.svc.Start(t.ctx, t.sourceName, t.container, total)
		if err != nil {
			if t.svc.logger != nil {
				t.svc.logger.Warn("failed to record export", "error", err)
			}
			return
		}
		t.rec = rec
	}
	if done > 0 {
		t.svc.Progress(t.ctx, t.rec.ID, done)
	}
}

// ID is the recorded export id, or "" when nothing was recorded.
func (t *Tracker) ID() string {
	if t == nil {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rec == nil {
		return ""
	}
	return t.rec.ID
}

// Finish closes the record, if one was started, and returns its id.
func (t *Tracker) Finish(archiveBytes int64, outputPath string, runErr error) string {
	id := t.ID()
	if id != "" {
		t.svc.Finish(t.ctx, id, archiveBytes, outputPath, runErr)
	}
	return id
}

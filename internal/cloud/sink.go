package cloud

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Uploader stores one archive. *Client satisfies it.
type Uploader interface {
	UploadArchive(ctx context.Context, data []byte, filename string) (*UploadResult, error)
}

// Sink delivers export archives to the workspace, retrying transient
// failures with exponential backoff.
type Sink struct {
	uploader Uploader
	attempts int
	backoff  time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	last *UploadResult
}

func NewSink(uploader Uploader, attempts int, backoff time.Duration, logger *slog.Logger) *Sink {
	if attempts < 1 {
		attempts = 1
	}
	return &Sink{uploader: uploader, attempts: attempts, backoff: backoff, logger: logger}
}

func (s *Sink) Deliver(ctx context.Context, data []byte, filename string) error {
	wait := s.backoff
	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		var res *UploadResult
		res, err = s.uploader.UploadArchive(ctx, data, filename)
		if err == nil {
			s.mu.Lock()
			s.last = res
			s.mu.Unlock()
			return nil
		}
		if !retryable(err) || attempt == s.attempts {
			break
		}

		if s.logger != nil {
			s.logger.Warn("archive upload failed, retrying", "attempt", attempt, "error", err, "wait", wait)
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		wait *= 2
	}
	return err
}

// Last returns the result of the most recent successful upload.
func (s *Sink) Last() *UploadResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ue *UploadError
	if errors.As(err, &ue) {
		return ue.IsRetryable()
	}
	// Transport errors.
	return true
}

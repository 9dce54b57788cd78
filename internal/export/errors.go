package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/heimdex/heimdex-slicer/internal/slicing"
)

// Preconditions, checked before any work starts.
var (
	ErrEmptySliceSet  = errors.New("no slices to export")
	ErrEngineNotReady = errors.New("transcoding engine is not initialized")
	ErrNoSourceAsset  = errors.New("no source video loaded")
)

// ExtractionError reports the slice whose extraction aborted an export.
type ExtractionError struct {
	Index int // 1-based sequence index
	Slice slicing.Slice
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("slice %d (%s) failed: %v", e.Index, e.Slice, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ArchiveError means packing failed after every extraction succeeded.
type ArchiveError struct {
	Err error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("failed to build archive: %v", e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// DeliveryError means the sink refused a complete archive.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver archive: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsPrecondition reports whether err was raised before any work started.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrEmptySliceSet) || errors.Is(err, ErrEngineNotReady) || errors.Is(err, ErrNoSourceAsset)
}

// UserMessage turns an export or slicing error into the sentence shown to
// the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptySliceSet):
		return "There are no slices to export! Create some slices first then export them."
	case errors.Is(err, ErrEngineNotReady):
		return "FFmpeg is not initialized. Please restart and try again."
	case errors.Is(err, ErrNoSourceAsset):
		return "No video source found. Please upload a video first."
	case errors.Is(err, slicing.ErrOverlap):
		return "Slices cannot have overlaps with each other"
	case errors.Is(err, slicing.ErrTooShort):
		return "Slices must be at least 2 seconds apart"
	case errors.Is(err, context.Canceled):
		return "Export cancelled."
	default:
		return "Error splitting video: " + err.Error()
	}
}

// SuccessMessage is the confirmation shown after n slices were exported.
func SuccessMessage(n int) string {
	plural := ""
	if n > 1 {
		plural = "s"
	}
	return fmt.Sprintf("Successfully exported %d slice%s in a zip file!", n, plural)
}

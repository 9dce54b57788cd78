package api

import (
	"time"

	"github.com/heimdex/heimdex-slicer/internal/history"
	"github.com/heimdex/heimdex-slicer/internal/media"
	"github.com/heimdex/heimdex-slicer/internal/timeline"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State         string               `json:"state"`
	LastError     string               `json:"last_error,omitempty"`
	SliceCount    int                  `json:"slice_count"`
	Asset         *timeline.AssetInfo  `json:"asset,omitempty"`
	MemoryWarning *media.MemoryWarning `json:"memory_warning,omitempty"`
	Engine        EngineStatusResponse `json:"engine"`
}

type EngineStatusResponse struct {
	Ready    bool  `json:"ready"`
	Workers  int   `json:"workers"`
	Waiting  int64 `json:"waiting"`
	InFlight int64 `json:"in_flight"`
}

type LoadAssetRequest struct {
	Path string `json:"path"`
}

type AssetResponse struct {
	Asset         *timeline.AssetInfo `json:"asset"`
	MemoryWarning media.MemoryWarning `json:"memory_warning"`
}

type TimeRequest struct {
	Time *float64 `json:"time"`
}

type BeginResponse struct {
	Started  bool              `json:"started"`
	Timeline timeline.Snapshot `json:"timeline"`
}

type CommitResponse struct {
	Slice   SliceResponse `json:"slice"`
	Message string        `json:"message"`
}

type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

type SliceResponse struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
	Label    string  `json:"label"`
}

type SlicesResponse struct {
	Slices []timeline.SliceView `json:"slices"`
}

type SaveExportResponse struct {
	ExportID     string `json:"export_id"`
	Path         string `json:"path"`
	SliceCount   int    `json:"slice_count"`
	ArchiveBytes int    `json:"archive_bytes"`
	Message      string `json:"message"`
}

type UploadExportResponse struct {
	ExportID     string `json:"export_id"`
	ArchiveID    string `json:"archive_id"`
	URL          string `json:"url"`
	SliceCount   int    `json:"slice_count"`
	ArchiveBytes int    `json:"archive_bytes"`
	Message      string `json:"message"`
}

type ExportResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	SourceName   string `json:"source_name"`
	Container    string `json:"container"`
	SliceCount   int    `json:"slice_count"`
	Progress     int    `json:"progress"`
	ArchiveBytes int64  `json:"archive_bytes"`
	OutputPath   string `json:"output_path,omitempty"`
	Error        string `json:"error,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type ExportsResponse struct {
	Exports []ExportResponse `json:"exports"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func ExportToResponse(e *history.Export) ExportResponse {
	return ExportResponse{
		ID:           e.ID,
		Status:       e.Status,
		SourceName:   e.SourceName,
		Container:    e.Container,
		SliceCount:   e.SliceCount,
		Progress:     e.Progress(),
		ArchiveBytes: e.ArchiveBytes,
		OutputPath:   e.OutputPath,
		Error:        e.Error,
		CreatedAt:    e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    e.UpdatedAt.Format(time.RFC3339),
	}
}

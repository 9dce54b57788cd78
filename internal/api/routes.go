package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-slicer/internal/engine"
	"github.com/heimdex/heimdex-slicer/internal/export"
	"github.com/heimdex/heimdex-slicer/internal/history"
	"github.com/heimdex/heimdex-slicer/internal/media"
	"github.com/heimdex/heimdex-slicer/internal/playback"
	"github.com/heimdex/heimdex-slicer/internal/slicing"
	"github.com/heimdex/heimdex-slicer/internal/timeline"
)

// SliceCreatedMessage confirms a successful commit.
const SliceCreatedMessage = "Successfully created the slice!"

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Post("/asset", loadAssetHandler(cfg))
		r.Delete("/asset", unloadAssetHandler(cfg))
		r.With(LoopbackGuard()).Get("/asset/stream", streamAssetHandler(cfg))
		r.With(LoopbackGuard()).Head("/asset/stream", streamAssetHandler(cfg))

		r.Get("/timeline", timelineHandler(cfg))
		r.Post("/session/begin", beginHandler(cfg))
		r.Post("/session/commit", commitHandler(cfg))
		r.Post("/session/cancel", cancelHandler(cfg))

		r.Get("/slices", listSlicesHandler(cfg))
		r.Get("/slices/at", querySliceHandler(cfg))
		r.Delete("/slices/at", deleteSliceHandler(cfg))
		r.Get("/slices/edl", edlHandler(cfg))

		r.Post("/export", exportDownloadHandler(cfg))
		r.Post("/export/save", exportSaveHandler(cfg))
		r.Post("/export/upload", exportUploadHandler(cfg))
		r.Get("/exports", listExportsHandler(cfg))
		r.Get("/exports/{id}", getExportHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		version := cfg.Version
		if version == "" {
			version = "dev"
		}
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := cfg.Timeline.Snapshot()

		state := "no_asset"
		switch {
		case snap.Exporting:
			state = "exporting"
		case snap.Asset == nil:
		case snap.State == timeline.StateSlicing:
			state = "slicing"
		default:
			state = "idle"
		}

		resp := StatusResponse{
			State:      state,
			SliceCount: len(snap.Slices),
			Asset:      snap.Asset,
		}
		if snap.Asset != nil {
			mw := media.NewMemoryWarning(snap.Asset.Size)
			resp.MemoryWarning = &mw
		}

		if cfg.Engine != nil {
			waiting, inFlight := cfg.Engine.Stats()
			resp.Engine = EngineStatusResponse{
				Ready:    cfg.Engine.Ready(),
				Workers:  cfg.Engine.Workers(),
				Waiting:  waiting,
				InFlight: inFlight,
			}
		}

		if cfg.History != nil {
			recent, err := cfg.History.List(r.Context(), 1)
			if err == nil && len(recent) > 0 && recent[0].Status == history.StatusFailed {
				resp.LastError = recent[0].Error
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func loadAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoadAssetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}
		if cfg.Prober == nil {
			WriteError(w, http.StatusServiceUnavailable, export.UserMessage(export.ErrEngineNotReady), "ENGINE_NOT_READY")
			return
		}

		asset, err := media.Load(r.Context(), req.Path, cfg.Prober)
		if err != nil {
			if errors.Is(err, media.ErrNotVideo) {
				WriteError(w, http.StatusUnsupportedMediaType, "Please select a video file.", "NOT_VIDEO")
				return
			}
			if errors.Is(err, engine.ErrNotReady) {
				writeDomainError(w, export.ErrEngineNotReady)
				return
			}
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		if err := cfg.Timeline.Load(asset); err != nil {
			writeDomainError(w, err)
			return
		}

		if cfg.Watcher != nil {
			if err := cfg.Watcher.Watch(asset.Path); err != nil {
				cfg.Logger.Warn("failed to watch source file", "error", err)
			}
		}

		WriteJSON(w, http.StatusCreated, AssetResponse{
			Asset:         cfg.Timeline.Snapshot().Asset,
			MemoryWarning: media.NewMemoryWarning(asset.Size),
		})
	}
}

func unloadAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Timeline.Unload(); err != nil {
			writeDomainError(w, err)
			return
		}
		if cfg.Watcher != nil {
			cfg.Watcher.Clear()
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func streamAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset := cfg.Timeline.Asset()
		if asset == nil {
			WriteError(w, http.StatusNotFound, export.UserMessage(export.ErrNoSourceAsset), "NO_SOURCE_ASSET")
			return
		}

		err := cfg.PlaybackServer.ServeAsset(w, r, playback.Asset{
			Path:     asset.Path,
			MIMEType: asset.MIMEType,
			ModTime:  asset.ModTime,
		})
		if err != nil {
			cfg.Logger.Error("playback error", "error", err, "name", asset.Name)
		}
	}
}

func timelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Timeline.Snapshot())
	}
}

func beginHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := decodeTime(w, r)
		if !ok {
			return
		}

		started, err := cfg.Timeline.Begin(t)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, BeginResponse{Started: started, Timeline: cfg.Timeline.Snapshot()})
	}
}

func commitHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := decodeTime(w, r)
		if !ok {
			return
		}

		s, err := cfg.Timeline.Commit(t)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, CommitResponse{Slice: sliceToResponse(s), Message: SliceCreatedMessage})
	}
}

func cancelHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cancelled, err := cfg.Timeline.Cancel()
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, CancelResponse{Cancelled: cancelled})
	}
}

func listSlicesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, SlicesResponse{Slices: timeline.Views(cfg.Timeline.Slices())})
	}
}

func querySliceHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := queryTime(w, r)
		if !ok {
			return
		}
		s, found := cfg.Timeline.Query(t)
		if !found {
			WriteError(w, http.StatusNotFound, "no slice at this time", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, sliceToResponse(s))
	}
}

func deleteSliceHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := queryTime(w, r)
		if !ok {
			return
		}
		s, found, err := cfg.Timeline.Delete(t)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if !found {
			WriteError(w, http.StatusNotFound, "no slice at this time", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, sliceToResponse(s))
	}
}

func decodeTime(w http.ResponseWriter, r *http.Request) (float64, bool) {
	var req TimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return 0, false
	}
	if req.Time == nil {
		WriteError(w, http.StatusBadRequest, "time is required", "BAD_REQUEST")
		return 0, false
	}
	return *req.Time, true
}

func queryTime(w http.ResponseWriter, r *http.Request) (float64, bool) {
	raw := r.URL.Query().Get("t")
	if raw == "" {
		WriteError(w, http.StatusBadRequest, "t is required", "BAD_REQUEST")
		return 0, false
	}
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "t must be a number of seconds", "BAD_REQUEST")
		return 0, false
	}
	return t, true
}

func sliceToResponse(s slicing.Slice) SliceResponse {
	return SliceResponse{Start: s.Start, End: s.End, Duration: s.Duration(), Label: s.String()}
}

// writeDomainError maps slicing, timeline and export errors to responses
// carrying the user-facing sentence.
func writeDomainError(w http.ResponseWriter, err error) {
	var extErr *export.ExtractionError
	var archErr *export.ArchiveError
	var delErr *export.DeliveryError

	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	switch {
	case errors.Is(err, export.ErrEmptySliceSet):
		status, code = http.StatusBadRequest, "EMPTY_SLICE_SET"
	case errors.Is(err, export.ErrEngineNotReady):
		status, code = http.StatusServiceUnavailable, "ENGINE_NOT_READY"
	case errors.Is(err, export.ErrNoSourceAsset):
		status, code = http.StatusConflict, "NO_SOURCE_ASSET"
	case errors.Is(err, timeline.ErrExportInProgress):
		status, code = http.StatusConflict, "EXPORT_IN_PROGRESS"
	case errors.Is(err, timeline.ErrOutOfRange):
		status, code = http.StatusBadRequest, "OUT_OF_RANGE"
	case errors.Is(err, slicing.ErrTooShort):
		status, code = http.StatusUnprocessableEntity, "SLICE_TOO_SHORT"
	case errors.Is(err, slicing.ErrOverlap):
		status, code = http.StatusUnprocessableEntity, "SLICE_OVERLAP"
	case errors.Is(err, slicing.ErrNotSlicing):
		status, code = http.StatusConflict, "NOT_SLICING"
	case errors.As(err, &extErr):
		code = "EXTRACTION_FAILED"
	case errors.As(err, &archErr):
		code = "ARCHIVE_FAILED"
	case errors.As(err, &delErr):
		code = "DELIVERY_FAILED"
	}

	msg := export.UserMessage(err)
	if errors.Is(err, timeline.ErrExportInProgress) || errors.Is(err, timeline.ErrOutOfRange) || errors.Is(err, slicing.ErrNotSlicing) {
		msg = err.Error()
	}
	WriteError(w, status, msg, code)
}

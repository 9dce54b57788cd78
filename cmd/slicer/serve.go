package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/heimdex/heimdex-slicer/internal/api"
	"github.com/heimdex/heimdex-slicer/internal/archive"
	"github.com/heimdex/heimdex-slicer/internal/cloud"
	"github.com/heimdex/heimdex-slicer/internal/config"
	"github.com/heimdex/heimdex-slicer/internal/db"
	"github.com/heimdex/heimdex-slicer/internal/engine"
	"github.com/heimdex/heimdex-slicer/internal/export"
	"github.com/heimdex/heimdex-slicer/internal/history"
	"github.com/heimdex/heimdex-slicer/internal/logging"
	"github.com/heimdex/heimdex-slicer/internal/playback"
	"github.com/heimdex/heimdex-slicer/internal/timeline"
	"github.com/heimdex/heimdex-slicer/internal/ui"
	"github.com/heimdex/heimdex-slicer/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local slicing agent (HTTP API and tray icon)",
	RunE: func(cmd *cobra.Command, args []string) error {
		headless, _ := cmd.Flags().GetBool("headless")
		return runServe(cmd.Context(), headless || cfg.Headless())
	},
}

func init() {
	serveCmd.Flags().Bool("headless", false, "do not show the tray icon")
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context, headless bool) error {
	if parent == nil {
		parent = context.Background()
	}
	startTime := time.Now()

	for _, dir := range []string{cfg.DataDir(), cfg.WorkDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger.Info("starting heimdex slicer", "version", config.Version, "data_dir", logging.SanitizePath(cfg.DataDir()))

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := history.NewRepository(database.Conn())

	deviceID, err := ensureSecret(repo, "device_id", 16)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}
	authToken, err := ensureSecret(repo, "auth_token", 32)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	printBanner(cfg.Port(), authToken, deviceID)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	ffmpeg := engine.NewFFmpeg(engine.Config{
		FFmpegPath:     cfg.FFmpegPath(),
		FFprobePath:    cfg.FFprobePath(),
		WorkDir:        cfg.WorkDir(),
		ExtractTimeout: cfg.ExtractTimeout(),
		Logger:         logging.WithComponent(logger, "engine"),
	})
	initCtx, initCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := ffmpeg.Init(initCtx); err != nil {
		// Slicing still works; export reports the engine as not ready.
		logger.Warn("ffmpeg unavailable, export disabled", "error", err)
	} else {
		logger.Info("ffmpeg ready", "version", ffmpeg.Version())
	}
	initCancel()

	queue := engine.NewQueue(ffmpeg, cfg.EngineWorkers(), logger)
	orchestrator := export.New(export.Config{
		Engine:    queue,
		Archiver:  archive.NewZipBuilder(),
		Precision: cfg.SeekPrecision(),
		Logger:    logging.WithComponent(logger, "export"),
	})
	historySvc := history.NewService(repo, logger)
	tl := timeline.New(logging.WithComponent(logger, "timeline"))

	fw, err := watcher.New(logging.WithComponent(logger, "watcher"), watcher.DefaultDebounce)
	if err != nil {
		return err
	}
	follower := timeline.NewFollower(tl, ffmpeg, fw.Clear, logging.WithComponent(logger, "source"))
	fw.OnChange(func(path string, event watcher.EventType) {
		switch event {
		case watcher.EventDelete:
			follower.Removed(ctx, path)
		case watcher.EventModify:
			follower.Modified(ctx, path)
		}
	})

	var uploader cloud.Uploader
	if cfg.CloudEnabled() {
		uploader = cloud.NewClient(cloud.Config{
			BaseURL:  cfg.CloudURL(),
			Token:    cfg.CloudToken(),
			OrgSlug:  cfg.CloudOrg(),
			DeviceID: deviceID,
			Logger:   logging.WithComponent(logger, "cloud"),
		})
		logger.Info("cloud upload enabled", "base_url", cfg.CloudURL(), "org_slug", cfg.CloudOrg())
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Version:        config.Version,
		Timeline:       tl,
		Exporter:       orchestrator,
		Engine:         queue,
		Prober:         ffmpeg,
		PlaybackServer: playback.NewServer(logger),
		Repository:     repo,
		History:        historySvc,
		Watcher:        fw,
		OutputDir:      cfg.OutputDir(),
		Uploader:       uploader,
		Logger:         logger,
		StartTime:      startTime,
		DeviceID:       deviceID,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(apiServer.Start)
	g.Go(func() error { return fw.Run(gctx) })

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	quitCh := make(chan struct{})
	quit := func() {
		select {
		case <-quitCh:
		default:
			close(quitCh)
		}
	}

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			quit()
		case <-gctx.Done():
			quit()
		case <-quitCh:
		}
	}()

	if headless {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Source: tl,
			Logger: logging.WithComponent(logger, "tray"),
			OnExport: func(ctx context.Context) (string, error) {
				return saveFromTray(ctx, tl, orchestrator, historySvc)
			},
			OnQuit: quit,
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	if err := fw.Stop(); err != nil {
		logger.Warn("failed to stop watcher", "error", err)
	}

	if err := g.Wait(); err != nil {
		logger.Error("agent stopped with error", "error", err)
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func saveFromTray(ctx context.Context, tl *timeline.Timeline, exp timeline.Exporter, historySvc *history.Service) (string, error) {
	sink, err := export.NewDirSink(cfg.OutputDir(), logger)
	if err != nil {
		return "", err
	}

	var tracker *history.Tracker
	if asset := tl.Asset(); asset != nil {
		tracker = historySvc.Track(ctx, asset.Name, asset.ContainerExt())
	}

	res, err := tl.Export(ctx, exp, sink, tracker.Progress)
	var size int64
	if res != nil {
		size = int64(len(res.Archive))
	}
	tracker.Finish(size, sink.LastPath(), err)
	if err != nil {
		if export.IsPrecondition(err) || errors.Is(err, timeline.ErrExportInProgress) {
			logger.Info("tray export refused", "reason", export.UserMessage(err))
		}
		return "", err
	}
	logger.Info(export.SuccessMessage(len(res.Entries)))
	return sink.LastPath(), nil
}

type configStore interface {
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

// ensureSecret returns the stored value for key, generating a random hex
// value of n bytes on first run.
func ensureSecret(store configStore, key string, n int) (string, error) {
	ctx := context.Background()

	existing, err := store.GetConfig(ctx, key)
	if err == nil && existing != "" {
		return existing, nil
	}

	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	value := hex.EncodeToString(b)

	if err := store.SetConfig(ctx, key, value); err != nil {
		return "", err
	}
	return value, nil
}

func printBanner(port int, authToken, deviceID string) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║  %-57s║\n", "HEIMDEX SLICER v"+config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-28d║\n", port)
	fmt.Printf("║  Auth Token: %-45s║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
}

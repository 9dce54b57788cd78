package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-slicer/internal/archive"
	"github.com/heimdex/heimdex-slicer/internal/engine"
	"github.com/heimdex/heimdex-slicer/internal/export"
	"github.com/heimdex/heimdex-slicer/internal/logging"
	"github.com/heimdex/heimdex-slicer/internal/media"
	"github.com/heimdex/heimdex-slicer/internal/slicing"
	"github.com/heimdex/heimdex-slicer/internal/timeline"
)

var splitCmd = &cobra.Command{
	Use:   "split --input FILE --slice START:END [--slice START:END ...]",
	Short: "Cut slices out of a video and save them as a zip archive",
	Example: `  slicer split --input talk.mp4 --slice 0:12.5 --slice 01:02:03.250:01:02:09.000 --out ~/Desktop
  slicer split --input clip.mov --slice 5:9 --precision second`,
	Args: cobra.NoArgs,
	RunE: runSplit,
}

func init() {
	splitCmd.Flags().StringP("input", "i", "", "source video file")
	splitCmd.Flags().StringArrayP("slice", "s", nil, "slice as START:END, each in seconds or HH:MM:SS[.mmm]")
	splitCmd.Flags().StringP("out", "o", "", "directory the archive is written to (defaults to the configured output dir)")
	splitCmd.Flags().String("precision", "", "seek precision passed to ffmpeg: ms or second")
	_ = splitCmd.MarkFlagRequired("input")
	_ = splitCmd.MarkFlagRequired("slice")
	rootCmd.AddCommand(splitCmd)
}

func runSplit(cmd *cobra.Command, args []string) error {
	input, _ := cmd.Flags().GetString("input")
	rawSlices, _ := cmd.Flags().GetStringArray("slice")
	outDir, _ := cmd.Flags().GetString("out")
	precisionFlag, _ := cmd.Flags().GetString("precision")

	if outDir == "" {
		outDir = cfg.OutputDir()
	}
	precision := cfg.SeekPrecision()
	if precisionFlag != "" {
		p, err := slicing.ParsePrecision(precisionFlag)
		if err != nil {
			return err
		}
		precision = p
	}

	spans := make([]slicing.Slice, 0, len(rawSlices))
	for _, arg := range rawSlices {
		s, err := slicing.ParseSpan(arg)
		if err != nil {
			return err
		}
		spans = append(spans, s)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := os.MkdirAll(cfg.WorkDir(), 0755); err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	ffmpeg := engine.NewFFmpeg(engine.Config{
		FFmpegPath:     cfg.FFmpegPath(),
		FFprobePath:    cfg.FFprobePath(),
		WorkDir:        cfg.WorkDir(),
		ExtractTimeout: cfg.ExtractTimeout(),
		Logger:         logging.WithComponent(logger, "engine"),
	})
	if err := ffmpeg.Init(ctx); err != nil {
		logger.Error("ffmpeg unavailable", "error", err)
		return export.ErrEngineNotReady
	}

	asset, err := media.Load(ctx, input, ffmpeg)
	if err != nil {
		return err
	}
	cmd.Printf("%s: %s, %s\n", asset.Name, slicing.FormatTime(asset.Duration()), media.HumanSize(asset.Size))
	cmd.Println(media.NewMemoryWarning(asset.Size).Message)

	tl := timeline.New(logging.WithComponent(logger, "timeline"))
	if err := tl.Load(asset); err != nil {
		return err
	}
	for _, s := range spans {
		if _, err := tl.Add(s); err != nil {
			cmd.PrintErrln(export.UserMessage(err))
			return fmt.Errorf("slice %s: %w", s, err)
		}
	}

	sink, err := export.NewDirSink(outDir, logger)
	if err != nil {
		return err
	}
	orchestrator := export.New(export.Config{
		Engine:    engine.NewQueue(ffmpeg, cfg.EngineWorkers(), logger),
		Archiver:  archive.NewZipBuilder(),
		Precision: precision,
		Logger:    logging.WithComponent(logger, "export"),
	})

	started := time.Now()
	res, err := tl.Export(ctx, orchestrator, sink, func(done, total int) {
		if done == 0 {
			cmd.Printf("exporting %d slices\n", total)
			return
		}
		cmd.Printf("  extracted %d/%d\n", done, total)
	})
	if err != nil {
		cmd.PrintErrln(export.UserMessage(err))
		return err
	}

	cmd.Println(export.SuccessMessage(len(res.Entries)))
	cmd.Printf("%s (%s) in %s\n", sink.LastPath(), media.HumanSize(int64(len(res.Archive))), time.Since(started).Round(time.Millisecond))
	return nil
}

package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // tail of ffmpeg stderr kept for diagnostics
)

// Config holds the ffmpeg engine configuration.
type Config struct {
	FFmpegPath     string        // empty = look up "ffmpeg" on PATH
	FFprobePath    string        // empty = look up "ffprobe" on PATH
	WorkDir        string        // parent of per-export workspaces
	ExtractTimeout time.Duration // per-slice limit, 0 = none
	Logger         *slog.Logger
	DebugPaths     bool // log full paths instead of sanitised ones
}

// ProbeResult is the subset of ffprobe output the slicer uses.
type ProbeResult struct {
	Duration   float64
	Width      int
	Height     int
	Codec      string
	Bitrate    int64
	FormatName string
	AudioCodec string
}

// FFmpeg runs the ffmpeg binary as a subprocess. Every Extract writes a
// uniquely named output inside the staged input's workspace, so concurrent
// calls against one instance do not interfere.
type FFmpeg struct {
	cfg     Config
	ffmpeg  string
	ffprobe string
	version string
	ready   atomic.Bool
}

func NewFFmpeg(cfg Config) *FFmpeg {
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FFmpeg{cfg: cfg}
}

// Init resolves the binaries and checks that ffmpeg runs.
func (f *FFmpeg) Init(ctx context.Context) error {
	bin, err := resolveBinary(f.cfg.FFmpegPath, "ffmpeg")
	if err != nil {
		return err
	}
	probe, err := resolveBinary(f.cfg.FFprobePath, "ffprobe")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.cfg.WorkDir, 0755); err != nil {
		return fmt.Errorf("cannot create engine work dir: %w", err)
	}

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-hide_banner", "-version")
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg -version failed: %w", err)
	}

	line, _, _ := bufio.NewReader(&stdout).ReadLine()
	f.ffmpeg = bin
	f.ffprobe = probe
	f.version = string(line)
	f.ready.Store(true)

	f.cfg.Logger.Info("transcoding engine initialised",
		"ffmpeg", bin,
		"version", f.version,
		"work_dir", f.safePath(f.cfg.WorkDir),
	)
	return nil
}

func (f *FFmpeg) Ready() bool {
	return f.ready.Load()
}

func (f *FFmpeg) Version() string {
	return f.version
}

// Stage writes the source into a fresh workspace directory.
func (f *FFmpeg) Stage(ctx context.Context, r io.Reader, ext string) (*Input, error) {
	if !f.Ready() {
		return nil, ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(f.cfg.WorkDir, "export-*")
	if err != nil {
		return nil, fmt.Errorf("cannot create workspace: %w", err)
	}
	release := func() error { return os.RemoveAll(dir) }

	path := filepath.Join(dir, "input."+ext)
	file, err := os.Create(path)
	if err != nil {
		release()
		return nil, fmt.Errorf("cannot create staged input: %w", err)
	}

	_, err = io.Copy(file, &ctxReader{ctx: ctx, r: r})
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		release()
		return nil, fmt.Errorf("cannot stage input: %w", err)
	}

	return NewInput(dir, path, ext, release), nil
}

// Extract runs `ffmpeg -ss <start> -i <input> -t <duration> -c copy <out>`
// and reads the output back.
func (f *FFmpeg) Extract(ctx context.Context, in *Input, req Request) ([]byte, error) {
	if !f.Ready() {
		return nil, ErrNotReady
	}

	if f.cfg.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.ExtractTimeout)
		defer cancel()
	}

	outPath := filepath.Join(in.Dir, fmt.Sprintf("slice_%d.%s", req.Index, in.Ext))
	defer os.Remove(outPath)

	result := f.run(ctx, f.ffmpeg, extractArgs(in.Path, outPath, req)...)
	if result.ExitCode != 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("ffmpeg exited %d: %s", result.ExitCode, truncate(result.StderrTail, 512))
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read slice output: %w", err)
	}
	return data, nil
}

func extractArgs(input, output string, req Request) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin", "-y",
		"-ss", req.Start,
		"-i", input,
		"-t", strconv.FormatFloat(req.Duration, 'f', 3, 64),
		"-c", "copy",
		output,
	}
}

// Probe reads container metadata with ffprobe.
func (f *FFmpeg) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	if !f.Ready() {
		return nil, ErrNotReady
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.ffprobe,
		"-v", "error", "-print_format", "json", "-show_format", "-show_streams", path)
	cmd.Stdout = &stdout
	cmd.Stderr = &limitedWriter{w: &stderr, limit: maxStderrBytes}
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, truncate(stderr.String(), 512))
	}
	return parseProbe(stdout.Bytes())
}

type probeJSON struct {
	Format struct {
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
		FormatName string `json:"format_name"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

func parseProbe(data []byte) (*ProbeResult, error) {
	var raw probeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("cannot parse ffprobe JSON: %w", err)
	}

	duration, err := strconv.ParseFloat(raw.Format.Duration, 64)
	if err != nil {
		return nil, fmt.Errorf("ffprobe reported no duration: %w", err)
	}

	res := &ProbeResult{Duration: duration, FormatName: raw.Format.FormatName}
	res.Bitrate, _ = strconv.ParseInt(raw.Format.BitRate, 10, 64)
	for _, s := range raw.Streams {
		switch s.CodecType {
		case "video":
			if res.Codec == "" {
				res.Codec = s.CodecName
				res.Width = s.Width
				res.Height = s.Height
			}
		case "audio":
			if res.AudioCodec == "" {
				res.AudioCodec = s.CodecName
			}
		}
	}
	return res, nil
}

type runResult struct {
	ExitCode   int
	StderrTail string
	Duration   time.Duration
}

// run is the core subprocess helper.
func (f *FFmpeg) run(ctx context.Context, bin string, args ...string) runResult {
	start := time.Now()

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = io.Discard

	f.cfg.Logger.Debug("executing transcoder command", "args", f.safeArgs(args))

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	if exitCode != 0 {
		f.cfg.Logger.Warn("transcoder command failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrBuf.String(), 512),
		)
	} else {
		f.cfg.Logger.Debug("transcoder command succeeded", "duration_ms", elapsed.Milliseconds())
	}

	return runResult{ExitCode: exitCode, StderrTail: stderrBuf.String(), Duration: elapsed}
}

func (f *FFmpeg) safeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if filepath.IsAbs(a) {
			out[i] = f.safePath(a)
		} else {
			out[i] = a
		}
	}
	return out
}

func (f *FFmpeg) safePath(path string) string {
	if f.cfg.DebugPaths {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Base(path)
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return filepath.Base(path)
}

func resolveBinary(preferred, name string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured %s %q not found", name, preferred)
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("no %s binary found on PATH", name)
	}
	return p, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter keeps only the last `limit` bytes written to it.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}

// ctxReader stops a long copy once ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

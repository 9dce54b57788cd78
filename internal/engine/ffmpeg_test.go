package engine

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestExtractArgs(t *testing.T) {
	args := extractArgs("/w/input.mp4", "/w/slice_1.mp4", Request{Index: 1, Start: "00:00:02.500", Duration: 3.25})
	got := strings.Join(args, " ")
	want := "-hide_banner -loglevel error -nostdin -y -ss 00:00:02.500 -i /w/input.mp4 -t 3.250 -c copy /w/slice_1.mp4"
	if got != want {
		t.Errorf("extractArgs() = %q, want %q", got, want)
	}
}

func TestParseProbe(t *testing.T) {
	data := []byte(`{
		"streams": [
			{"codec_type": "audio", "codec_name": "aac"},
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080}
		],
		"format": {"duration": "63.480000", "bit_rate": "4500000", "format_name": "mov,mp4,m4a,3gp,3g2,mj2"}
	}`)

	res, err := parseProbe(data)
	if err != nil {
		t.Fatalf("parseProbe() error = %v", err)
	}
	if res.Duration != 63.48 {
		t.Errorf("Duration = %v, want 63.48", res.Duration)
	}
	if res.Codec != "h264" || res.Width != 1920 || res.Height != 1080 {
		t.Errorf("video stream = %s %dx%d", res.Codec, res.Width, res.Height)
	}
	if res.AudioCodec != "aac" {
		t.Errorf("AudioCodec = %q, want aac", res.AudioCodec)
	}
	if res.Bitrate != 4500000 {
		t.Errorf("Bitrate = %d", res.Bitrate)
	}
}

func TestParseProbe_NoDuration(t *testing.T) {
	if _, err := parseProbe([]byte(`{"format": {}}`)); err == nil {
		t.Fatal("parseProbe() error = nil, want error")
	}
}

func TestLimitedWriter_KeepsOnlyTail(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 10}

	lw.Write([]byte("hello"))
	if buf.String() != "hello" {
		t.Errorf("after short write got %q, want %q", buf.String(), "hello")
	}

	lw.Write([]byte(" world of test data"))
	if got := buf.String(); got != " test data" {
		t.Errorf("after overflow got %q, want %q", got, " test data")
	}
}

func TestFFmpeg_NotReady(t *testing.T) {
	f := NewFFmpeg(Config{WorkDir: t.TempDir()})
	if f.Ready() {
		t.Fatal("Ready() = true before Init")
	}
	if _, err := f.Stage(context.Background(), strings.NewReader("x"), "mp4"); err != ErrNotReady {
		t.Errorf("Stage() error = %v, want ErrNotReady", err)
	}
}

func TestFFmpeg_InitMissingBinary(t *testing.T) {
	f := NewFFmpeg(Config{FFmpegPath: "/definitely/not/ffmpeg", WorkDir: t.TempDir()})
	if err := f.Init(context.Background()); err == nil {
		t.Fatal("Init() error = nil, want error")
	}
}

func TestFFmpeg_StageAndExtract(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	src := filepath.Join(t.TempDir(), "source.mkv")
	gen := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=duration=6:size=64x48:rate=10", "-c:v", "mpeg4", src)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot generate fixture: %v: %s", err, out)
	}

	workDir := t.TempDir()
	f := NewFFmpeg(Config{WorkDir: workDir})
	if err := f.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	probe, err := f.Probe(ctx, src)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if probe.Duration < 5.5 {
		t.Errorf("Probe().Duration = %v, want ~6", probe.Duration)
	}

	file, err := os.Open(src)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	in, err := f.Stage(ctx, file, "mkv")
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}

	data, err := f.Extract(ctx, in, Request{Index: 1, Start: "00:00:01.000", Duration: 2})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(data) == 0 {
		t.Error("Extract() returned no bytes")
	}
	if _, err := os.Stat(filepath.Join(in.Dir, "slice_1.mkv")); !os.IsNotExist(err) {
		t.Error("slice output left in workspace")
	}

	if err := in.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(in.Dir); !os.IsNotExist(err) {
		t.Error("workspace not removed after Release")
	}
}

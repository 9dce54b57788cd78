package export

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/heimdex/heimdex-slicer/internal/slicing"
)

const defaultEDLRate = 30

// GenerateEDL renders slices as a CMX3600 edit decision list cut from one
// source file. Events are laid back to back on the record side, numbered
// like the archive folders, and each names the clip file the archive holds.
func GenerateEDL(slices []slicing.Slice, mediaPath, title string, frameRate float64) string {
	tc := newTimecoder(frameRate)
	ext := strings.TrimPrefix(filepath.Ext(mediaPath), ".")

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", title)
	if tc.drop {
		b.WriteString("FCM: DROP FRAME\n")
	} else {
		b.WriteString("FCM: NON-DROP FRAME\n")
	}
	b.WriteString("\n")

	var rec int
	for i, s := range slices {
		in, out := wholeMs(s.Start), wholeMs(s.End)
		length := out - in

		fmt.Fprintf(&b, "%03d  AX       V     C        %s %s %s %s\n", i+1,
			tc.format(in), tc.format(out), tc.format(rec), tc.format(rec+length))
		fmt.Fprintf(&b, "* FROM CLIP NAME:  %s\n", filepath.Base(EntryPath(i+1, s, ext)))
		fmt.Fprintf(&b, "* MEDIA PATH:  %s\n", mediaPath)

		rec += length
	}
	return b.String()
}

type timecoder struct {
	fps  int
	drop bool
}

// newTimecoder rounds the rate to whole frames. NTSC rates are flagged
// drop-frame in the header only; frame counts stay non-drop.
func newTimecoder(rate float64) timecoder {
	fps := int(math.Round(rate))
	if fps <= 0 {
		fps = defaultEDLRate
	}
	ntsc := math.Abs(rate-29.97) < 0.01 || math.Abs(rate-59.94) < 0.01
	return timecoder{fps: fps, drop: ntsc}
}

func (t timecoder) format(ms int) string {
	return msToTimecode(ms, t.fps)
}

func wholeMs(seconds float64) int {
	return int(math.Floor(seconds*1000 + 1e-6))
}

func msToTimecode(ms int, fps int) string {
	frames := int(math.Round(float64(ms) * float64(fps) / 1000))
	secs := frames / fps
	return fmt.Sprintf("%02d:%02d:%02d:%02d", secs/3600, secs/60%60, secs%60, frames%fps)
}

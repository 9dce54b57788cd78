package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/heimdex/heimdex-slicer/internal/slicing"
)

func TestGenerateEDL(t *testing.T) {
	tests := []struct {
		name   string
		slices []slicing.Slice
		path   string
		rate   float64
		want   []string
	}{
		{
			name:   "single slice",
			slices: []slicing.Slice{{Start: 0, End: 2}},
			path:   "/media/intro.mp4",
			rate:   30,
			want: []string{
				"TITLE: Clips\nFCM: NON-DROP FRAME\n\n",
				"001  AX       V     C        00:00:00:00 00:00:02:00 00:00:00:00 00:00:02:00",
				"* FROM CLIP NAME:  00-00-00-000_to_00-00-02-000.mp4",
				"* MEDIA PATH:  /media/intro.mp4",
			},
		},
		{
			name:   "record side accumulates",
			slices: []slicing.Slice{{Start: 2, End: 5}, {Start: 10, End: 12.5}},
			path:   "/a.mov",
			rate:   30,
			want: []string{
				"001  AX       V     C        00:00:02:00 00:00:05:00 00:00:00:00 00:00:03:00",
				"002  AX       V     C        00:00:10:00 00:00:12:15 00:00:03:00 00:00:05:15",
				"* FROM CLIP NAME:  00-00-10-000_to_00-00-12-500.mov",
			},
		},
		{
			name:   "ntsc header",
			slices: []slicing.Slice{{Start: 0, End: 3}},
			path:   "/x.mp4",
			rate:   29.97,
			want:   []string{"FCM: DROP FRAME"},
		},
		{
			name:   "unknown rate falls back",
			slices: []slicing.Slice{{Start: 0, End: 2.5}},
			path:   "/x.mp4",
			rate:   0,
			want:   []string{"00:00:00:00 00:00:02:15"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			edl := GenerateEDL(tc.slices, tc.path, "Clips", tc.rate)
			for _, w := range tc.want {
				assert.Contains(t, edl, w)
			}
			assert.True(t, strings.HasSuffix(edl, "\n"))
		})
	}
}

func TestMsToTimecode(t *testing.T) {
	tests := []struct {
		ms   int
		fps  int
		want string
	}{
		{0, 30, "00:00:00:00"},
		{500, 30, "00:00:00:15"},
		{1000, 30, "00:00:01:00"},
		{61_000, 30, "00:01:01:00"},
		{3_600_000, 25, "01:00:00:00"},
		{3_723_040, 25, "01:02:03:01"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, msToTimecode(tc.ms, tc.fps), "%dms@%d", tc.ms, tc.fps)
	}
}

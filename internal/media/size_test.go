package media

import (
	"strings"
	"testing"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0.00 MB"},
		{512 * 1024, "0.50 MB"},
		{12*mb + mb/2, "12.50 MB"},
		{gb, "1 GB and 0 MB"},
		{3*gb + 412*mb, "3 GB and 412 MB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.size); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}

func TestNewMemoryWarning(t *testing.T) {
	w := NewMemoryWarning(100 * mb)
	if w.Required != 200*mb {
		t.Errorf("Required = %d, want %d", w.Required, 200*mb)
	}
	if !strings.Contains(w.Message, "100.00 MB") {
		t.Errorf("Message = %q, missing formatted size", w.Message)
	}
}

func TestHumanSize(t *testing.T) {
	if got := HumanSize(1536); got != "1.5 KiB" {
		t.Errorf("HumanSize(1536) = %q", got)
	}
	if got := HumanSize(-1); got != "0 B" {
		t.Errorf("HumanSize(-1) = %q", got)
	}
}

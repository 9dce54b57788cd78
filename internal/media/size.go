package media

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

const (
	mb = 1024 * 1024
	gb = 1024 * mb
)

// MemoryFactor is how many times the source size an export may hold in
// memory at once (staged input plus the extracted slices).
const MemoryFactor = 2

// FormatSize renders a byte count the way the export warning shows it:
// "3 GB and 412 MB" from one gigabyte up, "12.50 MB" below.
func FormatSize(size int64) string {
	if size >= gb {
		whole := size / gb
		rest := int64(math.Round(float64(size%gb) / mb))
		return fmt.Sprintf("%d GB and %d MB", whole, rest)
	}
	return fmt.Sprintf("%.2f MB", float64(size)/mb)
}

// MemoryWarning describes the free memory exporting a source of Size bytes
// is expected to need.
type MemoryWarning struct {
	Size     int64  `json:"size_bytes"`
	Required int64  `json:"required_bytes"`
	Message  string `json:"message"`
}

func NewMemoryWarning(size int64) MemoryWarning {
	return MemoryWarning{
		Size:     size,
		Required: size * MemoryFactor,
		Message: fmt.Sprintf("Your video's file size is %s. Please make sure you have at least %d times more available memory on your device before proceeding; otherwise, you might get errors.",
			FormatSize(size), MemoryFactor),
	}
}

// HumanSize is the short form used in log lines.
func HumanSize(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.IBytes(uint64(size))
}

package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"
)

// ErrBadOutputDir wraps every ValidateOutputDir failure.
var ErrBadOutputDir = errors.New("output directory unavailable")

const maxArchiveName = 160

// DirSink saves archives into a directory. An existing file is never
// overwritten; the name gets a " (n)" suffix instead, the way browsers
// handle repeated downloads.
type DirSink struct {
	dir    string
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

func NewDirSink(dir string, logger *slog.Logger) (*DirSink, error) {
	if err := ValidateOutputDir(dir); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DirSink{dir: dir, logger: logger}, nil
}

// Deliver stages data in a hidden temp file and renames it into place, so
// a partially written archive never carries the final name.
func (s *DirSink) Deliver(ctx context.Context, data []byte, filename string) error {
	name := SanitizeName(filename, maxArchiveName)
	if name == "" {
		name = ArchiveName
	}

	staged, err := s.stage(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		os.Remove(staged)
		return err
	}
	target := s.freeName(name)
	if err := os.Rename(staged, target); err != nil {
		os.Remove(staged)
		return fmt.Errorf("save archive: %w", err)
	}
	s.last = target
	s.logger.Info("archive saved", "file", filepath.Base(target), "bytes", len(data))
	return nil
}

func (s *DirSink) stage(data []byte) (string, error) {
	f, err := os.CreateTemp(s.dir, ".export-*.zip.tmp")
	if err != nil {
		return "", fmt.Errorf("stage archive: %w", err)
	}
	_, werr := f.Write(data)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("stage archive: %w", err)
	}
	return f.Name(), nil
}

// LastPath returns where the most recent archive was written.
func (s *DirSink) LastPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *DirSink) freeName(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	path := filepath.Join(s.dir, name)
	for n := 1; exists(path); n++ {
		path = filepath.Join(s.dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
	}
	return path
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return !errors.Is(err, os.ErrNotExist)
}

// SanitizeName drops control characters, maps anything outside letters,
// digits and " -_.,()" to '_', trims spaces and caps the rune count.
func SanitizeName(s string, maxLen int) string {
	cleaned := strings.TrimSpace(strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case unicode.IsLetter(r), unicode.IsDigit(r), strings.ContainsRune(" -_.,()", r):
			return r
		default:
			return '_'
		}
	}, s))

	if maxLen > 0 {
		if runes := []rune(cleaned); len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	return cleaned
}

// ValidateOutputDir requires an existing directory given as a clean path
// with no ".." element.
func ValidateOutputDir(dir string) error {
	bad := func(reason string) error { return fmt.Errorf("%w: %s", ErrBadOutputDir, reason) }

	if strings.TrimSpace(dir) == "" {
		return bad("not configured")
	}
	if hasDotDot(dir) {
		return bad("path traversal")
	}
	if filepath.Clean(dir) != dir {
		return bad("path is not clean")
	}

	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return bad("does not exist")
	case err != nil:
		return fmt.Errorf("%w: %w", ErrBadOutputDir, err)
	case !info.IsDir():
		return bad("not a directory")
	}
	return nil
}

func hasDotDot(p string) bool {
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

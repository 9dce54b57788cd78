// Package archive packs named byte buffers into a single zip file.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"
)

// Entry is one file inside the archive. Path uses forward slashes; every
// parent directory gets its own folder entry.
type Entry struct {
	Path string
	Data []byte
}

// ZipBuilder writes entries in the order given. Media is already compressed,
// so entries are stored rather than deflated unless Deflate is set.
type ZipBuilder struct {
	Deflate bool
	Now     func() time.Time
}

func NewZipBuilder() *ZipBuilder {
	return &ZipBuilder{Now: time.Now}
}

func (b *ZipBuilder) Build(ctx context.Context, entries []Entry) ([]byte, error) {
	method := zip.Store
	if b.Deflate {
		method = zip.Deflate
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	modified := now()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	folders := make(map[string]bool)

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name, err := cleanEntryPath(e.Path)
		if err != nil {
			return nil, err
		}

		if dir := path.Dir(name); dir != "." && !folders[dir] {
			folders[dir] = true
			if _, err := zw.CreateHeader(&zip.FileHeader{Name: dir + "/", Modified: modified}); err != nil {
				return nil, fmt.Errorf("failed to add folder %s: %w", dir, err)
			}
		}

		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method, Modified: modified})
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

func cleanEntryPath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("archive entry path is empty")
	}
	cleaned := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("archive entry path %q escapes the archive root", p)
	}
	return cleaned, nil
}

// Package engine wraps the transcoder used to cut slices out of a source
// asset without re-encoding.
package engine

import (
	"context"
	"errors"
	"io"
	"sync"
)

var ErrNotReady = errors.New("transcoding engine is not initialized")

// Engine performs codec-preserving extraction. Implementations report
// failures per call; a failed Extract must not disturb concurrent calls.
type Engine interface {
	// Ready reports whether the engine was initialized successfully.
	Ready() bool

	// Stage copies the source bytes into the engine workspace once per
	// export. The returned Input must be released by the caller.
	Stage(ctx context.Context, r io.Reader, ext string) (*Input, error)

	// Extract cuts one slice out of a staged input and returns its bytes.
	Extract(ctx context.Context, in *Input, req Request) ([]byte, error)
}

// Request describes one extraction. Start is already formatted for the
// transcoder; Duration is in seconds.
type Request struct {
	Index    int
	Start    string
	Duration float64
}

// Input is a staged copy of the source asset inside an engine workspace.
type Input struct {
	Dir  string
	Path string
	Ext  string

	once    sync.Once
	release func() error
	err     error
}

// NewInput builds an Input; release runs at most once.
func NewInput(dir, path, ext string, release func() error) *Input {
	return &Input{Dir: dir, Path: path, Ext: ext, release: release}
}

// Release frees the workspace. Safe to call more than once.
func (in *Input) Release() error {
	in.once.Do(func() {
		if in.release != nil {
			in.err = in.release()
		}
	})
	return in.err
}

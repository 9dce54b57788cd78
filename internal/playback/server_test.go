package playback

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeAsset(t *testing.T) Asset {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.webm")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}
	return Asset{Path: path, MIMEType: "video/webm"}
}

func serve(t *testing.T, method, rangeHeader string, asset Asset) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/asset/stream", nil)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	rr := httptest.NewRecorder()
	if err := NewServer(nil).ServeAsset(rr, req, asset); err != nil {
		t.Fatalf("ServeAsset() error = %v", err)
	}
	return rr
}

func TestServeAsset_Full(t *testing.T) {
	rr := serve(t, http.MethodGet, "", writeAsset(t))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Body.String() != "0123456789" {
		t.Errorf("body = %q", rr.Body.String())
	}
	if rr.Header().Get("Content-Type") != "video/webm" {
		t.Errorf("Content-Type = %q", rr.Header().Get("Content-Type"))
	}
	if rr.Header().Get("Accept-Ranges") != "bytes" {
		t.Error("Accept-Ranges missing")
	}
}

func TestServeAsset_Range(t *testing.T) {
	rr := serve(t, http.MethodGet, "bytes=2-5", writeAsset(t))

	if rr.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rr.Code)
	}
	if rr.Body.String() != "2345" {
		t.Errorf("body = %q, want 2345", rr.Body.String())
	}
	if got := rr.Header().Get("Content-Range"); got != "bytes 2-5/10" {
		t.Errorf("Content-Range = %q", got)
	}
	if got := rr.Header().Get("Content-Length"); got != "4" {
		t.Errorf("Content-Length = %q", got)
	}
}

func TestServeAsset_Unsatisfiable(t *testing.T) {
	rr := serve(t, http.MethodGet, "bytes=50-", writeAsset(t))

	if rr.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("status = %d, want 416", rr.Code)
	}
	if got := rr.Header().Get("Content-Range"); got != "bytes */10" {
		t.Errorf("Content-Range = %q", got)
	}
}

func TestServeAsset_InvalidRangeServesWhole(t *testing.T) {
	rr := serve(t, http.MethodGet, "pages=1-2", writeAsset(t))
	if rr.Code != http.StatusOK || rr.Body.Len() != 10 {
		t.Fatalf("status = %d, len = %d", rr.Code, rr.Body.Len())
	}
}

func TestServeAsset_Head(t *testing.T) {
	rr := serve(t, http.MethodHead, "", writeAsset(t))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("HEAD wrote %d body bytes", rr.Body.Len())
	}
	if rr.Header().Get("Content-Length") != "10" {
		t.Errorf("Content-Length = %q", rr.Header().Get("Content-Length"))
	}
}

func TestServeAsset_Missing(t *testing.T) {
	rr := serve(t, http.MethodGet, "", Asset{Path: filepath.Join(t.TempDir(), "gone.mp4")})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestCtxReader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &ctxReader{ctx: ctx, r: strings.NewReader("x")}
	if _, err := r.Read(make([]byte, 1)); err == nil {
		t.Fatal("expected error from cancelled reader")
	}
}

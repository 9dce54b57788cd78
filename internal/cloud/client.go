// Package cloud uploads finished export archives to a Heimdex workspace.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// UploadError is a non-2xx answer from the archive endpoint.
type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("archive upload failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx) and 429.
// Other client errors are permanent.
func (e *UploadError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// UploadResult is the workspace's record of a stored archive.
type UploadResult struct {
	ArchiveID string `json:"archive_id"`
	URL       string `json:"url"`
}

type Config struct {
	BaseURL  string
	Token    string
	OrgSlug  string
	DeviceID string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Client talks to the workspace API.
type Client struct {
	baseURL    string
	token      string
	orgSlug    string
	deviceID   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		orgSlug:    cfg.OrgSlug,
		deviceID:   cfg.DeviceID,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// UploadArchive stores data under filename in the workspace.
func (c *Client) UploadArchive(ctx context.Context, data []byte, filename string) (*UploadResult, error) {
	url := c.baseURL + "/api/exports/archives"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/zip")
	req.Header.Set("Content-Length", strconv.Itoa(len(data)))
	req.Header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Heimdex-Request-Id", uuid.NewString())
	if c.deviceID != "" {
		req.Header.Set("X-Heimdex-Device-Id", c.deviceID)
	}

	// The workspace resolves the org from the Host subdomain.
	if c.orgSlug != "" {
		req.Host = c.orgSlug + ".app.heimdex.local"
	}

	c.logger.Info("uploading archive",
		"url", url,
		"host", req.Host,
		"filename", filename,
		"bytes", len(data),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UploadError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result UploadResult
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Warn("archive uploaded with unreadable response", "error", err)
	}
	c.logger.Info("archive uploaded", "archive_id", result.ArchiveID)
	return &result, nil
}

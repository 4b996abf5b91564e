package videoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxErrorBody caps how much of a failed response body is kept for diagnostics.
const maxErrorBody = 4 << 10

// Client is the interface for the remote video generation service.
type Client interface {
	Submit(ctx context.Context, req SubmitRequest) (*VideoResponse, error)
	Status(ctx context.Context, videoID string) (*VideoResponse, error)
	Download(ctx context.Context, videoID string) (*Download, error)
}

// RemoteStatus is the job state as reported by the video service.
type RemoteStatus string

const (
	RemoteQueued           RemoteStatus = "QUEUED"
	RemoteGeneratingScript RemoteStatus = "GENERATING_SCRIPT"
	RemoteRenderingVideo   RemoteStatus = "RENDERING_VIDEO"
	RemoteCompleted        RemoteStatus = "COMPLETED"
	RemoteFailed           RemoteStatus = "FAILED"
)

// UnmarshalJSON accepts the service's lowercase names as well as upper case.
func (s *RemoteStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v := RemoteStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch v {
	case RemoteQueued, RemoteGeneratingScript, RemoteRenderingVideo, RemoteCompleted, RemoteFailed:
		*s = v
		return nil
	}
	return fmt.Errorf("%w: unknown status %q", ErrInvalidResponse, raw)
}

// SubmitRequest is the body of POST /videos.
type SubmitRequest struct {
	Prompt        string `json:"prompt"`
	DurationLimit int    `json:"duration_limit"`
}

// VideoResponse is returned by both the submit and the status endpoints.
type VideoResponse struct {
	VideoID   string       `json:"video_id"`
	Status    RemoteStatus `json:"status"`
	Message   string       `json:"message"`
	Progress  *int         `json:"progress,omitempty"`
	VideoURL  string       `json:"video_url,omitempty"`
	CreatedAt string       `json:"created_at,omitempty"`
}

// Download is an open artifact stream. The caller must close Body.
type Download struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
}

// HTTPClient implements Client using the video service's REST API.
type HTTPClient struct {
	baseURL        string
	requestTimeout time.Duration
	client         *http.Client
}

// NewHTTPClient creates a new video service client. requestTimeout bounds
// submit and status calls; downloads are bounded only by the caller's context
// and by headerTimeout while waiting for the response to start.
func NewHTTPClient(baseURL string, requestTimeout, connectTimeout, headerTimeout time.Duration) *HTTPClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
	return &HTTPClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		requestTimeout: requestTimeout,
		client:         &http.Client{Transport: transport},
	}
}

func (c *HTTPClient) Submit(ctx context.Context, req SubmitRequest) (*VideoResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/videos", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return c.doVideo("submit", httpReq)
}

func (c *HTTPClient) Status(ctx context.Context, videoID string) (*VideoResponse, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	u := fmt.Sprintf("%s/videos/%s/status", c.baseURL, url.PathEscape(videoID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	return c.doVideo("status", httpReq)
}

func (c *HTTPClient) Download(ctx context.Context, videoID string) (*Download, error) {
	u := fmt.Sprintf("%s/videos/%s/download", c.baseURL, url.PathEscape(videoID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError("download", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError("download", resp)
	}

	if resp.StatusCode == http.StatusNoContent || resp.ContentLength == 0 {
		resp.Body.Close()
		return nil, fmt.Errorf("download: %w", ErrEmptyBody)
	}

	return &Download{
		Body:          &bodyReader{rc: resp.Body},
		ContentLength: resp.ContentLength,
		ContentType:   resp.Header.Get("Content-Type"),
	}, nil
}

func (c *HTTPClient) doVideo(op string, req *http.Request) (*VideoResponse, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(op, resp)
	}

	var out VideoResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return nil, classifyError(op, err)
		}
		return nil, fmt.Errorf("%s: decoding response: %w", op, wrapInvalid(err))
	}
	if out.VideoID == "" {
		return nil, fmt.Errorf("%s: %w: missing video_id", op, ErrInvalidResponse)
	}

	return &out, nil
}

func (c *HTTPClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

func wrapInvalid(err error) error {
	if errors.Is(err, ErrInvalidResponse) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
}

// bodyReader tags read failures as transport errors so they can be told
// apart from local write failures while streaming.
type bodyReader struct {
	rc io.ReadCloser
}

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if err != nil && err != io.EOF {
		return n, classifyError("download", err)
	}
	return n, err
}

func (b *bodyReader) Close() error { return b.rc.Close() }

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

package mock

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/kiranshivaraju/explainer/internal/videoapi"
)

// MockClient satisfies videoapi.Client for testing. Nil funcs return zero
// values. Call counts are safe to read while a job is running.
type MockClient struct {
	SubmitFunc   func(ctx context.Context, req videoapi.SubmitRequest) (*videoapi.VideoResponse, error)
	StatusFunc   func(ctx context.Context, videoID string) (*videoapi.VideoResponse, error)
	DownloadFunc func(ctx context.Context, videoID string) (*videoapi.Download, error)

	mu        sync.Mutex
	submits   []videoapi.SubmitRequest
	statuses  int
	downloads int
}

func (m *MockClient) Submit(ctx context.Context, req videoapi.SubmitRequest) (*videoapi.VideoResponse, error) {
	m.mu.Lock()
	m.submits = append(m.submits, req)
	m.mu.Unlock()
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, req)
	}
	return &videoapi.VideoResponse{}, nil
}

func (m *MockClient) Status(ctx context.Context, videoID string) (*videoapi.VideoResponse, error) {
	m.mu.Lock()
	m.statuses++
	m.mu.Unlock()
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, videoID)
	}
	return &videoapi.VideoResponse{VideoID: videoID}, nil
}

func (m *MockClient) Download(ctx context.Context, videoID string) (*videoapi.Download, error) {
	m.mu.Lock()
	m.downloads++
	m.mu.Unlock()
	if m.DownloadFunc != nil {
		return m.DownloadFunc(ctx, videoID)
	}
	return nil, videoapi.ErrEmptyBody
}

// Submits returns the submitted requests in order.
func (m *MockClient) Submits() []videoapi.SubmitRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]videoapi.SubmitRequest(nil), m.submits...)
}

func (m *MockClient) StatusCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses
}

func (m *MockClient) DownloadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.downloads
}

// NewScriptedClient accepts every submission as videoID, answers status polls
// with script in order (repeating the last entry) and serves payload on download.
func NewScriptedClient(videoID string, script []videoapi.VideoResponse, payload []byte) *MockClient {
	var mu sync.Mutex
	next := 0
	return &MockClient{
		SubmitFunc: func(_ context.Context, _ videoapi.SubmitRequest) (*videoapi.VideoResponse, error) {
			return &videoapi.VideoResponse{VideoID: videoID, Status: videoapi.RemoteQueued, Message: "queued"}, nil
		},
		StatusFunc: func(_ context.Context, id string) (*videoapi.VideoResponse, error) {
			mu.Lock()
			defer mu.Unlock()
			resp := script[next]
			if next < len(script)-1 {
				next++
			}
			resp.VideoID = id
			return &resp, nil
		},
		DownloadFunc: func(_ context.Context, _ string) (*videoapi.Download, error) {
			return Payload(payload), nil
		},
	}
}

// Payload wraps bytes as a download stream.
func Payload(b []byte) *videoapi.Download {
	return &videoapi.Download{
		Body:          io.NopCloser(bytes.NewReader(b)),
		ContentLength: int64(len(b)),
		ContentType:   "video/mp4",
	}
}

// Progress returns a pointer for VideoResponse.Progress literals.
func Progress(p int) *int { return &p }

var _ videoapi.Client = (*MockClient)(nil)

package classify_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/kiranshivaraju/explainer/internal/classify"
	"github.com/kiranshivaraju/explainer/internal/videoapi"
	"github.com/kiranshivaraju/explainer/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expectation struct {
	kind       models.ErrorKind
	retryable  bool
	delay      time.Duration
	maxRetries int
}

func assertInfo(t *testing.T, want expectation, got models.ErrorInfo) {
	t.Helper()
	assert.Equal(t, want.kind, got.Kind)
	assert.Equal(t, want.retryable, got.Retryable)
	assert.Equal(t, want.delay, got.RetryDelay)
	assert.Equal(t, want.maxRetries, got.MaxRetries)
	assert.NotEmpty(t, got.Message)
}

// --- HTTP status ---

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code int
		want expectation
	}{
		{503, expectation{models.ErrorServerOverloaded, true, 10 * time.Second, 2}},
		{500, expectation{models.ErrorServerError, true, 15 * time.Second, 2}},
		{502, expectation{models.ErrorServerError, true, 15 * time.Second, 2}},
		{504, expectation{models.ErrorServerError, true, 15 * time.Second, 2}},
		{429, expectation{models.ErrorRateLimited, true, 30 * time.Second, 1}},
		{400, expectation{models.ErrorInvalidPrompt, false, 0, 0}},
		{401, expectation{models.ErrorAuthentication, false, 0, 0}},
		{403, expectation{models.ErrorAuthentication, false, 0, 0}},
		{404, expectation{models.ErrorServerError, true, 5 * time.Second, 2}},
		{418, expectation{models.ErrorServerError, true, 5 * time.Second, 2}},
	}

	c := classify.Default{}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("HTTP %d", tt.code), func(t *testing.T) {
			assertInfo(t, tt.want, c.HTTPStatus(tt.code, "body"))
		})
	}
}

func TestHTTPStatus_KeepsBodyInDetails(t *testing.T) {
	info := classify.Default{}.HTTPStatus(500, "db down")
	assert.Equal(t, "HTTP 500: db down", info.TechnicalDetails)
}

// --- Transport ---

func TestTransport(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want expectation
	}{
		{
			name: "timeout",
			err:  &videoapi.TransportError{Op: "submit", Kind: videoapi.TransportTimeout, Err: context.DeadlineExceeded},
			want: expectation{models.ErrorNetworkTimeout, true, 5 * time.Second, 3},
		},
		{
			name: "unreachable",
			err:  &videoapi.TransportError{Op: "submit", Kind: videoapi.TransportUnreachable, Err: syscall.ECONNREFUSED},
			want: expectation{models.ErrorNetworkUnavailable, true, 3 * time.Second, 5},
		},
		{
			name: "other io",
			err:  &videoapi.TransportError{Op: "download", Kind: videoapi.TransportIO, Err: io.ErrUnexpectedEOF},
			want: expectation{models.ErrorNetworkInterrupted, true, 2 * time.Second, 3},
		},
		{
			name: "raw dns error",
			err:  &net.DNSError{Err: "no such host", Name: "video.invalid"},
			want: expectation{models.ErrorNetworkUnavailable, true, 3 * time.Second, 5},
		},
	}

	c := classify.Default{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertInfo(t, tt.want, c.Transport(tt.err))
		})
	}
}

// --- Generation failure ---

func TestGenerationFailure(t *testing.T) {
	tests := []struct {
		message string
		want    expectation
	}{
		{"Render TIMEOUT after 300s", expectation{models.ErrorGenerationTimeout, true, 5 * time.Second, 1}},
		{"content policy violation", expectation{models.ErrorContentRejected, false, 0, 0}},
		{"insufficient GPU resources", expectation{models.ErrorInsufficientResources, true, 60 * time.Second, 1}},
		{"manim crashed", expectation{models.ErrorGenerationFailed, true, 3 * time.Second, 2}},
		{"", expectation{models.ErrorGenerationFailed, true, 3 * time.Second, 2}},
		// "timeout" is checked before "content".
		{"content generation timeout", expectation{models.ErrorGenerationTimeout, true, 5 * time.Second, 1}},
	}

	c := classify.Default{}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			info := c.GenerationFailure(tt.message)
			assertInfo(t, tt.want, info)
			assert.Equal(t, tt.message, info.TechnicalDetails)
		})
	}
}

// --- Storage ---

func TestStorage(t *testing.T) {
	c := classify.Default{}

	full := c.Storage(&fs.PathError{Op: "write", Path: "/v/a.mp4", Err: syscall.ENOSPC})
	assertInfo(t, expectation{models.ErrorStorageFull, true, 0, 1}, full)

	denied := c.Storage(&fs.PathError{Op: "open", Path: "/v/a.mp4", Err: fs.ErrPermission})
	assertInfo(t, expectation{models.ErrorPermissionDenied, false, 0, 0}, denied)

	other := c.Storage(&fs.PathError{Op: "write", Path: "/v/a.mp4", Err: syscall.EIO})
	assertInfo(t, expectation{models.ErrorFileSystem, true, 2 * time.Second, 2}, other)
}

// --- Classify dispatch ---

func TestClassify_Dispatch(t *testing.T) {
	c := classify.Default{}

	wrappedStatus := fmt.Errorf("submitting: %w", &videoapi.StatusError{Op: "submit", StatusCode: 429})
	assert.Equal(t, models.ErrorRateLimited, c.Classify(wrappedStatus).Kind)

	wrappedTransport := fmt.Errorf("polling: %w",
		&videoapi.TransportError{Op: "status", Kind: videoapi.TransportTimeout, Err: context.DeadlineExceeded})
	assert.Equal(t, models.ErrorNetworkTimeout, c.Classify(wrappedTransport).Kind)

	assert.Equal(t, models.ErrorDownloadCorrupted, c.Classify(fmt.Errorf("download: %w", videoapi.ErrEmptyBody)).Kind)

	rename := &os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.EACCES}
	assert.Equal(t, models.ErrorPermissionDenied, c.Classify(rename).Kind)

	unknown := c.Classify(errors.New("surprise"))
	assertInfo(t, expectation{models.ErrorUnknown, true, 3 * time.Second, 2}, unknown)
}

func TestClassify_AlreadyClassifiedPassesThrough(t *testing.T) {
	info := classify.PromptTooLong(5000)
	got := classify.Default{}.Classify(fmt.Errorf("submit: %w", &info))
	assert.Equal(t, info, got)
}

func TestClassify_IsDeterministic(t *testing.T) {
	c := classify.Default{}
	signals := []error{
		&videoapi.StatusError{Op: "submit", StatusCode: 503, Body: "busy"},
		&videoapi.TransportError{Op: "status", Kind: videoapi.TransportIO, Err: io.ErrUnexpectedEOF},
		errors.New("odd"),
	}
	for _, sig := range signals {
		first := c.Classify(sig)
		second := c.Classify(sig)
		require.Equal(t, first, second)
	}
	assert.Equal(t, c.GenerationFailure("resource exhausted"), c.GenerationFailure("resource exhausted"))
}

// --- Local failures ---

func TestLocalFailures(t *testing.T) {
	assertInfo(t, expectation{models.ErrorInvalidPrompt, false, 0, 0}, classify.InvalidPrompt())
	assertInfo(t, expectation{models.ErrorPromptTooLong, false, 0, 0}, classify.PromptTooLong(4001))
	assertInfo(t, expectation{models.ErrorStorageFull, true, 0, 1}, classify.StorageFull("9999999 bytes free"))
	assertInfo(t, expectation{models.ErrorDownloadCorrupted, true, 2 * time.Second, 2}, classify.DownloadCorrupted("empty file"))
	assertInfo(t, expectation{models.ErrorDownloadCorrupted, true, 3 * time.Second, 2}, classify.MissingBody())
	assertInfo(t, expectation{models.ErrorDownloadInterrupted, true, 2 * time.Second, 2}, classify.DownloadInterrupted(10, 20))
	assertInfo(t, expectation{models.ErrorUnsupportedContent, false, 0, 0}, classify.UnsupportedContent("text/html"))
}

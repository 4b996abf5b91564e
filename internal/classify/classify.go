// Package classify maps raw failure signals from the video pipeline to
// models.ErrorInfo values. Every function here is pure: the same signal
// always produces the same ErrorInfo.
package classify

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/kiranshivaraju/explainer/internal/videoapi"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

// Classifier turns failure signals into ErrorInfo. The message-matching rules
// for server-reported failures live behind this interface so they can be
// replaced by structured error codes without touching callers.
type Classifier interface {
	Classify(err error) models.ErrorInfo
	Transport(err error) models.ErrorInfo
	HTTPStatus(code int, body string) models.ErrorInfo
	GenerationFailure(message string) models.ErrorInfo
	Storage(err error) models.ErrorInfo
}

// Default is the stock Classifier. Zero value is ready to use.
type Default struct{}

// Classify dispatches on the concrete error type. Errors that are already
// classified are returned unchanged.
func (d Default) Classify(err error) models.ErrorInfo {
	if err == nil {
		return Unknown(errors.New("nil error"))
	}

	var info *models.ErrorInfo
	if errors.As(err, &info) {
		return *info
	}

	var statusErr *videoapi.StatusError
	if errors.As(err, &statusErr) {
		return d.HTTPStatus(statusErr.StatusCode, statusErr.Body)
	}

	var transportErr *videoapi.TransportError
	if errors.As(err, &transportErr) {
		return d.Transport(transportErr)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return d.Transport(err)
	}

	if errors.Is(err, videoapi.ErrEmptyBody) {
		return MissingBody()
	}

	if isStorageError(err) {
		return d.Storage(err)
	}

	return Unknown(err)
}

// Transport classifies failures below HTTP.
func (Default) Transport(err error) models.ErrorInfo {
	kind := videoapi.KindOf(err)
	var te *videoapi.TransportError
	if errors.As(err, &te) {
		kind = te.Kind
	}

	switch kind {
	case videoapi.TransportTimeout:
		return models.ErrorInfo{
			Kind:             models.ErrorNetworkTimeout,
			Message:          "The request timed out.",
			TechnicalDetails: err.Error(),
			Retryable:        true,
			SuggestedAction:  "Check your internet connection",
			RetryDelay:       5000 * time.Millisecond,
			MaxRetries:       3,
		}
	case videoapi.TransportUnreachable:
		return models.ErrorInfo{
			Kind:             models.ErrorNetworkUnavailable,
			Message:          "The video service cannot be reached.",
			TechnicalDetails: err.Error(),
			Retryable:        true,
			SuggestedAction:  "Connect to the internet",
			RetryDelay:       3000 * time.Millisecond,
			MaxRetries:       5,
		}
	default:
		return models.ErrorInfo{
			Kind:             models.ErrorNetworkInterrupted,
			Message:          "The connection was interrupted.",
			TechnicalDetails: err.Error(),
			Retryable:        true,
			SuggestedAction:  "Try again",
			RetryDelay:       2000 * time.Millisecond,
			MaxRetries:       3,
		}
	}
}

// HTTPStatus classifies a non-2xx response.
func (Default) HTTPStatus(code int, body string) models.ErrorInfo {
	details := fmt.Sprintf("HTTP %d", code)
	if body != "" {
		details += ": " + body
	}

	switch code {
	case 503:
		return models.ErrorInfo{
			Kind:             models.ErrorServerOverloaded,
			Message:          "The video service is busy right now.",
			TechnicalDetails: details,
			Retryable:        true,
			SuggestedAction:  "Wait and try again",
			RetryDelay:       10000 * time.Millisecond,
			MaxRetries:       2,
		}
	case 500, 502, 504:
		return models.ErrorInfo{
			Kind:             models.ErrorServerError,
			Message:          "The video service is temporarily unavailable.",
			TechnicalDetails: details,
			Retryable:        true,
			SuggestedAction:  "Try again later",
			RetryDelay:       15000 * time.Millisecond,
			MaxRetries:       2,
		}
	case 429:
		return models.ErrorInfo{
			Kind:             models.ErrorRateLimited,
			Message:          "Too many video requests.",
			TechnicalDetails: fmt.Sprintf("HTTP %d: rate limited", code),
			Retryable:        true,
			SuggestedAction:  "Wait before requesting another video",
			RetryDelay:       30000 * time.Millisecond,
			MaxRetries:       1,
		}
	case 400:
		return models.ErrorInfo{
			Kind:             models.ErrorInvalidPrompt,
			Message:          "The request could not be processed.",
			TechnicalDetails: details,
			SuggestedAction:  "Rephrase your question",
		}
	case 401, 403:
		return models.ErrorInfo{
			Kind:             models.ErrorAuthentication,
			Message:          "The video service rejected our credentials.",
			TechnicalDetails: fmt.Sprintf("HTTP %d: authentication failed", code),
			SuggestedAction:  "Restart the app",
		}
	default:
		return models.ErrorInfo{
			Kind:             models.ErrorServerError,
			Message:          "The video service returned an unexpected error.",
			TechnicalDetails: details,
			Retryable:        true,
			SuggestedAction:  "Try again",
			RetryDelay:       5000 * time.Millisecond,
			MaxRetries:       2,
		}
	}
}

// GenerationFailure classifies the free-text message of a remote job that
// ended in FAILED. Rules are checked in order; the first match wins.
func (Default) GenerationFailure(message string) models.ErrorInfo {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "timeout"):
		return models.ErrorInfo{
			Kind:             models.ErrorGenerationTimeout,
			Message:          "Video generation took longer than expected.",
			TechnicalDetails: message,
			Retryable:        true,
			SuggestedAction:  "Try a shorter or simpler request",
			RetryDelay:       5000 * time.Millisecond,
			MaxRetries:       1,
		}
	case strings.Contains(m, "content"):
		return models.ErrorInfo{
			Kind:             models.ErrorContentRejected,
			Message:          "The request was rejected by the video service.",
			TechnicalDetails: message,
			SuggestedAction:  "Rephrase your question",
		}
	case strings.Contains(m, "resource"):
		return models.ErrorInfo{
			Kind:             models.ErrorInsufficientResources,
			Message:          "The video service is at capacity.",
			TechnicalDetails: message,
			Retryable:        true,
			SuggestedAction:  "Try again in a few minutes",
			RetryDelay:       60000 * time.Millisecond,
			MaxRetries:       1,
		}
	default:
		return models.ErrorInfo{
			Kind:             models.ErrorGenerationFailed,
			Message:          "Video generation failed.",
			TechnicalDetails: message,
			Retryable:        true,
			SuggestedAction:  "Try a different request",
			RetryDelay:       3000 * time.Millisecond,
			MaxRetries:       2,
		}
	}
}

// Storage classifies local filesystem failures.
func (Default) Storage(err error) models.ErrorInfo {
	switch {
	case errors.Is(err, syscall.ENOSPC):
		return StorageFull(err.Error())
	case errors.Is(err, fs.ErrPermission):
		return models.ErrorInfo{
			Kind:             models.ErrorPermissionDenied,
			Message:          "The video could not be saved because of file permissions.",
			TechnicalDetails: err.Error(),
			SuggestedAction:  "Check storage permissions",
		}
	default:
		return models.ErrorInfo{
			Kind:             models.ErrorFileSystem,
			Message:          "The video file could not be saved.",
			TechnicalDetails: err.Error(),
			Retryable:        true,
			SuggestedAction:  "Try again",
			RetryDelay:       2000 * time.Millisecond,
			MaxRetries:       2,
		}
	}
}

func isStorageError(err error) bool {
	var pathErr *fs.PathError
	var linkErr *os.LinkError
	return errors.As(err, &pathErr) || errors.As(err, &linkErr) ||
		errors.Is(err, syscall.ENOSPC) || errors.Is(err, fs.ErrPermission)
}

// Compile-time check that Default implements Classifier.
var _ Classifier = Default{}

package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ErrorKind is the closed taxonomy of failures a video job can hit.
type ErrorKind string

const (
	ErrorNetworkUnavailable    ErrorKind = "NETWORK_UNAVAILABLE"
	ErrorNetworkTimeout        ErrorKind = "NETWORK_TIMEOUT"
	ErrorNetworkInterrupted    ErrorKind = "NETWORK_INTERRUPTED"
	ErrorServerUnavailable     ErrorKind = "SERVER_UNAVAILABLE"
	ErrorServerOverloaded      ErrorKind = "SERVER_OVERLOADED"
	ErrorServerError           ErrorKind = "SERVER_ERROR"
	ErrorAuthentication        ErrorKind = "AUTHENTICATION_ERROR"
	ErrorInvalidPrompt         ErrorKind = "INVALID_PROMPT"
	ErrorPromptTooLong         ErrorKind = "PROMPT_TOO_LONG"
	ErrorUnsupportedContent    ErrorKind = "UNSUPPORTED_CONTENT"
	ErrorRateLimited           ErrorKind = "RATE_LIMITED"
	ErrorGenerationFailed      ErrorKind = "GENERATION_FAILED"
	ErrorGenerationTimeout     ErrorKind = "GENERATION_TIMEOUT"
	ErrorContentRejected       ErrorKind = "CONTENT_REJECTED"
	ErrorInsufficientResources ErrorKind = "INSUFFICIENT_RESOURCES"
	ErrorDownloadFailed        ErrorKind = "DOWNLOAD_FAILED"
	ErrorDownloadCorrupted     ErrorKind = "DOWNLOAD_CORRUPTED"
	ErrorDownloadInterrupted   ErrorKind = "DOWNLOAD_INTERRUPTED"
	ErrorStorageFull           ErrorKind = "STORAGE_FULL"
	ErrorPermissionDenied      ErrorKind = "PERMISSION_DENIED"
	ErrorFileSystem            ErrorKind = "FILE_SYSTEM_ERROR"
	ErrorThumbnailFailed       ErrorKind = "THUMBNAIL_FAILED"
	ErrorMetadataUnavailable   ErrorKind = "METADATA_UNAVAILABLE"
	ErrorUnknown               ErrorKind = "UNKNOWN_ERROR"
)

// ErrorInfo is a classified failure. Values are built by the classify
// package and never modified afterwards.
type ErrorInfo struct {
	Kind             ErrorKind
	Message          string
	TechnicalDetails string
	Retryable        bool
	SuggestedAction  string
	RetryDelay       time.Duration
	MaxRetries       int
}

func (e ErrorInfo) Error() string {
	if e.TechnicalDetails != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.TechnicalDetails)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// UserMessage is the text shown to the user: the message followed by the
// suggested action, if any.
func (e ErrorInfo) UserMessage() string {
	if e.SuggestedAction == "" {
		return e.Message
	}
	return e.Message + " " + e.SuggestedAction + "."
}

// CanRetry reports whether another attempt is allowed after retryCount retries.
func (e ErrorInfo) CanRetry(retryCount int) bool {
	return e.Retryable && retryCount < e.MaxRetries
}

type errorInfoJSON struct {
	Kind             ErrorKind `json:"kind"`
	Message          string    `json:"message"`
	TechnicalDetails string    `json:"technical_details,omitempty"`
	Retryable        bool      `json:"retryable"`
	SuggestedAction  string    `json:"suggested_action,omitempty"`
	RetryDelayMs     int64     `json:"retry_delay_ms"`
	MaxRetries       int       `json:"max_retries"`
}

func (e ErrorInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(errorInfoJSON{
		Kind:             e.Kind,
		Message:          e.Message,
		TechnicalDetails: e.TechnicalDetails,
		Retryable:        e.Retryable,
		SuggestedAction:  e.SuggestedAction,
		RetryDelayMs:     e.RetryDelay.Milliseconds(),
		MaxRetries:       e.MaxRetries,
	})
}

func (e *ErrorInfo) UnmarshalJSON(data []byte) error {
	var v errorInfoJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*e = ErrorInfo{
		Kind:             v.Kind,
		Message:          v.Message,
		TechnicalDetails: v.TechnicalDetails,
		Retryable:        v.Retryable,
		SuggestedAction:  v.SuggestedAction,
		RetryDelay:       time.Duration(v.RetryDelayMs) * time.Millisecond,
		MaxRetries:       v.MaxRetries,
	}
	return nil
}

package classify

import (
	"fmt"
	"time"

	"github.com/kiranshivaraju/explainer/pkg/models"
)

// InvalidPrompt is returned for an empty or blank prompt.
func InvalidPrompt() models.ErrorInfo {
	return models.ErrorInfo{
		Kind:            models.ErrorInvalidPrompt,
		Message:         "Please enter a question to explain.",
		SuggestedAction: "Type a question",
	}
}

// PromptTooLong is returned when the prompt exceeds models.MaxPromptLength.
func PromptTooLong(length int) models.ErrorInfo {
	return models.ErrorInfo{
		Kind:             models.ErrorPromptTooLong,
		Message:          "Your question is too long.",
		TechnicalDetails: fmt.Sprintf("prompt length %d exceeds %d", length, models.MaxPromptLength),
		SuggestedAction:  "Shorten your question",
	}
}

// StorageFull is returned when the videos volume lacks headroom. It allows
// one retry, but only on explicit user request.
func StorageFull(details string) models.ErrorInfo {
	return models.ErrorInfo{
		Kind:             models.ErrorStorageFull,
		Message:          "Not enough storage space to save the video.",
		TechnicalDetails: details,
		Retryable:        true,
		SuggestedAction:  "Free up storage space",
		MaxRetries:       1,
	}
}

// DownloadCorrupted is returned when the written artifact is missing or empty.
func DownloadCorrupted(details string) models.ErrorInfo {
	return models.ErrorInfo{
		Kind:             models.ErrorDownloadCorrupted,
		Message:          "The downloaded video is damaged.",
		TechnicalDetails: details,
		Retryable:        true,
		SuggestedAction:  "Try again",
		RetryDelay:       2000 * time.Millisecond,
		MaxRetries:       2,
	}
}

// MissingBody is returned when the download response carried no content.
func MissingBody() models.ErrorInfo {
	return models.ErrorInfo{
		Kind:             models.ErrorDownloadCorrupted,
		Message:          "The video service sent an empty file.",
		TechnicalDetails: "empty response body",
		Retryable:        true,
		SuggestedAction:  "Try again",
		RetryDelay:       3000 * time.Millisecond,
		MaxRetries:       2,
	}
}

// DownloadInterrupted is returned when fewer bytes arrived than announced.
func DownloadInterrupted(written, expected int64) models.ErrorInfo {
	return models.ErrorInfo{
		Kind:             models.ErrorDownloadInterrupted,
		Message:          "The download was interrupted.",
		TechnicalDetails: fmt.Sprintf("received %d of %d bytes", written, expected),
		Retryable:        true,
		SuggestedAction:  "Try again",
		RetryDelay:       2000 * time.Millisecond,
		MaxRetries:       2,
	}
}

// UnsupportedContent is returned when the download is not a video stream.
func UnsupportedContent(contentType string) models.ErrorInfo {
	return models.ErrorInfo{
		Kind:             models.ErrorUnsupportedContent,
		Message:          "The video service did not return a video.",
		TechnicalDetails: "content type " + contentType,
		SuggestedAction:  "Try a different request",
	}
}

// DownloadFailed is the download-phase fallback for errors no other rule matched.
func DownloadFailed(err error) models.ErrorInfo {
	return models.ErrorInfo{
		Kind:             models.ErrorDownloadFailed,
		Message:          "The video could not be downloaded.",
		TechnicalDetails: err.Error(),
		Retryable:        true,
		SuggestedAction:  "Try again",
		RetryDelay:       3000 * time.Millisecond,
		MaxRetries:       2,
	}
}

// Unknown is the fallback for anything no other rule matched.
func Unknown(err error) models.ErrorInfo {
	return models.ErrorInfo{
		Kind:             models.ErrorUnknown,
		Message:          "Something went wrong.",
		TechnicalDetails: err.Error(),
		Retryable:        true,
		SuggestedAction:  "Try again",
		RetryDelay:       3000 * time.Millisecond,
		MaxRetries:       2,
	}
}

// Package media wraps the external tools that read video metadata and
// render thumbnails. Failures here never fail a video job.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoDuration = errors.New("media: duration unavailable")
	ErrThumbnail  = errors.New("media: thumbnail generation failed")
)

// Extractor reads metadata from a downloaded video and renders a preview frame.
type Extractor interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
	Thumbnail(ctx context.Context, path, jobID string) (string, error)
}

type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// FFmpeg implements Extractor with ffprobe and ffmpeg binaries.
type FFmpeg struct {
	ffprobePath   string
	ffmpegPath    string
	thumbnailsDir string
	frameAt       time.Duration
	runner        commandRunner
	mkdirAll      func(path string, perm os.FileMode) error
	stat          func(name string) (os.FileInfo, error)
}

// NewFFmpeg creates an extractor that writes thumbnails into thumbnailsDir.
func NewFFmpeg(ffprobePath, ffmpegPath, thumbnailsDir string) *FFmpeg {
	return &FFmpeg{
		ffprobePath:   ffprobePath,
		ffmpegPath:    ffmpegPath,
		thumbnailsDir: thumbnailsDir,
		frameAt:       time.Second,
		runner:        &execRunner{},
		mkdirAll:      os.MkdirAll,
		stat:          os.Stat,
	}
}

// Duration asks ffprobe for the container duration.
func (f *FFmpeg) Duration(ctx context.Context, path string) (time.Duration, error) {
	res, err := f.runner.Run(ctx, f.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: ffprobe exit %d: %s", ErrNoDuration, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(res.Stdout), 64)
	if err != nil || secs <= 0 {
		return 0, fmt.Errorf("%w: unparseable ffprobe output %q", ErrNoDuration, strings.TrimSpace(res.Stdout))
	}
	return time.Duration(math.Round(secs*1000)) * time.Millisecond, nil
}

// Thumbnail renders one frame to {thumbnailsDir}/{jobID}_thumbnail.jpg.
func (f *FFmpeg) Thumbnail(ctx context.Context, path, jobID string) (string, error) {
	if err := f.mkdirAll(f.thumbnailsDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrThumbnail, err)
	}

	out := ThumbnailPath(f.thumbnailsDir, jobID)
	res, err := f.runner.Run(ctx, f.ffmpegPath,
		"-y",
		"-ss", strconv.FormatFloat(f.frameAt.Seconds(), 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-q:v", "2",
		out,
	)
	if err != nil {
		return "", fmt.Errorf("%w: ffmpeg exit %d: %s", ErrThumbnail, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	if info, err := f.stat(out); err != nil || info.Size() == 0 {
		return "", fmt.Errorf("%w: no frame written", ErrThumbnail)
	}
	return out, nil
}

// ThumbnailPath is the cache location of a job's thumbnail.
func ThumbnailPath(dir, jobID string) string {
	return filepath.Join(dir, jobID+"_thumbnail.jpg")
}

var _ Extractor = (*FFmpeg)(nil)

// Package download fetches a finished video from the generation service,
// validates it on disk and collects its metadata.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/kiranshivaraju/explainer/internal/classify"
	"github.com/kiranshivaraju/explainer/internal/media"
	"github.com/kiranshivaraju/explainer/internal/metrics"
	"github.com/kiranshivaraju/explainer/internal/videoapi"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

const (
	// MinFreeBytes is the headroom required on the videos volume before a download starts.
	MinFreeBytes = 10_000_000

	// DefaultDuration is reported when the extractor cannot read the duration.
	DefaultDuration = 60 * time.Second
)

// Artifact is a validated video on local storage.
type Artifact struct {
	Path          string
	SizeBytes     int64
	Duration      time.Duration
	ThumbnailPath string
}

// Pipeline downloads artifacts into a single directory named by job id.
type Pipeline struct {
	client     videoapi.Client
	classifier classify.Classifier
	extractor  media.Extractor
	dir        string
	ext        string
	minFree    int64
	freeSpace  func(path string) (int64, error)
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithExtractor(e media.Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

func WithClassifier(c classify.Classifier) Option {
	return func(p *Pipeline) { p.classifier = c }
}

func WithExtension(ext string) Option {
	return func(p *Pipeline) { p.ext = ext }
}

func WithMinFreeBytes(n int64) Option {
	return func(p *Pipeline) { p.minFree = n }
}

// WithFreeSpaceFunc replaces the statfs-based free space probe.
func WithFreeSpaceFunc(fn func(path string) (int64, error)) Option {
	return func(p *Pipeline) { p.freeSpace = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a Pipeline writing into dir.
func New(client videoapi.Client, dir string, opts ...Option) *Pipeline {
	p := &Pipeline{
		client:     client,
		classifier: classify.Default{},
		dir:        dir,
		ext:        "mp4",
		minFree:    MinFreeBytes,
		freeSpace:  FreeSpace,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Path is where the artifact for jobID is stored.
func (p *Pipeline) Path(jobID string) string {
	return filepath.Join(p.dir, jobID+"."+p.ext)
}

// LocalPath returns the stored artifact for jobID if it exists and is non-empty.
func (p *Pipeline) LocalPath(jobID string) (string, bool) {
	path := p.Path(jobID)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return "", false
	}
	return path, true
}

// Fetch downloads and validates the artifact for jobID. Failures are
// returned as *models.ErrorInfo; cancellation is returned as ctx.Err().
func (p *Pipeline) Fetch(ctx context.Context, jobID string) (*Artifact, error) {
	if err := p.checkSpace(); err != nil {
		return nil, err
	}

	dl, err := p.client.Download(ctx, jobID)
	if err != nil {
		return nil, p.fail(ctx, err)
	}
	defer dl.Body.Close()

	if !videoContent(dl.ContentType) {
		info := classify.UnsupportedContent(dl.ContentType)
		return nil, &info
	}

	final := p.Path(jobID)
	written, err := p.writeFile(ctx, final, dl)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(final)
	if err != nil || fi.Size() == 0 {
		_ = os.Remove(final)
		info := classify.DownloadCorrupted(fmt.Sprintf("artifact %s missing or empty after writing %d bytes", final, written))
		return nil, &info
	}
	metrics.DownloadedBytes.Add(float64(fi.Size()))

	art := &Artifact{Path: final, SizeBytes: fi.Size(), Duration: DefaultDuration}
	p.extractMetadata(ctx, jobID, art)

	p.logger.Debug("video downloaded", "job_id", jobID, "path", final, "bytes", fi.Size())
	return art, nil
}

// checkSpace fails with STORAGE_FULL when the videos volume is short on
// space. An unreadable volume does not block the download.
func (p *Pipeline) checkSpace() error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		info := p.classifier.Storage(err)
		return &info
	}

	free, err := p.freeSpace(p.dir)
	if err != nil {
		p.logger.Warn("free space check skipped", "dir", p.dir, "error", err)
		return nil
	}
	if free < p.minFree {
		info := classify.StorageFull(fmt.Sprintf("%d bytes free, %d required", free, p.minFree))
		return &info
	}
	return nil
}

// writeFile streams the body into a temp file and renames it into place.
func (p *Pipeline) writeFile(ctx context.Context, final string, dl *videoapi.Download) (int64, error) {
	tmp := final + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		info := p.classifier.Storage(err)
		return 0, &info
	}

	written, copyErr := io.Copy(f, dl.Body)
	syncErr := f.Sync()
	closeErr := f.Close()

	if copyErr != nil {
		_ = os.Remove(tmp)
		return written, p.fail(ctx, copyErr)
	}
	for _, err := range []error{syncErr, closeErr} {
		if err != nil {
			_ = os.Remove(tmp)
			info := p.classifier.Storage(err)
			return written, &info
		}
	}

	if dl.ContentLength > 0 && written != dl.ContentLength {
		_ = os.Remove(tmp)
		info := classify.DownloadInterrupted(written, dl.ContentLength)
		return written, &info
	}

	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		info := p.classifier.Storage(err)
		return written, &info
	}
	return written, nil
}

func (p *Pipeline) extractMetadata(ctx context.Context, jobID string, art *Artifact) {
	if p.extractor == nil {
		return
	}

	d, err := p.extractor.Duration(ctx, art.Path)
	switch {
	case err != nil:
		p.logger.Warn("duration unavailable, using default",
			"job_id", jobID, "kind", models.ErrorMetadataUnavailable, "error", err)
	case d <= 0:
		p.logger.Warn("extractor reported non-positive duration, using default",
			"job_id", jobID, "duration", d)
	default:
		art.Duration = d
	}

	thumb, err := p.extractor.Thumbnail(ctx, art.Path, jobID)
	if err != nil {
		p.logger.Warn("thumbnail generation failed",
			"job_id", jobID, "kind", models.ErrorThumbnailFailed, "error", err)
		return
	}
	art.ThumbnailPath = thumb
}

// fail classifies err unless the job was cancelled.
func (p *Pipeline) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	info := p.classifier.Classify(err)
	if info.Kind == models.ErrorUnknown {
		info = classify.DownloadFailed(err)
	}
	return &info
}

// videoContent rejects responses that are clearly not a video stream.
// Servers often omit or genericise the type, so only JSON and HTML fail.
func videoContent(contentType string) bool {
	if contentType == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return true
	}
	return mt != "application/json" && mt != "text/html"
}

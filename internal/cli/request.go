package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/explainer/internal/app"
	"github.com/kiranshivaraju/explainer/internal/orchestrator"
	"github.com/kiranshivaraju/explainer/pkg/models"
	"github.com/kiranshivaraju/explainer/pkg/prompt"
	"github.com/spf13/cobra"
)

var (
	reqDuration      time.Duration
	reqCourse        string
	reqGrade         string
	reqChapter       string
	reqChapterNumber int
	reqTotalChapters int
)

var requestCmd = &cobra.Command{
	Use:   "request [question]",
	Short: "Generate one explanation video and print its progress",
	Args:  cobra.MinimumNArgs(1),
	Run:   runRequestCmd,
}

func init() {
	requestCmd.Flags().DurationVar(&reqDuration, "duration", models.DefaultDurationLimit, "maximum video length")
	requestCmd.Flags().StringVar(&reqCourse, "course", "", "course title for chapter context")
	requestCmd.Flags().StringVar(&reqGrade, "grade", "", "course grade level for chapter context")
	requestCmd.Flags().StringVar(&reqChapter, "chapter", "", "chapter title; enables the chapter prompt")
	requestCmd.Flags().IntVar(&reqChapterNumber, "chapter-number", 1, "chapter number")
	requestCmd.Flags().IntVar(&reqTotalChapters, "total-chapters", 1, "number of chapters in the course")
	rootCmd.AddCommand(requestCmd)
}

func runRequestCmd(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	pipeline, err := app.NewPipeline(cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to create video pipeline", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := models.JobRequest{
		Prompt:        buildPrompt(strings.Join(args, " ")),
		DurationLimit: reqDuration,
	}

	final, err := runRequest(ctx, cmd.OutOrStdout(), pipeline.Orchestrator, req)

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = pipeline.Orchestrator.Close(closeCtx)

	if err != nil {
		slog.Error("Video request stopped", "error", err)
		os.Exit(1)
	}
	if final.State != models.StateCompleted {
		os.Exit(1)
	}
}

func buildPrompt(question string) string {
	var b prompt.Builder
	if reqChapter == "" {
		return b.BuildGeneral(question)
	}
	return b.BuildChapter(prompt.ChapterParams{
		Question:      question,
		CourseTitle:   reqCourse,
		CourseGrade:   reqGrade,
		ChapterTitle:  reqChapter,
		ChapterNumber: reqChapterNumber,
		TotalChapters: reqTotalChapters,
	})
}

type jobRunner interface {
	Request(req models.JobRequest, sink orchestrator.Sink) (*orchestrator.Handle, error)
	Cancel(id uuid.UUID) bool
}

// runRequest starts req and prints every snapshot to out until the job
// finishes. Cancelling ctx cancels the job.
func runRequest(ctx context.Context, out io.Writer, runner jobRunner, req models.JobRequest) (models.JobStatus, error) {
	sink := make(orchestrator.ChannelSink)
	h, err := runner.Request(req, sink)
	if err != nil {
		return models.JobStatus{}, fmt.Errorf("start video job: %w", err)
	}

	var last models.JobStatus
	for {
		select {
		case st := <-sink:
			last = st
			printStatus(out, st)
		case <-h.Done():
			return last, nil
		case <-ctx.Done():
			runner.Cancel(h.ID)
			return last, ctx.Err()
		}
	}
}

func printStatus(out io.Writer, st models.JobStatus) {
	line := fmt.Sprintf("%-18s %3d%%  %s", st.State, st.Progress, st.Message)
	switch {
	case st.State == models.StateCompleted:
		line += fmt.Sprintf("\n  file: %s (%d bytes)", st.LocalFilePath, st.FileSizeBytes)
		if st.ThumbnailPath != "" {
			line += "\n  thumbnail: " + st.ThumbnailPath
		}
	case st.Error != nil:
		line += fmt.Sprintf("\n  error: %s", st.Error.Kind)
		if st.Error.SuggestedAction != "" {
			line += "\n  suggestion: " + st.Error.SuggestedAction
		}
	}
	_, _ = fmt.Fprintln(out, line)
}

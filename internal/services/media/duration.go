package media

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/hsnksc/mp4totext-backend/internal/errors"
	"github.com/hsnksc/mp4totext-backend/internal/utils"
)

// ProbeDuration reads the container duration in seconds using ffprobe. Used
// as a fallback when the provider returned no segments to derive it from.
// Probing is retried briefly since it can race a file still being flushed.
func ProbeDuration(ctx context.Context, mediaPath string) (float64, error) {
	return utils.WithRetry(ctx, func(ctx context.Context) (float64, error) {
		return probeDuration(ctx, mediaPath)
	}, utils.ProbeRetryConfig())
}

func probeDuration(ctx context.Context, mediaPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mediaPath,
	)

	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, errors.NewInternalError("failed to probe media duration with ffprobe", "FFPROBE_ERROR", err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
	if err != nil {
		return 0, errors.NewInternalError("failed to parse ffprobe duration output", "FFPROBE_PARSE_ERROR", err)
	}
	return seconds, nil
}

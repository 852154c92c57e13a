package export

import (
	"context"
	"fmt"
	"os/exec"
)

// RemuxFunc combines a source file's video stream with a captured audio mix
// into one output container.
type RemuxFunc func(ctx context.Context, videoPath, audioPath, outPath string) error

// Remux copies the video stream untouched and lays the captured mix next to
// it. Matroska is used because it holds any codec the source may carry.
func Remux(ffmpegPath string) RemuxFunc {
	return func(ctx context.Context, videoPath, audioPath, outPath string) error {
		cmd := exec.CommandContext(ctx, ffmpegPath,
			"-i", videoPath,
			"-i", audioPath,
			"-map", "0:v",
			"-map", "1:a",
			"-c:v", "copy",
			"-c:a", "copy",
			"-loglevel", "error",
			"-y", outPath,
		)
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("ffmpeg remux %s: %w", outPath, err)
		}
		return nil
	}
}

package encoder

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// FFmpegEncoder renders placeholder clips with an ffmpeg binary.
type FFmpegEncoder struct {
	path string
}

// NewFFmpegEncoder resolves binary on PATH. It fails when ffmpeg is missing
// so callers can run without an encoder.
func NewFFmpegEncoder(binary string) (*FFmpegEncoder, error) {
	if binary == "" {
		binary = "ffmpeg"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	return &FFmpegEncoder{path: path}, nil
}

// EncodeSilentAudio writes an mp3 of silence.
func (e *FFmpegEncoder) EncodeSilentAudio(ctx context.Context, durationSeconds int, destination string) error {
	return e.run(ctx, silentAudioArgs(durationSeconds, destination))
}

// EncodeColorVideo writes an mp4 of a black frame with a silent audio track.
func (e *FFmpegEncoder) EncodeColorVideo(ctx context.Context, durationSeconds int, destination string) error {
	return e.run(ctx, colorVideoArgs(durationSeconds, destination))
}

func (e *FFmpegEncoder) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, e.path, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w, output: %s", err, tail(output, 512))
	}
	return nil
}

func silentAudioArgs(seconds int, destination string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=mono",
		"-t", strconv.Itoa(seconds),
		"-c:a", "libmp3lame",
		"-b:a", "64k",
		"-y",
		destination,
	}
}

func colorVideoArgs(seconds int, destination string) []string {
	duration := strconv.Itoa(seconds)
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "lavfi",
		"-i", "color=c=black:s=320x240:r=25:d=" + duration,
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=mono",
		"-t", duration,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-shortest",
		"-movflags", "+faststart",
		"-y",
		destination,
	}
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}

package ingestion

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"
)

const (
	// DefaultKeyframeInterval is the spacing between extracted video frames.
	DefaultKeyframeInterval = 5 * time.Second
	// DefaultCodecTimeout bounds each codec invocation.
	DefaultCodecTimeout = 60 * time.Second

	scratchPattern = "evidentia-video-*"
	audioFileName  = "audio.mp3"
)

// Codec extracts still frames and an audio track from video files.
type Codec interface {
	// Available reports whether the codec tool can be run.
	Available(ctx context.Context) bool
	// Keyframes writes one frame per interval into outDir and returns the
	// frame paths in order.
	Keyframes(ctx context.Context, src, outDir string, interval time.Duration) ([]string, error)
	// Audio writes a mono 16kHz track into outDir and returns its path.
	Audio(ctx context.Context, src, outDir string) (string, error)
}

// FFmpeg is a Codec that shells out to the ffmpeg binary.
type FFmpeg struct {
	Binary  string
	Timeout time.Duration
}

// NewFFmpeg returns a codec that runs "ffmpeg" from PATH.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{Binary: "ffmpeg", Timeout: DefaultCodecTimeout}
}

func (f *FFmpeg) binary() string {
	if f.Binary == "" {
		return "ffmpeg"
	}
	return f.Binary
}

func (f *FFmpeg) run(ctx context.Context, args ...string) error {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultCodecTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.binary(), args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if len(out) > 300 {
			out = out[len(out)-300:]
		}
		return fmt.Errorf("%s %s: %w: %s", f.binary(), args[0], err, out)
	}
	return nil
}

// Available runs "ffmpeg -version".
func (f *FFmpeg) Available(ctx context.Context) bool {
	return f.run(ctx, "-version") == nil
}

// Keyframes extracts frames with the fps filter as JPEGs named frame_%04d.jpg.
func (f *FFmpeg) Keyframes(ctx context.Context, src, outDir string, interval time.Duration) ([]string, error) {
	if interval <= 0 {
		interval = DefaultKeyframeInterval
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create keyframe directory: %w", err)
	}
	pattern := filepath.Join(outDir, "frame_%04d.jpg")
	fps := fmt.Sprintf("fps=1/%g", interval.Seconds())
	if err := f.run(ctx, "-i", src, "-vf", fps, "-q:v", "2", pattern); err != nil {
		return nil, err
	}
	return listFrames(outDir)
}

// Audio extracts a mono 16kHz 64kbps MP3. An empty output file is an error.
func (f *FFmpeg) Audio(ctx context.Context, src, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create audio directory: %w", err)
	}
	out := filepath.Join(outDir, audioFileName)
	if err := f.run(ctx, "-i", src, "-vn", "-ac", "1", "-ar", "16000", "-b:a", "64k", "-y", out); err != nil {
		return "", err
	}
	info, err := os.Stat(out)
	if err != nil {
		return "", fmt.Errorf("audio output missing: %w", err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("audio output is empty")
	}
	return out, nil
}

// listFrames returns the .jpg files in dir sorted by name.
func listFrames(dir string) ([]string, error) {
	frames, err := filepath.Glob(filepath.Join(dir, "*.jpg"))
	if err != nil {
		return nil, err
	}
	sort.Strings(frames)
	return frames, nil
}

// VideoPlaceholderText describes a video item by how many frames were extracted.
func VideoPlaceholderText(frameCount int) string {
	if frameCount > 0 {
		return fmt.Sprintf("[Video provided. %d keyframe(s) extracted for analysis.]", frameCount)
	}
	return VideoNoKeyframesText
}

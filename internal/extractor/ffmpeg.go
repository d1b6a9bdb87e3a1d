package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpeg opens video files through the ffprobe and ffmpeg binaries
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
}

// NewFFmpeg returns an opener using the given binaries, falling back to the
// names on PATH when empty
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

// probeOutput mirrors the parts of `ffprobe -of json` we read
type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Open probes the container and returns a seekable source
func (f *FFmpeg) Open(ctx context.Context, videoPath string) (Source, error) {
	// Check if video file exists
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("video file does not exist at path: '%s': %w", videoPath, err)
	}

	info, err := f.probe(ctx, videoPath)
	if err != nil {
		return nil, err
	}

	return &ffmpegSource{
		ffmpeg:   f.FFmpegPath,
		path:     videoPath,
		duration: info.duration,
		width:    info.width,
		height:   info.height,
	}, nil
}

type videoInfo struct {
	duration      float64
	width, height int
}

func (f *FFmpeg) probe(ctx context.Context, videoPath string) (videoInfo, error) {
	cmd := exec.CommandContext(ctx, f.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration:stream=codec_type,width,height,duration",
		"-of", "json",
		videoPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return videoInfo{}, ctx.Err()
		}
		return videoInfo{}, fmt.Errorf("ffprobe failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	return parseProbe(stdout.Bytes())
}

// parseProbe extracts duration and dimensions of the first video stream. A
// missing or unparsable duration is reported as 0 so the caller can reject it.
func parseProbe(data []byte) (videoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return videoInfo{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	var info videoInfo
	found := false
	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		info.width, info.height = s.Width, s.Height
		info.duration = parseSeconds(s.Duration)
		found = true
		break
	}
	if !found {
		return videoInfo{}, fmt.Errorf("no video stream found")
	}
	if info.width <= 0 || info.height <= 0 {
		return videoInfo{}, fmt.Errorf("video stream has invalid dimensions %dx%d", info.width, info.height)
	}
	if d := parseSeconds(out.Format.Duration); d > 0 {
		info.duration = d
	}

	return info, nil
}

func parseSeconds(s string) float64 {
	if s == "" || s == "N/A" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

type ffmpegSource struct {
	ffmpeg        string
	path          string
	duration      float64
	width, height int
	current       image.Image
	stdout        bytes.Buffer
	stderr        bytes.Buffer
}

func (s *ffmpegSource) Duration() float64 { return s.duration }

func (s *ffmpegSource) Size() (int, int) { return s.width, s.height }

func (s *ffmpegSource) Frame() image.Image { return s.current }

// Seek decodes exactly one frame at t. The call returns once ffmpeg has
// exited, which is the seek-completed signal.
func (s *ffmpegSource) Seek(ctx context.Context, t float64) error {
	s.stdout.Reset()
	s.stderr.Reset()

	cmd := exec.CommandContext(ctx, s.ffmpeg,
		"-v", "error",
		"-ss", strconv.FormatFloat(t, 'f', 6, 64),
		"-i", s.path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	cmd.Stdout = &s.stdout
	cmd.Stderr = &s.stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg seek to %.3fs failed: %w (stderr: %s)", t, err, strings.TrimSpace(s.stderr.String()))
	}
	if s.stdout.Len() == 0 {
		return fmt.Errorf("ffmpeg produced no frame at %.3fs", t)
	}

	img, err := png.Decode(&s.stdout)
	if err != nil {
		return fmt.Errorf("failed to decode frame at %.3fs: %w", t, err)
	}
	s.current = img
	return nil
}

func (s *ffmpegSource) Close() error {
	s.current = nil
	return nil
}

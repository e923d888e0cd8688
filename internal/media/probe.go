package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog"
)

// SourceInfo is the probed metadata of a media file.
type SourceInfo struct {
	FilePath string
	Duration float64
	Width    int
	Height   int
	HasVideo bool
	HasAudio bool
	Codec    string
}

// Prober discovers source durations with ffprobe, so registering a file on a
// track does not need a hand-typed length.
type Prober struct {
	logger      zerolog.Logger
	ffprobePath string
}

// NewProber locates ffprobe in PATH.
func NewProber(logger zerolog.Logger) (*Prober, error) {
	path, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}
	return &Prober{
		logger:      logger.With().Str("component", "prober").Logger(),
		ffprobePath: path,
	}, nil
}

// Probe extracts metadata from a media file.
func (p *Prober) Probe(ctx context.Context, filePath string) (*SourceInfo, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path is required")
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	}

	p.logger.Debug().Str("file", filePath).Msg("probing source")

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &SourceInfo{FilePath: filePath}

	if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.Duration = dur
	}

	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			info.HasVideo = true
			info.Width = stream.Width
			info.Height = stream.Height
			info.Codec = stream.CodecName
		case "audio":
			info.HasAudio = true
			if info.Codec == "" {
				info.Codec = stream.CodecName
			}
		}
	}

	return info, nil
}

// probeResult matches ffprobe JSON output structure
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Codec and container allowlists for lossless-friendly extraction.
var (
	supportedVideoCodecs = map[string]bool{
		"h264":  true,
		"hevc":  true,
		"vp8":   true,
		"vp9":   true,
		"av1":   true,
		"mpeg4": true,
	}
	supportedAudioCodecs = map[string]bool{
		"aac":    true,
		"mp3":    true,
		"opus":   true,
		"vorbis": true,
		"flac":   true,
	}
	supportedContainers = map[string]bool{
		"mp4":      true,
		"mov":      true,
		"matroska": true,
		"webm":     true,
	}
)

// CompatibilityReport describes whether a file can go through the lossless
// extraction path and what might degrade the result.
type CompatibilityReport struct {
	Compatible bool     `json:"compatible"`
	VideoCodec string   `json:"videoCodec"`
	AudioCodec string   `json:"audioCodec,omitempty"`
	Container  string   `json:"container"`
	HasBFrames bool     `json:"hasBFrames"`
	Warnings   []string `json:"warnings"`
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	HasBFrames int    `json:"has_b_frames"`
}

type probeFormat struct {
	FormatName string `json:"format_name"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

// CheckCompatibility probes path and evaluates its streams and container
// against the extraction allowlists.
func (e *Engine) CheckCompatibility(ctx context.Context, path string) (*CompatibilityReport, error) {
	stdout, _, err := e.runner.Run(ctx, e.cfg.KeyframeScanTimeout, e.cfg.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path)
	if err != nil {
		return nil, fmt.Errorf("failed to probe file: %w", err)
	}

	var probe probeOutput
	if err := json.Unmarshal(stdout, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse probe output: %w", err)
	}

	report := &CompatibilityReport{
		Container: probe.Format.FormatName,
		Warnings:  []string{},
	}

	var videoOK, audioOK, hasAudio bool
	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			if report.VideoCodec != "" {
				continue
			}
			report.VideoCodec = stream.CodecName
			videoOK = supportedVideoCodecs[stream.CodecName]
			if !videoOK {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("video codec %q is outside the supported set", stream.CodecName))
			}
			if stream.HasBFrames > 0 {
				report.HasBFrames = true
				report.Warnings = append(report.Warnings,
					"stream uses B-frames; cut points may shift slightly under stream copy")
			}
		case "audio":
			if hasAudio {
				continue
			}
			hasAudio = true
			report.AudioCodec = stream.CodecName
			audioOK = supportedAudioCodecs[stream.CodecName]
			if !audioOK {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("audio codec %q is outside the supported set", stream.CodecName))
			}
		}
	}

	containerOK := containerSupported(probe.Format.FormatName)
	if !containerOK {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("container %q is outside the supported set", probe.Format.FormatName))
	}
	if report.VideoCodec == "" {
		report.Warnings = append(report.Warnings, "no video stream found")
	}

	report.Compatible = videoOK && (!hasAudio || audioOK) && containerOK
	return report, nil
}

// containerSupported matches any comma-separated token of ffprobe's
// format_name (e.g. "mov,mp4,m4a,3gp,3g2,mj2") against the allowlist.
func containerSupported(formatName string) bool {
	for _, token := range strings.Split(formatName, ",") {
		if supportedContainers[strings.TrimSpace(token)] {
			return true
		}
	}
	return false
}

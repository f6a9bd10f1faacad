// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package ffmpeg

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ZSC714725/niseyuki/internal/job"
)

// Concrete encoder implementations.
const (
	CodecX264  = "libx264"
	CodecX265  = "libx265"
	CodecQSV   = "h264_qsv"
	CodecNVENC = "h264_nvenc"
	CodecAMF   = "h264_amf"
)

const (
	minQuality = 0.0
	maxQuality = 51.0

	// volume multipliers this close to 1.0 leave the audio untouched
	volumeEpsilon = 0.01
)

// Command is the engine argv (without the binary) and the degradations
// found while building it.
type Command struct {
	Args     []string
	Warnings []string
}

// String renders binary plus args, quoting tokens with spaces or quotes.
func (c Command) String(binary string) string {
	tokens := make([]string, 0, len(c.Args)+1)
	if binary != "" {
		tokens = append(tokens, filepath.FromSlash(binary))
	}
	for _, arg := range c.Args {
		if strings.ContainsAny(arg, " \"") {
			arg = `"` + strings.ReplaceAll(arg, `"`, `\"`) + `"`
		}
		tokens = append(tokens, arg)
	}
	return strings.Join(tokens, " ")
}

func (c *Command) warn(format string, args ...interface{}) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

// Build maps j to engine arguments. It never fails; unusable settings fall
// back to defaults and are reported in Warnings.
func Build(j job.Job) Command {
	c := Command{Args: make([]string, 0, 48)}

	// --- Preamble ---
	c.Args = append(c.Args, "-hide_banner", "-y", "-progress", "pipe:1", "-nostats")

	// --- Time range and input ---
	c.appendInputAndCut(j)

	// --- Stream maps ---
	c.Args = append(c.Args, "-map", "0:v:0", "-map", AudioSelector(j.Audio.PreferredTrack))

	// --- Filters ---
	if vf := c.videoFilters(j); len(vf) > 0 {
		c.Args = append(c.Args, "-vf", strings.Join(vf, ","))
	}
	if af := audioFilters(j); len(af) > 0 {
		c.Args = append(c.Args, "-af", strings.Join(af, ","))
	}

	// --- Video codec ---
	codec := VideoCodec(j)
	c.Args = append(c.Args, "-c:v", codec)
	if preset := PresetFor(codec, j.Video.Preset); preset != "" {
		if codec == CodecAMF {
			c.Args = append(c.Args, "-quality", preset)
		} else {
			c.Args = append(c.Args, "-preset", preset)
		}
	}
	c.Args = append(c.Args, qualityArgs(codec, j.Video.Quality)...)

	// --- Audio codec ---
	c.Args = append(c.Args, audioArgs(j)...)

	// --- Compatibility profile ---
	if j.TelegramMode {
		c.Args = append(c.Args,
			"-movflags", "+faststart",
			"-pix_fmt", "yuv420p",
			"-profile:v", "high",
			"-level:v", "4.1",
		)
	}

	// --- Trailer ---
	c.Args = append(c.Args, "-map_metadata", "-1", "-sn")
	c.Args = append(c.Args, filepath.FromSlash(j.ResolvedOutputPath()))

	return c
}

func (c *Command) appendInputAndCut(j job.Job) {
	var start, end float64
	hasStart, hasEnd := false, false
	if j.Cut.Enabled {
		start, hasStart = ParseTime(j.Cut.Start)
		end, hasEnd = ParseTime(j.Cut.End)
	}

	if hasStart {
		c.Args = append(c.Args, "-ss", strings.TrimSpace(j.Cut.Start))
	}

	c.Args = append(c.Args, "-i", j.VideoPath)

	if !hasEnd {
		return
	}
	switch {
	case hasStart && end > start:
		c.Args = append(c.Args, "-t", FormatSeconds(end-start))
	case !hasStart && end > 0:
		c.Args = append(c.Args, "-to", strings.TrimSpace(j.Cut.End))
	}
}

// AudioSelector turns a track choice into an input-qualified stream
// selector. Empty means the first audio stream.
func AudioSelector(track string) string {
	track = strings.TrimSpace(track)
	if track == "" {
		return "0:a:0"
	}
	if !strings.HasPrefix(track, "0:") {
		return "0:" + track
	}
	return track
}

func (c *Command) videoFilters(j job.Job) []string {
	var filters []string

	mode := j.Video.ResizeMode.Normalize()
	switch mode {
	case job.Resize1080p, job.Resize720p, job.Resize480p:
		filters = append(filters, fmt.Sprintf("scale=-2:%d:flags=lanczos", mode.Height()))
	case job.ResizeCustom:
		if size := j.Video.CustomSize; size.Valid() {
			filters = append(filters, fmt.Sprintf("scale=%d:%d:flags=lanczos", size.Width, size.Height))
		} else {
			c.warn("Custom resize requested but size is invalid; keeping source resolution.")
		}
	}

	if sub := j.SubtitleSource(); sub != "" {
		if r := j.EffectiveRenderer(); r.Legacy() {
			c.warn("%s renderer is unavailable; using libass via ffmpeg subtitles filter.", r)
		}
		filters = append(filters, fmt.Sprintf("subtitles='%s'", EscapeFilterPath(sub)))
	}

	return filters
}

// EscapeFilterPath escapes a path for a quoted filter-graph string.
func EscapeFilterPath(path string) string {
	escaped := filepath.FromSlash(path)
	escaped = strings.ReplaceAll(escaped, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	return escaped
}

func audioFilters(j job.Job) []string {
	var filters []string
	if math.Abs(j.Audio.VolumeSource-1.0) > volumeEpsilon {
		filters = append(filters, "volume="+strconv.FormatFloat(j.Audio.VolumeSource, 'f', 2, 64))
	}
	return filters
}

// VideoCodec resolves the encoder implementation. Telegram mode always uses
// libx264.
func VideoCodec(j job.Job) string {
	if j.TelegramMode {
		return CodecX264
	}
	switch j.Video.Encoder.Normalize() {
	case job.EncoderX265:
		return CodecX265
	case job.EncoderQSV:
		return CodecQSV
	case job.EncoderNVENC:
		return CodecNVENC
	case job.EncoderAMD:
		return CodecAMF
	default:
		return CodecX264
	}
}

// PresetFor translates a software preset into the vocabulary of codec.
func PresetFor(codec string, preset job.Preset) string {
	p := job.Preset(strings.ToLower(strings.TrimSpace(string(preset))))

	switch codec {
	case CodecNVENC:
		switch p {
		case job.PresetVerySlow, job.PresetSlower:
			return "p1"
		case job.PresetSlow:
			return "p2"
		case job.PresetFast:
			return "p5"
		case job.PresetFaster:
			return "p6"
		case job.PresetVeryFast:
			return "p7"
		default:
			return "p4"
		}

	case CodecAMF:
		switch p {
		case job.PresetVerySlow, job.PresetSlower, job.PresetSlow:
			return "quality"
		case job.PresetMedium, job.PresetFast:
			return "balanced"
		default:
			return "speed"
		}

	case CodecQSV:
		switch p {
		case job.PresetVerySlow, job.PresetSlower:
			return "veryslow"
		case job.PresetSlow:
			return "slow"
		case job.PresetFast:
			return "fast"
		case job.PresetFaster, job.PresetVeryFast:
			return "veryfast"
		default:
			return "medium"
		}
	}

	if p == "" {
		return string(job.PresetMedium)
	}
	return strings.TrimSpace(string(preset))
}

// ClampQuality limits q to the CRF/CQ range.
func ClampQuality(q float64) float64 {
	if math.IsNaN(q) {
		return minQuality
	}
	return math.Max(minQuality, math.Min(maxQuality, q))
}

func qualityArgs(codec string, quality float64) []string {
	q := ClampQuality(quality)
	oneDecimal := strconv.FormatFloat(q, 'f', 1, 64)

	switch codec {
	case CodecNVENC:
		return []string{"-cq", oneDecimal, "-b:v", "0"}
	case CodecQSV:
		return []string{"-global_quality", strconv.Itoa(int(math.Round(q))), "-look_ahead", "1"}
	case CodecAMF:
		return []string{"-q:v", oneDecimal}
	default:
		return []string{"-crf", oneDecimal}
	}
}

func audioArgs(j job.Job) []string {
	codec := strings.ToLower(strings.TrimSpace(j.Audio.Codec))
	if codec == "" || j.TelegramMode {
		codec = "aac"
	}

	args := []string{"-c:a", codec}
	if codec == "aac" {
		bitrate := j.Audio.BitrateKbps
		if bitrate <= 0 {
			bitrate = job.DefaultAudioBitrate
		}
		args = append(args, "-b:a", fmt.Sprintf("%dk", bitrate), "-profile:a", "aac_low")
	}
	return args
}

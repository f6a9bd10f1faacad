// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心
//
// Package job describes one encode request and derives its output path.

package job

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/lithammer/shortuuid/v4"
	"gopkg.in/yaml.v3"
)

// DefaultAudioBitrate is used when the requested bitrate is not positive.
const DefaultAudioBitrate = 192

// SubtitleInfo 字幕与渲染器
type SubtitleInfo struct {
	Path             string   `json:"path" yaml:"path"`
	RendererOverride Renderer `json:"renderer_override" yaml:"renderer_override"`
}

// IntroOutro holds the stitching inputs. None are rendered yet.
type IntroOutro struct {
	IntroPath     string `json:"intro_path" yaml:"intro_path"`
	OutroPath     string `json:"outro_path" yaml:"outro_path"`
	LogoPath      string `json:"logo_path" yaml:"logo_path"`
	ThumbnailPath string `json:"thumbnail_path" yaml:"thumbnail_path"`
}

// AudioSettings 音频参数
type AudioSettings struct {
	Codec          string  `json:"codec" yaml:"codec"`
	BitrateKbps    int     `json:"bitrate_kbps" yaml:"bitrate_kbps"`
	PreferredTrack string  `json:"preferred_track" yaml:"preferred_track"`
	VolumeSource   float64 `json:"volume_source" yaml:"volume_source"`
	VolumeIntro    float64 `json:"volume_intro" yaml:"volume_intro"`
	VolumeOutro    float64 `json:"volume_outro" yaml:"volume_outro"`
}

// Size is a pixel dimension.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// VideoSettings 视频参数
type VideoSettings struct {
	Encoder    EncoderFamily `json:"encoder" yaml:"encoder"`
	Preset     Preset        `json:"preset" yaml:"preset"`
	Quality    float64       `json:"quality" yaml:"quality"`
	ResizeMode ResizeMode    `json:"resize_mode" yaml:"resize_mode"`
	CustomSize Size          `json:"custom_size" yaml:"custom_size"`
}

// LogoSettings 台标参数
type LogoSettings struct {
	ImagePath       string         `json:"image_path" yaml:"image_path"`
	Placement       Placement      `json:"placement" yaml:"placement"`
	CustomX         int            `json:"custom_x" yaml:"custom_x"`
	CustomY         int            `json:"custom_y" yaml:"custom_y"`
	Opacity         float64        `json:"opacity" yaml:"opacity"`
	Visibility      LogoVisibility `json:"visibility" yaml:"visibility"`
	VisibleDuration int            `json:"visible_duration" yaml:"visible_duration"`
	VisibleInterval int            `json:"visible_interval" yaml:"visible_interval"`
}

// CutSettings is a time range. Empty tokens leave that side unbounded.
type CutSettings struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Start   string `json:"start" yaml:"start"`
	End     string `json:"end" yaml:"end"`
}

// Job is the full description of one encode.
type Job struct {
	ID                  string        `json:"id" yaml:"id"`
	VideoPath           string        `json:"video_path" yaml:"video_path"`
	SubtitlePath        string        `json:"subtitle_path" yaml:"subtitle_path"`
	Subtitle            SubtitleInfo  `json:"subtitle" yaml:"subtitle"`
	AdditionalSubtitles []string      `json:"additional_subtitles" yaml:"additional_subtitles"`
	IntroOutro          IntroOutro    `json:"intro_outro" yaml:"intro_outro"`
	Audio               AudioSettings `json:"audio" yaml:"audio"`
	Video               VideoSettings `json:"video" yaml:"video"`
	Logo                LogoSettings  `json:"logo" yaml:"logo"`
	Cut                 CutSettings   `json:"cut" yaml:"cut"`
	RendererMode        Renderer      `json:"renderer_mode" yaml:"renderer_mode"`
	TelegramMode        bool          `json:"telegram_mode" yaml:"telegram_mode"`
	OutputFile          string        `json:"output_file" yaml:"output_file"`
	OutputFolder        string        `json:"output_folder" yaml:"output_folder"`
	DurationMs          int64         `json:"duration_ms" yaml:"duration_ms"`
}

// New returns a job for source with the defaults of an untouched form.
func New(source string) Job {
	return Job{
		VideoPath: source,
		Audio: AudioSettings{
			Codec:        "AAC",
			BitrateKbps:  DefaultAudioBitrate,
			VolumeSource: 1,
			VolumeIntro:  1,
			VolumeOutro:  1,
		},
		Video: VideoSettings{
			Encoder:    EncoderX264,
			Preset:     PresetMedium,
			Quality:    20,
			ResizeMode: ResizeNone,
		},
		Logo: LogoSettings{
			Placement:  PlacementTopLeft,
			Opacity:    0.8,
			Visibility: VisibilityAlways,
		},
		RendererMode: RendererAuto,
	}
}

// Clone returns a deep copy, so later edits of the caller's job never
// reach a running encode.
func (j Job) Clone() Job {
	c := j
	if j.AdditionalSubtitles != nil {
		c.AdditionalSubtitles = append([]string(nil), j.AdditionalSubtitles...)
	}
	return c
}

// EnsureID assigns a short id when the job has none.
func (j *Job) EnsureID() string {
	if len(j.ID) == 0 {
		j.ID = shortuuid.New()
	}
	return j.ID
}

// ResolvedOutputPath derives the artifact path: explicit file, then output
// folder, then beside the source.
func (j Job) ResolvedOutputPath() string {
	if len(j.OutputFile) != 0 {
		return j.OutputFile
	}

	base := baseName(j.VideoPath)
	if len(j.OutputFolder) != 0 {
		candidate := filepath.Join(j.OutputFolder, base+".mp4")
		if !j.TelegramMode {
			candidate = strings.TrimSuffix(candidate, ".mp4") + ".mkv"
		}
		if abs, err := filepath.Abs(candidate); err == nil {
			candidate = abs
		}
		return candidate
	}

	dir := filepath.Dir(j.VideoPath)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return filepath.Join(dir, base+j.Container())
}

// Container returns the extension used when no explicit file is given.
func (j Job) Container() string {
	if j.TelegramMode {
		return ".mp4"
	}
	return ".mkv"
}

// EffectiveRenderer is the subtitle override if set, else the global mode.
func (j Job) EffectiveRenderer() Renderer {
	if r := j.Subtitle.RendererOverride.Normalize(); r != RendererAuto {
		return r
	}
	return j.RendererMode.Normalize()
}

// SubtitleSource returns the subtitle to burn in, if any.
func (j Job) SubtitleSource() string {
	if len(j.SubtitlePath) != 0 {
		return j.SubtitlePath
	}
	return j.Subtitle.Path
}

// Unimplemented lists the requested features that are accepted but ignored.
func (j Job) Unimplemented() []string {
	var out []string
	if len(j.IntroOutro.IntroPath) != 0 || len(j.IntroOutro.OutroPath) != 0 {
		out = append(out, "Intro/outro stitching is not implemented yet and will be ignored.")
	}
	if len(j.IntroOutro.ThumbnailPath) != 0 {
		out = append(out, "Thumbnail injection is not implemented yet and will be ignored.")
	}
	if len(j.Logo.ImagePath) != 0 || len(j.IntroOutro.LogoPath) != 0 {
		out = append(out, "Logo overlay is not implemented yet and will be ignored.")
	}
	if len(j.AdditionalSubtitles) != 0 {
		out = append(out, "Additional subtitle tracks are not implemented yet and will be ignored.")
	}
	return out
}

// Load reads a job from a YAML or JSON file. Fields missing in the file keep
// the defaults of New.
func Load(path string) (Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Job{}, err
	}

	j := New("")
	if err := yaml.Unmarshal(data, &j); err != nil {
		return Job{}, err
	}
	return j, nil
}

func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

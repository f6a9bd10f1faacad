// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package job

import "strings"

// EncoderFamily selects the video encoder implementation.
type EncoderFamily string

const (
	EncoderX264  EncoderFamily = "x264"
	EncoderX265  EncoderFamily = "x265"
	EncoderQSV   EncoderFamily = "qsv"
	EncoderNVENC EncoderFamily = "nvenc"
	EncoderAMD   EncoderFamily = "amd"
)

// Normalize folds case; anything unknown becomes x264.
func (f EncoderFamily) Normalize() EncoderFamily {
	switch v := EncoderFamily(strings.ToLower(strings.TrimSpace(string(f)))); v {
	case EncoderX264, EncoderX265, EncoderQSV, EncoderNVENC, EncoderAMD:
		return v
	default:
		return EncoderX264
	}
}

// Hardware reports whether the family is a GPU/ASIC encoder.
func (f EncoderFamily) Hardware() bool {
	switch f.Normalize() {
	case EncoderQSV, EncoderNVENC, EncoderAMD:
		return true
	}
	return false
}

// Preset is a point on the software 7-step speed scale. Values outside the
// scale are kept verbatim for the software encoders.
type Preset string

const (
	PresetVerySlow Preset = "veryslow"
	PresetSlower   Preset = "slower"
	PresetSlow     Preset = "slow"
	PresetMedium   Preset = "medium"
	PresetFast     Preset = "fast"
	PresetFaster   Preset = "faster"
	PresetVeryFast Preset = "veryfast"
)

// Presets lists the software scale from slowest to fastest.
var Presets = []Preset{
	PresetVerySlow, PresetSlower, PresetSlow, PresetMedium,
	PresetFast, PresetFaster, PresetVeryFast,
}

// ResizeMode selects the output resolution.
type ResizeMode string

const (
	ResizeNone   ResizeMode = "none"
	Resize1080p  ResizeMode = "1080p"
	Resize720p   ResizeMode = "720p"
	Resize480p   ResizeMode = "480p"
	ResizeCustom ResizeMode = "custom"
)

// Normalize folds case; anything unknown becomes none.
func (m ResizeMode) Normalize() ResizeMode {
	switch v := ResizeMode(strings.ToLower(strings.TrimSpace(string(m)))); v {
	case Resize1080p, Resize720p, Resize480p, ResizeCustom:
		return v
	default:
		return ResizeNone
	}
}

// Height is the fixed target height of the preset modes, 0 otherwise.
func (m ResizeMode) Height() int {
	switch m.Normalize() {
	case Resize1080p:
		return 1080
	case Resize720p:
		return 720
	case Resize480p:
		return 480
	}
	return 0
}

// Renderer names a subtitle renderer. Only libass is available.
type Renderer string

const (
	RendererAuto        Renderer = "Auto"
	RendererVSFilter    Renderer = "VSFilter"
	RendererVSFilterMod Renderer = "VSFilterMod"
	RendererLibass      Renderer = "libass"
)

// Normalize matches case-insensitively; empty and unknown become Auto.
func (r Renderer) Normalize() Renderer {
	switch strings.ToLower(strings.TrimSpace(string(r))) {
	case "vsfilter":
		return RendererVSFilter
	case "vsfiltermod":
		return RendererVSFilterMod
	case "libass":
		return RendererLibass
	default:
		return RendererAuto
	}
}

// Legacy reports whether r is one of the unsupported VSFilter renderers.
func (r Renderer) Legacy() bool {
	n := r.Normalize()
	return n == RendererVSFilter || n == RendererVSFilterMod
}

// Placement is the logo anchor.
type Placement string

const (
	PlacementTopLeft     Placement = "top-left"
	PlacementTopRight    Placement = "top-right"
	PlacementBottomLeft  Placement = "bottom-left"
	PlacementBottomRight Placement = "bottom-right"
	PlacementCustom      Placement = "custom"
)

// LogoVisibility is when the logo is shown.
type LogoVisibility string

const (
	VisibilityAlways LogoVisibility = "always"
	VisibilityIntro  LogoVisibility = "intro"
	VisibilityOutro  LogoVisibility = "outro"
	VisibilityTimed  LogoVisibility = "timed"
)

// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package api

import (
	"github.com/ZSC714725/niseyuki/internal/ffmpeg/skills"
)

// SkillsResponse for API
type SkillsResponse struct {
	FFmpeg struct {
		Version       string          `json:"version"`
		Compiler      string          `json:"compiler"`
		Configuration string          `json:"configuration"`
		Libraries     []SkillsLibrary `json:"libraries"`
	} `json:"ffmpeg"`

	Encoders struct {
		Video    []SkillsEntry `json:"video"`
		Audio    []SkillsEntry `json:"audio"`
		Subtitle []SkillsEntry `json:"subtitle"`
	} `json:"encoders"`

	Filters  []SkillsEntry `json:"filters"`
	HWAccels []string      `json:"hwaccels"`

	// Subtitles reports whether the subtitles filter needed for burn-in exists.
	Subtitles bool `json:"subtitles"`
}

type SkillsLibrary struct {
	Name     string `json:"name"`
	Compiled string `json:"compiled"`
	Linked   string `json:"linked"`
}

type SkillsEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func skillsToAPI(s skills.Skills) SkillsResponse {
	resp := SkillsResponse{}

	resp.FFmpeg.Version = s.FFmpeg.Version
	resp.FFmpeg.Compiler = s.FFmpeg.Compiler
	resp.FFmpeg.Configuration = s.FFmpeg.Configuration
	resp.FFmpeg.Libraries = make([]SkillsLibrary, len(s.FFmpeg.Libraries))
	for i, lib := range s.FFmpeg.Libraries {
		resp.FFmpeg.Libraries[i] = SkillsLibrary{Name: lib.Name, Compiled: lib.Compiled, Linked: lib.Linked}
	}

	resp.Encoders.Video = []SkillsEntry{}
	resp.Encoders.Audio = []SkillsEntry{}
	resp.Encoders.Subtitle = []SkillsEntry{}
	for _, e := range s.Encoders {
		entry := SkillsEntry{ID: e.Id, Name: e.Name}
		switch e.Kind {
		case "video":
			resp.Encoders.Video = append(resp.Encoders.Video, entry)
		case "audio":
			resp.Encoders.Audio = append(resp.Encoders.Audio, entry)
		case "subtitle":
			resp.Encoders.Subtitle = append(resp.Encoders.Subtitle, entry)
		}
	}

	resp.Filters = make([]SkillsEntry, len(s.Filters))
	for i, f := range s.Filters {
		resp.Filters[i] = SkillsEntry{ID: f.Id, Name: f.Name}
	}

	resp.HWAccels = append([]string{}, s.HWAccels...)
	resp.Subtitles = s.HasFilter("subtitles")

	return resp
}

// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package skills

import "testing"

const versionOutput = `ffmpeg version 6.1.1 Copyright (c) 2000-2023 the FFmpeg developers
built with gcc 13.2.0 (GCC)
configuration: --enable-gpl --enable-libass --enable-libx264
libavutil      58. 29.100 / 58. 29.100
libavcodec     60. 31.102 / 60. 31.102
`

const encodersOutput = `Encoders:
 V..... = Video
 A..... = Audio
 S..... = Subtitle
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder (codec h264)
 A....D aac                  AAC (Advanced Audio Coding)
 S..... ass                  ASS (Advanced SubStation Alpha) subtitle
`

const filtersOutput = `Filters:
  T.. = Timeline support
  .S. = Slice threading
 ... scale             V->V       Scale the input video size and/or convert the image format.
 T.. subtitles         V->V       Render text subtitles onto input video using the libass library.
 TSC volume            A->A       Change input volume.
`

const hwaccelsOutput = `Hardware acceleration methods:
vdpau
cuda
qsv
`

func TestParseVersion(t *testing.T) {
	b := parseVersion([]byte(versionOutput))
	if b.Version != "6.1.1" {
		t.Fatalf("Version = %q", b.Version)
	}
	if b.Compiler != "gcc 13.2.0 (GCC)" {
		t.Fatalf("Compiler = %q", b.Compiler)
	}
	if len(b.Libraries) != 2 || b.Libraries[1].Name != "libavcodec" {
		t.Fatalf("Libraries = %+v", b.Libraries)
	}

	if v := parseVersion([]byte("ffmpeg version 7.0 Copyright")).Version; v != "7.0.0" {
		t.Fatalf("short version = %q", v)
	}
}

func TestParseEncoders(t *testing.T) {
	s := Skills{Encoders: parseEncoders([]byte(encodersOutput))}
	if len(s.Encoders) != 4 {
		t.Fatalf("len = %d, want 4: %+v", len(s.Encoders), s.Encoders)
	}
	if !s.HasEncoder("h264_nvenc") || s.HasEncoder("h264_amf") {
		t.Fatal("HasEncoder mismatch")
	}
	if s.Encoders[2].Kind != "audio" || s.Encoders[3].Kind != "subtitle" {
		t.Fatalf("kinds = %+v", s.Encoders)
	}
}

func TestParseFilters(t *testing.T) {
	s := Skills{Filters: parseFilters([]byte(filtersOutput))}
	if len(s.Filters) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(s.Filters), s.Filters)
	}
	if !s.HasFilter("subtitles") {
		t.Fatal("subtitles filter not found")
	}
}

func TestParseHWAccels(t *testing.T) {
	got := parseHWAccels([]byte(hwaccelsOutput))
	if len(got) != 3 || got[2] != "qsv" {
		t.Fatalf("hwaccels = %v", got)
	}
}

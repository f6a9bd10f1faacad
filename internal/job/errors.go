// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package job

import "errors"

var (
	ErrNoSource      = errors.New("invalid job: source path is empty")
	ErrInvalidSource = errors.New("invalid source path")
	ErrInvalidOutput = errors.New("invalid output path")

	ErrInvalidSubtitle = errors.New("invalid subtitle path")
)

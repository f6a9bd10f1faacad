// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package job

import (
	"fmt"
	"regexp"
	"strings"
)

// Validator decides whether a path may be used as a job source or output.
type Validator interface {
	IsValid(path string) bool
}

type patternValidator struct {
	allow []*regexp.Regexp
	block []*regexp.Regexp
}

// NewValidator compiles allow and block expressions. Empty expressions are
// ignored; with no allow expressions everything not blocked is allowed.
func NewValidator(allow, block []string) (Validator, error) {
	v := &patternValidator{}

	var err error
	if v.allow, err = compileAll("allow", allow); err != nil {
		return nil, err
	}
	if v.block, err = compileAll("block", block); err != nil {
		return nil, err
	}
	return v, nil
}

func compileAll(kind string, exps []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, exp := range exps {
		exp = strings.TrimSpace(exp)
		if exp == "" {
			continue
		}
		re, err := regexp.Compile(exp)
		if err != nil {
			return nil, fmt.Errorf("invalid %s expression '%s': %w", kind, exp, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (v *patternValidator) IsValid(path string) bool {
	for _, e := range v.block {
		if e.MatchString(path) {
			return false
		}
	}
	if len(v.allow) == 0 {
		return true
	}
	for _, e := range v.allow {
		if e.MatchString(path) {
			return true
		}
	}
	return false
}

// Validate checks that the job names a source and that the source, the
// resolved output and any subtitle pass v. A nil v only checks the source.
func (j Job) Validate(v Validator) error {
	if strings.TrimSpace(j.VideoPath) == "" {
		return ErrNoSource
	}
	if v == nil {
		return nil
	}
	if !v.IsValid(j.VideoPath) {
		return ErrInvalidSource
	}
	if !v.IsValid(j.ResolvedOutputPath()) {
		return ErrInvalidOutput
	}
	if sub := j.SubtitleSource(); len(sub) != 0 && !v.IsValid(sub) {
		return ErrInvalidSubtitle
	}
	return nil
}

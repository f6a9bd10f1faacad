// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ZSC714725/niseyuki/internal/config"
	"github.com/ZSC714725/niseyuki/internal/encoder"
	"github.com/ZSC714725/niseyuki/internal/ffmpeg"
	"github.com/ZSC714725/niseyuki/internal/job"
	"github.com/ZSC714725/niseyuki/internal/logger"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logOnce sync.Once
	logger  logger.Logger
	logErr  error
	logFile *os.File
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

// ensureLogger builds the logger once, writing to stderr plus the configured
// log file.
func (c *commandContext) ensureLogger() (logger.Logger, error) {
	c.logOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logErr = err
			return
		}

		levelName := cfg.Log.Level
		if c.logLevelFlag != nil && *c.logLevelFlag != "" {
			levelName = *c.logLevelFlag
		}
		level, err := logger.ParseLevel(levelName)
		if err != nil {
			c.logErr = err
			return
		}

		var out io.Writer = os.Stderr
		if cfg.Log.File != "" {
			f, err := logger.OpenFile(cfg.Log.File)
			if err != nil {
				c.logErr = fmt.Errorf("open log file: %w", err)
				return
			}
			c.logFile = f
			out = io.MultiWriter(os.Stderr, f)
		}
		c.logger = logger.NewWithLevel("niseyuki: ", level, out)
	})
	return c.logger, c.logErr
}

func (c *commandContext) locator() ffmpeg.Locator {
	cfg, _ := c.ensureConfig()
	if cfg == nil {
		return ffmpeg.DefaultLocator()
	}
	return ffmpeg.Locator{
		AppDir:      cfg.Engine.AppDir,
		FFmpegName:  cfg.Engine.FFmpegName,
		FFprobeName: cfg.Engine.FFprobeName,
	}
}

func (c *commandContext) validator() (job.Validator, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return job.NewValidator(cfg.Input.Allow, cfg.Input.Block)
}

func (c *commandContext) newSupervisor() (*encoder.Supervisor, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	log, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return encoder.New(encoder.Options{
		Resolver:     c.locator(),
		StartTimeout: cfg.Timeouts.Start,
		ProbeTimeout: cfg.Timeouts.Probe,
		StopTimeout:  cfg.Timeouts.Stop,
		History:      cfg.Events.History,
		ReportLines:  cfg.Report.Lines,
		Logger:       log,
	}), nil
}

// ffmpegBinary returns the resolved engine path, or the bare name when it
// cannot be found.
func (c *commandContext) ffmpegBinary() string {
	l := c.locator()
	if path, err := l.FFmpeg(); err == nil {
		return path
	}
	if l.FFmpegName != "" {
		return l.FFmpegName
	}
	return "ffmpeg"
}

func (c *commandContext) close() {
	if c.logFile != nil {
		c.logFile.Close()
		c.logFile = nil
	}
}

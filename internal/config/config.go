// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀, 例如 NISEYUKI_SERVER_BIND
const EnvPrefix = "NISEYUKI"

// Config 应用配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`
	Events   EventsConfig   `mapstructure:"events"`
	Report   ReportConfig   `mapstructure:"report"`
	Log      LogConfig      `mapstructure:"log"`
	Input    InputConfig    `mapstructure:"input"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Bind string `mapstructure:"bind"`
}

// EngineConfig 引擎查找配置. AppDir 为空时使用可执行文件所在目录
type EngineConfig struct {
	AppDir      string `mapstructure:"app_dir"`
	FFmpegName  string `mapstructure:"ffmpeg_name"`
	FFprobeName string `mapstructure:"ffprobe_name"`
}

// TimeoutsConfig 启动/探测/停止超时
type TimeoutsConfig struct {
	Start time.Duration `mapstructure:"start"`
	Probe time.Duration `mapstructure:"probe"`
	Stop  time.Duration `mapstructure:"stop"`
}

// EventsConfig 事件历史
type EventsConfig struct {
	History int `mapstructure:"history"`
}

// ReportConfig 输出日志保留行数
type ReportConfig struct {
	Lines int `mapstructure:"lines"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// InputConfig 输入/输出路径白名单与黑名单 (正则)
type InputConfig struct {
	Allow []string `mapstructure:"allow"`
	Block []string `mapstructure:"block"`
}

// NotifyConfig 任务结束回调
type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Retries    int    `mapstructure:"retries"`
}

var defaults = map[string]interface{}{
	"server.bind":         ":8080",
	"engine.app_dir":      "",
	"engine.ffmpeg_name":  "ffmpeg",
	"engine.ffprobe_name": "ffprobe",
	"timeouts.start":      5 * time.Second,
	"timeouts.probe":      8 * time.Second,
	"timeouts.stop":       2 * time.Second,
	"events.history":      1024,
	"report.lines":        100,
	"log.level":           "info",
	"log.file":            "",
	"input.allow":         []string{},
	"input.block":         []string{},
	"notify.webhook_url":  "",
	"notify.retries":      3,
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default 返回默认配置 (含环境变量覆盖)
func Default() *Config {
	cfg, _ := decode(newViper())
	return cfg
}

// Load 依次合并默认值, YAML 文件和环境变量. 文件不存在时不报错
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	// 填充空值
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = ":8080"
	}
	if cfg.Engine.FFmpegName == "" {
		cfg.Engine.FFmpegName = "ffmpeg"
	}
	if cfg.Engine.FFprobeName == "" {
		cfg.Engine.FFprobeName = "ffprobe"
	}
	if cfg.Timeouts.Start <= 0 {
		cfg.Timeouts.Start = 5 * time.Second
	}
	if cfg.Timeouts.Probe <= 0 {
		cfg.Timeouts.Probe = 8 * time.Second
	}
	if cfg.Timeouts.Stop <= 0 {
		cfg.Timeouts.Stop = 2 * time.Second
	}
	if cfg.Events.History <= 0 {
		cfg.Events.History = 1024
	}
	if cfg.Report.Lines <= 0 {
		cfg.Report.Lines = 100
	}
	if cfg.Notify.Retries < 0 {
		cfg.Notify.Retries = 0
	}

	return cfg, nil
}

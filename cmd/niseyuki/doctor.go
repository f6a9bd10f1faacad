// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"

	"github.com/ZSC714725/niseyuki/internal/ffmpeg"
	"github.com/ZSC714725/niseyuki/internal/ffmpeg/skills"
)

// encoder families and the ffmpeg encoder each one needs
var familyEncoders = [][2]string{
	{"x264", ffmpeg.CodecX264},
	{"x265", ffmpeg.CodecX265},
	{"qsv", ffmpeg.CodecQSV},
	{"nvenc", ffmpeg.CodecNVENC},
	{"amd", ffmpeg.CodecAMF},
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Show resolved executables, ffmpeg capabilities and host info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			l := ctx.locator()

			ffmpegPath, ffmpegErr := l.FFmpeg()
			ffprobePath, ffprobeErr := l.FFprobe()

			fmt.Fprintln(out, renderTable("Executables", []string{"Tool", "Override", "Resolved"}, [][]string{
				{"ffmpeg", envOrDash(ffmpeg.EnvFFmpeg), pathOrError(ffmpegPath, ffmpegErr)},
				{"ffprobe", envOrDash(ffmpeg.EnvFFprobe), pathOrError(ffprobePath, ffprobeErr)},
			}))

			if ffmpegErr == nil {
				skillsCtx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
				sk, err := skills.New(skillsCtx, ffmpegPath)
				cancel()
				if err != nil {
					fmt.Fprintf(out, "ffmpeg capabilities unavailable: %v\n", err)
				} else {
					writeSkills(out, sk)
				}
			}

			writeHost(out)

			if ffmpegErr != nil {
				return ffmpegErr
			}
			return nil
		},
	}
}

func writeSkills(out io.Writer, sk skills.Skills) {
	rows := [][]string{
		{"version", sk.FFmpeg.Version},
		{"compiler", sk.FFmpeg.Compiler},
		{"subtitles filter", yesNo(sk.HasFilter("subtitles"))},
		{"hwaccels", strings.Join(sk.HWAccels, ", ")},
	}
	for _, fe := range familyEncoders {
		rows = append(rows, []string{"encoder " + fe[0], fe[1] + " " + yesNo(sk.HasEncoder(fe[1]))})
	}
	fmt.Fprintln(out, renderTable("FFmpeg", []string{"Capability", "Value"}, rows))
}

func writeHost(out io.Writer) {
	var rows [][]string

	if info, err := host.Info(); err == nil {
		rows = append(rows,
			[]string{"os", info.OS + " " + info.PlatformVersion},
			[]string{"platform", info.Platform},
			[]string{"kernel", info.KernelVersion + " " + info.KernelArch},
		)
	}
	if n, err := cpu.Counts(true); err == nil {
		rows = append(rows, []string{"logical cpus", strconv.Itoa(n)})
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		rows = append(rows, []string{"memory", fmt.Sprintf("%.1f GiB total, %.1f GiB available",
			float64(vm.Total)/(1<<30), float64(vm.Available)/(1<<30))})
	}
	if len(rows) == 0 {
		return
	}
	fmt.Fprintln(out, renderTable("Host", []string{"Property", "Value"}, rows))
}

func envOrDash(name string) string {
	if v := os.Getenv(name); v != "" {
		return name + "=" + v
	}
	return "-"
}

func pathOrError(path string, err error) string {
	if err != nil {
		return "not found"
	}
	return path
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}

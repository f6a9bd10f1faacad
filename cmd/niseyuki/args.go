// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ZSC714725/niseyuki/internal/ffmpeg"
)

func newArgsCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags
	var asTable, asJSON bool

	cmd := &cobra.Command{
		Use:   "args <job.yaml>",
		Short: "Print the ffmpeg command a job would run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := flags.load(args[0])
			if err != nil {
				return err
			}
			if err := j.Validate(nil); err != nil {
				return err
			}

			binary := ctx.ffmpegBinary()
			c := ffmpeg.Build(j)
			warnings := append(j.Unimplemented(), c.Warnings...)
			out := cmd.OutOrStdout()

			switch {
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"binary":   binary,
					"args":     c.Args,
					"output":   j.ResolvedOutputPath(),
					"warnings": warnings,
				})
			case asTable:
				rows := make([][]string, 0, len(c.Args))
				for i, arg := range c.Args {
					rows = append(rows, []string{strconv.Itoa(i), arg})
				}
				fmt.Fprintln(out, renderTable(binary, []string{"#", "Argument"}, rows))
			default:
				fmt.Fprintln(out, c.String(binary))
			}

			if !asJSON {
				for _, w := range warnings {
					fmt.Fprintln(cmd.ErrOrStderr(), "warning: "+w)
				}
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asTable, "table", false, "Print one argument per row")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

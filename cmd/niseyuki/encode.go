// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ZSC714725/niseyuki/internal/encoder"
	"github.com/ZSC714725/niseyuki/internal/job"
)

var errEncodeFailed = errors.New("encode failed")

type jobFlags struct {
	output   string
	folder   string
	telegram bool
	subtitle string
}

func (f *jobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output file (overrides the job)")
	cmd.Flags().StringVar(&f.folder, "output-folder", "", "Output folder (overrides the job)")
	cmd.Flags().BoolVar(&f.telegram, "telegram", false, "Force the compatibility output profile")
	cmd.Flags().StringVar(&f.subtitle, "subtitle", "", "Subtitle file to burn in (overrides the job)")
}

// load reads the job file and applies the flag overrides.
func (f *jobFlags) load(path string) (job.Job, error) {
	j, err := job.Load(path)
	if err != nil {
		return job.Job{}, fmt.Errorf("load job %s: %w", path, err)
	}
	if f.output != "" {
		j.OutputFile = f.output
	}
	if f.folder != "" {
		j.OutputFolder = f.folder
	}
	if f.telegram {
		j.TelegramMode = true
	}
	if f.subtitle != "" {
		j.SubtitlePath = f.subtitle
	}
	return j, nil
}

func newEncodeCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags
	var verbose bool

	cmd := &cobra.Command{
		Use:   "encode <job.yaml>",
		Short: "Run one encode job in the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := flags.load(args[0])
			if err != nil {
				return err
			}
			v, err := ctx.validator()
			if err != nil {
				return err
			}
			if err := j.Validate(v); err != nil {
				return err
			}

			sup, err := ctx.newSupervisor()
			if err != nil {
				return err
			}
			return runEncode(cmd.Context(), sup, j, newProgressRenderer(cmd.OutOrStdout(), verbose))
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every ffmpeg message and state change")
	return cmd
}

// runEncode drives sup through one run of j. SIGINT and SIGTERM stop the
// run gracefully; the first terminal event decides the result.
func runEncode(parent context.Context, sup *encoder.Supervisor, j job.Job, r *progressRenderer) error {
	if parent == nil {
		parent = context.Background()
	}
	sigCtx, stopSignals := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	subCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := sup.Subscribe(subCtx, sup.Events().LastSeq())

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigCtx.Done():
			sup.StopEncoding()
		case <-done:
		}
	}()

	if !sup.StartEncoding(sigCtx, j) {
		return errors.New("encoder is busy")
	}

	for e := range events {
		r.handle(e)
		if e.Type != encoder.EventFinished {
			continue
		}
		if !e.Success {
			return errEncodeFailed
		}
		return nil
	}
	return errEncodeFailed
}

// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ZSC714725/niseyuki/internal/api"
	"github.com/ZSC714725/niseyuki/internal/logger"
	"github.com/ZSC714725/niseyuki/internal/notify"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			v, err := ctx.validator()
			if err != nil {
				return err
			}
			sup, err := ctx.newSupervisor()
			if err != nil {
				return err
			}

			bindAddr := cfg.Server.Bind
			if bind != "" {
				bindAddr = bind
			}

			levelName := cfg.Log.Level
			if ctx.logLevelFlag != nil && *ctx.logLevelFlag != "" {
				levelName = *ctx.logLevelFlag
			}
			if level, _ := logger.ParseLevel(levelName); level != logger.LevelDebug {
				gin.SetMode(gin.ReleaseMode)
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Notify.WebhookURL != "" {
				hook := notify.NewWebhook(notify.Options{
					URL:     cfg.Notify.WebhookURL,
					Retries: cfg.Notify.Retries,
					Logger:  log,
				})
				go hook.Watch(sigCtx, sup.Events())
			}

			handler := api.NewHandler(sup, ctx.locator(), v)
			srv := &http.Server{
				Addr:              bindAddr,
				Handler:           api.NewRouter(handler),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				log.Info("listening on %s", bindAddr)
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-sigCtx.Done():
			}

			log.Info("shutting down")
			sup.StopEncoding()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Bind address (overrides config)")
	return cmd
}

// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matthewpi/wwdrcheck"
)

var watchCmd = &cobra.Command{
	Use:   "watch <cert_path> <wwdr_path>",
	Short: "Re-check a certificate whenever it changes",
	Long: `Check a certificate, then check it again whenever the certificate or the
issuer file changes on disk and every --interval. Runs until interrupted.

Examples:
  wwdrcheck watch --interval 1h developer.pem AppleWWDRCAG3.pem`,
	Args: cobra.ExactArgs(2),
	RunE: runWatch,
}

var watchInterval time.Duration

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Hour, "Re-check periodically, 0 disables")
}

func runWatch(cmd *cobra.Command, args []string) error {
	certPath, issuerPath := args[0], args[1]
	if err := requireFiles(&certPath, &issuerPath); err != nil {
		return err
	}

	checker, err := newChecker(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := wwdrcheck.NewWatcher(checker, wwdrcheck.WatchOptions{
		Interval: watchInterval,
		Logger:   logger,
		OnVerdict: func(_ context.Context, v wwdrcheck.Verdict) {
			_ = printVerdict(cmd.OutOrStdout(), v)
		},
	})
	if err != nil {
		return err
	}
	if err := w.Reconfigure(ctx, certPath, issuerPath); err != nil {
		return err
	}
	return w.Start(ctx)
}

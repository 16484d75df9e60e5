// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

// Command wwdrcheck checks whether certificates issued under Apple's WWDR
// intermediate authority have been revoked.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/matthewpi/wwdrcheck"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wwdrcheck",
	Short: "Check Apple WWDR certificates for revocation",
	Long: `wwdrcheck asks Apple's OCSP responder whether a certificate issued under
the WWDR intermediate authority has been revoked.

The exit code is 0 once a check has completed, whether the certificate is
revoked or the responder could not be queried. It is 1 when an input file is
missing, a PKCS#12 archive cannot be decrypted or the arguments are invalid.

Examples:
  # Check a PEM certificate
  wwdrcheck check-pem developer.pem AppleWWDRCAG3.pem

  # Check the certificate inside a PKCS#12 archive
  wwdrcheck check-p12 developer.p12 secret AppleWWDRCAG3.pem

  # Check many certificates at once and print JSON
  wwdrcheck check-batch --json AppleWWDRCAG3.pem certs/*.pem`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	rootConfig    string
	rootResponder string
	rootHost      string
	rootTimeout   time.Duration
	rootHash      string
	rootNoVerify  bool
	rootTextMatch bool
	rootWorkers   int
	rootJSON      bool
	rootLogLevel  string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&rootConfig, "config", "c", "", "Path to a YAML configuration file")
	flags.StringVar(&rootResponder, "responder", wwdrcheck.DefaultResponderURL, "OCSP responder URL")
	flags.StringVar(&rootHost, "host", "", "Virtual host sent to the responder (default: host of --responder)")
	flags.DurationVar(&rootTimeout, "timeout", wwdrcheck.DefaultTimeout, "Timeout for a request to the responder")
	flags.StringVar(&rootHash, "hash", "sha1", "Hash used to identify the issuer (sha1, sha256, sha384, sha512)")
	flags.BoolVar(&rootNoVerify, "no-verify", false, "Do not verify the signature of the response")
	flags.BoolVar(&rootTextMatch, "text-match", false, "Decide revocation by scanning the decoded response text")
	flags.IntVar(&rootWorkers, "workers", wwdrcheck.DefaultWorkers, "Number of concurrent checks for check-batch")
	flags.BoolVar(&rootJSON, "json", false, "Print results as JSON")
	flags.StringVar(&rootLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(checkPEMCmd)
	rootCmd.AddCommand(checkP12Cmd)
	rootCmd.AddCommand(extractP12Cmd)
	rootCmd.AddCommand(checkBatchCmd)
	rootCmd.AddCommand(watchCmd)
}

// newLogger creates the logger used by a command.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(rootLogLevel)); err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", rootLogLevel)
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})), nil
}

// loadConfig loads the configuration file, if any, and applies the flags that
// were set on the command line.
func loadConfig(cmd *cobra.Command) (wwdrcheck.Config, error) {
	cfg := wwdrcheck.DefaultConfig()
	if rootConfig != "" {
		path, err := expandPath(rootConfig)
		if err != nil {
			return cfg, err
		}
		cfg, err = wwdrcheck.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
	}

	changed := func(name string) bool {
		f := cmd.Flag(name)
		return f != nil && f.Changed
	}
	if changed("responder") {
		cfg.ResponderURL = rootResponder
	}
	if changed("host") {
		cfg.Host = rootHost
	}
	if changed("timeout") {
		cfg.Timeout = rootTimeout
	}
	if changed("hash") {
		cfg.Hash = rootHash
	}
	if changed("no-verify") {
		cfg.SkipVerify = rootNoVerify
	}
	if changed("text-match") {
		cfg.TextMatch = rootTextMatch
	}
	if changed("workers") {
		cfg.Workers = rootWorkers
	}
	return cfg, cfg.Validate()
}

// newChecker creates a checker from the configuration and flags.
func newChecker(cmd *cobra.Command) (*wwdrcheck.Checker, error) {
	logger, err := newLogger(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return wwdrcheck.New(wwdrcheck.Options{Config: cfg, Logger: logger})
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to expand %s", path)
	}
	return expanded, nil
}

// requireFiles expands paths and checks that each one exists.
func requireFiles(paths ...*string) error {
	for _, p := range paths {
		expanded, err := expandPath(*p)
		if err != nil {
			return err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return errors.Newf("%s not found", expanded)
			}
			return errors.Wrapf(err, "failed to stat %s", expanded)
		}
		*p = expanded
	}
	return nil
}

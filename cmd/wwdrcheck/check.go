// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package main

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/matthewpi/wwdrcheck"
)

var checkPEMCmd = &cobra.Command{
	Use:   "check-pem <cert_path> <wwdr_path>",
	Short: "Check a PEM or DER certificate",
	Long: `Check whether a PEM or DER encoded certificate has been revoked by the
WWDR authority whose certificate is stored at wwdr_path.

Examples:
  wwdrcheck check-pem developer.pem AppleWWDRCAG3.pem`,
	Args: cobra.ExactArgs(2),
	RunE: runCheckPEM,
}

var checkP12Cmd = &cobra.Command{
	Use:   "check-p12 <p12_path> <password> <wwdr_path>",
	Short: "Check the certificate stored in a PKCS#12 archive",
	Long: `Extract the certificate stored in a password protected PKCS#12 archive and
check whether it has been revoked. The extracted certificate is written to a
temporary file which is removed once the check completes.

Examples:
  wwdrcheck check-p12 developer.p12 secret AppleWWDRCAG3.pem`,
	Args: cobra.ExactArgs(3),
	RunE: runCheckP12,
}

var checkBatchCmd = &cobra.Command{
	Use:   "check-batch <wwdr_path> <cert_path>...",
	Short: "Check many certificates against one issuer",
	Long: `Check many PEM or DER certificates against the same WWDR authority. Up to
--workers checks run at the same time, results are printed in the order the
certificates were given.

Examples:
  wwdrcheck check-batch --workers 8 AppleWWDRCAG3.pem certs/*.pem`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCheckBatch,
}

func runCheckPEM(cmd *cobra.Command, args []string) error {
	certPath, issuerPath := args[0], args[1]
	if err := requireFiles(&certPath, &issuerPath); err != nil {
		return err
	}

	checker, err := newChecker(cmd)
	if err != nil {
		return err
	}
	v := checker.CheckPEM(cmd.Context(), certPath, issuerPath)
	return printVerdict(cmd.OutOrStdout(), v)
}

func runCheckP12(cmd *cobra.Command, args []string) error {
	p12Path, password, issuerPath := args[0], args[1], args[2]
	if err := requireFiles(&p12Path, &issuerPath); err != nil {
		return err
	}

	checker, err := newChecker(cmd)
	if err != nil {
		return err
	}
	v := checker.CheckP12(cmd.Context(), p12Path, password, issuerPath)

	// Failing to open the archive happens before any check is made.
	switch v.Kind {
	case wwdrcheck.KindExtraction, wwdrcheck.KindFileNotFound:
		return errors.Wrap(v.Err(), "failed to extract certificate")
	}
	return printVerdict(cmd.OutOrStdout(), v)
}

func runCheckBatch(cmd *cobra.Command, args []string) error {
	issuerPath := args[0]
	if err := requireFiles(&issuerPath); err != nil {
		return err
	}
	certPaths := make([]string, 0, len(args)-1)
	for _, p := range args[1:] {
		expanded, err := expandPath(p)
		if err != nil {
			return err
		}
		certPaths = append(certPaths, expanded)
	}

	checker, err := newChecker(cmd)
	if err != nil {
		return err
	}
	verdicts := checker.CheckMany(cmd.Context(), issuerPath, certPaths)
	if err := printVerdicts(cmd.OutOrStdout(), verdicts); err != nil {
		return err
	}

	var missing int
	for _, v := range verdicts {
		if v.Kind == wwdrcheck.KindFileNotFound {
			missing++
		}
	}
	if missing > 0 {
		return errors.Newf("%d certificate(s) not found", missing)
	}
	return nil
}

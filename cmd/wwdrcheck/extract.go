// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/matthewpi/wwdrcheck/internal/p12"
)

var extractP12Cmd = &cobra.Command{
	Use:   "extract-p12 <p12_path> <password>",
	Short: "Extract the certificate stored in a PKCS#12 archive",
	Long: `Extract the leaf certificate of a password protected PKCS#12 archive and
write it in PEM form. The private key is never written.

Examples:
  # Print the certificate
  wwdrcheck extract-p12 developer.p12 secret

  # Write it to a file
  wwdrcheck extract-p12 developer.p12 secret -o developer.pem`,
	Args: cobra.ExactArgs(2),
	RunE: runExtractP12,
}

var extractOut string

func init() {
	extractP12Cmd.Flags().StringVarP(&extractOut, "out", "o", "", "Output file (default: stdout)")
}

func runExtractP12(cmd *cobra.Command, args []string) error {
	p12Path, password := args[0], args[1]
	if err := requireFiles(&p12Path); err != nil {
		return err
	}

	data, err := p12.ExtractFile(p12Path, password)
	if err != nil {
		return err
	}

	if extractOut == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	out, err := expandPath(extractOut)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", out)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "certificate written to %s\n", out)
	return nil
}

// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/matthewpi/wwdrcheck"
)

// printVerdict prints a single verdict as text or JSON.
func printVerdict(w io.Writer, v wwdrcheck.Verdict) error {
	if rootJSON {
		return writeJSON(w, v)
	}
	_, err := fmt.Fprintln(w, verdictLine(v))
	return err
}

// printVerdicts prints the verdicts of a batch, prefixed by their path.
func printVerdicts(w io.Writer, verdicts []wwdrcheck.Verdict) error {
	if rootJSON {
		return writeJSON(w, verdicts)
	}
	for _, v := range verdicts {
		if _, err := fmt.Fprintf(w, "%s: %s\n", v.Path, verdictLine(v)); err != nil {
			return err
		}
	}
	return nil
}

func verdictLine(v wwdrcheck.Verdict) string {
	switch {
	case !v.Success:
		return "error: " + v.Error
	case v.IsRevoked && v.RevokeTime != "":
		return "certificate revoked at " + v.RevokeTime
	case v.IsRevoked:
		return "certificate revoked"
	case v.Status == "unknown":
		return "certificate status unknown"
	default:
		return "certificate valid"
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

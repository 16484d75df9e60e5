// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package ocsp

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/ocsp"
)

// StatusString returns the name of an OCSP certificate status.
func StatusString(status int) string {
	switch status {
	case ocsp.Good:
		return "good"
	case ocsp.Revoked:
		return "revoked"
	case ocsp.Unknown:
		return "unknown"
	case ocsp.ServerFailed:
		return "server failed"
	default:
		return fmt.Sprintf("status(%d)", status)
	}
}

var reasons = map[int]string{
	ocsp.Unspecified:          "unspecified",
	ocsp.KeyCompromise:        "keyCompromise",
	ocsp.CACompromise:         "cACompromise",
	ocsp.AffiliationChanged:   "affiliationChanged",
	ocsp.Superseded:           "superseded",
	ocsp.CessationOfOperation: "cessationOfOperation",
	ocsp.CertificateHold:      "certificateHold",
	ocsp.RemoveFromCRL:        "removeFromCRL",
	ocsp.PrivilegeWithdrawn:   "privilegeWithdrawn",
	ocsp.AACompromise:         "aACompromise",
}

// ReasonString returns the name of a CRL revocation reason.
func ReasonString(reason int) string {
	if s, ok := reasons[reason]; ok {
		return s
	}
	return fmt.Sprintf("reason(%d)", reason)
}

// Render returns a human-readable dump of a decoded response, laid out like
// the output of `openssl ocsp -text`.
func Render(res *ocsp.Response) string {
	if res == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("OCSP Response Data:\n")
	b.WriteString("    OCSP Response Status: successful (0x0)\n")
	switch {
	case len(res.RawResponderName) > 0 && res.Certificate != nil:
		fmt.Fprintf(&b, "    Responder Id: %s\n", res.Certificate.Subject.String())
	case len(res.ResponderKeyHash) > 0:
		fmt.Fprintf(&b, "    Responder Id: %s\n", strings.ToUpper(hex.EncodeToString(res.ResponderKeyHash)))
	}
	if !res.ProducedAt.IsZero() {
		fmt.Fprintf(&b, "    Produced At: %s\n", FormatTime(res.ProducedAt))
	}
	b.WriteString("    Responses:\n")
	b.WriteString("    Certificate ID:\n")
	if res.IssuerHash != 0 {
		fmt.Fprintf(&b, "      Hash Algorithm: %s\n", res.IssuerHash)
	}
	if res.SerialNumber != nil {
		fmt.Fprintf(&b, "      Serial Number: %X\n", res.SerialNumber)
	}
	fmt.Fprintf(&b, "    Cert Status: %s\n", StatusString(res.Status))
	if res.Status == ocsp.Revoked {
		if !res.RevokedAt.IsZero() {
			fmt.Fprintf(&b, "    Revocation Time: %s\n", FormatTime(res.RevokedAt))
		}
		fmt.Fprintf(&b, "    Revocation Reason: %s (0x%x)\n", ReasonString(res.RevocationReason), res.RevocationReason)
	}
	if !res.ThisUpdate.IsZero() {
		fmt.Fprintf(&b, "    This Update: %s\n", FormatTime(res.ThisUpdate))
	}
	if !res.NextUpdate.IsZero() {
		fmt.Fprintf(&b, "    Next Update: %s\n", FormatTime(res.NextUpdate))
	}
	return b.String()
}

// revocationMarkers are tried in order, the first match wins. Only the first
// marker captures a revocation time.
var revocationMarkers = []*regexp.Regexp{
	regexp.MustCompile(`Revocation Time: ([^\r\n]+)`),
	regexp.MustCompile(`[Cc]ertificate [Ss]tatus: revoked`),
	regexp.MustCompile(`[Cc]ert[Ss]tatus: revoked`),
	// Catch-all. This also matches "revoked" in unrelated fields, a known
	// source of false positives.
	regexp.MustCompile(`(?i)revoked`),
}

// ScanText looks for evidence of revocation in a textual OCSP response dump.
//
// revokeTime is only set when a "Revocation Time" field is present.
func ScanText(text string) (revoked bool, revokeTime string) {
	for _, marker := range revocationMarkers {
		m := marker.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if len(m) > 1 {
			revokeTime = strings.TrimSpace(m[1])
		}
		return true, revokeTime
	}
	return false, ""
}

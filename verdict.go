// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package wwdrcheck

import (
	"time"

	"github.com/cockroachdb/errors"
	xocsp "golang.org/x/crypto/ocsp"

	"github.com/matthewpi/wwdrcheck/internal/ocsp"
)

// Verdict is the result of a single revocation check.
//
// IsRevoked and the fields describing the response are only meaningful when
// Success is true.
type Verdict struct {
	// Success reports whether the check completed.
	Success bool `json:"success"`
	// IsRevoked reports whether the certificate has been revoked.
	IsRevoked bool `json:"is_revoked"`
	// RevokeTime is when the certificate was revoked, if known.
	RevokeTime string `json:"revoke_time,omitempty"`

	// Status is the certificate status reported by the responder: good,
	// revoked or unknown.
	Status string `json:"status,omitempty"`
	// RevocationReason is the reason given for a revocation.
	RevocationReason string `json:"revocation_reason,omitempty"`
	// Serial is the serial number of the checked certificate in hex.
	Serial     string    `json:"serial,omitempty"`
	ThisUpdate time.Time `json:"this_update,omitzero"`
	NextUpdate time.Time `json:"next_update,omitzero"`
	ProducedAt time.Time `json:"produced_at,omitzero"`

	// Response is the decoded response in human-readable form.
	Response string `json:"response,omitempty"`

	// Path of the checked certificate, set by the file based checks.
	Path string `json:"path,omitempty"`
	// Cached is set when the verdict was served from the cache.
	Cached bool `json:"cached,omitempty"`

	// Error describes why the check failed.
	Error string `json:"error,omitempty"`
	// Kind is the stage at which the check failed.
	Kind ErrorKind `json:"error_kind,omitempty"`

	err error
}

// Err returns the error of a failed check, or nil.
func (v Verdict) Err() error {
	return v.err
}

// failed returns a failed Verdict for an error that happened at the given
// stage. Errors that were already classified keep their kind.
func failed(kind ErrorKind, err error) Verdict {
	var checkErr *CheckError
	if !errors.As(err, &checkErr) {
		checkErr = &CheckError{Kind: kind, Err: err}
	}
	return Verdict{
		Error: checkErr.Error(),
		Kind:  checkErr.Kind,
		err:   checkErr,
	}
}

// verdictFromResult builds a successful Verdict from an interpreted response.
func verdictFromResult(res *ocsp.Result) Verdict {
	v := Verdict{
		Success:    true,
		IsRevoked:  res.Revoked,
		RevokeTime: res.RevokeTime,
		Status:     ocsp.StatusString(res.Status),
		ThisUpdate: res.ThisUpdate,
		NextUpdate: res.NextUpdate,
		ProducedAt: res.ProducedAt,
		Response:   res.Text,
	}
	if res.SerialNumber != nil {
		v.Serial = res.SerialNumber.Text(16)
	}
	if res.Status == xocsp.Revoked {
		v.RevocationReason = ocsp.ReasonString(res.RevocationReason)
	}
	return v
}

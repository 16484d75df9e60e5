// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package wwdrcheck

import (
	"github.com/cockroachdb/errors"
)

// ErrorKind identifies the stage of a check that failed.
type ErrorKind string

const (
	// KindFileNotFound means an input file does not exist.
	KindFileNotFound ErrorKind = "file_not_found"
	// KindExtraction means a PKCS#12 archive could not be decrypted or
	// decoded.
	KindExtraction ErrorKind = "extraction"
	// KindRequest means an OCSP request could not be built from the inputs.
	KindRequest ErrorKind = "request"
	// KindTransport means the responder could not be reached or did not
	// reply with 200 OK.
	KindTransport ErrorKind = "transport"
	// KindParse means the response could not be decoded or verified.
	KindParse ErrorKind = "parse"
)

// CheckError is the error carried by a failed Verdict.
type CheckError struct {
	Kind ErrorKind
	Err  error
}

func (e *CheckError) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *CheckError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a check error, or an empty kind if err did not
// come from a check.
func KindOf(err error) ErrorKind {
	var checkErr *CheckError
	if errors.As(err, &checkErr) {
		return checkErr.Kind
	}
	return ""
}

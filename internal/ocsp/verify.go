// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package ocsp

import (
	"crypto/x509"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/ocsp"
)

// ParseAndVerifyResponseForCert is like ocsp.ParseResponseForCert but also
// verifies the chain of an embedded (delegated) OCSP responder certificate.
//
// ocsp.ParseResponseForCert already checks the response signature against
// the issuer, or against the embedded responder certificate which in turn
// must be signed by the issuer. What it does not check is that the responder
// certificate is currently valid and allowed to sign OCSP responses.
//
// ref; https://github.com/golang/go/issues/43522#issuecomment-755389499
func ParseAndVerifyResponseForCert(data []byte, cert, issuer *x509.Certificate, now time.Time) (*ocsp.Response, error) {
	if issuer == nil {
		return nil, errors.New("ocsp: an issuer is required to verify a response")
	}

	// Parse the OCSP response.
	ocspRes, err := ocsp.ParseResponseForCert(data, cert, issuer)
	if err != nil {
		return nil, err
	}

	// Verify OCSP responder certificate if it's embedded in the OCSP response.
	// Some responders embed the issuer itself, which needs no further checks.
	if ocspRes.Certificate != nil && !ocspRes.Certificate.Equal(issuer) {
		caPool := x509.NewCertPool()
		caPool.AddCert(issuer)

		// Verify the certificate against the issuer, ensuring that OCSP signing
		// is allowed.
		chains, err := ocspRes.Certificate.Verify(x509.VerifyOptions{
			Roots:       caPool,
			CurrentTime: now,
			KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageOCSPSigning},
		})
		if err != nil {
			return nil, &VerifyError{Reason: err.Error()}
		}

		// 1 chain with 2 certs (responder and issuer) should be returned
		// on verification success; treat other results as an error.
		if len(chains) < 1 {
			return nil, &VerifyError{Reason: "no matching chains"}
		}
		if len(chains) > 1 {
			return nil, &VerifyError{Reason: "too many matching chains"}
		}
		if len(chains[0]) != 2 {
			return nil, &VerifyError{Reason: "chain mismatch"}
		}
	}

	// Verification was successful.
	return ocspRes, nil
}

// VerifyError represents a OCSP responder verification error.
type VerifyError struct {
	// Reason why the verification failed.
	Reason string
}

func (e *VerifyError) Error() string {
	return "ocsp: responder cert failed verification (" + e.Reason + ")"
}

// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package ocsp

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/ocsp"
)

// ErrNoIssuerURL is returned by FetchIssuer when a certificate carries no
// issuing certificate URL.
var ErrNoIssuerURL = errors.New("ocsp: no URL to get issuing certificate with")

// FetchIssuer attempts to get the issuer of the given leaf certificate by using
// the first IssuingCertificateURL found on the leaf certificate. If no
// IssuingCertificateURLs are present on the leaf certificate, ErrNoIssuerURL is
// returned.
func FetchIssuer(ctx context.Context, client *http.Client, leaf *x509.Certificate) (*x509.Certificate, error) {
	if len(leaf.IssuingCertificateURL) == 0 {
		return nil, ErrNoIssuerURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, leaf.IssuingCertificateURL[0], nil)
	if err != nil {
		return nil, errors.Wrap(err, "error creating http request")
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "error getting issuer certificate")
	}
	defer res.Body.Close()

	// Wrap the body with a limit reader to prevent us from reading too much
	// data.
	body := io.LimitReader(res.Body, DefaultMaxResponseBytes)

	if res.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: res.StatusCode}
	}

	issuerBytes, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.Wrap(err, "error reading issuer certificate")
	}

	// CA issuer URLs usually serve DER, but some serve PEM.
	if block, _ := pem.Decode(issuerBytes); block != nil && block.Type == "CERTIFICATE" {
		issuerBytes = block.Bytes
	}
	issuer, err := x509.ParseCertificate(issuerBytes)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing issuer certificate")
	}
	return issuer, nil
}

// ExpiresAt return the time that a certificate expires. Account for the 1s
// resolution of ASN.1 UTCTime/GeneralizedTime by including the extra fraction
// of a second of certificate validity beyond the NotAfter value.
func ExpiresAt(cert *x509.Certificate) time.Time {
	if cert == nil {
		return time.Time{}
	}
	return cert.NotAfter.Truncate(time.Second).Add(1 * time.Second)
}

// RefreshAt returns the time after which a response should be fetched again,
// halfway through its validity period. A zero time is returned when the
// response has no NextUpdate.
func RefreshAt(res *ocsp.Response) time.Time {
	nextUpdate := res.NextUpdate
	if nextUpdate.IsZero() {
		return time.Time{}
	}

	// If there is an OCSP responder certificate, and it expires before the
	// OCSP response, use its expiration date as the end of the OCSP
	// response's validity period.
	if res.Certificate != nil && res.Certificate.NotAfter.Before(nextUpdate) {
		nextUpdate = res.Certificate.NotAfter
	}

	return res.ThisUpdate.Add(nextUpdate.Sub(res.ThisUpdate) / 2)
}

// IsStale reports whether a response is past its NextUpdate.
func IsStale(res *ocsp.Response, now time.Time) bool {
	return !res.NextUpdate.IsZero() && now.After(res.NextUpdate)
}

// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package ocsp

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/ocsp"
)

// ErrIssuerMismatch is returned when the issuer certificate given to
// BuildRequest is not the issuer named by the subject certificate.
var ErrIssuerMismatch = errors.New("ocsp: issuer does not match certificate")

// ParseHash resolves the name of a CertID hash algorithm. An empty name
// resolves to SHA-1, which is what most responders (Apple's included) expect.
func ParseHash(name string) (crypto.Hash, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "-", "")) {
	case "", "sha1":
		return crypto.SHA1, nil
	case "sha256":
		return crypto.SHA256, nil
	case "sha384":
		return crypto.SHA384, nil
	case "sha512":
		return crypto.SHA512, nil
	default:
		return 0, errors.Newf("ocsp: unsupported hash algorithm %q", name)
	}
}

// BuildRequest creates a DER encoded OCSP request identifying cert by the
// issuer name hash, issuer key hash and serial number.
//
// No nonce extension is added, the request is a plain single-shot query.
func BuildRequest(cert, issuer *x509.Certificate, hash crypto.Hash) ([]byte, error) {
	if cert == nil {
		return nil, errors.New("ocsp: missing subject certificate")
	}
	if issuer == nil {
		return nil, errors.New("ocsp: missing issuer certificate")
	}

	// The CertID only makes sense if the issuer we hash is the one that
	// actually issued the certificate.
	if !bytes.Equal(cert.RawIssuer, issuer.RawSubject) {
		return nil, errors.Wrapf(
			ErrIssuerMismatch,
			"certificate issued by %q, got %q",
			cert.Issuer.String(), issuer.Subject.String(),
		)
	}

	if hash == 0 {
		hash = crypto.SHA1
	}
	if !hash.Available() {
		return nil, errors.Newf("ocsp: hash %s is not available", hash)
	}

	req, err := ocsp.CreateRequest(cert, issuer, &ocsp.RequestOptions{Hash: hash})
	if err != nil {
		return nil, errors.Wrap(err, "error creating ocsp request")
	}
	return req, nil
}

// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package wwdrcheck

import (
	"crypto/x509"
	"encoding/pem"
	"io/fs"
	"os"

	"github.com/cockroachdb/errors"
)

// LoadCertificate reads a certificate from a PEM or DER encoded file. When
// the file holds several PEM blocks the first certificate is used.
func LoadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCertificate(data)
}

// ParseCertificate parses a PEM or DER encoded certificate.
func ParseCertificate(data []byte) (*x509.Certificate, error) {
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			return parseDER(block.Bytes)
		}
	}
	return parseDER(data)
}

func parseDER(der []byte) (*x509.Certificate, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse certificate")
	}
	return cert, nil
}

// loadCertificate is LoadCertificate with its failure already classified.
func loadCertificate(path, what string) (*x509.Certificate, error) {
	cert, err := LoadCertificate(path)
	switch {
	case err == nil:
		return cert, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, &CheckError{Kind: KindFileNotFound, Err: errors.Wrapf(err, "%s not found", what)}
	default:
		return nil, &CheckError{Kind: KindRequest, Err: errors.Wrapf(err, "invalid %s %s", what, path)}
	}
}

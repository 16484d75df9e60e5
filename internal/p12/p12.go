// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

// Package p12 extracts the leaf certificate from password protected PKCS#12
// archives.
package p12

import (
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/cockroachdb/errors"
	"software.sslmate.com/src/go-pkcs12"
)

// ErrIncorrectPassword is returned when the archive cannot be decrypted with
// the supplied password.
var ErrIncorrectPassword = errors.New("p12: incorrect password")

// Decode decrypts a PKCS#12 archive and returns its leaf certificate.
//
// Archives using the legacy RC2 and 3DES encryption schemes, as produced by
// OpenSSL before 3.0 and by macOS Keychain Access, are supported alongside
// modern AES based ones. Private key material is decoded by the underlying
// library but never returned.
func Decode(data []byte, password string) (*x509.Certificate, error) {
	_, cert, _, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, ErrIncorrectPassword
		}
		return nil, errors.Wrap(err, "p12: failed to decode archive")
	}
	if cert == nil {
		return nil, errors.New("p12: archive contains no certificate")
	}
	return cert, nil
}

// Extract decrypts a PKCS#12 archive and returns its leaf certificate in PEM
// form.
func Extract(data []byte, password string) ([]byte, error) {
	cert, err := Decode(data, password)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}), nil
}

// ExtractFile is like Extract but reads the archive from path.
func ExtractFile(path, password string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "p12: failed to read archive")
	}
	return Extract(data, password)
}

// ExtractToTemp extracts the leaf certificate of the archive at path into a
// new temporary file in dir (os.TempDir() if empty) and returns its path.
//
// The caller owns the returned file and is responsible for removing it. No
// file is left behind when an error is returned.
func ExtractToTemp(path, password, dir string) (string, error) {
	data, err := ExtractFile(path, password)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(dir, "cert_*.pem")
	if err != nil {
		return "", errors.Wrap(err, "p12: failed to create temporary file")
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return "", errors.Wrap(err, "p12: failed to write temporary file")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", errors.Wrap(err, "p12: failed to write temporary file")
	}
	return name, nil
}

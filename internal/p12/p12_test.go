// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package p12

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"software.sslmate.com/src/go-pkcs12"

	"github.com/matthewpi/wwdrcheck/internal/testpki"
)

func encode(t *testing.T, enc *pkcs12.Encoder, password string) ([]byte, *x509.Certificate, *testpki.CA) {
	t.Helper()
	ca := testpki.NewCA(t, "Test WWDR CA")
	leaf, key := ca.Issue(t, "Test Developer", "")
	data, err := enc.Encode(key, leaf, []*x509.Certificate{ca.Cert}, password)
	require.NoError(t, err)
	return data, leaf, ca
}

func TestExtract(t *testing.T) {
	encoders := map[string]*pkcs12.Encoder{
		"legacy rc2": pkcs12.LegacyRC2,
		"legacy des": pkcs12.LegacyDES,
		"modern":     pkcs12.Modern2023,
	}
	for name, enc := range encoders {
		t.Run(name, func(t *testing.T) {
			data, leaf, _ := encode(t, enc, "hunter2")

			out, err := Extract(data, "hunter2")
			require.NoError(t, err)

			// Only the leaf certificate is exported.
			block, rest := pem.Decode(out)
			require.NotNil(t, block)
			assert.Equal(t, "CERTIFICATE", block.Type)
			assert.Equal(t, leaf.Raw, block.Bytes)
			assert.Empty(t, rest)
			assert.NotContains(t, string(out), "PRIVATE KEY")
		})
	}
}

func TestExtract_IncorrectPassword(t *testing.T) {
	data, _, _ := encode(t, pkcs12.LegacyRC2, "hunter2")

	_, err := Extract(data, "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncorrectPassword))
}

func TestExtract_Corrupt(t *testing.T) {
	_, err := Extract([]byte("definitely not pkcs12"), "hunter2")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrIncorrectPassword))
}

func TestExtractToTemp(t *testing.T) {
	dir := t.TempDir()
	data, leaf, _ := encode(t, pkcs12.LegacyRC2, "hunter2")
	p12Path := filepath.Join(dir, "dev.p12")
	require.NoError(t, os.WriteFile(p12Path, data, 0o600))

	tmp := t.TempDir()
	path, err := ExtractToTemp(p12Path, "hunter2", tmp)
	require.NoError(t, err)
	assert.Equal(t, tmp, filepath.Dir(path))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	block, _ := pem.Decode(out)
	require.NotNil(t, block)
	assert.Equal(t, leaf.Raw, block.Bytes)
}

func TestExtractToTemp_LeavesNothingOnError(t *testing.T) {
	dir := t.TempDir()
	data, _, _ := encode(t, pkcs12.LegacyRC2, "hunter2")
	p12Path := filepath.Join(dir, "dev.p12")
	require.NoError(t, os.WriteFile(p12Path, data, 0o600))

	tmp := t.TempDir()
	_, err := ExtractToTemp(p12Path, "wrong", tmp)
	require.Error(t, err)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = ExtractToTemp(filepath.Join(dir, "missing.p12"), "hunter2", tmp)
	assert.Error(t, err)
}

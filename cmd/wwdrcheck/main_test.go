// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ocsp"

	"github.com/matthewpi/wwdrcheck"
	"github.com/matthewpi/wwdrcheck/internal/testpki"
)

func TestCheckPEM(t *testing.T) {
	tc := newTestContext(t)
	_, certPath := tc.leaf("developer")

	out, err := executeCommand(rootCmd, "check-pem", certPath, tc.issuerPath, "--responder", tc.srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "certificate valid")
	assert.Equal(t, int64(1), tc.responder.Hits())
}

func TestCheckPEM_Revoked(t *testing.T) {
	tc := newTestContext(t)
	cert, certPath := tc.leaf("developer")
	tc.responder.Set(cert.SerialNumber, testpki.Status{
		Status:    ocsp.Revoked,
		RevokedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	out, err := executeCommand(rootCmd, "check-pem", certPath, tc.issuerPath, "--responder", tc.srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "certificate revoked at 2024-01-01T00:00:00Z")
}

func TestCheckPEM_MissingFile(t *testing.T) {
	tc := newTestContext(t)
	_, certPath := tc.leaf("developer")

	_, err := executeCommand(rootCmd, "check-pem", certPath, tc.path("missing.pem"), "--responder", tc.srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.Zero(t, tc.responder.Hits())
}

func TestCheckPEM_ResponderFailure(t *testing.T) {
	tc := newTestContext(t)
	_, certPath := tc.leaf("developer")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	// A check that completed with an error still exits successfully.
	out, err := executeCommand(rootCmd, "check-pem", certPath, tc.issuerPath, "--responder", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "error:")
	assert.Contains(t, out, "503")
}

func TestCheckPEM_InvalidArgs(t *testing.T) {
	newTestContext(t)

	_, err := executeCommand(rootCmd, "check-pem", "only-one.pem")
	require.Error(t, err)
}

func TestCheckPEM_InvalidFlags(t *testing.T) {
	tc := newTestContext(t)
	_, certPath := tc.leaf("developer")

	_, err := executeCommand(rootCmd, "check-pem", certPath, tc.issuerPath, "--hash", "md5")
	require.Error(t, err)

	resetFlags(t)
	_, err = executeCommand(rootCmd, "check-pem", certPath, tc.issuerPath, "--log-level", "loud")
	require.Error(t, err)
}

func TestCheckPEM_Config(t *testing.T) {
	tc := newTestContext(t)
	_, certPath := tc.leaf("developer")
	configPath := tc.path("wwdrcheck.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("responder_url: "+tc.srv.URL+"\nhash: sha256\n"), 0o600))

	out, err := executeCommand(rootCmd, "check-pem", certPath, tc.issuerPath, "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "certificate valid")
	assert.Equal(t, int64(1), tc.responder.Hits())
}

func TestCheckP12_JSON(t *testing.T) {
	tc := newTestContext(t)
	cert, p12Path := tc.p12("developer", "hunter2")

	out, err := executeCommand(rootCmd, "check-p12", p12Path, "hunter2", tc.issuerPath, "--responder", tc.srv.URL, "--json")
	require.NoError(t, err)

	var v wwdrcheck.Verdict
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.True(t, v.Success)
	assert.False(t, v.IsRevoked)
	assert.Equal(t, "good", v.Status)
	assert.Equal(t, cert.SerialNumber.Text(16), v.Serial)
	assert.Equal(t, p12Path, v.Path)
}

func TestCheckP12_WrongPassword(t *testing.T) {
	tc := newTestContext(t)
	_, p12Path := tc.p12("developer", "hunter2")

	_, err := executeCommand(rootCmd, "check-p12", p12Path, "wrong", tc.issuerPath, "--responder", tc.srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to extract certificate")
	assert.Zero(t, tc.responder.Hits())
}

func TestExtractP12(t *testing.T) {
	tc := newTestContext(t)
	cert, p12Path := tc.p12("developer", "hunter2")
	out := tc.path("developer.pem")

	_, err := executeCommand(rootCmd, "extract-p12", p12Path, "hunter2", "-o", out)
	require.NoError(t, err)

	extracted, err := wwdrcheck.LoadCertificate(out)
	require.NoError(t, err)
	assert.True(t, cert.Equal(extracted))
}

func TestExtractP12_Stdout(t *testing.T) {
	tc := newTestContext(t)
	_, p12Path := tc.p12("developer", "hunter2")

	out, err := executeCommand(rootCmd, "extract-p12", p12Path, "hunter2")
	require.NoError(t, err)
	assert.Contains(t, out, "-----BEGIN CERTIFICATE-----")
}

func TestCheckBatch(t *testing.T) {
	tc := newTestContext(t)
	revoked, revokedPath := tc.leaf("revoked")
	tc.responder.Set(revoked.SerialNumber, testpki.Status{Status: ocsp.Revoked, RevokedAt: time.Now().Add(-time.Hour)})
	_, goodPath := tc.leaf("good")

	out, err := executeCommand(rootCmd, "check-batch", tc.issuerPath, goodPath, revokedPath, "--responder", tc.srv.URL, "--json")
	require.NoError(t, err)

	var verdicts []wwdrcheck.Verdict
	require.NoError(t, json.Unmarshal([]byte(out), &verdicts))
	require.Len(t, verdicts, 2)
	assert.Equal(t, goodPath, verdicts[0].Path)
	assert.False(t, verdicts[0].IsRevoked)
	assert.Equal(t, revokedPath, verdicts[1].Path)
	assert.True(t, verdicts[1].IsRevoked)
}

func TestCheckBatch_MissingCertificate(t *testing.T) {
	tc := newTestContext(t)
	_, goodPath := tc.leaf("good")

	out, err := executeCommand(rootCmd, "check-batch", tc.issuerPath, goodPath, tc.path("missing.pem"), "--responder", tc.srv.URL)
	require.Error(t, err)
	assert.Contains(t, out, goodPath+": certificate valid")
	assert.Contains(t, err.Error(), "1 certificate(s) not found")
}

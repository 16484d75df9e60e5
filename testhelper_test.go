// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package wwdrcheck

import (
	"crypto"
	"crypto/x509"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"software.sslmate.com/src/go-pkcs12"

	"github.com/matthewpi/wwdrcheck/internal/testpki"
)

// fixture is a fake WWDR authority with its own OCSP responder.
type fixture struct {
	ca         *testpki.CA
	responder  *testpki.Responder
	srv        *httptest.Server
	dir        string
	tempDir    string
	issuerPath string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ca := testpki.NewCA(t, "Test WWDR CA")
	f := &fixture{
		ca:        ca,
		responder: testpki.NewResponder(ca, ca.NewResponder(t, true)),
		dir:       t.TempDir(),
		tempDir:   t.TempDir(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/wwdr.der", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(ca.Cert.Raw)
	})
	mux.Handle("/", f.responder)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	f.issuerPath = testpki.WritePEM(t, f.dir, "wwdr.pem", ca.Cert)
	return f
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// config returns a configuration pointing at the fixture's responder.
func (f *fixture) config() Config {
	cfg := DefaultConfig()
	cfg.ResponderURL = f.srv.URL + "/ocsp03-wwdrg301"
	cfg.Host = "ocsp.apple.com"
	cfg.Timeout = 5 * time.Second
	cfg.TempDir = f.tempDir
	return cfg
}

func (f *fixture) checker(t *testing.T, mutate func(*Config)) *Checker {
	t.Helper()
	cfg := f.config()
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(Options{Config: cfg, HTTPClient: f.srv.Client(), Logger: testLogger()})
	require.NoError(t, err)
	return c
}

// leaf issues a certificate and writes it to disk.
func (f *fixture) leaf(t *testing.T, name string) (*x509.Certificate, crypto.Signer, string) {
	t.Helper()
	cert, key := f.ca.Issue(t, name, f.srv.URL+"/wwdr.der")
	return cert, key, testpki.WritePEM(t, f.dir, name+".pem", cert)
}

// p12 issues a certificate and stores it in a legacy PKCS#12 archive.
func (f *fixture) p12(t *testing.T, name, password string) (*x509.Certificate, string) {
	t.Helper()
	cert, key := f.ca.Issue(t, name, "")
	data, err := pkcs12.LegacyRC2.Encode(key, cert, []*x509.Certificate{f.ca.Cert}, password)
	require.NoError(t, err)
	path := filepath.Join(f.dir, name+".p12")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return cert, path
}

// requireEmptyDir fails the test if dir holds any file.
func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "temporary files left behind in %s", dir)
}

// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package main

import (
	"bytes"
	"crypto/x509"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"software.sslmate.com/src/go-pkcs12"

	"github.com/matthewpi/wwdrcheck/internal/testpki"
)

// executeCommand runs the root command with args and returns its output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(io.Discard)
	root.SetArgs(args)

	err = root.Execute()
	return buf.String(), err
}

// resetFlags restores every flag to its default so commands do not leak state
// between tests.
func resetFlags(t *testing.T) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		require.NoError(t, f.Value.Set(f.DefValue))
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, cmd := range rootCmd.Commands() {
		cmd.Flags().VisitAll(reset)
	}
}

// testContext holds a fake WWDR authority and its responder.
type testContext struct {
	t          *testing.T
	dir        string
	ca         *testpki.CA
	responder  *testpki.Responder
	srv        *httptest.Server
	issuerPath string
}

func newTestContext(t *testing.T) *testContext {
	t.Helper()
	resetFlags(t)

	ca := testpki.NewCA(t, "Test WWDR CA")
	tc := &testContext{
		t:         t,
		dir:       t.TempDir(),
		ca:        ca,
		responder: testpki.NewResponder(ca, nil),
	}
	tc.srv = httptest.NewServer(tc.responder)
	t.Cleanup(tc.srv.Close)
	tc.issuerPath = testpki.WritePEM(t, tc.dir, "wwdr.pem", ca.Cert)
	return tc
}

func (tc *testContext) path(name string) string {
	return filepath.Join(tc.dir, name)
}

func (tc *testContext) leaf(name string) (*x509.Certificate, string) {
	tc.t.Helper()
	cert, _ := tc.ca.Issue(tc.t, name, "")
	return cert, testpki.WritePEM(tc.t, tc.dir, name+".pem", cert)
}

func (tc *testContext) p12(name, password string) (*x509.Certificate, string) {
	tc.t.Helper()
	cert, key := tc.ca.Issue(tc.t, name, "")
	data, err := pkcs12.Modern2023.Encode(key, cert, nil, password)
	require.NoError(tc.t, err)
	path := tc.path(name + ".p12")
	require.NoError(tc.t, os.WriteFile(path, data, 0o600))
	return cert, path
}

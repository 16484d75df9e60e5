// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package ocsp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransport_Send(t *testing.T) {
	var (
		gotMethod, gotContentType, gotAccept, gotHost, gotPath string
		gotBody                                                []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotAccept = r.Header.Get("Accept")
		gotHost = r.Host
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte("response"))
	}))
	defer srv.Close()

	tr := &Transport{
		Client: srv.Client(),
		URL:    srv.URL + "/ocsp03-wwdrg301",
		Host:   "ocsp.apple.com",
	}
	res, err := tr.Send(context.Background(), []byte("request"))
	require.NoError(t, err)

	assert.Equal(t, []byte("response"), res)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/ocsp-request", gotContentType)
	assert.Equal(t, "application/ocsp-response", gotAccept)
	assert.Equal(t, "ocsp.apple.com", gotHost)
	assert.Equal(t, "/ocsp03-wwdrg301", gotPath)
	assert.Equal(t, []byte("request"), gotBody)
}

func TestTransport_SendDefaultsHostToURL(t *testing.T) {
	var gotHost string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		_, _ = w.Write([]byte("response"))
	}))
	defer srv.Close()

	tr := &Transport{Client: srv.Client(), URL: srv.URL}
	_, err := tr.Send(context.Background(), []byte("request"))
	require.NoError(t, err)
	assert.Equal(t, srv.Listener.Addr().String(), gotHost)
}

func TestTransport_SendStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "try again later", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := &Transport{Client: srv.Client(), URL: srv.URL}
	_, err := tr.Send(context.Background(), []byte("request"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "try again later")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestTransport_SendEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	tr := &Transport{Client: srv.Client(), URL: srv.URL}
	_, err := tr.Send(context.Background(), []byte("request"))
	assert.ErrorContains(t, err, "empty response")
}

func TestTransport_SendTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	client := srv.Client()
	client.Timeout = 50 * time.Millisecond

	tr := &Transport{Client: client, URL: srv.URL}
	_, err := tr.Send(context.Background(), []byte("request"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error from ocsp server")
}

func TestTransport_SendLimitsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	tr := &Transport{Client: srv.Client(), URL: srv.URL, MaxResponseBytes: 16}
	res, err := tr.Send(context.Background(), []byte("request"))
	require.NoError(t, err)
	assert.Len(t, res, 16)
}

func TestTransport_SendBadURL(t *testing.T) {
	tr := &Transport{URL: "://bad"}
	_, err := tr.Send(context.Background(), []byte("request"))
	assert.ErrorContains(t, err, "error parsing ocsp server url")
}

// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package wwdrcheck

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/net/http2"
)

// defaultTLSConfig is only used when the responder is overridden with an
// https URL, Apple's responder is plain HTTP.
var defaultTLSConfig = &tls.Config{
	NextProtos: []string{
		http2.NextProtoTLS,
		"http/1.1",
	},

	MinVersion: tls.VersionTLS12,
	MaxVersion: tls.VersionTLS13,

	CurvePreferences: []tls.CurveID{
		tls.X25519MLKEM768,
		tls.X25519,
		tls.CurveP256,
		tls.CurveP384,
	},
}

// NewHTTPClient returns the client used to talk to the responder. Every
// request made with it is bounded by cfg.Timeout.
func NewHTTPClient(cfg Config) (*http.Client, error) {
	dialer := &net.Dialer{
		Timeout:   cfg.Timeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSClientConfig:       defaultTLSConfig.Clone(),
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
	}

	// Allow HTTP/2 for responders reached over TLS.
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, errors.Wrap(err, "wwdrcheck: failed to configure http2")
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		// Responders answer directly, a redirect is treated as a failure.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

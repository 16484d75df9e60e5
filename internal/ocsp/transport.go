// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package ocsp

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cockroachdb/errors"
)

// DefaultMaxResponseBytes caps how much of a responder's body is read.
const DefaultMaxResponseBytes = 1024 * 1024

// Transport posts OCSP requests to a single responder.
type Transport struct {
	// Client used to send requests. The client's Timeout bounds every
	// request, if nil http.DefaultClient is used.
	Client *http.Client

	// URL of the OCSP responder.
	URL string

	// Host overrides the virtual host sent to the responder.
	//
	// If empty defaults to the host of URL.
	Host string

	// MaxResponseBytes limits the size of a response body, if zero
	// DefaultMaxResponseBytes is used.
	MaxResponseBytes int64
}

// StatusError is returned when a responder replies with anything other than
// 200 OK.
type StatusError struct {
	// StatusCode returned by the responder.
	StatusCode int
	// Body is the (possibly truncated) body of the response.
	Body string
}

func (e *StatusError) Error() string {
	msg := "http: expected " + strconv.Itoa(http.StatusOK) + ", got " + strconv.Itoa(e.StatusCode)
	if e.Body != "" {
		msg += " (" + e.Body + ")"
	}
	return msg
}

// Send posts a DER encoded OCSP request and returns the raw response body.
//
// Only a single attempt is made, errors are never retried.
func (t *Transport) Send(ctx context.Context, request []byte) ([]byte, error) {
	// Parse the server url.
	ocspURL, err := url.Parse(t.URL)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing ocsp server url")
	}
	host := t.Host
	if host == "" {
		host = ocspURL.Host
	}

	// Create an HTTP request to the OCSP server.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ocspURL.String(), bytes.NewReader(request))
	if err != nil {
		return nil, errors.Wrap(err, "error creating http request")
	}
	req.Header.Set("Accept", "application/ocsp-response")
	req.Header.Set("Content-Type", "application/ocsp-request")
	// net/http ignores a "Host" header on outgoing requests, the virtual host
	// has to be set on the request itself.
	req.Host = host

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	// Send the OCSP request to the OCSP server.
	res, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "error from ocsp server")
	}
	defer res.Body.Close()

	limit := t.MaxResponseBytes
	if limit <= 0 {
		limit = DefaultMaxResponseBytes
	}

	// Wrap the body with a limit reader to prevent us from reading too much
	// data.
	body := io.LimitReader(res.Body, limit)

	if res.StatusCode != http.StatusOK {
		// Only a short excerpt of the body is kept for the error message.
		b, _ := io.ReadAll(io.LimitReader(body, 256))
		return nil, &StatusError{StatusCode: res.StatusCode, Body: string(bytes.TrimSpace(b))}
	}

	// Read all the response data.
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.Wrap(err, "error reading ocsp response")
	}
	if len(data) == 0 {
		return nil, errors.New("ocsp: empty response from server")
	}
	return data, nil
}

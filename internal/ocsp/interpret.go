// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package ocsp

import (
	"context"
	"crypto/x509"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/ocsp"
)

// InterpretOptions controls how a raw OCSP response is decoded.
type InterpretOptions struct {
	// Certificate the response is expected to be about. The single response
	// matching its serial number is selected.
	Certificate *x509.Certificate
	// Issuer of Certificate, used to verify the response signature.
	Issuer *x509.Certificate

	// SkipVerify disables verification of the response signature against
	// Issuer. The content of an unverified response cannot be trusted.
	SkipVerify bool

	// TextMatch decides revocation by scanning the rendered response text
	// (see ScanText) instead of using the decoded certificate status.
	TextMatch bool

	// Timeout bounds decoding of the response, zero means no bound other
	// than the context.
	Timeout time.Duration

	// CurrentTime is used to validate a delegated responder certificate.
	// If zero, time.Now() is used.
	CurrentTime time.Time
}

// Result is an interpreted OCSP response.
type Result struct {
	// Response is the decoded OCSP response.
	*ocsp.Response

	// Revoked reports whether the certificate has been revoked.
	Revoked bool
	// RevokeTime is the revocation time, if one is known.
	RevokeTime string

	// Text is the human-readable rendering of Response.
	Text string
}

// Interpret decodes a raw OCSP response and determines the revocation status
// of opts.Certificate.
func Interpret(ctx context.Context, data []byte, opts InterpretOptions) (*Result, error) {
	now := opts.CurrentTime
	if now.IsZero() {
		now = time.Now()
	}

	res, err := decode(ctx, opts.Timeout, func() (*ocsp.Response, error) {
		if opts.SkipVerify {
			return ocsp.ParseResponseForCert(data, opts.Certificate, nil)
		}
		return ParseAndVerifyResponseForCert(data, opts.Certificate, opts.Issuer, now)
	})
	if err != nil {
		return nil, errors.Wrap(err, "error handling ocsp response")
	}

	r := &Result{
		Response: res,
		Text:     Render(res),
	}
	if opts.TextMatch {
		r.Revoked, r.RevokeTime = ScanText(r.Text)
		return r, nil
	}

	if res.Status == ocsp.Revoked {
		r.Revoked = true
		if !res.RevokedAt.IsZero() {
			r.RevokeTime = FormatTime(res.RevokedAt)
		}
	}
	return r, nil
}

// decode runs fn, giving up once timeout elapses or ctx is done.
//
// A response crafted to stall the decoder would otherwise hang the caller
// forever. fn keeps running in the background if it never returns.
func decode(ctx context.Context, timeout time.Duration, fn func() (*ocsp.Response, error)) (*ocsp.Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		res *ocsp.Response
		err error
	}
	ch := make(chan result, 1)
	go func() {
		res, err := fn()
		ch <- result{res: res, err: err}
	}()

	select {
	case r := <-ch:
		return r.res, r.err
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "ocsp: decoding response")
	}
}

// FormatTime formats a time the way it is reported in a verdict.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

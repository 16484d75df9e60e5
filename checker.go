// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package wwdrcheck

import (
	"context"
	"crypto"
	"crypto/x509"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/matthewpi/wwdrcheck/internal/ocsp"
	"github.com/matthewpi/wwdrcheck/internal/p12"
)

// Options controls options for a [Checker]. Changes to Options are ignored
// after being provided to a [Checker].
type Options struct {
	// Config used for every check. The zero value is replaced with
	// DefaultConfig().
	Config Config

	// HTTPClient used to talk to the responder and to fetch issuers.
	//
	// If nil a client is built with NewHTTPClient.
	HTTPClient *http.Client

	// Logger to use for the [Checker] instance.
	Logger *slog.Logger
}

// Checker checks whether certificates have been revoked by querying an OCSP
// responder.
//
// Checks are independent of one another and a Checker is safe for concurrent
// use.
type Checker struct {
	config    Config
	hash      crypto.Hash
	client    *http.Client
	transport *ocsp.Transport
	cache     *verdictCache

	logger *slog.Logger

	meter          metric.Meter
	checkCounter   metric.Int64Counter
	errorCounter   metric.Int64Counter
	revokedCounter metric.Int64Counter
	cacheHits      metric.Int64Counter

	// interpret is swapped out by tests.
	interpret func(context.Context, []byte, ocsp.InterpretOptions) (*ocsp.Result, error)
	now       func() time.Time
}

// New creates a new [Checker].
func New(options Options) (*Checker, error) {
	cfg := options.Config
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	hash, err := cfg.hash()
	if err != nil {
		return nil, err
	}

	c := &Checker{
		config:    cfg,
		hash:      hash,
		client:    options.HTTPClient,
		logger:    options.Logger,
		meter:     otel.Meter("github.com/matthewpi/wwdrcheck"),
		interpret: ocsp.Interpret,
		now:       time.Now,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.client == nil {
		c.client, err = NewHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
	}
	c.transport = &ocsp.Transport{
		Client:           c.client,
		URL:              cfg.ResponderURL,
		Host:             cfg.Host,
		MaxResponseBytes: cfg.MaxResponseBytes,
	}
	if cfg.CacheSize > 0 {
		c.cache, err = newVerdictCache(cfg.CacheSize)
		if err != nil {
			return nil, err
		}
	}

	c.checkCounter, err = c.meter.Int64Counter("wwdrcheck.check.total")
	if err != nil {
		return nil, errors.Wrap(err, "wwdrcheck: failed to create otel meter")
	}
	c.errorCounter, err = c.meter.Int64Counter("wwdrcheck.check.errors")
	if err != nil {
		return nil, errors.Wrap(err, "wwdrcheck: failed to create otel meter")
	}
	c.revokedCounter, err = c.meter.Int64Counter("wwdrcheck.check.revoked")
	if err != nil {
		return nil, errors.Wrap(err, "wwdrcheck: failed to create otel meter")
	}
	c.cacheHits, err = c.meter.Int64Counter("wwdrcheck.cache.hits")
	if err != nil {
		return nil, errors.Wrap(err, "wwdrcheck: failed to create otel meter")
	}
	return c, nil
}

// Config returns the configuration used by the checker.
func (c *Checker) Config() Config {
	return c.config
}

// Check checks whether cert has been revoked by issuer.
//
// If issuer is nil it is fetched from the first IssuingCertificateURL of
// cert. The returned Verdict always describes the outcome, a failed check
// has Success set to false and Error set to the reason.
func (c *Checker) Check(ctx context.Context, cert, issuer *x509.Certificate) Verdict {
	c.checkCounter.Add(ctx, 1)
	v := c.check(ctx, cert, issuer)
	c.record(ctx, v)
	return v
}

func (c *Checker) check(ctx context.Context, cert, issuer *x509.Certificate) Verdict {
	if cert == nil {
		return failed(KindRequest, errors.New("wwdrcheck: no certificate to check"))
	}

	if issuer == nil {
		c.logger.LogAttrs(
			ctx,
			slog.LevelDebug,
			"fetching issuer certificate",
			slog.Any("issuing_certificate_url", cert.IssuingCertificateURL),
		)
		var err error
		issuer, err = ocsp.FetchIssuer(ctx, c.client, cert)
		if err != nil {
			return failed(KindRequest, errors.Wrap(err, "wwdrcheck: failed to get issuer"))
		}
	}

	var key string
	if c.cache != nil {
		key = cacheKey(cert, issuer)
		if v, ok := c.cache.get(key, c.now()); ok {
			c.cacheHits.Add(ctx, 1)
			c.logger.DebugContext(ctx, "using cached verdict", slog.String("serial", v.Serial))
			return v
		}
	}

	// Build the request.
	req, err := ocsp.BuildRequest(cert, issuer, c.hash)
	if err != nil {
		return failed(KindRequest, err)
	}

	// Send it to the responder.
	c.logger.LogAttrs(
		ctx,
		slog.LevelDebug,
		"querying ocsp responder",
		slog.String("responder_url", c.config.ResponderURL),
		slog.String("serial", cert.SerialNumber.Text(16)),
	)
	data, err := c.transport.Send(ctx, req)
	if err != nil {
		return failed(KindTransport, err)
	}

	// Decode and interpret the response.
	now := c.now()
	res, err := c.interpret(ctx, data, ocsp.InterpretOptions{
		Certificate: cert,
		Issuer:      issuer,
		SkipVerify:  c.config.SkipVerify,
		TextMatch:   c.config.TextMatch,
		Timeout:     c.config.DecodeTimeout,
		CurrentTime: now,
	})
	if err != nil {
		return failed(KindParse, err)
	}
	c.warnFreshness(ctx, cert, res, now)

	v := verdictFromResult(res)
	if c.cache != nil {
		c.cache.add(key, v, ocsp.RefreshAt(res.Response), now)
	}
	return v
}

// warnFreshness logs responses that should not be relied upon for long.
func (c *Checker) warnFreshness(ctx context.Context, cert *x509.Certificate, res *ocsp.Result, now time.Time) {
	if ocsp.IsStale(res.Response, now) {
		c.logger.LogAttrs(
			ctx,
			slog.LevelWarn,
			"ocsp response is stale",
			slog.String("serial", cert.SerialNumber.Text(16)),
			slog.Time("next_update", res.NextUpdate),
		)
	}

	// Check if the OCSP response is somehow valid even after the certificate
	// would expire.
	if expAt := ocsp.ExpiresAt(cert); res.NextUpdate.After(expAt) {
		c.logger.LogAttrs(
			ctx,
			slog.LevelWarn,
			"ocsp response valid after certificate expiration",
			slog.String("subject", cert.Subject.CommonName),
			slog.Duration("overlap", res.NextUpdate.Sub(expAt)),
		)
	}
}

// record updates metrics and logs the outcome of a check.
func (c *Checker) record(ctx context.Context, v Verdict) {
	if !v.Success {
		c.errorCounter.Add(ctx, 1)
		c.logger.LogAttrs(
			ctx,
			slog.LevelWarn,
			"revocation check failed",
			slog.String("kind", string(v.Kind)),
			slog.Any("err", v.Err()),
		)
		return
	}

	fields := []slog.Attr{
		slog.String("serial", v.Serial),
		slog.String("status", v.Status),
		slog.Bool("cached", v.Cached),
	}
	if v.IsRevoked {
		c.revokedCounter.Add(ctx, 1)
		fields = append(fields, slog.String("revoke_time", v.RevokeTime))
		c.logger.LogAttrs(ctx, slog.LevelInfo, "certificate revoked", fields...)
		return
	}
	c.logger.LogAttrs(ctx, slog.LevelInfo, "certificate checked", fields...)
}

// CheckPEM checks the certificate stored at certPath against the issuer
// stored at issuerPath. Both files may be PEM or DER encoded. If issuerPath is
// empty the issuer is fetched from the certificate.
func (c *Checker) CheckPEM(ctx context.Context, certPath, issuerPath string) Verdict {
	var issuer *x509.Certificate
	if issuerPath != "" {
		var err error
		issuer, err = loadCertificate(issuerPath, "issuer certificate")
		if err != nil {
			c.checkCounter.Add(ctx, 1)
			v := failed(KindRequest, err)
			v.Path = certPath
			c.record(ctx, v)
			return v
		}
	}
	return c.checkFile(ctx, certPath, issuer)
}

// checkFile checks the certificate stored at path against an already loaded
// issuer.
func (c *Checker) checkFile(ctx context.Context, path string, issuer *x509.Certificate) Verdict {
	cert, err := loadCertificate(path, "certificate")
	if err != nil {
		c.checkCounter.Add(ctx, 1)
		v := failed(KindRequest, err)
		v.Path = path
		c.record(ctx, v)
		return v
	}
	v := c.Check(ctx, cert, issuer)
	v.Path = path
	return v
}

// CheckP12 extracts the leaf certificate of the PKCS#12 archive at p12Path
// and checks it against the issuer stored at issuerPath.
//
// The certificate is extracted to a temporary file which is removed before
// CheckP12 returns, whatever the outcome of the check. Nothing is sent to the
// responder when extraction fails.
func (c *Checker) CheckP12(ctx context.Context, p12Path, password, issuerPath string) Verdict {
	for _, path := range []string{p12Path, issuerPath} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			c.checkCounter.Add(ctx, 1)
			v := failed(KindFileNotFound, errors.Wrapf(err, "%s not found", path))
			c.record(ctx, v)
			return v
		}
	}

	pemPath, err := p12.ExtractToTemp(p12Path, password, c.config.TempDir)
	if err != nil {
		c.checkCounter.Add(ctx, 1)
		v := failed(KindExtraction, err)
		v.Path = p12Path
		c.record(ctx, v)
		return v
	}
	defer c.removeTemp(ctx, pemPath)

	v := c.CheckPEM(ctx, pemPath, issuerPath)
	v.Path = p12Path
	return v
}

// removeTemp removes a temporary file created during a check.
func (c *Checker) removeTemp(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "failed to remove temporary file", slog.String("path", path), slog.Any("err", err))
	}
}

// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package wwdrcheck

import (
	"context"
	"crypto/x509"
	"log/slog"
	"sync"
)

// CheckMany checks every certificate in certPaths against the issuer stored
// at issuerPath, running up to Config.Workers checks at a time. Verdicts are
// returned in the order of certPaths.
//
// The issuer is loaded once, if that fails every verdict carries the error.
func (c *Checker) CheckMany(ctx context.Context, issuerPath string, certPaths []string) []Verdict {
	verdicts := make([]Verdict, len(certPaths))
	if len(certPaths) == 0 {
		return verdicts
	}

	var issuer *x509.Certificate
	if issuerPath != "" {
		var err error
		issuer, err = loadCertificate(issuerPath, "issuer certificate")
		if err != nil {
			for i, path := range certPaths {
				verdicts[i] = failed(KindRequest, err)
				verdicts[i].Path = path
			}
			return verdicts
		}
	}

	workers := c.config.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(certPaths) {
		workers = len(certPaths)
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "checking certificates", slog.Int("count", len(certPaths)), slog.Int("workers", workers))

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for i := range jobs {
				verdicts[i] = c.checkFile(ctx, certPaths[i], issuer)
			}
		}()
	}

	for i := range certPaths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return verdicts
}

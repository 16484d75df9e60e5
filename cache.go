// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package wwdrcheck

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"time"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry struct {
	verdict   Verdict
	refreshAt time.Time
}

// verdictCache holds successful verdicts until their response should be
// refreshed.
type verdictCache struct {
	entries *lru.Cache[string, cacheEntry]
}

func newVerdictCache(size int) (*verdictCache, error) {
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, errors.Wrap(err, "wwdrcheck: failed to create cache")
	}
	return &verdictCache{entries: entries}, nil
}

// cacheKey identifies a certificate the same way a CertID does, by its
// issuer's key and its serial number.
func cacheKey(cert, issuer *x509.Certificate) string {
	sum := sha256.Sum256(issuer.RawSubjectPublicKeyInfo)
	return hex.EncodeToString(sum[:]) + ":" + cert.SerialNumber.Text(16)
}

func (c *verdictCache) get(key string, now time.Time) (Verdict, bool) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return Verdict{}, false
	}
	if !now.Before(entry.refreshAt) {
		c.entries.Remove(key)
		return Verdict{}, false
	}
	v := entry.verdict
	v.Cached = true
	return v, true
}

// add stores a verdict, verdicts without a refresh time are not cached.
func (c *verdictCache) add(key string, v Verdict, refreshAt time.Time, now time.Time) {
	if !v.Success || refreshAt.IsZero() || !now.Before(refreshAt) {
		return
	}
	c.entries.Add(key, cacheEntry{verdict: v, refreshAt: refreshAt})
}

// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package wwdrcheck

import (
	"crypto"
	"net/url"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/matthewpi/wwdrcheck/internal/ocsp"
)

const (
	// DefaultResponderURL is Apple's OCSP responder for the WWDR G3
	// intermediate authority.
	DefaultResponderURL = "http://ocsp.apple.com/ocsp03-wwdrg301"

	// DefaultTimeout bounds a single request to the responder.
	DefaultTimeout = 30 * time.Second

	// DefaultDecodeTimeout bounds decoding of a single response.
	DefaultDecodeTimeout = 5 * time.Second

	// DefaultWorkers is the size of the pool used by CheckMany.
	DefaultWorkers = 4
)

// Config controls how revocation checks are performed.
type Config struct {
	// ResponderURL is the URL OCSP requests are posted to.
	ResponderURL string `yaml:"responder_url"`

	// Host is the virtual host sent to the responder.
	//
	// If empty defaults to the host of ResponderURL.
	Host string `yaml:"host"`

	// Timeout bounds a single request to the responder.
	Timeout time.Duration `yaml:"timeout"`

	// DecodeTimeout bounds decoding of a single response.
	DecodeTimeout time.Duration `yaml:"decode_timeout"`

	// Hash is the algorithm used for the issuer hashes of a request, one of
	// sha1, sha256, sha384 or sha512.
	Hash string `yaml:"hash"`

	// SkipVerify disables verification of the response signature. Responses
	// are then trusted as-is.
	SkipVerify bool `yaml:"skip_verify"`

	// TextMatch decides revocation by scanning the textual dump of the
	// response for revocation markers rather than by its decoded status.
	TextMatch bool `yaml:"text_match"`

	// TempDir is where temporary files are created.
	//
	// If empty defaults to os.TempDir().
	TempDir string `yaml:"temp_dir"`

	// CacheSize is the number of verdicts to keep while their response is
	// still fresh, zero disables caching.
	CacheSize int `yaml:"cache_size"`

	// Workers is the number of checks CheckMany runs concurrently.
	Workers int `yaml:"workers"`

	// MaxResponseBytes limits the size of a responder's reply.
	MaxResponseBytes int64 `yaml:"max_response_bytes"`
}

// DefaultConfig returns the configuration used to check certificates issued
// by Apple's WWDR G3 intermediate authority.
func DefaultConfig() Config {
	return Config{
		ResponderURL:     DefaultResponderURL,
		Timeout:          DefaultTimeout,
		DecodeTimeout:    DefaultDecodeTimeout,
		Hash:             "sha1",
		Workers:          DefaultWorkers,
		MaxResponseBytes: ocsp.DefaultMaxResponseBytes,
	}
}

// LoadConfig reads a YAML configuration file. Values missing from the file
// keep their DefaultConfig value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "wwdrcheck: failed to read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "wwdrcheck: failed to parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports the first invalid value of the configuration.
func (c Config) Validate() error {
	if c.ResponderURL == "" {
		return errors.New("wwdrcheck: responder_url must be set")
	}
	u, err := url.Parse(c.ResponderURL)
	if err != nil {
		return errors.Wrap(err, "wwdrcheck: invalid responder_url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Newf("wwdrcheck: responder_url must be http or https, got %q", u.Scheme)
	}
	if c.Timeout <= 0 {
		return errors.New("wwdrcheck: timeout must be positive")
	}
	if c.DecodeTimeout <= 0 {
		return errors.New("wwdrcheck: decode_timeout must be positive")
	}
	if c.CacheSize < 0 {
		return errors.New("wwdrcheck: cache_size must not be negative")
	}
	if c.Workers < 0 {
		return errors.New("wwdrcheck: workers must not be negative")
	}
	if _, err := c.hash(); err != nil {
		return err
	}
	return nil
}

func (c Config) hash() (crypto.Hash, error) {
	return ocsp.ParseHash(c.Hash)
}

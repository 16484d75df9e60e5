// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

// Package testpki generates throwaway certificate authorities, leaf
// certificates and OCSP responders for tests.
package testpki

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/ocsp"
)

// CA is a certificate authority able to issue certificates and sign OCSP
// responses.
type CA struct {
	Cert *x509.Certificate
	Key  crypto.Signer
}

func newKey(t testing.TB) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("testpki: failed to generate key: %v", err)
	}
	return key
}

func newSerial(t testing.TB) *big.Int {
	t.Helper()
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	if err != nil {
		t.Fatalf("testpki: failed to generate serial: %v", err)
	}
	return serial
}

func sign(t testing.TB, template, parent *x509.Certificate, pub crypto.PublicKey, priv crypto.Signer) *x509.Certificate {
	t.Helper()
	der, err := x509.CreateCertificate(rand.Reader, template, parent, pub, priv)
	if err != nil {
		t.Fatalf("testpki: failed to create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("testpki: failed to parse certificate: %v", err)
	}
	return cert
}

// NewCA creates a self-signed CA.
func NewCA(t testing.TB, commonName string) *CA {
	t.Helper()
	key := newKey(t)
	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          newSerial(t),
		Subject:               pkix.Name{CommonName: commonName, Organization: []string{"Test"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	return &CA{Cert: sign(t, template, template, &key.PublicKey, key), Key: key}
}

// Issue issues a leaf certificate. If issuerURL is set it becomes the leaf's
// IssuingCertificateURL.
func (ca *CA) Issue(t testing.TB, commonName string, issuerURL string) (*x509.Certificate, crypto.Signer) {
	t.Helper()
	key := newKey(t)
	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: newSerial(t),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(12 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
	}
	if issuerURL != "" {
		template.IssuingCertificateURL = []string{issuerURL}
	}
	return sign(t, template, ca.Cert, &key.PublicKey, ca.Key), key
}

// NewResponder issues a delegated OCSP responder certificate. When ocspSigning
// is false the OCSPSigning extended key usage is left out.
func (ca *CA) NewResponder(t testing.TB, ocspSigning bool) *CA {
	t.Helper()
	key := newKey(t)
	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: newSerial(t),
		Subject:      pkix.Name{CommonName: ca.Cert.Subject.CommonName + " OCSP Responder"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(12 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	if ocspSigning {
		template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageOCSPSigning}
	} else {
		template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}
	}
	return &CA{Cert: sign(t, template, ca.Cert, &key.PublicKey, ca.Key), Key: key}
}

// Status is the state a Responder reports for a serial number.
type Status struct {
	Status    int
	RevokedAt time.Time
	Reason    int
}

// Response creates an OCSP response for cert signed by responder. If
// responder is nil the CA signs directly.
func (ca *CA) Response(t testing.TB, cert *x509.Certificate, status Status, responder *CA) []byte {
	t.Helper()
	now := time.Now().Truncate(time.Second)
	template := ocsp.Response{
		Status:           status.Status,
		SerialNumber:     cert.SerialNumber,
		ThisUpdate:       now.Add(-time.Minute),
		NextUpdate:       now.Add(time.Hour),
		RevokedAt:        status.RevokedAt,
		RevocationReason: status.Reason,
	}
	signerCert, signerKey := ca.Cert, ca.Key
	if responder != nil {
		signerCert, signerKey = responder.Cert, responder.Key
		template.Certificate = responder.Cert
	}
	der, err := ocsp.CreateResponse(ca.Cert, signerCert, template, signerKey)
	if err != nil {
		t.Fatalf("testpki: failed to create ocsp response: %v", err)
	}
	return der
}

// Responder is an http.Handler answering OCSP requests for certificates
// issued by a CA.
type Responder struct {
	CA *CA
	// Signer is the delegated responder, nil means the CA signs.
	Signer *CA

	mx       sync.Mutex
	statuses map[string]Status
	hits     atomic.Int64
	lastReq  atomic.Pointer[http.Request]
}

// NewResponder creates a Responder for ca. Certificates it has not been told
// about are reported as good.
func NewResponder(ca *CA, signer *CA) *Responder {
	return &Responder{CA: ca, Signer: signer, statuses: make(map[string]Status)}
}

// Set records the status to report for serial.
func (r *Responder) Set(serial *big.Int, status Status) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.statuses[serial.String()] = status
}

// Hits returns the number of requests served.
func (r *Responder) Hits() int64 {
	return r.hits.Load()
}

// LastRequest returns the last request served, with its body consumed.
func (r *Responder) LastRequest() *http.Request {
	return r.lastReq.Load()
}

// ServeHTTP implements http.Handler.
func (r *Responder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.hits.Add(1)
	r.lastReq.Store(req)

	body, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ocspReq, err := ocsp.ParseRequest(body)
	if err != nil {
		w.Header().Set("Content-Type", "application/ocsp-response")
		_, _ = w.Write(ocsp.MalformedRequestErrorResponse)
		return
	}

	r.mx.Lock()
	status := r.statuses[ocspReq.SerialNumber.String()]
	r.mx.Unlock()

	now := time.Now().Truncate(time.Second)
	template := ocsp.Response{
		Status:           status.Status,
		SerialNumber:     ocspReq.SerialNumber,
		ThisUpdate:       now.Add(-time.Minute),
		NextUpdate:       now.Add(time.Hour),
		RevokedAt:        status.RevokedAt,
		RevocationReason: status.Reason,
	}
	signerCert, signerKey := r.CA.Cert, r.CA.Key
	if r.Signer != nil {
		signerCert, signerKey = r.Signer.Cert, r.Signer.Key
		template.Certificate = r.Signer.Cert
	}
	der, err := ocsp.CreateResponse(r.CA.Cert, signerCert, template, signerKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/ocsp-response")
	_, _ = w.Write(der)
}

// WritePEM writes cert to dir/name in PEM form and returns the path.
func WritePEM(t testing.TB, dir, name string, cert *x509.Certificate) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("testpki: failed to write %s: %v", path, err)
	}
	return path
}

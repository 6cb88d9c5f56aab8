// Package tlsboot builds the crypto/tls.Config the reactor listens with,
// either loading an operator-supplied certificate/key pair or generating a
// self-signed one for local/dev use (§6.1). Certificate validation helpers
// are grounded on mercator-hq-jupiter's pkg/security/tls/certs.go
// (ValidateX509Certificate's not-before/not-after check); the self-signed
// generator is new code this core needs that the teacher has no
// equivalent of, since it never terminates TLS itself.
package tlsboot

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"
)

// Load builds a *tls.Config configured for TLS 1.3 only, from an explicit
// cert/key file pair when both are given, or a freshly generated
// self-signed certificate otherwise.
//
// Go's crypto/tls has no equivalent of the OpenSSL-style preloaded
// Diffie-Hellman parameter sets the original Iris server sets up (1024
// through 4096-bit groups) — TLS 1.3 key exchange in the standard library
// is negotiated automatically over X25519/P-256 and isn't configurable at
// that level, so there's nothing to port; MinVersion is the whole story.
func Load(certFile, keyFile string) (*tls.Config, error) {
	var cert tls.Certificate
	var err error

	if certFile != "" && keyFile != "" {
		cert, err = tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("tlsboot: load cert/key: %w", err)
		}
	} else {
		cert, err = generateSelfSigned()
		if err != nil {
			return nil, fmt.Errorf("tlsboot: generate self-signed cert: %w", err)
		}
	}

	if err := validateLeaf(cert); err != nil {
		return nil, err
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{cert},
	}, nil
}

// validateLeaf checks the certificate's validity window, the same check
// ValidateX509Certificate performs, so a misconfigured or expired
// operator-supplied cert fails fast at startup rather than at the first
// handshake.
func validateLeaf(cert tls.Certificate) error {
	if len(cert.Certificate) == 0 {
		return fmt.Errorf("tlsboot: certificate chain is empty")
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("tlsboot: parse leaf certificate: %w", err)
	}
	now := time.Now()
	if now.Before(leaf.NotBefore) {
		return fmt.Errorf("tlsboot: certificate not yet valid (valid from %s)", leaf.NotBefore.Format(time.RFC3339))
	}
	if now.After(leaf.NotAfter) {
		return fmt.Errorf("tlsboot: certificate expired on %s", leaf.NotAfter.Format(time.RFC3339))
	}
	return nil
}

// generateSelfSigned produces an in-memory ECDSA P-256 certificate valid
// for one year, good for local development and tests — not for
// production, where an operator should always supply a real cert/key
// pair.
func generateSelfSigned() (tls.Certificate, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, err
	}

	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "iris-restful self-signed"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().AddDate(1, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IsCA:         true,
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}, nil
}

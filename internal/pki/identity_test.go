package pki

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"
)

func TestGenerateSelfSignedIdentity(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	certPEM, err := GenerateSelfSignedIdentity(key, "127.0.0.1", "operator.example.com")
	if err != nil {
		t.Fatalf("GenerateSelfSignedIdentity: %v", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		t.Fatal("failed to decode identity cert PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse cert: %v", err)
	}

	if !cert.PublicKey.(*ecdsa.PublicKey).Equal(&key.PublicKey) {
		t.Fatal("certificate public key does not match the signing key")
	}
	if len(cert.IPAddresses) != 1 || cert.IPAddresses[0].String() != "127.0.0.1" {
		t.Fatalf("expected IP SAN 127.0.0.1, got %v", cert.IPAddresses)
	}
	if len(cert.DNSNames) != 1 || cert.DNSNames[0] != "operator.example.com" {
		t.Fatalf("expected DNS SAN operator.example.com, got %v", cert.DNSNames)
	}

	// Self-signed: verifying against itself as the sole root must
	// succeed.
	pool := x509.NewCertPool()
	pool.AddCert(cert)
	if _, err := cert.Verify(x509.VerifyOptions{
		Roots:     pool,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}); err != nil {
		t.Fatalf("self-signed certificate failed self-verification: %v", err)
	}
}

func TestGenerateSelfSignedIdentity_DifferentKeysDifferentCerts(t *testing.T) {
	key1, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	key2, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)

	cert1, err := GenerateSelfSignedIdentity(key1, "127.0.0.1")
	if err != nil {
		t.Fatalf("GenerateSelfSignedIdentity: %v", err)
	}
	cert2, err := GenerateSelfSignedIdentity(key2, "127.0.0.1")
	if err != nil {
		t.Fatalf("GenerateSelfSignedIdentity: %v", err)
	}
	if string(cert1) == string(cert2) {
		t.Fatal("expected different keys to produce different certificates")
	}
}

// Package pki generates the self-signed TLS identity an MPC node
// presents on the mesh: every other party pins the exact certificate
// (via Config Exchange's CertPath) rather than verifying a chain of
// trust, so the node is its own certificate authority of one.
package pki

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"time"
)

// nodeCertValidity is long: the mesh's trust model verifies a peer by
// exact certificate match against a known file (see internal/mesh),
// not by chain-of-trust expiry, so there is no short-lived-certificate
// security benefit to renewing it often — only the operational cost
// of redistributing a new CertPath to every other operator.
const nodeCertValidity = 365 * 24 * time.Hour

// GenerateSelfSignedIdentity mints a self-signed TLS certificate bound
// to key, suitable as an MPC node's mesh identity: every other party
// pins this exact certificate (via Config Exchange's CertPath) rather
// than verifying a certificate chain, so the node is its own
// certificate authority of one.
func GenerateSelfSignedIdentity(key *ecdsa.PrivateKey, hosts ...string) (certPEM []byte, err error) {
	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"zksaas-node"},
			CommonName:   "zksaas-operator",
		},
		NotBefore:             now.Add(-5 * time.Minute),
		NotAfter:              now.Add(nodeCertValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("pki: create self-signed identity cert: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}), nil
}

// randomSerial generates a cryptographically random certificate
// serial number.
func randomSerial() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("pki: generate serial: %w", err)
	}
	return serial, nil
}

// Package keystore loads or deterministically derives the node's own
// operator keypair: the identity whose public key must appear in a
// session's ordered participant list for this node to take part, and
// whose signature is attached to every message this node broadcasts
// over the Party Transcript (the receiving transport does not verify
// it; it feeds the message identifier).
//
// Grounded on the teacher's internal/pki seed-derivation pattern
// (golang.org/x/crypto/hkdf driving a deterministic ecdsa.GenerateKey
// reader) so that restarting the node with the same keystore seed
// reproduces the same operator identity instead of silently rotating
// it and dropping out of every participant set that named the old
// key.
package keystore

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/hkdf"

	"github.com/cosnark/zksaas-node/internal/core"
)

const keyFileName = "operator-key.pem"

// Keypair is the node's operator identity: an ECDSA P-256 keypair
// whose DER-encoded public key serves as its core.PublicKey.
type Keypair struct {
	key *ecdsa.PrivateKey
	pub core.PublicKey
}

// PublicKey implements session.Identity.
func (k *Keypair) PublicKey() core.PublicKey { return k.pub }

// Sign implements session.Identity, producing an ASN.1 DER ECDSA
// signature over digest.
func (k *Keypair) Sign(digest []byte) ([]byte, error) {
	return ecdsa.SignASN1(rand.Reader, k.key, digest)
}

// Verify checks an ASN.1 DER ECDSA signature over digest against pub.
func Verify(pub core.PublicKey, digest, sig []byte) (bool, error) {
	parsed, err := x509.ParsePKIXPublicKey(pub)
	if err != nil {
		return false, fmt.Errorf("keystore: parse public key: %w", err)
	}
	ecdsaPub, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return false, fmt.Errorf("keystore: public key is not ECDSA")
	}
	return ecdsa.VerifyASN1(ecdsaPub, digest, sig), nil
}

// Load reads a keypair previously written by Save from dir. It
// returns core.ErrNotReady if the keystore has not yet been
// initialized there.
func Load(dir string) (*Keypair, error) {
	keyPEM, err := os.ReadFile(filepath.Join(dir, keyFileName))
	if os.IsNotExist(err) {
		return nil, &core.ErrNotReady{Subsystem: "keystore"}
	}
	if err != nil {
		return nil, &core.DomainError{Code: core.ErrorCodeIO, Message: "read operator key", Cause: err}
	}

	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, &core.DomainError{Code: core.ErrorCodeState, Message: "operator key file does not contain a PEM block"}
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, &core.DomainError{Code: core.ErrorCodeState, Message: "parse operator private key", Cause: err}
	}

	return fromKey(key)
}

// GenerateFromSeed deterministically derives a keypair from seed using
// HKDF-SHA256, so the same seed always yields the same operator
// identity. Used on first startup when no keystore exists yet and the
// deployment supplies a stable seed (e.g. derived from a provisioned
// secret) rather than relying on ambient randomness that a
// re-provisioned node would not reproduce.
func GenerateFromSeed(seed string) (*Keypair, error) {
	reader := hkdf.New(sha256.New, []byte(seed), nil, []byte("zknode-operator-key"))
	key, err := ecdsa.GenerateKey(elliptic.P256(), reader)
	if err != nil {
		return nil, &core.DomainError{Code: core.ErrorCodeInternal, Message: "derive operator key", Cause: err}
	}
	return fromKey(key)
}

// Generate creates a fresh, non-deterministic keypair.
func Generate() (*Keypair, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, &core.DomainError{Code: core.ErrorCodeInternal, Message: "generate operator key", Cause: err}
	}
	return fromKey(key)
}

// Save persists the keypair to dir, creating it if necessary. The
// write is atomic (write-to-temp-then-rename) so a crash mid-write
// cannot leave a half-written key file that Load would misparse.
func (k *Keypair) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return &core.DomainError{Code: core.ErrorCodeIO, Message: "create keystore directory", Cause: err}
	}

	keyDER, err := x509.MarshalECPrivateKey(k.key)
	if err != nil {
		return &core.DomainError{Code: core.ErrorCodeInternal, Message: "marshal operator key", Cause: err}
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	if err := atomicWriteFile(filepath.Join(dir, keyFileName), keyPEM, 0o600); err != nil {
		return &core.DomainError{Code: core.ErrorCodeIO, Message: "write operator key", Cause: err}
	}
	return nil
}

// PrivateKey exposes the underlying ECDSA key for packages (internal/pki)
// that must mint a self-signed TLS certificate bound to this identity.
func (k *Keypair) PrivateKey() *ecdsa.PrivateKey { return k.key }

func fromKey(key *ecdsa.PrivateKey) (*Keypair, error) {
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, &core.DomainError{Code: core.ErrorCodeInternal, Message: "marshal operator public key", Cause: err}
	}
	return &Keypair{key: key, pub: pub}, nil
}

// atomicWriteFile writes data to a temporary file in dir's directory,
// then renames it into place, so path is either fully written or
// untouched.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

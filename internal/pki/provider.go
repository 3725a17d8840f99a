package pki

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/wire"
)

// ProviderSet is the Wire provider set for the pki package.
var ProviderSet = wire.NewSet(ProvideMeshIdentity)

// ProvideMeshIdentity loads the node's self-signed mesh certificate
// from dir, generating and persisting a fresh one bound to key if none
// exists yet. hosts are the Subject Alternative Names to embed (the
// addresses peers will dial to reach this node's mesh listener).
//
// Persisted layout follows the node's documented data directory
// convention: mpc_key.der (raw ECDSA private key) and mpc_cert.der
// (raw certificate) are the authoritative on-disk material;
// mpc_cert.pem is the same certificate re-encoded as PEM purely so an
// operator can inspect it with standard tools, and doubles as the
// CertPath Config Exchange hands to peers since every mesh consumer
// (CA pools, identifyPeer) works in PEM.
//
// On first startup the directory is empty; subsequent restarts reuse
// the existing certificate so its path (exchanged via Config
// Exchange's RevealMsg) keeps identifying the same pinned identity to
// every peer that already learned it.
func ProvideMeshIdentity(dir string, key *ecdsa.PrivateKey, hosts ...string) (certPath, keyPath string, err error) {
	certDERPath := filepath.Join(dir, "mpc_cert.der")
	keyPath = filepath.Join(dir, "mpc_key.der")
	certPath = filepath.Join(dir, "mpc_cert.pem")

	if _, err := os.Stat(certPath); err == nil {
		slog.Info("loading existing mesh identity", "dir", dir)
		return certPath, keyPath, nil
	}

	slog.Info("generating new mesh identity", "dir", dir)
	certPEM, err := GenerateSelfSignedIdentity(key, hosts...)
	if err != nil {
		return "", "", fmt.Errorf("generate mesh identity: %w", err)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return "", "", fmt.Errorf("decode freshly generated mesh identity cert")
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return "", "", fmt.Errorf("marshal mesh identity key: %w", err)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", fmt.Errorf("create mesh identity dir: %w", err)
	}
	if err := atomicWriteFile(certDERPath, block.Bytes, 0o600); err != nil {
		return "", "", fmt.Errorf("write mesh identity cert DER: %w", err)
	}
	if err := atomicWriteFile(certPath, certPEM, 0o600); err != nil {
		return "", "", fmt.Errorf("write mesh identity cert PEM: %w", err)
	}
	if err := atomicWriteFile(keyPath, keyDER, 0o600); err != nil {
		return "", "", fmt.Errorf("write mesh identity key: %w", err)
	}

	return certPath, keyPath, nil
}

// atomicWriteFile writes data to a temporary file in the same
// directory as path, then renames it into place, so a crash mid-write
// cannot leave a partially written file at path.
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

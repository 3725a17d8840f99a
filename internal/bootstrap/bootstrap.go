// Package bootstrap provides the node's startup-time provisioning:
// ensuring the data directory layout exists and the node's operator
// keypair and mesh TLS identity are present before anything else runs.
//
// All operations are idempotent: re-running bootstrap against a data
// directory that already holds a keystore and mesh identity is a
// no-op that loads what is there, exactly as the teacher's original
// Bootstrapper.Run was safe to call on every restart.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cosnark/zksaas-node/internal/keystore"
	"github.com/cosnark/zksaas-node/internal/pki"
)

// Result is the node identity material produced by a successful Run,
// ready to hand to the Session Manager and TLS mesh initiator.
type Result struct {
	Keypair  *keystore.Keypair
	CertPath string
	KeyPath  string
}

// Bootstrapper provisions a node's data directory on first startup.
type Bootstrapper struct {
	dataDir      string
	meshHosts    []string
	keystoreSeed string
	log          *slog.Logger
}

// New creates a Bootstrapper rooted at dataDir. meshHosts are the
// Subject Alternative Names embedded in the generated mesh identity
// certificate (the addresses other operators will dial). keystoreSeed,
// if non-empty, derives the operator keypair deterministically instead
// of generating a random one on first run.
func New(dataDir string, meshHosts []string, keystoreSeed string) *Bootstrapper {
	return &Bootstrapper{
		dataDir:      dataDir,
		meshHosts:    meshHosts,
		keystoreSeed: keystoreSeed,
		log:          slog.Default().With("component", "bootstrap"),
	}
}

// Run ensures the data directory layout, operator keystore, and mesh
// TLS identity exist, creating whatever is missing. It is safe to call
// on every node restart.
func (b *Bootstrapper) Run(ctx context.Context) (Result, error) {
	b.log.Info("starting node bootstrap", "data_dir", b.dataDir)

	keystoreDir := filepath.Join(b.dataDir, "keystore")
	meshDir := filepath.Join(b.dataDir, "mpc_net")

	if err := os.MkdirAll(b.dataDir, 0o700); err != nil {
		return Result{}, fmt.Errorf("bootstrap: create %s: %w", b.dataDir, err)
	}

	kp, err := b.loadOrCreateKeystore(keystoreDir)
	if err != nil {
		return Result{}, fmt.Errorf("bootstrap: operator keystore: %w", err)
	}
	b.log.Info("operator keystore ready", "dir", keystoreDir)

	certPath, keyPath, err := pki.ProvideMeshIdentity(meshDir, kp.PrivateKey(), b.meshHosts...)
	if err != nil {
		return Result{}, fmt.Errorf("bootstrap: mesh identity: %w", err)
	}
	b.log.Info("mesh TLS identity ready", "cert", certPath)

	b.log.Info("node bootstrap completed successfully")
	return Result{Keypair: kp, CertPath: certPath, KeyPath: keyPath}, nil
}

func (b *Bootstrapper) loadOrCreateKeystore(dir string) (*keystore.Keypair, error) {
	kp, err := keystore.Load(dir)
	if err == nil {
		return kp, nil
	}

	if b.keystoreSeed != "" {
		kp, err = keystore.GenerateFromSeed(b.keystoreSeed)
	} else {
		kp, err = keystore.Generate()
	}
	if err != nil {
		return nil, err
	}
	if err := kp.Save(dir); err != nil {
		return nil, err
	}
	return kp, nil
}

// DataDir returns the node's data directory, the base directory the
// Circuit Store opens directly (producing circuit_db and artifacts/
// as siblings of keystore/ and mpc_net/).
func (b *Bootstrapper) DataDir() string {
	return b.dataDir
}

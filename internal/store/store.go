// Package store provides the persistent Circuit Store: a bbolt-backed
// key-value metadata table plus a blob tree on disk for the artifact,
// proving key, and verification key of every registered circuit.
//
// Grounded on rclone's backend/cache/storage_persistent.go, which pairs
// a bolt.DB metadata store with a filesystem blob tree under the same
// base directory.
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/cosnark/zksaas-node/internal/core"
)

const (
	dbFilename   = "circuit_db"
	artifactsDir = "artifacts"
	infoBucket   = "circuit_info"
)

// Store is the bbolt + blob-tree implementation of core.Store.
type Store struct {
	db            *bolt.DB
	baseDir       string
	artifactsPath string
	log           *slog.Logger
}

// Open creates (if necessary) and opens a Store rooted at baseDir.
// baseDir is typically "<data>/" per the persistent state layout; the
// database file is written to baseDir/circuit_db and blobs to
// baseDir/artifacts/<hex-id>/.
func Open(baseDir string) (*Store, error) {
	artifactsPath := filepath.Join(baseDir, artifactsDir)
	if err := os.MkdirAll(artifactsPath, 0o755); err != nil {
		return nil, &core.DomainError{Code: core.ErrorCodeIO, Message: "create artifacts directory", Cause: err}
	}

	dbPath := filepath.Join(baseDir, dbFilename)
	db, err := bolt.Open(dbPath, 0o644, nil)
	if err != nil {
		return nil, &core.DomainError{Code: core.ErrorCodeState, Message: "open circuit db", Cause: err}
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(infoBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, &core.DomainError{Code: core.ErrorCodeState, Message: "create circuit_info bucket", Cause: err}
	}

	return &Store{
		db:            db,
		baseDir:       baseDir,
		artifactsPath: artifactsPath,
		log:           slog.Default().With("component", "store"),
	}, nil
}

// Close releases the underlying bbolt database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// storedCircuitInfo is the canonical on-disk encoding of a
// core.CircuitInfo. It exists separately from core.CircuitInfo so that
// the wire/storage shape (plain slices, no fixed-size arrays or
// pointer-to-array fields) stays stable independent of the domain
// type's Go representation.
type storedCircuitInfo struct {
	ID                  []byte
	Name                string
	Kind                int
	Backend             int
	ArtifactPath        string
	ProvingKeyPath      string
	VerificationKeyPath string
	VerifierAddress     []byte // nil or len 20
}

func toStored(info core.CircuitInfo) storedCircuitInfo {
	s := storedCircuitInfo{
		ID:                  info.ID[:],
		Name:                info.Name,
		Kind:                int(info.Kind),
		Backend:             int(info.Backend),
		ArtifactPath:        info.ArtifactPath,
		ProvingKeyPath:      info.ProvingKeyPath,
		VerificationKeyPath: info.VerificationKeyPath,
	}
	if info.VerifierAddress != nil {
		s.VerifierAddress = info.VerifierAddress[:]
	}
	return s
}

func fromStored(s storedCircuitInfo) (core.CircuitInfo, error) {
	var info core.CircuitInfo
	if len(s.ID) != len(info.ID) {
		return info, fmt.Errorf("store: corrupt metadata: circuit id has %d bytes", len(s.ID))
	}
	copy(info.ID[:], s.ID)
	info.Name = s.Name
	info.Kind = core.CircuitKind(s.Kind)
	info.Backend = core.ProvingBackend(s.Backend)
	info.ArtifactPath = s.ArtifactPath
	info.ProvingKeyPath = s.ProvingKeyPath
	info.VerificationKeyPath = s.VerificationKeyPath
	if len(s.VerifierAddress) == 20 {
		var addr core.VerifierAddress
		copy(addr[:], s.VerifierAddress)
		info.VerifierAddress = &addr
	}
	return info, nil
}

// circuitDir returns the per-circuit blob directory for a given hex id.
func (s *Store) circuitDir(hexID string) string {
	return filepath.Join(s.artifactsPath, hexID)
}

// Put persists a circuit's metadata and its three blobs. Blobs are
// written first, metadata second, and the metadata write is flushed
// last, so that a crash never leaves metadata referencing missing
// blobs. Re-putting the same id overwrites; an orphaned blob directory
// left behind by a half-finished previous put is harmless and is
// simply overwritten.
func (s *Store) Put(info core.CircuitInfo, artifact, provingKey, verificationKey []byte) error {
	hexID := info.ID.Hex()
	dir := s.circuitDir(hexID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &core.DomainError{Code: core.ErrorCodeIO, Message: "create circuit blob directory", Cause: err}
	}

	writes := []struct {
		name string
		data []byte
	}{
		{info.ArtifactPath, artifact},
		{info.ProvingKeyPath, provingKey},
		{info.VerificationKeyPath, verificationKey},
	}
	for _, w := range writes {
		path := filepath.Join(dir, w.name)
		if err := os.WriteFile(path, w.data, 0o644); err != nil {
			return &core.DomainError{Code: core.ErrorCodeIO, Message: fmt.Sprintf("write blob %s", w.name), Cause: err}
		}
	}

	encoded, err := cbor.Marshal(toStored(info))
	if err != nil {
		return &core.DomainError{Code: core.ErrorCodeInternal, Message: "encode circuit metadata", Cause: err}
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(infoBucket)).Put([]byte(hexID), encoded)
	})
	if err != nil {
		return &core.DomainError{Code: core.ErrorCodeState, Message: "persist circuit metadata", Cause: err}
	}

	s.log.Info("circuit registered", "id", hexID, "name", info.Name)
	return nil
}

// Get returns the decoded metadata for hexID, or ok=false if absent.
func (s *Store) Get(hexID string) (core.CircuitInfo, bool, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(infoBucket)).Get([]byte(hexID))
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return core.CircuitInfo{}, false, &core.DomainError{Code: core.ErrorCodeState, Message: "read circuit metadata", Cause: err}
	}
	if raw == nil {
		return core.CircuitInfo{}, false, nil
	}

	var stored storedCircuitInfo
	if err := cbor.Unmarshal(raw, &stored); err != nil {
		return core.CircuitInfo{}, false, &core.DomainError{Code: core.ErrorCodeState, Message: "decode circuit metadata", Cause: err}
	}
	info, err := fromStored(stored)
	if err != nil {
		return core.CircuitInfo{}, false, &core.DomainError{Code: core.ErrorCodeState, Message: "decode circuit metadata", Cause: err}
	}
	return info, true, nil
}

func (s *Store) readBlob(info core.CircuitInfo, relPath string) ([]byte, error) {
	path := filepath.Join(s.circuitDir(info.ID.Hex()), relPath)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.DomainError{Code: core.ErrorCodeIO, Message: fmt.Sprintf("read blob %s", relPath), Cause: err}
	}
	return data, nil
}

// ReadArtifact reads the compiled circuit artifact blob for info.
func (s *Store) ReadArtifact(info core.CircuitInfo) ([]byte, error) {
	return s.readBlob(info, info.ArtifactPath)
}

// ReadProvingKey reads the proving key blob for info.
func (s *Store) ReadProvingKey(info core.CircuitInfo) ([]byte, error) {
	return s.readBlob(info, info.ProvingKeyPath)
}

// ReadVerificationKey reads the verification key blob for info.
func (s *Store) ReadVerificationKey(info core.CircuitInfo) ([]byte, error) {
	return s.readBlob(info, info.VerificationKeyPath)
}

// List returns every registered circuit's id.
func (s *Store) List() ([]core.CircuitID, error) {
	var ids []core.CircuitID
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(infoBucket)).ForEach(func(k, _ []byte) error {
			id, err := core.ParseCircuitIDHex(string(k))
			if err != nil {
				return err
			}
			ids = append(ids, id)
			return nil
		})
	})
	if err != nil {
		return nil, &core.DomainError{Code: core.ErrorCodeState, Message: "list circuits", Cause: err}
	}
	return ids, nil
}

// Remove deletes a circuit's metadata row (committed and flushed in
// its own transaction), then its blob directory. If metadata removal
// succeeds but blob removal fails,
// the error is returned to the caller and the orphaned blob directory
// is left in place — it is harmless and will be overwritten by a
// subsequent Put of the same id.
func (s *Store) Remove(id core.CircuitID) (core.CircuitInfo, bool, error) {
	hexID := id.Hex()
	info, ok, err := s.Get(hexID)
	if err != nil || !ok {
		return info, ok, err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(infoBucket)).Delete([]byte(hexID))
	})
	if err != nil {
		return core.CircuitInfo{}, false, &core.DomainError{Code: core.ErrorCodeState, Message: "remove circuit metadata", Cause: err}
	}

	if err := os.RemoveAll(s.circuitDir(hexID)); err != nil {
		return info, true, &core.DomainError{Code: core.ErrorCodeIO, Message: "remove circuit blob directory", Cause: err}
	}

	s.log.Info("circuit removed", "id", hexID)
	return info, true, nil
}

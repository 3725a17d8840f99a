package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// CircuitKind identifies the compiler/front-end a circuit artifact was
// produced by. It determines the artifact's file format and, together
// with ProvingBackend, must satisfy the compatibility table enforced
// by ValidateBackendPair.
type CircuitKind int

const (
	CircuitKindUnspecified CircuitKind = iota
	CircuitKindCircom
	CircuitKindNoir
)

func (k CircuitKind) String() string {
	switch k {
	case CircuitKindCircom:
		return "Circom"
	case CircuitKindNoir:
		return "Noir"
	default:
		return "Unspecified"
	}
}

// ArtifactExt returns the filename extension used for this kind's
// compiled circuit artifact, per the persistent state layout.
func (k CircuitKind) ArtifactExt() string {
	switch k {
	case CircuitKindNoir:
		return "acir"
	default:
		return "r1cs"
	}
}

// ProvingBackend identifies the SNARK proving system used to turn a
// circuit and witness into a proof.
type ProvingBackend int

const (
	ProvingBackendUnspecified ProvingBackend = iota
	ProvingBackendGroth16
	ProvingBackendPlonk
	ProvingBackendUltraHonk
)

func (b ProvingBackend) String() string {
	switch b {
	case ProvingBackendGroth16:
		return "Groth16"
	case ProvingBackendPlonk:
		return "Plonk"
	case ProvingBackendUltraHonk:
		return "UltraHonk"
	default:
		return "Unspecified"
	}
}

// ValidateBackendPair enforces the CircuitKind x ProvingBackend
// compatibility table: Circom pairs with Groth16 or Plonk, Noir pairs
// only with UltraHonk. Any other pairing is rejected.
func ValidateBackendPair(kind CircuitKind, backend ProvingBackend) error {
	switch kind {
	case CircuitKindCircom:
		if backend == ProvingBackendGroth16 || backend == ProvingBackendPlonk {
			return nil
		}
	case CircuitKindNoir:
		if backend == ProvingBackendUltraHonk {
			return nil
		}
	}
	return &ErrInvalidInput{
		Field:   "backend",
		Message: fmt.Sprintf("%s circuits are not compatible with %s", kind, backend),
	}
}

// CircuitID is the domain-separated hash of a circuit's canonical
// metadata. It is immutable once assigned and is carried on the wire
// as raw bytes; in storage it is keyed by its lowercase hex rendering.
type CircuitID [32]byte

// Hex returns the lowercase hex rendering used as the Circuit Store's
// metadata key.
func (id CircuitID) Hex() string {
	return hex.EncodeToString(id[:])
}

// ParseCircuitIDHex decodes a lowercase hex circuit id, as produced by
// CircuitID.Hex.
func ParseCircuitIDHex(s string) (CircuitID, error) {
	var id CircuitID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return id, &ErrInvalidInput{Field: "circuit_id", Message: "not a 32-byte hex value"}
	}
	copy(id[:], b)
	return id, nil
}

// GenerateCircuitID deterministically derives a CircuitID from a
// circuit's name, kind, and backend so that every operator assigns the
// same id to the same registration request.
func GenerateCircuitID(name string, kind CircuitKind, backend ProvingBackend) CircuitID {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte(kind.String()))
	h.Write([]byte(backend.String()))
	var id CircuitID
	copy(id[:], h.Sum(nil))
	return id
}

// VerifierAddress is the optional 20-byte address of the on-chain
// verifier contract associated with a registered circuit.
type VerifierAddress [20]byte

// IsZero reports whether the address is the all-zero placeholder used
// when no verifier contract is associated with the circuit.
func (a VerifierAddress) IsZero() bool {
	return a == VerifierAddress{}
}

// CircuitInfo is the immutable metadata record the Circuit Store keeps
// for a registered circuit. ArtifactPath, ProvingKeyPath, and
// VerificationKeyPath are relative to the circuit's own blob
// directory, so the store as a whole stays relocatable.
type CircuitInfo struct {
	ID                  CircuitID
	Name                string
	Kind                CircuitKind
	Backend             ProvingBackend
	ArtifactPath        string
	ProvingKeyPath      string
	VerificationKeyPath string
	VerifierAddress     *VerifierAddress
}

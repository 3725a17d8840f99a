package jobs

import (
	"context"
	"fmt"

	"github.com/cosnark/zksaas-node/internal/core"
)

// RegisterCircuitResult is the register-circuit job's numeric result
// tuple per spec.md §6's job surface.
type RegisterCircuitResult struct {
	CircuitID       core.CircuitID
	VerifierAddress core.VerifierAddress
	VerificationKey []byte
}

// RegisterCircuit implements the register-circuit job: validate the
// kind/backend pair, derive the circuit's id, fetch its compiled
// artifact, derive key material, and persist everything to the
// Circuit Store. Per spec.md §4.5, the store write is the handler's
// only side effect and happens last, so a failed registration never
// leaves a partial record behind.
func (h *Handlers) RegisterCircuit(ctx context.Context, name string, kind core.CircuitKind, backend core.ProvingBackend, artifactURL string) (RegisterCircuitResult, error) {
	if err := core.ValidateBackendPair(kind, backend); err != nil {
		return RegisterCircuitResult{}, err
	}

	id := core.GenerateCircuitID(name, kind, backend)

	artifact, err := h.Fetcher.Fetch(ctx, artifactURL)
	if err != nil {
		return RegisterCircuitResult{}, err
	}

	provingKey, verificationKey, verifier, err := h.Backend.DeriveKeys(kind, backend, artifact)
	if err != nil {
		return RegisterCircuitResult{}, fmt.Errorf("derive keys: %w", err)
	}

	info := core.CircuitInfo{
		ID:                  id,
		Name:                name,
		Kind:                kind,
		Backend:             backend,
		ArtifactPath:        "circuit_artifact." + kind.ArtifactExt(),
		ProvingKeyPath:      "proving.key",
		VerificationKeyPath: "verification.key",
		VerifierAddress:     verifier,
	}

	if err := h.Store.Put(info, artifact, provingKey, verificationKey); err != nil {
		return RegisterCircuitResult{}, fmt.Errorf("persist circuit: %w", err)
	}

	result := RegisterCircuitResult{CircuitID: id, VerificationKey: verificationKey}
	if verifier != nil {
		result.VerifierAddress = *verifier
	}
	h.log.Info("registered circuit", "circuit_id", id.Hex(), "name", name, "kind", kind, "backend", backend)
	return result, nil
}

package jobs

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/cosnark/zksaas-node/internal/core"
)

// GenerateProofResult is the generate-proof job's result tuple per
// spec.md §4.5 step 6.
type GenerateProofResult struct {
	ProofBytes   []byte
	PublicInputs [][]byte
}

// GenerateProof implements the generate-proof job: resolve the
// witness, derive this invocation's canonical participant set and
// session identifier, establish (or reuse) the MPC session, and drive
// the proof backend over the resulting mesh handle.
func (h *Handlers) GenerateProof(ctx context.Context, callID string, circuitIDHex string, witness core.WitnessInput) (GenerateProofResult, error) {
	circuitID, err := core.ParseCircuitIDHex(circuitIDHex)
	if err != nil {
		return GenerateProofResult{}, err
	}

	info, ok, err := h.Store.Get(circuitID.Hex())
	if err != nil {
		return GenerateProofResult{}, fmt.Errorf("look up circuit: %w", err)
	}
	if !ok {
		return GenerateProofResult{}, &core.ErrNotFound{Resource: "circuit", ID: circuitIDHex}
	}

	witnessJSON, err := h.resolveWitness(ctx, witness)
	if err != nil {
		return GenerateProofResult{}, err
	}

	participants, err := h.Registry.GetOperators(ctx)
	if err != nil {
		return GenerateProofResult{}, fmt.Errorf("query operator registry: %w", err)
	}
	if len(participants) == 0 {
		return GenerateProofResult{}, &core.DomainError{Code: core.ErrorCodeMissingConfiguration, Message: "operator registry returned no operators"}
	}

	sessionID := deriveSessionID(callID, participants)

	handle, err := h.SessionMgr.Establish(ctx, sessionID, participants)
	if err != nil {
		return GenerateProofResult{}, fmt.Errorf("establish mpc session: %w", err)
	}

	artifact, err := h.Store.ReadArtifact(info)
	if err != nil {
		return GenerateProofResult{}, fmt.Errorf("read circuit artifact: %w", err)
	}
	provingKey, err := h.Store.ReadProvingKey(info)
	if err != nil {
		return GenerateProofResult{}, fmt.Errorf("read proving key: %w", err)
	}

	result, err := h.Backend.GenerateProof(ctx, handle, info, artifact, provingKey, witnessJSON)
	if err != nil {
		return GenerateProofResult{}, fmt.Errorf("generate proof: %w", err)
	}

	return GenerateProofResult{ProofBytes: result.ProofBytes, PublicInputs: result.PublicInputs}, nil
}

// resolveWitness fetches the witness JSON from its URI if one was
// given, otherwise returns the inline JSON as-is.
func (h *Handlers) resolveWitness(ctx context.Context, w core.WitnessInput) (string, error) {
	if !w.IsURI() {
		return w.JSON, nil
	}
	body, err := h.Fetcher.Fetch(ctx, w.URI)
	if err != nil {
		return "", fmt.Errorf("fetch witness: %w", err)
	}
	return string(body), nil
}

// deriveSessionID computes "mpc-session-" || u64-hash(call_id,
// participants) per spec.md §4.5 step 4: a stable hash over the call
// id followed by each participant's serialised public key, identical
// on every operator since participants is already sorted by the
// registry query.
func deriveSessionID(callID string, participants []core.PublicKey) string {
	h := fnv.New64a()
	h.Write([]byte(callID))
	for _, pk := range participants {
		h.Write(pk)
	}
	return fmt.Sprintf("mpc-session-%d", h.Sum64())
}

package jobs

import (
	"context"
	"testing"

	"github.com/cosnark/zksaas-node/internal/core"
)

type fakeStore struct {
	put    func(info core.CircuitInfo, artifact, provingKey, verificationKey []byte) error
	get    map[string]core.CircuitInfo
	blobs  map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{get: map[string]core.CircuitInfo{}, blobs: map[string][]byte{}}
}

func (s *fakeStore) Put(info core.CircuitInfo, artifact, provingKey, verificationKey []byte) error {
	if s.put != nil {
		return s.put(info, artifact, provingKey, verificationKey)
	}
	s.get[info.ID.Hex()] = info
	s.blobs[info.ID.Hex()+":artifact"] = artifact
	s.blobs[info.ID.Hex()+":proving"] = provingKey
	s.blobs[info.ID.Hex()+":verification"] = verificationKey
	return nil
}
func (s *fakeStore) Get(hexID string) (core.CircuitInfo, bool, error) {
	info, ok := s.get[hexID]
	return info, ok, nil
}
func (s *fakeStore) ReadArtifact(info core.CircuitInfo) ([]byte, error) {
	return s.blobs[info.ID.Hex()+":artifact"], nil
}
func (s *fakeStore) ReadProvingKey(info core.CircuitInfo) ([]byte, error) {
	return s.blobs[info.ID.Hex()+":proving"], nil
}
func (s *fakeStore) ReadVerificationKey(info core.CircuitInfo) ([]byte, error) {
	return s.blobs[info.ID.Hex()+":verification"], nil
}
func (s *fakeStore) List() ([]core.CircuitID, error) { return nil, nil }
func (s *fakeStore) Remove(id core.CircuitID) (core.CircuitInfo, bool, error) {
	return core.CircuitInfo{}, false, nil
}

type fakeFetcher struct {
	body []byte
	err  error
}

func (f fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f.body, f.err
}

type fakeBackend struct {
	proveResult core.ProofResult
	proveErr    error
}

func (b fakeBackend) DeriveKeys(kind core.CircuitKind, backend core.ProvingBackend, artifact []byte) ([]byte, []byte, *core.VerifierAddress, error) {
	return []byte("pk"), []byte("vk"), nil, nil
}
func (b fakeBackend) GenerateProof(ctx context.Context, handle core.MPCHandle, info core.CircuitInfo, artifact, provingKey []byte, witnessJSON string) (core.ProofResult, error) {
	return b.proveResult, b.proveErr
}

type fakeRegistry struct {
	operators []core.PublicKey
	err       error
}

func (r fakeRegistry) GetOperators(ctx context.Context) ([]core.PublicKey, error) {
	return r.operators, r.err
}

type fakeSessionManager struct {
	handle core.MPCHandle
	err    error
}

func (m fakeSessionManager) Establish(ctx context.Context, sessionID string, participants []core.PublicKey) (core.MPCHandle, error) {
	return m.handle, m.err
}

type fakeHandle struct{ sessionID string }

func (h fakeHandle) SessionID() string    { return h.sessionID }
func (h fakeHandle) LocalPartyIndex() int { return 0 }
func (h fakeHandle) Close() error         { return nil }

func TestRegisterCircuit_Success(t *testing.T) {
	store := newFakeStore()
	h := NewHandlers(store, nil, nil, fakeBackend{}, fakeFetcher{body: []byte("r1cs-bytes")}, core.PublicKey{0x01})

	result, err := h.RegisterCircuit(context.Background(), "test_circuit", core.CircuitKindCircom, core.ProvingBackendGroth16, "http://mock/test_circuit.r1cs")
	if err != nil {
		t.Fatalf("RegisterCircuit: %v", err)
	}

	want := core.GenerateCircuitID("test_circuit", core.CircuitKindCircom, core.ProvingBackendGroth16)
	if result.CircuitID != want {
		t.Errorf("unexpected circuit id: got %x want %x", result.CircuitID, want)
	}
	if !result.VerifierAddress.IsZero() {
		t.Error("expected zero verifier address when the backend derives none")
	}
	if len(result.VerificationKey) == 0 {
		t.Error("expected non-empty verification key")
	}
	if _, ok, _ := store.Get(want.Hex()); !ok {
		t.Fatal("expected circuit to be persisted")
	}
}

func TestRegisterCircuit_RejectsIncompatibleBackend(t *testing.T) {
	h := NewHandlers(newFakeStore(), nil, nil, fakeBackend{}, fakeFetcher{}, nil)
	_, err := h.RegisterCircuit(context.Background(), "c1", core.CircuitKindNoir, core.ProvingBackendGroth16, "http://mock")
	if err == nil {
		t.Fatal("expected an error for an incompatible kind/backend pair")
	}
}

func TestRegisterCircuit_PropagatesFetchError(t *testing.T) {
	h := NewHandlers(newFakeStore(), nil, nil, fakeBackend{}, fakeFetcher{err: &core.DomainError{Code: core.ErrorCodeNetwork, Message: "boom"}}, nil)
	_, err := h.RegisterCircuit(context.Background(), "c1", core.CircuitKindCircom, core.ProvingBackendGroth16, "http://mock")
	if err == nil {
		t.Fatal("expected fetch error to propagate")
	}
}

func TestGenerateProof_UnknownCircuitIsInvalidInput(t *testing.T) {
	h := NewHandlers(newFakeStore(), fakeRegistry{}, fakeSessionManager{}, fakeBackend{}, fakeFetcher{}, nil)
	_, err := h.GenerateProof(context.Background(), "call-1", core.CircuitID{}.Hex(), core.WitnessInput{JSON: "{}"})
	if err == nil {
		t.Fatal("expected not-found error for unregistered circuit")
	}
}

func TestGenerateProof_EmptyOperatorSetIsConfigurationError(t *testing.T) {
	store := newFakeStore()
	info := core.CircuitInfo{ID: core.GenerateCircuitID("c", core.CircuitKindCircom, core.ProvingBackendGroth16), Kind: core.CircuitKindCircom, Backend: core.ProvingBackendGroth16}
	store.get[info.ID.Hex()] = info

	h := NewHandlers(store, fakeRegistry{operators: nil}, fakeSessionManager{}, fakeBackend{}, fakeFetcher{}, nil)
	_, err := h.GenerateProof(context.Background(), "call-1", info.ID.Hex(), core.WitnessInput{JSON: "{}"})
	if err == nil {
		t.Fatal("expected configuration error for an empty operator set")
	}
}

func TestGenerateProof_Success(t *testing.T) {
	store := newFakeStore()
	info := core.CircuitInfo{ID: core.GenerateCircuitID("c", core.CircuitKindCircom, core.ProvingBackendGroth16), Kind: core.CircuitKindCircom, Backend: core.ProvingBackendGroth16}
	store.get[info.ID.Hex()] = info
	store.blobs[info.ID.Hex()+":artifact"] = []byte("artifact")
	store.blobs[info.ID.Hex()+":proving"] = []byte("proving")

	wantResult := core.ProofResult{ProofBytes: []byte("proof"), PublicInputs: [][]byte{{0x01}}}
	h := NewHandlers(
		store,
		fakeRegistry{operators: []core.PublicKey{{0x01}, {0x02}}},
		fakeSessionManager{handle: fakeHandle{sessionID: "s1"}},
		fakeBackend{proveResult: wantResult},
		fakeFetcher{},
		core.PublicKey{0x01},
	)

	result, err := h.GenerateProof(context.Background(), "call-1", info.ID.Hex(), core.WitnessInput{JSON: "{}"})
	if err != nil {
		t.Fatalf("GenerateProof: %v", err)
	}
	if string(result.ProofBytes) != "proof" {
		t.Errorf("unexpected proof bytes: %s", result.ProofBytes)
	}
}

func TestDeriveSessionID_DeterministicAcrossCalls(t *testing.T) {
	participants := []core.PublicKey{{0x01}, {0x02}}
	a := deriveSessionID("call-1", participants)
	b := deriveSessionID("call-1", participants)
	if a != b {
		t.Errorf("expected deterministic session id, got %s and %s", a, b)
	}

	c := deriveSessionID("call-2", participants)
	if a == c {
		t.Error("expected different call ids to derive different session ids")
	}
}

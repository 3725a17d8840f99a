package core

import (
	"crypto/sha256"
	"testing"
)

func TestGenerateCircuitID_Deterministic(t *testing.T) {
	id1 := GenerateCircuitID("test_circuit", CircuitKindCircom, ProvingBackendGroth16)
	id2 := GenerateCircuitID("test_circuit", CircuitKindCircom, ProvingBackendGroth16)

	if id1 != id2 {
		t.Fatalf("expected identical inputs to produce identical ids, got %x and %x", id1, id2)
	}

	other := GenerateCircuitID("test_circuit", CircuitKindCircom, ProvingBackendPlonk)
	if id1 == other {
		t.Fatalf("expected different backend to change the id")
	}
}

func TestGenerateCircuitID_MatchesSHA256OfConcatenation(t *testing.T) {
	id := GenerateCircuitID("test_circuit", CircuitKindCircom, ProvingBackendGroth16)
	hexID := id.Hex()
	if len(hexID) != 64 {
		t.Fatalf("expected 64-char hex id, got %d chars: %s", len(hexID), hexID)
	}
	want := sha256.Sum256([]byte("test_circuit" + "Circom" + "Groth16"))
	if id != CircuitID(want) {
		t.Fatalf("expected SHA-256 of name||kind||backend %x, got %x", want, id)
	}
}

func TestParseCircuitIDHex_RoundTrip(t *testing.T) {
	id := GenerateCircuitID("round_trip", CircuitKindNoir, ProvingBackendUltraHonk)
	parsed, err := ParseCircuitIDHex(id.Hex())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != id {
		t.Fatalf("round trip mismatch: %x != %x", parsed, id)
	}
}

func TestParseCircuitIDHex_Invalid(t *testing.T) {
	if _, err := ParseCircuitIDHex("not-hex"); err == nil {
		t.Fatal("expected an error for non-hex input")
	}
	if _, err := ParseCircuitIDHex("abcd"); err == nil {
		t.Fatal("expected an error for short input")
	}
}

func TestValidateBackendPair(t *testing.T) {
	tests := []struct {
		kind    CircuitKind
		backend ProvingBackend
		wantOK  bool
	}{
		{CircuitKindCircom, ProvingBackendGroth16, true},
		{CircuitKindCircom, ProvingBackendPlonk, true},
		{CircuitKindCircom, ProvingBackendUltraHonk, false},
		{CircuitKindNoir, ProvingBackendUltraHonk, true},
		{CircuitKindNoir, ProvingBackendGroth16, false},
		{CircuitKindNoir, ProvingBackendPlonk, false},
	}

	for _, tt := range tests {
		err := ValidateBackendPair(tt.kind, tt.backend)
		if tt.wantOK && err != nil {
			t.Errorf("%s/%s: expected compatible, got error: %v", tt.kind, tt.backend, err)
		}
		if !tt.wantOK && err == nil {
			t.Errorf("%s/%s: expected incompatible pairing to be rejected", tt.kind, tt.backend)
		}
	}
}

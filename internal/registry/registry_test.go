package registry

import (
	"context"
	"testing"

	"github.com/cosnark/zksaas-node/internal/core"
)

func TestStaticRegistry_GetOperatorsSortsAscending(t *testing.T) {
	r, err := New([]Operator{
		{PublicKey: core.PublicKey{0x03}, ControlAddress: "10.0.0.3:9000"},
		{PublicKey: core.PublicKey{0x01}, ControlAddress: "10.0.0.1:9000"},
		{PublicKey: core.PublicKey{0x02}, ControlAddress: "10.0.0.2:9000"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	keys, err := r.GetOperators(context.Background())
	if err != nil {
		t.Fatalf("GetOperators: %v", err)
	}
	want := []byte{0x01, 0x02, 0x03}
	for i, k := range keys {
		if len(k) != 1 || k[0] != want[i] {
			t.Fatalf("expected ascending order %v, got %v", want, keys)
		}
	}
}

func TestStaticRegistry_RejectsDuplicateKeys(t *testing.T) {
	_, err := New([]Operator{
		{PublicKey: core.PublicKey{0x01}, ControlAddress: "a"},
		{PublicKey: core.PublicKey{0x01}, ControlAddress: "b"},
	})
	if err == nil {
		t.Fatal("expected an error for duplicate operator public keys")
	}
}

func TestStaticRegistry_GetOperatorsEmptyIsConfigurationError(t *testing.T) {
	r, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := r.GetOperators(context.Background()); err == nil {
		t.Fatal("expected a configuration error for an empty operator set")
	}
}

func TestStaticRegistry_ControlAddress(t *testing.T) {
	r, err := New([]Operator{
		{PublicKey: core.PublicKey{0xaa}, ControlAddress: "10.0.0.9:9000"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addr, err := r.ControlAddress(context.Background(), core.PublicKey{0xaa})
	if err != nil {
		t.Fatalf("ControlAddress: %v", err)
	}
	if addr != "10.0.0.9:9000" {
		t.Errorf("unexpected address: %s", addr)
	}
	if _, err := r.ControlAddress(context.Background(), core.PublicKey{0xbb}); err == nil {
		t.Fatal("expected not-found error for unknown public key")
	}
}

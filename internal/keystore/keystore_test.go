package keystore

import (
	"bytes"
	"crypto/sha256"
	"path/filepath"
	"testing"
)

func TestGenerateFromSeed_Deterministic(t *testing.T) {
	k1, err := GenerateFromSeed("seed-a")
	if err != nil {
		t.Fatalf("GenerateFromSeed: %v", err)
	}
	k2, err := GenerateFromSeed("seed-a")
	if err != nil {
		t.Fatalf("GenerateFromSeed: %v", err)
	}
	if !bytes.Equal(k1.PublicKey(), k2.PublicKey()) {
		t.Fatal("expected identical public keys for identical seeds")
	}

	k3, err := GenerateFromSeed("seed-b")
	if err != nil {
		t.Fatalf("GenerateFromSeed: %v", err)
	}
	if bytes.Equal(k1.PublicKey(), k3.PublicKey()) {
		t.Fatal("expected different public keys for different seeds")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	original, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := original.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(original.PublicKey(), loaded.PublicKey()) {
		t.Fatal("loaded public key differs from original")
	}
}

func TestLoad_MissingKeystore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	if _, err := Load(dir); err == nil {
		t.Fatal("expected an error loading a nonexistent keystore")
	}
}

func TestSignVerify(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	digest := sha256.Sum256([]byte("message"))

	sig, err := kp.Sign(digest[:])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	ok, err := Verify(kp.PublicKey(), digest[:], sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("expected signature to verify")
	}

	otherDigest := sha256.Sum256([]byte("different message"))
	ok, err = Verify(kp.PublicKey(), otherDigest[:], sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("expected signature to fail verification against a different digest")
	}
}

func TestLoadOrGenerate_PersistsAcrossCalls(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrGenerate(dir)
	if err != nil {
		t.Fatalf("LoadOrGenerate: %v", err)
	}
	second, err := LoadOrGenerate(dir)
	if err != nil {
		t.Fatalf("LoadOrGenerate: %v", err)
	}
	if !bytes.Equal(first.PublicKey(), second.PublicKey()) {
		t.Fatal("expected LoadOrGenerate to return the same identity on a second call")
	}
}

package keystore

import (
	"errors"

	"github.com/google/wire"

	"github.com/cosnark/zksaas-node/internal/core"
)

// ProviderSet is the Wire provider set for the keystore package.
var ProviderSet = wire.NewSet(LoadOrGenerate)

// LoadOrGenerate loads an existing keystore from dir, or generates and
// persists a fresh one on first startup.
func LoadOrGenerate(dir string) (*Keypair, error) {
	kp, err := Load(dir)
	if err == nil {
		return kp, nil
	}
	var notReady *core.ErrNotReady
	if !errors.As(err, &notReady) {
		return nil, err
	}

	kp, err = Generate()
	if err != nil {
		return nil, err
	}
	if err := kp.Save(dir); err != nil {
		return nil, err
	}
	return kp, nil
}

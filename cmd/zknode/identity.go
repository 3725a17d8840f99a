package main

import (
	"github.com/cosnark/zksaas-node/internal/bootstrap"
	"github.com/cosnark/zksaas-node/internal/core"
	"github.com/cosnark/zksaas-node/internal/keystore"
)

// nodeIdentity adapts a bootstrapped keypair and mesh TLS paths to
// session.Identity. It exists only to glue bootstrap.Result's flat
// field set to the interface the Session Manager depends on; no
// other package needs it.
type nodeIdentity struct {
	keypair  *keystore.Keypair
	certPath string
	keyPath  string
}

func newNodeIdentity(result bootstrap.Result) *nodeIdentity {
	return &nodeIdentity{keypair: result.Keypair, certPath: result.CertPath, keyPath: result.KeyPath}
}

func (n *nodeIdentity) PublicKey() core.PublicKey {
	return n.keypair.PublicKey()
}

func (n *nodeIdentity) Sign(digest []byte) ([]byte, error) {
	return n.keypair.Sign(digest)
}

func (n *nodeIdentity) CertPath() string {
	return n.certPath
}

func (n *nodeIdentity) KeyPath() string {
	return n.keyPath
}

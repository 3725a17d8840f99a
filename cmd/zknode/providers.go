package main

import (
	"context"
	"fmt"

	"github.com/cosnark/zksaas-node/internal/backend"
	"github.com/cosnark/zksaas-node/internal/bootstrap"
	"github.com/cosnark/zksaas-node/internal/config"
	"github.com/cosnark/zksaas-node/internal/core"
	"github.com/cosnark/zksaas-node/internal/jobs"
	"github.com/cosnark/zksaas-node/internal/registry"
	"github.com/cosnark/zksaas-node/internal/session"
	"github.com/cosnark/zksaas-node/internal/store"
	"github.com/cosnark/zksaas-node/internal/transcript"
)

// provideBootstrapResult runs the node's startup provisioning:
// operator keystore plus mesh TLS identity, idempotent across
// restarts.
func provideBootstrapResult(ctx context.Context, conf *config.Config) (bootstrap.Result, error) {
	b := bootstrap.New(conf.DataDir(), []string{conf.AdvertiseHost()}, conf.KeystoreSeed())
	result, err := b.Run(ctx)
	if err != nil {
		return bootstrap.Result{}, fmt.Errorf("node bootstrap: %w", err)
	}
	return result, nil
}

// provideStore opens the Circuit Store rooted at the node's data
// directory.
func provideStore(conf *config.Config) (*store.Store, error) {
	return store.Open(conf.DataDir())
}

// provideRegistry builds the static operator registry from the
// node's configured operator list. It doubles as the Session
// Manager's peer directory.
func provideRegistry(conf *config.Config) (*registry.StaticRegistry, error) {
	operators, err := conf.Operators()
	if err != nil {
		return nil, fmt.Errorf("load operator registry: %w", err)
	}
	return registry.New(operators)
}

// provideTransport starts the node's control-plane listener used for
// Config Exchange with every other operator.
func provideTransport(conf *config.Config, identity *nodeIdentity) (*transcript.NetTransport, error) {
	return transcript.NewNetTransport(conf.ControlPlaneAddress(), identity)
}

// provideSessionManager assembles the MPC Session Manager.
func provideSessionManager(conf *config.Config, identity *nodeIdentity, reg *registry.StaticRegistry, transport *transcript.NetTransport) *session.Manager {
	return session.NewManager(identity, reg, transport, conf.MeshBindAddress(), conf.MeshAdvertiseAddress())
}

// provideJobHandlers assembles the register-circuit and
// generate-proof job handlers over the node's Circuit Store,
// operator registry, Session Manager, and proof backend.
func provideJobHandlers(st *store.Store, reg *registry.StaticRegistry, sessions *session.Manager, proofBackend *backend.Groth16Backend, fetcher *jobs.HTTPFetcher, identity *nodeIdentity) *jobs.Handlers {
	return jobs.NewHandlers(st, reg, sessions, proofBackend, fetcher, core.PublicKey(identity.PublicKey()))
}

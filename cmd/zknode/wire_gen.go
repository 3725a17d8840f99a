// Hand-written in the shape Wire emits for the injector in wire.go.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject

package main

import (
	"context"

	"github.com/cosnark/zksaas-node/internal/backend"
	"github.com/cosnark/zksaas-node/internal/config"
	"github.com/cosnark/zksaas-node/internal/jobs"
	"github.com/cosnark/zksaas-node/internal/server"
)

// wireApp assembles the node's full dependency graph: configuration,
// bootstrap-provisioned identity, Circuit Store, operator registry,
// Session Manager, proof backend, job handlers, and the HTTP job
// surface, in that dependency order.
func wireApp(ctx context.Context, conf *config.Config) (*App, error) {
	bootstrapResult, err := provideBootstrapResult(ctx, conf)
	if err != nil {
		return nil, err
	}
	identity := newNodeIdentity(bootstrapResult)

	st, err := provideStore(conf)
	if err != nil {
		return nil, err
	}

	reg, err := provideRegistry(conf)
	if err != nil {
		return nil, err
	}

	transport, err := provideTransport(conf, identity)
	if err != nil {
		return nil, err
	}

	sessionManager := provideSessionManager(conf, identity, reg, transport)
	proofBackend := backend.NewGroth16Backend()
	fetcher := jobs.NewHTTPFetcher()
	handlers := provideJobHandlers(st, reg, sessionManager, proofBackend, fetcher, identity)
	srv := server.New(handlers)

	app := &App{
		config: conf,
		server: srv,
	}
	return app, nil
}

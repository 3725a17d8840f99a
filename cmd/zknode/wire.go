//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/cosnark/zksaas-node/internal/backend"
	"github.com/cosnark/zksaas-node/internal/config"
	"github.com/cosnark/zksaas-node/internal/jobs"
	"github.com/cosnark/zksaas-node/internal/server"
)

// wireApp assembles the node's full dependency graph. See wire_gen.go
// for the generated injector; this file only documents the intended
// wire.Build call, mirroring the teacher's cmd/otterscale/wire.go
// convention.
func wireApp(ctx context.Context, conf *config.Config) (*App, error) {
	panic(wire.Build(
		jobs.ProviderSet,
		server.ProviderSet,
		wire.NewSet(backend.NewGroth16Backend),
		wire.NewSet(
			provideBootstrapResult,
			provideStore,
			provideRegistry,
			provideTransport,
			provideSessionManager,
			provideJobHandlers,
			newNodeIdentity,
		),
		wire.Struct(new(App), "config", "server"),
	))
}

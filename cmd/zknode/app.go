package main

import (
	"context"

	"github.com/cosnark/zksaas-node/internal/config"
	"github.com/cosnark/zksaas-node/internal/server"
)

// App is the fully assembled node: configuration plus the job-surface
// server every other package feeds into.
type App struct {
	config *config.Config
	server *server.Server
}

// Run blocks serving the job surface until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx, a.config.ControlPlaneAddress())
}

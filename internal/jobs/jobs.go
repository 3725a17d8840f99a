// Package jobs implements the two job handlers a node exposes to its
// host: register-circuit and generate-proof. Each handler is a thin
// orchestration layer over internal/store, internal/registry,
// internal/session, and internal/backend — per spec.md §4.5, the
// handler itself holds no state beyond its dependencies.
package jobs

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/cosnark/zksaas-node/internal/core"
)

// maxArtifactBytes bounds how much of an artifact_url response a
// register-circuit call will read, per spec.md §4.5 step 3's
// "implementation-chosen maximum size."
const maxArtifactBytes = 64 << 20 // 64 MiB

// Fetcher retrieves a resource's bytes over HTTP. It exists so tests
// can substitute a fake transport without a live server.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher is the default Fetcher, a thin wrapper over the
// standard library's http.Client enforcing maxArtifactBytes and
// non-2xx-is-an-error per spec.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns an HTTPFetcher using http.DefaultClient.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: http.DefaultClient}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &core.DomainError{Code: core.ErrorCodeInvalidInput, Message: "build fetch request", Cause: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &core.DomainError{Code: core.ErrorCodeNetwork, Message: "fetch " + url, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &core.DomainError{Code: core.ErrorCodeNetwork, Message: "fetch " + url + " returned non-2xx status"}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes+1))
	if err != nil {
		return nil, &core.DomainError{Code: core.ErrorCodeNetwork, Message: "read response body", Cause: err}
	}
	if len(body) > maxArtifactBytes {
		return nil, &core.DomainError{Code: core.ErrorCodeInvalidInput, Message: "fetched resource exceeds maximum allowed size"}
	}
	return body, nil
}

// Handlers bundles the dependencies both job handlers need.
type Handlers struct {
	Store        core.Store
	Registry     core.OperatorRegistry
	SessionMgr   core.SessionManager
	Backend      core.ProofBackend
	Fetcher      Fetcher
	LocalPublic  core.PublicKey
	log          *slog.Logger
}

// NewHandlers wires up a Handlers ready to serve both job kinds.
func NewHandlers(store core.Store, reg core.OperatorRegistry, sessionMgr core.SessionManager, backend core.ProofBackend, fetcher Fetcher, localPublic core.PublicKey) *Handlers {
	return &Handlers{
		Store:       store,
		Registry:    reg,
		SessionMgr:  sessionMgr,
		Backend:     backend,
		Fetcher:     fetcher,
		LocalPublic: localPublic,
		log:         slog.Default().With("component", "jobs"),
	}
}

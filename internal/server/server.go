// Package server exposes the node's job surface (spec.md §6) over
// HTTP: one endpoint per numeric job id, JSON request/response bodies.
// Grounded on the teacher's generic HTTP server runner (graceful
// shutdown via context, listener started in a goroutine, a buffered
// error channel) adapted from a CORS/auth-wrapped multiplexer into a
// direct job dispatcher, since this surface is invoked by a trusted
// host process rather than a browser.
package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cosnark/zksaas-node/internal/core"
	"github.com/cosnark/zksaas-node/internal/jobs"
)

// Server serves the node's job surface.
type Server struct {
	handlers *jobs.Handlers
	log      *slog.Logger
}

// New builds a Server over the given job handlers.
func New(handlers *jobs.Handlers) *Server {
	return &Server{handlers: handlers, log: slog.Default().With("component", "server")}
}

// Run starts the HTTP listener at address and blocks until ctx is
// canceled or the server fails, shutting down gracefully on
// cancellation.
func (s *Server) Run(ctx context.Context, address string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/jobs/register-circuit", s.handleRegisterCircuit)
	mux.HandleFunc("POST /v1/jobs/generate-proof", s.handleGenerateProof)

	srv := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		MaxHeaderBytes:    8 * 1024,
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	s.log.Info("job surface listening", "address", listener.Addr().String())
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("job surface server error: %w", err)
	case <-ctx.Done():
		s.log.Info("shutting down job surface")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("graceful shutdown failed, forcing close", "error", err)
			return srv.Close()
		}
		s.log.Info("job surface stopped gracefully")
		return nil
	}
}

type registerCircuitRequest struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Backend     string `json:"backend"`
	ArtifactURL string `json:"artifact_url"`
}

type registerCircuitResponse struct {
	CircuitID       string `json:"circuit_id"`
	VerifierAddress string `json:"verifier_address"`
	VerificationKey string `json:"verification_key"`
}

func (s *Server) handleRegisterCircuit(w http.ResponseWriter, r *http.Request) {
	var req registerCircuitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	kind, err := parseCircuitKind(req.Kind)
	if err != nil {
		writeError(w, err)
		return
	}
	backend, err := parseProvingBackend(req.Backend)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.handlers.RegisterCircuit(r.Context(), req.Name, kind, backend, req.ArtifactURL)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, registerCircuitResponse{
		CircuitID:       result.CircuitID.Hex(),
		VerifierAddress: hex.EncodeToString(result.VerifierAddress[:]),
		VerificationKey: hex.EncodeToString(result.VerificationKey),
	})
}

type generateProofRequest struct {
	CallID         string `json:"call_id"`
	CircuitID      string `json:"circuit_id"`
	WitnessJSON    string `json:"witness_json,omitempty"`
	WitnessURI     string `json:"witness_uri,omitempty"`
}

type generateProofResponse struct {
	ProofBytes   string   `json:"proof_bytes"`
	PublicInputs []string `json:"public_inputs"`
}

func (s *Server) handleGenerateProof(w http.ResponseWriter, r *http.Request) {
	var req generateProofRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.handlers.GenerateProof(r.Context(), req.CallID, req.CircuitID, core.WitnessInput{
		JSON: req.WitnessJSON,
		URI:  req.WitnessURI,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	publicInputs := make([]string, len(result.PublicInputs))
	for i, in := range result.PublicInputs {
		publicInputs[i] = hex.EncodeToString(in)
	}

	writeJSON(w, http.StatusOK, generateProofResponse{
		ProofBytes:   hex.EncodeToString(result.ProofBytes),
		PublicInputs: publicInputs,
	})
}

func parseCircuitKind(s string) (core.CircuitKind, error) {
	switch s {
	case "Circom":
		return core.CircuitKindCircom, nil
	case "Noir":
		return core.CircuitKindNoir, nil
	default:
		return core.CircuitKindUnspecified, &core.ErrInvalidInput{Field: "kind", Message: fmt.Sprintf("unknown circuit kind %q", s)}
	}
}

func parseProvingBackend(s string) (core.ProvingBackend, error) {
	switch s {
	case "Groth16":
		return core.ProvingBackendGroth16, nil
	case "Plonk":
		return core.ProvingBackendPlonk, nil
	case "UltraHonk":
		return core.ProvingBackendUltraHonk, nil
	default:
		return core.ProvingBackendUnspecified, &core.ErrInvalidInput{Field: "backend", Message: fmt.Sprintf("unknown proving backend %q", s)}
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, &core.ErrInvalidInput{Field: "body", Message: fmt.Sprintf("decode request: %v", err)})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := core.ErrorCodeInternal

	var domainErr *core.DomainError
	switch {
	case errors.As(err, &domainErr):
		code = domainErr.Code
	}
	var invalidInput *core.ErrInvalidInput
	var notFound *core.ErrNotFound
	switch {
	case errors.As(err, &invalidInput):
		code = core.ErrorCodeInvalidInput
	case errors.As(err, &notFound):
		code = core.ErrorCodeInvalidInput
	}

	switch code {
	case core.ErrorCodeInvalidInput:
		status = http.StatusBadRequest
	case core.ErrorCodeMissingConfiguration:
		status = http.StatusServiceUnavailable
	case core.ErrorCodeNetwork:
		status = http.StatusBadGateway
	case core.ErrorCodeMPCProtocol, core.ErrorCodeCommitmentMismatch:
		status = http.StatusConflict
	case core.ErrorCodeState, core.ErrorCodeIO:
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, errorResponse{Code: code.String(), Message: err.Error()})
}

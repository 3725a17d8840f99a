package core

import "context"

// RevealMsg is what a party commits to and later reveals during
// Config Exchange: its MPC endpoint and the path to its TLS
// certificate. Certificate *paths*, not content, are exchanged; this
// assumes deployments provide certificates at consistent relative
// paths on each operator.
type RevealMsg struct {
	DNSName  string
	CertPath string
}

// CommitMsg is the SHA-256 commitment over the canonical binary
// encoding of a RevealMsg, broadcast in round 1 of Config Exchange.
type CommitMsg struct {
	Commitment [32]byte
}

// PartyConfig is one participant's verified network identity, as
// produced by a successful Config Exchange.
type PartyConfig struct {
	ID       int
	Hostname string
	Port     uint16
	CertPath string
}

// PublicKey is an operator's identity as returned by the operator
// registry. Its only required properties are a stable byte encoding
// (for ordering and hashing) and equality.
type PublicKey []byte

// MPCHandle is an opaque, shared capability to send and receive over
// an established TLS mesh between all parties of a session. It is
// produced by the TLS mesh initiator and cached by the Session
// Manager under reference-counted ownership.
type MPCHandle interface {
	// SessionID returns the identifier this handle was established
	// for.
	SessionID() string
	// LocalPartyIndex returns this node's 0-based position among the
	// session's participants.
	LocalPartyIndex() int
	// Close releases the mesh's network resources. Safe to call more
	// than once.
	Close() error
}

// SessionManager establishes, caches, and returns an MPC mesh handle
// per session identifier. Two concurrent calls with the same
// sessionID collapse into exactly one establishment attempt.
type SessionManager interface {
	Establish(ctx context.Context, sessionID string, orderedParticipants []PublicKey) (MPCHandle, error)
}

// Store is the persistent mapping from CircuitID to metadata plus blob
// storage for the artifact, proving key, and verification key. See
// internal/store for the bbolt-backed implementation.
type Store interface {
	Put(info CircuitInfo, artifact, provingKey, verificationKey []byte) error
	Get(hexID string) (CircuitInfo, bool, error)
	ReadArtifact(info CircuitInfo) ([]byte, error)
	ReadProvingKey(info CircuitInfo) ([]byte, error)
	ReadVerificationKey(info CircuitInfo) ([]byte, error)
	List() ([]CircuitID, error)
	Remove(id CircuitID) (CircuitInfo, bool, error)
}

// OperatorRegistry queries the on-chain operator-set registry for the
// current set of operator public keys eligible to participate in MPC
// sessions.
type OperatorRegistry interface {
	GetOperators(ctx context.Context) ([]PublicKey, error)
}

// WitnessInput is either an inline JSON witness or a URI the handler
// should fetch it from.
type WitnessInput struct {
	JSON string
	URI  string
}

// IsURI reports whether the witness should be resolved by fetching
// URI rather than using JSON directly.
func (w WitnessInput) IsURI() bool {
	return w.URI != ""
}

// ProofResult is the output of a successful generate-proof job.
type ProofResult struct {
	ProofBytes   []byte
	PublicInputs [][]byte
}

// ProofBackend generates a proof over an established MPC mesh given a
// circuit's stored artifact and proving key plus the resolved witness.
// Implementations are opaque to the core per the spec: this interface
// exists so the jobs package never depends on a concrete SNARK
// library directly.
type ProofBackend interface {
	GenerateProof(ctx context.Context, handle MPCHandle, info CircuitInfo, artifact, provingKey []byte, witnessJSON string) (ProofResult, error)
	// DeriveKeys produces proving/verification key material (and,
	// where applicable, a verifier contract address) from a compiled
	// circuit artifact for the given kind/backend pair.
	DeriveKeys(kind CircuitKind, backend ProvingBackend, artifact []byte) (provingKey, verificationKey []byte, verifier *VerifierAddress, err error)
}

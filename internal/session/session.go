// Package session implements the MPC Session Manager: the
// singleflight-deduplicated, process-lifetime cache of established TLS
// mesh handles keyed by session identifier.
//
// Grounded on the teacher's internal/providers/cache.DiscoveryCache
// (read-lock fast path, singleflight.Group barrier, write-lock
// insert-on-success) adapted from a TTL cache into a write-once,
// never-evicted one, since spec.md §3 requires Session Cache entries
// to persist for the life of the process.
package session

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/cosnark/zksaas-node/internal/configexchange"
	"github.com/cosnark/zksaas-node/internal/core"
	"github.com/cosnark/zksaas-node/internal/mesh"
	"github.com/cosnark/zksaas-node/internal/transcript"
)

// Identity is this node's own cryptographic and network identity,
// used to sign transcript messages and to present a TLS certificate
// during mesh establishment.
type Identity interface {
	PublicKey() core.PublicKey
	Sign(digest []byte) ([]byte, error)
	CertPath() string
	KeyPath() string
}

// PeerDirectory resolves another operator's public key to the
// control-plane address the Session Manager should dial to reach
// them for Config Exchange. It is not part of the spec's public
// Establish contract; it is the piece of infrastructure that makes
// "build a party_index -> peer_identity map" (spec.md §4.4 step 3)
// possible given only public keys.
type PeerDirectory interface {
	ControlAddress(ctx context.Context, pk core.PublicKey) (string, error)
}

// Manager implements core.SessionManager.
type Manager struct {
	identity  Identity
	directory PeerDirectory
	transport *transcript.NetTransport
	initiator *mesh.Initiator

	mpcListenAddr    string
	mpcAdvertiseAddr string

	mu    sync.RWMutex
	cache map[string]core.MPCHandle

	flights singleflight.Group
}

// NewManager constructs a Session Manager. transport is the node's
// long-lived control-plane transport (already listening); it is
// shared across every session this manager ever establishes.
// mpcListenAddr and mpcAdvertiseAddr are, respectively, the local bind
// address for the TLS mesh and the "host:port" this node reveals to
// peers during Config Exchange (the two differ when the node sits
// behind a NAT or a reverse proxy).
func NewManager(identity Identity, directory PeerDirectory, transport *transcript.NetTransport, mpcListenAddr, mpcAdvertiseAddr string) *Manager {
	return &Manager{
		identity:         identity,
		directory:        directory,
		transport:        transport,
		initiator:        mesh.NewInitiator(),
		mpcListenAddr:    mpcListenAddr,
		mpcAdvertiseAddr: mpcAdvertiseAddr,
		cache:            make(map[string]core.MPCHandle),
	}
}

// Establish implements core.SessionManager. Concurrent calls sharing
// sessionID collapse into a single establishment attempt.
func (m *Manager) Establish(ctx context.Context, sessionID string, orderedParticipants []core.PublicKey) (core.MPCHandle, error) {
	if h, ok := m.cached(sessionID); ok {
		return h, nil
	}

	v, err, _ := m.flights.Do(sessionID, func() (any, error) {
		if h, ok := m.cached(sessionID); ok {
			return h, nil
		}

		h, err := m.establish(ctx, sessionID, orderedParticipants)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.cache[sessionID] = h
		m.mu.Unlock()
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(core.MPCHandle), nil
}

func (m *Manager) cached(sessionID string) (core.MPCHandle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.cache[sessionID]
	return h, ok
}

// establish runs Config Exchange then the TLS mesh handshake for a
// session that has not yet been cached. It never mutates the cache;
// the caller inserts on success.
func (m *Manager) establish(ctx context.Context, sessionID string, participants []core.PublicKey) (core.MPCHandle, error) {
	n := len(participants)
	if n < 2 {
		return nil, &core.ErrInvalidInput{Field: "ordered_participants", Message: fmt.Sprintf("need at least 2 participants, got %d", n)}
	}

	localIndex := -1
	local := m.identity.PublicKey()
	for i, pk := range participants {
		if bytes.Equal(pk, local) {
			localIndex = i
			break
		}
	}
	if localIndex < 0 {
		return nil, &core.DomainError{Code: core.ErrorCodeMissingConfiguration, Message: "local public key not present in ordered participant list"}
	}

	// Dial every peer's control-plane address before starting Config
	// Exchange; the underlying transport is shared and idempotent
	// about re-dialing an address it already has a connection to.
	for i, pk := range participants {
		if i == localIndex {
			continue
		}
		addr, err := m.directory.ControlAddress(ctx, pk)
		if err != nil {
			return nil, &core.DomainError{Code: core.ErrorCodeNetwork, Message: fmt.Sprintf("resolve control address for party %d", i), Cause: err}
		}
		if err := m.transport.Dial(addr); err != nil {
			return nil, &core.DomainError{Code: core.ErrorCodeNetwork, Message: fmt.Sprintf("dial party %d", i), Cause: err}
		}
	}

	tr := transcript.New(sessionID, localIndex, n, m.transport)
	localReveal := core.RevealMsg{
		DNSName:  m.mpcAdvertiseAddr,
		CertPath: m.identity.CertPath(),
	}

	configs, err := configexchange.Exchange(ctx, tr, localReveal)
	if err != nil {
		return nil, err
	}

	parties := make([]core.PartyConfig, 0, n)
	for i := 0; i < n; i++ {
		cfg, ok := configs[i]
		if !ok {
			return nil, &core.DomainError{Code: core.ErrorCodeMPCProtocol, Message: fmt.Sprintf("config exchange returned no config for party %d", i)}
		}
		parties = append(parties, cfg)
	}

	meshCfg := mesh.Config{
		SessionID:        sessionID,
		LocalID:          localIndex,
		LocalBindAddress: m.mpcListenAddr,
		LocalKeyPath:     m.identity.KeyPath(),
		Parties:          parties,
		HandshakeTimeout: mesh.DefaultHandshakeTimeout,
	}

	handle, err := m.initiator.Establish(ctx, meshCfg)
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// Package mesh implements the TLS mesh initiator: the single
// network-intensive step of MPC session establishment, where every
// pair of parties opens a mutually authenticated TLS connection used
// for the remainder of the session's MPC traffic.
//
// Grounded on the teacher's internal/pki (ECDSA P-256 certificates,
// loaded the same way) and internal/transport (errgroup-coordinated
// concurrent start of many components), adapted from a listener
// lifecycle into a peer-to-peer handshake fan-out.
package mesh

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/binary"
	"encoding/pem"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cosnark/zksaas-node/internal/core"
)

// DefaultHandshakeTimeout is the deadline the Session Manager attaches
// to mesh establishment per spec.md §4.4 step 5.
const DefaultHandshakeTimeout = 60 * time.Second

// Config describes the n-party TLS mesh to establish.
type Config struct {
	SessionID        string
	LocalID          int
	LocalBindAddress string
	LocalKeyPath     string
	// Parties is every participant, including the local party, keyed
	// by PartyConfig.ID; IDs must be exactly 0..n-1.
	Parties          []core.PartyConfig
	HandshakeTimeout time.Duration
}

func (c Config) local() (core.PartyConfig, bool) {
	for _, p := range c.Parties {
		if p.ID == c.LocalID {
			return p, true
		}
	}
	return core.PartyConfig{}, false
}

// Initiator performs the authenticated handshake with every peer named
// in a Config and returns the resulting mesh Handle.
type Initiator struct{}

// NewInitiator returns a ready-to-use Initiator. It carries no state:
// every Establish call is independent.
func NewInitiator() *Initiator {
	return &Initiator{}
}

// Establish dials every peer with a smaller party index and accepts
// connections from every peer with a larger party index, so that each
// unordered pair opens exactly one connection. It blocks until every
// connection in the mesh has completed its TLS handshake or cfg's
// handshake timeout (or ctx) expires.
func (in *Initiator) Establish(ctx context.Context, cfg Config) (*Handle, error) {
	local, ok := cfg.local()
	if !ok {
		return nil, &core.DomainError{Code: core.ErrorCodeMissingConfiguration, Message: "local party not present in mesh configuration"}
	}

	cert, err := loadLocalCertificate(local.CertPath, cfg.LocalKeyPath)
	if err != nil {
		return nil, &core.DomainError{Code: core.ErrorCodeMissingConfiguration, Message: "load local TLS identity", Cause: err}
	}

	caPool := x509.NewCertPool()
	for _, p := range cfg.Parties {
		pemBytes, err := os.ReadFile(p.CertPath)
		if err != nil {
			return nil, &core.DomainError{Code: core.ErrorCodeMissingConfiguration, Message: fmt.Sprintf("read certificate for party %d", p.ID), Cause: err}
		}
		if !caPool.AppendCertsFromPEM(pemBytes) {
			return nil, &core.DomainError{Code: core.ErrorCodeMissingConfiguration, Message: fmt.Sprintf("parse certificate for party %d", p.ID)}
		}
	}

	tlsConf := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    caPool,
		RootCAs:      caPool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS13,
	}

	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ln, err := tls.Listen("tcp", cfg.LocalBindAddress, tlsConf)
	if err != nil {
		return nil, &core.DomainError{Code: core.ErrorCodeNetwork, Message: "listen for mesh peers", Cause: err}
	}
	go func() {
		<-hctx.Done()
		ln.Close()
	}()

	var expectedAccepts int
	for _, p := range cfg.Parties {
		if p.ID > local.ID {
			expectedAccepts++
		}
	}

	var mu sync.Mutex
	conns := make(map[int]net.Conn, len(cfg.Parties)-1)

	eg, egCtx := errgroup.WithContext(hctx)

	eg.Go(func() error {
		for i := 0; i < expectedAccepts; i++ {
			conn, err := ln.Accept()
			if err != nil {
				return fmt.Errorf("mesh: accept peer connection: %w", err)
			}
			tlsConn, ok := conn.(*tls.Conn)
			if !ok {
				conn.Close()
				return fmt.Errorf("mesh: accepted non-TLS connection")
			}
			peerID, err := identifyPeer(egCtx, tlsConn, cfg.Parties, local.ID, true)
			if err != nil {
				tlsConn.Close()
				return err
			}
			mu.Lock()
			conns[peerID] = tlsConn
			mu.Unlock()
		}
		return nil
	})

	for _, p := range cfg.Parties {
		if p.ID >= local.ID {
			continue
		}
		p := p
		eg.Go(func() error {
			addr := net.JoinHostPort(p.Hostname, fmt.Sprintf("%d", p.Port))
			dialer := &tls.Dialer{Config: tlsConf}
			conn, err := dialer.DialContext(egCtx, "tcp", addr)
			if err != nil {
				return fmt.Errorf("mesh: dial party %d at %s: %w", p.ID, addr, err)
			}
			tlsConn := conn.(*tls.Conn)
			peerID, err := identifyPeer(egCtx, tlsConn, cfg.Parties, local.ID, false)
			if err != nil {
				tlsConn.Close()
				return err
			}
			if peerID != p.ID {
				tlsConn.Close()
				return fmt.Errorf("mesh: dialed party %d but presented certificate identifies party %d", p.ID, peerID)
			}
			mu.Lock()
			conns[p.ID] = tlsConn
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		ln.Close()
		mu.Lock()
		for _, c := range conns {
			c.Close()
		}
		mu.Unlock()
		return nil, &core.DomainError{Code: core.ErrorCodeNetwork, Message: "tls mesh handshake", Cause: err}
	}
	ln.Close()

	return &Handle{
		sessionID:  cfg.SessionID,
		localIndex: local.ID,
		n:          len(cfg.Parties),
		conns:      conns,
	}, nil
}

// loadLocalCertificate builds the local party's TLS certificate from a
// PEM-encoded leaf certificate (certPath, the same file handed to
// peers via Config Exchange) and a DER-encoded EC private key
// (keyPath, per the node's mpc_net/mpc_key.der convention).
func loadLocalCertificate(certPath, keyPath string) (tls.Certificate, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read local cert: %w", err)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return tls.Certificate{}, fmt.Errorf("decode local cert PEM")
	}

	keyDER, err := os.ReadFile(keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read local key: %w", err)
	}
	key, err := x509.ParseECPrivateKey(keyDER)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parse local key: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{block.Bytes},
		PrivateKey:  key,
	}, nil
}

// identifyPeer completes the handshake (if not already complete) and
// matches the peer's presented certificate against the known parties,
// restricted to those with a larger index when expectDialer is true
// (only larger-index parties dial into us) or returning whichever
// index the certificate matches otherwise.
func identifyPeer(ctx context.Context, conn *tls.Conn, parties []core.PartyConfig, localID int, expectDialer bool) (int, error) {
	if err := conn.HandshakeContext(ctx); err != nil {
		return 0, fmt.Errorf("mesh: TLS handshake: %w", err)
	}
	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return 0, fmt.Errorf("mesh: peer presented no certificate")
	}
	peerCert := state.PeerCertificates[0]

	for _, p := range parties {
		if expectDialer && p.ID <= localID {
			continue
		}
		pemBytes, err := os.ReadFile(p.CertPath)
		if err != nil {
			continue
		}
		rest := pemBytes
		for {
			var block *pem.Block
			block, rest = pem.Decode(rest)
			if block == nil {
				break
			}
			if cert, err := x509.ParseCertificate(block.Bytes); err == nil && cert.Equal(peerCert) {
				return p.ID, nil
			}
		}
	}
	return 0, fmt.Errorf("mesh: peer certificate does not match any known party")
}

// Handle is the established mesh's shared capability: a send/receive
// connection to every other party in the session, keyed by party
// index. It implements core.MPCHandle.
type Handle struct {
	sessionID  string
	localIndex int
	n          int

	closeOnce sync.Once
	conns     map[int]net.Conn
}

// SessionID implements core.MPCHandle.
func (h *Handle) SessionID() string { return h.sessionID }

// LocalPartyIndex implements core.MPCHandle.
func (h *Handle) LocalPartyIndex() int { return h.localIndex }

// N returns the total number of parties in the mesh.
func (h *Handle) N() int { return h.n }

// Close implements core.MPCHandle. Safe to call more than once.
func (h *Handle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		for _, c := range h.conns {
			if cerr := c.Close(); cerr != nil {
				err = cerr
			}
		}
	})
	return err
}

// SendTo writes a length-prefixed frame to the named peer.
func (h *Handle) SendTo(peerIndex int, frame []byte) error {
	conn, ok := h.conns[peerIndex]
	if !ok {
		return fmt.Errorf("mesh: no connection to party %d", peerIndex)
	}
	return writeFrame(conn, frame)
}

// ReceiveFrom blocks for the next frame from the named peer.
func (h *Handle) ReceiveFrom(peerIndex int) ([]byte, error) {
	conn, ok := h.conns[peerIndex]
	if !ok {
		return nil, fmt.Errorf("mesh: no connection to party %d", peerIndex)
	}
	return readFrame(conn)
}

// Broadcast writes frame to every other party in the mesh.
func (h *Handle) Broadcast(frame []byte) error {
	for idx, conn := range h.conns {
		if err := writeFrame(conn, frame); err != nil {
			return fmt.Errorf("mesh: broadcast to party %d: %w", idx, err)
		}
	}
	return nil
}

func writeFrame(w io.Writer, frame []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(frame)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(frame)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}


package transcript

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Signer produces the signature a NetTransport attaches to every
// message it originates, so the resulting MsgID is a hash of a signed
// envelope and can be verified by anyone holding the sender's public
// key — the "message identifiers in blames" requirement.
type Signer interface {
	Sign(digest []byte) ([]byte, error)
}

// envelope is the framed unit exchanged between parties. It is
// canonically CBOR-encoded; its hash, combined with the sender's
// signature over that hash, is hashed again to form the MsgID.
type envelope struct {
	SessionID string
	Round     int
	Sender    int
	Payload   []byte
}

// NetTransport is a TCP-based PeerTransport connecting this node's
// control plane to every other operator it needs to run Config
// Exchange with. One NetTransport is constructed at node startup and
// reused across every session for the lifetime of the process: its
// peer connections are keyed by the peer's stable network identity,
// not by any one session's party index, since the same peer can hold
// a different party index from one session to the next.
//
// Grounded on the relay/accept-loop shape of the teacher's
// transport/tunnel bridge and client: a persistent listener plus one
// persistent outbound connection per peer, framed length-prefixed
// messages copied in background goroutines.
type NetTransport struct {
	signer Signer
	log    *slog.Logger

	listener net.Listener

	mu    sync.Mutex
	conns map[string]net.Conn // peer address -> connection

	roundsMu sync.Mutex
	rounds   map[string]*roundBuffer
}

type roundBuffer struct {
	mu       sync.Mutex
	signal   chan struct{}
	received map[int]RawDelivery
	n        int
}

func newRoundBuffer(n int) *roundBuffer {
	return &roundBuffer{received: make(map[int]RawDelivery, n), n: n, signal: make(chan struct{}, 1)}
}

// notify wakes any CollectRound currently waiting on this buffer.
// Non-blocking: the signal channel only needs to carry "something
// changed", not one event per arrival.
func (rb *roundBuffer) notify() {
	select {
	case rb.signal <- struct{}{}:
	default:
	}
}

// NewNetTransport starts listening on bindAddr and returns a
// transport ready to Dial peers. signer authenticates every envelope
// this node originates, regardless of which session or party index
// it is broadcast under.
func NewNetTransport(bindAddr string, signer Signer) (*NetTransport, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("transcript: listen on %s: %w", bindAddr, err)
	}
	t := &NetTransport{
		signer:   signer,
		log:      slog.Default().With("component", "transcript-transport"),
		listener: ln,
		conns:    make(map[string]net.Conn),
		rounds:   make(map[string]*roundBuffer),
	}
	go t.acceptLoop()
	return t, nil
}

// Addr returns the bound listen address, useful when bindAddr was
// ":0".
func (t *NetTransport) Addr() net.Addr {
	return t.listener.Addr()
}

// Close stops accepting connections and closes every peer connection.
func (t *NetTransport) Close() error {
	t.listener.Close()
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.conns {
		c.Close()
	}
	return nil
}

// Dial establishes (or reuses) an outbound connection to a peer at
// address. address also serves as the stable key identifying this
// peer's connection across every session.
func (t *NetTransport) Dial(address string) error {
	t.mu.Lock()
	if _, ok := t.conns[address]; ok {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	conn, err := net.Dial("tcp", address)
	if err != nil {
		return fmt.Errorf("transcript: dial %s: %w", address, err)
	}

	t.mu.Lock()
	t.conns[address] = conn
	t.mu.Unlock()

	go t.readLoop(conn)
	return nil
}

func (t *NetTransport) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			return
		}
		t.mu.Lock()
		t.conns[conn.RemoteAddr().String()] = conn
		t.mu.Unlock()
		go t.readLoop(conn)
	}
}

// readLoop reads length-prefixed signed envelopes off conn and files
// each into its round buffer until conn is closed.
func (t *NetTransport) readLoop(conn net.Conn) {
	for {
		frame, err := readFrame(conn)
		if err != nil {
			if err != io.EOF {
				t.log.Debug("control-plane connection closed", "error", err)
			}
			return
		}

		var signed signedEnvelope
		if err := cbor.Unmarshal(frame, &signed); err != nil {
			t.log.Warn("dropping malformed control-plane frame", "error", err)
			continue
		}

		msgID := computeMsgID(signed)
		key := roundKey(signed.Envelope.SessionID, signed.Envelope.Round)

		t.roundsMu.Lock()
		rb, ok := t.rounds[key]
		if !ok {
			// A message for a round we haven't started waiting on yet;
			// create the buffer eagerly so it isn't lost.
			rb = newRoundBuffer(0)
			t.rounds[key] = rb
		}
		t.roundsMu.Unlock()

		rb.mu.Lock()
		rb.received[signed.Envelope.Sender] = RawDelivery{
			SenderIndex: signed.Envelope.Sender,
			MsgID:       msgID,
			Payload:     signed.Envelope.Payload,
		}
		rb.mu.Unlock()
		rb.notify()
	}
}

type signedEnvelope struct {
	Envelope  envelope
	Signature []byte
}

func computeMsgID(signed signedEnvelope) string {
	encoded, err := cbor.Marshal(signed.Envelope)
	if err != nil {
		// Unreachable in practice: the envelope was itself decoded
		// from CBOR moments ago.
		encoded = nil
	}
	digest := sha256.Sum256(encoded)
	h := sha256.New()
	h.Write(digest[:])
	h.Write(signed.Signature)
	return hex.EncodeToString(h.Sum(nil))
}

func roundKey(sessionID string, round int) string {
	return fmt.Sprintf("%s/%d", sessionID, round)
}

// Broadcast implements transcript.PeerTransport.
func (t *NetTransport) Broadcast(ctx context.Context, sessionID string, round int, localIndex int, payload []byte) (string, error) {
	env := envelope{SessionID: sessionID, Round: round, Sender: localIndex, Payload: payload}
	encoded, err := cbor.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("transcript: encode envelope: %w", err)
	}
	digest := sha256.Sum256(encoded)

	sig, err := t.signer.Sign(digest[:])
	if err != nil {
		return "", fmt.Errorf("transcript: sign envelope: %w", err)
	}

	signed := signedEnvelope{Envelope: env, Signature: sig}
	frame, err := cbor.Marshal(signed)
	if err != nil {
		return "", fmt.Errorf("transcript: encode signed envelope: %w", err)
	}

	msgID := computeMsgID(signed)

	// Deliver to self directly; no self-connection exists.
	key := roundKey(sessionID, round)
	t.roundsMu.Lock()
	rb, ok := t.rounds[key]
	if !ok {
		rb = newRoundBuffer(0)
		t.rounds[key] = rb
	}
	t.roundsMu.Unlock()
	rb.mu.Lock()
	rb.received[localIndex] = RawDelivery{SenderIndex: localIndex, MsgID: msgID, Payload: payload}
	rb.mu.Unlock()
	rb.notify()

	t.mu.Lock()
	conns := make([]net.Conn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	for _, c := range conns {
		if err := writeFrame(c, frame); err != nil {
			return "", fmt.Errorf("transcript: broadcast to peer: %w", err)
		}
	}

	return msgID, nil
}

// CollectRound implements transcript.PeerTransport.
func (t *NetTransport) CollectRound(ctx context.Context, sessionID string, round int, n int) ([]RawDelivery, error) {
	key := roundKey(sessionID, round)

	t.roundsMu.Lock()
	rb, ok := t.rounds[key]
	if !ok {
		rb = newRoundBuffer(n)
		t.rounds[key] = rb
	} else if rb.n == 0 {
		rb.n = n
	}
	t.roundsMu.Unlock()

	for {
		rb.mu.Lock()
		complete := len(rb.received) >= n
		var out []RawDelivery
		if complete {
			out = make([]RawDelivery, 0, len(rb.received))
			for _, d := range rb.received {
				out = append(out, d)
			}
		}
		rb.mu.Unlock()

		if complete {
			sort.Slice(out, func(i, j int) bool { return out[i].SenderIndex < out[j].SenderIndex })
			t.roundsMu.Lock()
			delete(t.rounds, key)
			t.roundsMu.Unlock()
			return out, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-rb.signal:
		}
	}
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

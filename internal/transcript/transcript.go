// Package transcript implements the Party Transcript: a round-based
// message router that tags every delivered message with its sender's
// party index and a stable, transport-provided message identifier.
//
// Grounded on the original_source round_based::rounds_router::RoundsRouter
// pattern (add_round / complete / broadcast), reshaped into idiomatic Go:
// rounds are plain integers assigned in declaration order, and payloads
// are carried as opaque bytes so the transcript itself never depends on
// a concrete message type.
package transcript

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Delivery is one party's contribution to a completed round, decoded
// into the round's payload type T.
type Delivery[T any] struct {
	SenderIndex int
	MsgID       string
	Payload     T
}

// PeerTransport is the underlying network capability the transcript
// routes messages over. Implementations attach a stable, verifiable
// identifier to every broadcast message — typically a hash of the
// signed envelope — so a Delivery's MsgID can later serve as evidence
// in a Blame.
type PeerTransport interface {
	// Broadcast sends payload as localIndex's message for the given
	// session and round to every party, including itself, and returns
	// the message identifier the transport assigned to it. localIndex
	// is supplied per call (rather than fixed at construction) because
	// one long-lived transport serves many sessions, and the same
	// physical peer can hold a different party index in each.
	Broadcast(ctx context.Context, sessionID string, round int, localIndex int, payload []byte) (msgID string, err error)
	// CollectRound blocks until exactly one message from every one of
	// the n parties (by party index, 0..n-1) has been received for the
	// given session and round, then returns them.
	CollectRound(ctx context.Context, sessionID string, round int, n int) ([]RawDelivery, error)
}

// RawDelivery is a PeerTransport-level delivery before payload
// decoding.
type RawDelivery struct {
	SenderIndex int
	MsgID       string
	Payload     []byte
}

// RoundHandle identifies one declared round of a Transcript. Handles
// are only valid for the Transcript that created them.
type RoundHandle struct {
	Number int
	Label  string
}

// Transcript routes the rounds of one MPC session for the local party.
type Transcript struct {
	sessionID string
	local     int
	n         int
	transport PeerTransport
	nextRound int
}

// New constructs a Transcript scoped to sessionID for a local party at
// index local among n total parties, routed over transport.
func New(sessionID string, local, n int, transport PeerTransport) *Transcript {
	return &Transcript{
		sessionID: sessionID,
		local:     local,
		n:         n,
		transport: transport,
	}
}

// AddRound declares the next round of the protocol, labelled for
// logging and error messages. Rounds are numbered in the order they
// are declared, starting at 0.
func (t *Transcript) AddRound(label string) RoundHandle {
	h := RoundHandle{Number: t.nextRound, Label: label}
	t.nextRound++
	return h
}

// SendRound canonically encodes payload and broadcasts it as the
// local party's contribution to round.
func SendRound[T any](ctx context.Context, t *Transcript, round RoundHandle, payload T) error {
	encoded, err := cbor.Marshal(payload)
	if err != nil {
		return fmt.Errorf("transcript: encode round %q payload: %w", round.Label, err)
	}
	_, err = t.transport.Broadcast(ctx, t.sessionID, round.Number, t.local, encoded)
	if err != nil {
		return fmt.Errorf("transcript: broadcast round %q: %w", round.Label, err)
	}
	return nil
}

// CompleteRound blocks until every party's message for round has been
// delivered, decodes each payload as T, and returns them ordered by
// sender index.
//
// Ordering guarantee: the caller may rely on round k+1's CompleteRound
// never returning until every party's round-k message has already been
// delivered, since PeerTransport implementations are required to
// deliver a session's rounds in round order.
func CompleteRound[T any](ctx context.Context, t *Transcript, round RoundHandle) ([]Delivery[T], error) {
	raw, err := t.transport.CollectRound(ctx, t.sessionID, round.Number, t.n)
	if err != nil {
		return nil, fmt.Errorf("transcript: complete round %q: %w", round.Label, err)
	}

	out := make([]Delivery[T], 0, len(raw))
	for _, r := range raw {
		var payload T
		if err := cbor.Unmarshal(r.Payload, &payload); err != nil {
			return nil, fmt.Errorf("transcript: decode round %q payload from party %d: %w", round.Label, r.SenderIndex, err)
		}
		out = append(out, Delivery[T]{SenderIndex: r.SenderIndex, MsgID: r.MsgID, Payload: payload})
	}
	return out, nil
}

// LocalIndex returns the local party's 0-based index.
func (t *Transcript) LocalIndex() int { return t.local }

// N returns the total number of parties in the session.
func (t *Transcript) N() int { return t.n }

// SessionID returns the session this transcript routes.
func (t *Transcript) SessionID() string { return t.sessionID }

package transcript

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// fakeSigner returns a deterministic, party-specific "signature"
// without pulling in the real keystore package.
type fakeSigner struct{ partyIndex int }

func (f fakeSigner) Sign(digest []byte) ([]byte, error) {
	return []byte(fmt.Sprintf("sig-%d", f.partyIndex)), nil
}

type payload struct {
	Value int
}

func buildMesh(t *testing.T, n int) []*NetTransport {
	t.Helper()
	transports := make([]*NetTransport, n)
	for i := 0; i < n; i++ {
		tr, err := NewNetTransport("127.0.0.1:0", fakeSigner{partyIndex: i})
		if err != nil {
			t.Fatalf("NewNetTransport(%d): %v", i, err)
		}
		t.Cleanup(func() { tr.Close() })
		transports[i] = tr
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if err := transports[i].Dial(transports[j].Addr().String()); err != nil {
				t.Fatalf("party %d dial party %d: %v", i, j, err)
			}
		}
	}
	return transports
}

func TestTranscript_BroadcastRoundTrip(t *testing.T) {
	const n = 3
	transports := buildMesh(t, n)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	transcripts := make([]*Transcript, n)
	for i := range transcripts {
		transcripts[i] = New("session-1", i, n, transports[i])
	}

	type result struct {
		idx        int
		deliveries []Delivery[payload]
		err        error
	}
	results := make(chan result, n)

	rounds := make([]RoundHandle, n)
	for i, tr := range transcripts {
		rounds[i] = tr.AddRound("round1")
		go func(i int, tr *Transcript, round RoundHandle) {
			if err := SendRound(ctx, tr, round, payload{Value: i * 10}); err != nil {
				results <- result{idx: i, err: err}
				return
			}
			d, err := CompleteRound[payload](ctx, tr, round)
			results <- result{idx: i, deliveries: d, err: err}
		}(i, tr, rounds[i])
	}

	for i := 0; i < n; i++ {
		r := <-results
		if r.err != nil {
			t.Fatalf("party %d: %v", r.idx, r.err)
		}
		if len(r.deliveries) != n {
			t.Fatalf("party %d: expected %d deliveries, got %d", r.idx, n, len(r.deliveries))
		}
		for _, d := range r.deliveries {
			if d.Payload.Value != d.SenderIndex*10 {
				t.Fatalf("party %d: delivery from %d has wrong payload %+v", r.idx, d.SenderIndex, d.Payload)
			}
			if d.MsgID == "" {
				t.Fatalf("party %d: delivery from %d has empty MsgID", r.idx, d.SenderIndex)
			}
		}
	}
}

func TestTranscript_SequentialRoundsOrdered(t *testing.T) {
	const n = 2
	transports := buildMesh(t, n)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr0 := New("session-2", 0, n, transports[0])
	tr1 := New("session-2", 1, n, transports[1])

	r1a := tr0.AddRound("a")
	r1b := tr1.AddRound("a")
	r2a := tr0.AddRound("b")
	r2b := tr1.AddRound("b")

	done := make(chan error, 2)
	go func() {
		if err := SendRound(ctx, tr0, r1a, payload{Value: 1}); err != nil {
			done <- err
			return
		}
		if _, err := CompleteRound[payload](ctx, tr0, r1a); err != nil {
			done <- err
			return
		}
		if err := SendRound(ctx, tr0, r2a, payload{Value: 2}); err != nil {
			done <- err
			return
		}
		_, err := CompleteRound[payload](ctx, tr0, r2a)
		done <- err
	}()
	go func() {
		if err := SendRound(ctx, tr1, r1b, payload{Value: 1}); err != nil {
			done <- err
			return
		}
		if _, err := CompleteRound[payload](ctx, tr1, r1b); err != nil {
			done <- err
			return
		}
		if err := SendRound(ctx, tr1, r2b, payload{Value: 2}); err != nil {
			done <- err
			return
		}
		_, err := CompleteRound[payload](ctx, tr1, r2b)
		done <- err
	}()

	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestTranscript_CompleteRoundRespectsContextCancellation(t *testing.T) {
	transports := buildMesh(t, 2)
	tr := New("session-3", 0, 2, transports[0])
	round := tr.AddRound("only")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := SendRound(ctx, tr, round, payload{Value: 1}); err != nil {
		t.Fatalf("SendRound: %v", err)
	}

	// Party 1 never sends, so this must time out rather than hang.
	_, err := CompleteRound[payload](ctx, tr, round)
	if err == nil {
		t.Fatal("expected CompleteRound to fail when a peer never sends")
	}
}

package configexchange

import (
	"context"
	"crypto/sha256"
	"fmt"
	"testing"
	"time"

	"github.com/cosnark/zksaas-node/internal/core"
	"github.com/cosnark/zksaas-node/internal/transcript"
)

type fakeSigner struct{ partyIndex int }

func (f fakeSigner) Sign(digest []byte) ([]byte, error) {
	return []byte(fmt.Sprintf("sig-%d", f.partyIndex)), nil
}

func buildMesh(t *testing.T, n int) []*transcript.NetTransport {
	t.Helper()
	transports := make([]*transcript.NetTransport, n)
	for i := 0; i < n; i++ {
		tr, err := transcript.NewNetTransport("127.0.0.1:0", fakeSigner{partyIndex: i})
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

func revealFor(party int) core.RevealMsg {
	return core.RevealMsg{
		DNSName:  fmt.Sprintf("party%d.example.com:900%d", party, party),
		CertPath: fmt.Sprintf("/etc/zknode/party%d.pem", party),
	}
}

func TestExchange_HonestThreeParty(t *testing.T) {
	const n = 3
	transports := buildMesh(t, n)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		idx    int
		result map[int]core.PartyConfig
		err    error
	}
	results := make(chan result, n)

	for i := 0; i < n; i++ {
		go func(i int) {
			tr := transcript.New("session-honest", i, n, transports[i])
			m, err := Exchange(ctx, tr, revealFor(i))
			results <- result{idx: i, result: m, err: err}
		}(i)
	}

	collected := make([]map[int]core.PartyConfig, n)
	for k := 0; k < n; k++ {
		r := <-results
		if r.err != nil {
			t.Fatalf("party %d: unexpected error: %v", r.idx, r.err)
		}
		if len(r.result) != n {
			t.Fatalf("party %d: expected %d entries, got %d", r.idx, n, len(r.result))
		}
		collected[r.idx] = r.result
	}

	for party := 0; party < n; party++ {
		want := collected[0][party]
		for i := 1; i < n; i++ {
			got := collected[i][party]
			if got != want {
				t.Fatalf("party %d's config disagrees between node 0 (%+v) and node %d (%+v)", party, want, i, got)
			}
		}
		expectedHost, expectedPort, err := parseDNSName(revealFor(party).DNSName)
		if err != nil {
			t.Fatalf("parseDNSName: %v", err)
		}
		if want.Hostname != expectedHost || want.Port != expectedPort {
			t.Fatalf("party %d: unexpected hostname/port %s:%d", party, want.Hostname, want.Port)
		}
	}
}

func TestExchange_RejectsSingleParty(t *testing.T) {
	transports := buildMesh(t, 1)
	tr := transcript.New("session-single", 0, 1, transports[0])

	_, err := Exchange(context.Background(), tr, revealFor(0))
	if err == nil {
		t.Fatal("expected an error for n=1")
	}
}

// TestExchange_CommitmentMismatch simulates a 3-party exchange where
// party 2 broadcasts a commitment unrelated to what it later reveals.
// Parties 0 and 1 must both detect party 2 as guilty.
func TestExchange_CommitmentMismatch(t *testing.T) {
	const n = 3
	transports := buildMesh(t, n)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		idx int
		err error
	}
	results := make(chan result, 2)

	for i := 0; i < 2; i++ {
		go func(i int) {
			tr := transcript.New("session-cheat", i, n, transports[i])
			_, err := Exchange(ctx, tr, revealFor(i))
			results <- result{idx: i, err: err}
		}(i)
	}

	// Party 2 acts maliciously: it broadcasts a random commitment, then
	// an unrelated reveal that does not hash to it.
	go func() {
		maliciousTr := transcript.New("session-cheat", 2, n, transports[2])
		round1 := maliciousTr.AddRound("commit")
		round2 := maliciousTr.AddRound("reveal")

		randomCommitment := sha256.Sum256([]byte("not-the-real-config"))
		_ = transcript.SendRound(ctx, maliciousTr, round1, core.CommitMsg{Commitment: randomCommitment})
		_, _ = transcript.CompleteRound[core.CommitMsg](ctx, maliciousTr, round1)

		_ = transcript.SendRound(ctx, maliciousTr, round2, revealFor(2))
		_, _ = transcript.CompleteRound[core.RevealMsg](ctx, maliciousTr, round2)
	}()

	for k := 0; k < 2; k++ {
		r := <-results
		var mismatch *core.ErrCommitmentMismatch
		if r.err == nil {
			t.Fatalf("party %d: expected a commitment mismatch error", r.idx)
		}
		var ok bool
		mismatch, ok = r.err.(*core.ErrCommitmentMismatch)
		if !ok {
			t.Fatalf("party %d: expected *core.ErrCommitmentMismatch, got %T (%v)", r.idx, r.err, r.err)
		}
		if len(mismatch.Blames) != 1 || mismatch.Blames[0].GuiltyParty != 2 {
			t.Fatalf("party %d: expected a single blame against party 2, got %+v", r.idx, mismatch.Blames)
		}
	}
}

func TestParseDNSName_Boundaries(t *testing.T) {
	if _, _, err := parseDNSName("host:65536"); err == nil {
		t.Fatal("expected port 65536 to be rejected")
	}
	hostname, port, err := parseDNSName("host:0")
	if err != nil {
		t.Fatalf("expected host:0 to parse, got %v", err)
	}
	if hostname != "host" || port != 0 {
		t.Fatalf("unexpected parse result: %s:%d", hostname, port)
	}
	if _, _, err := parseDNSName("not-a-valid-address"); err == nil {
		t.Fatal("expected missing port to be rejected")
	}
	if _, _, err := parseDNSName("host:1:2"); err == nil {
		t.Fatal("expected three-part address to be rejected")
	}
}

// Package configexchange implements the two-round commit-reveal
// protocol that turns each party's local RevealMsg into a verified,
// n-party map of PartyConfig, detecting and naming any party whose
// reveal does not match its earlier commitment.
//
// Grounded on original_source/cosnarks-zksaas-blueprint-lib's
// p2p::mpc_config_exchange: the same two rounds (commit, then reveal),
// the same self-bypass (a party never re-verifies its own commitment),
// and the same DNS-name parsing rule, translated onto the Party
// Transcript abstraction instead of round_based's RoundsRouter.
package configexchange

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/cosnark/zksaas-node/internal/core"
	"github.com/cosnark/zksaas-node/internal/transcript"
)

// canonicalMode is the single, deterministic CBOR encoding used
// everywhere a RevealMsg is hashed into a commitment. Map ordering,
// indefinite-length items, and other non-canonical shapes are
// rejected by construction so that two honest parties always compute
// the same commitment for the same RevealMsg.
var canonicalMode = func() cbor.EncMode {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("configexchange: building canonical CBOR mode: %v", err))
	}
	return mode
}()

func canonicalEncode(msg core.RevealMsg) ([]byte, error) {
	return canonicalMode.Marshal(msg)
}

// Exchange runs Config Exchange over t for the local party's reveal
// message local, returning the verified party_index -> PartyConfig map
// on success or *core.ErrCommitmentMismatch carrying every detected
// cheater's blame evidence.
func Exchange(ctx context.Context, t *transcript.Transcript, local core.RevealMsg) (map[int]core.PartyConfig, error) {
	n := t.N()
	i := t.LocalIndex()
	if n < 2 {
		return nil, &core.ErrInvalidInput{Field: "participants", Message: "config exchange requires at least 2 parties"}
	}

	commitRound := t.AddRound("commit")
	revealRound := t.AddRound("reveal")

	encoded, err := canonicalEncode(local)
	if err != nil {
		return nil, fmt.Errorf("configexchange: encode local reveal: %w", err)
	}
	commitment := sha256.Sum256(encoded)

	if err := transcript.SendRound(ctx, t, commitRound, core.CommitMsg{Commitment: commitment}); err != nil {
		return nil, err
	}
	commits, err := transcript.CompleteRound[core.CommitMsg](ctx, t, commitRound)
	if err != nil {
		return nil, err
	}

	if err := transcript.SendRound(ctx, t, revealRound, local); err != nil {
		return nil, err
	}
	reveals, err := transcript.CompleteRound[core.RevealMsg](ctx, t, revealRound)
	if err != nil {
		return nil, err
	}

	commitByParty := make(map[int]transcript.Delivery[core.CommitMsg], n)
	for _, c := range commits {
		commitByParty[c.SenderIndex] = c
	}
	revealByParty := make(map[int]transcript.Delivery[core.RevealMsg], n)
	for _, r := range reveals {
		revealByParty[r.SenderIndex] = r
	}

	result := make(map[int]core.PartyConfig, n)
	var blames []core.Blame

	for party := 0; party < n; party++ {
		if party == i {
			hostname, port, err := parseDNSName(local.DNSName)
			if err != nil {
				return nil, err
			}
			result[party] = core.PartyConfig{ID: party, Hostname: hostname, Port: port, CertPath: local.CertPath}
			continue
		}

		commitDel, ok := commitByParty[party]
		if !ok {
			return nil, fmt.Errorf("configexchange: missing commit from party %d", party)
		}
		revealDel, ok := revealByParty[party]
		if !ok {
			return nil, fmt.Errorf("configexchange: missing reveal from party %d", party)
		}

		revealEncoded, err := canonicalEncode(revealDel.Payload)
		if err != nil {
			return nil, fmt.Errorf("configexchange: encode reveal from party %d: %w", party, err)
		}
		expected := sha256.Sum256(revealEncoded)
		if expected != commitDel.Payload.Commitment {
			blames = append(blames, core.Blame{
				GuiltyParty: party,
				CommitMsgID: commitDel.MsgID,
				RevealMsgID: revealDel.MsgID,
			})
			continue
		}

		hostname, port, err := parseDNSName(revealDel.Payload.DNSName)
		if err != nil {
			return nil, err
		}
		result[party] = core.PartyConfig{ID: party, Hostname: hostname, Port: port, CertPath: revealDel.Payload.CertPath}
	}

	if len(blames) > 0 {
		return nil, &core.ErrCommitmentMismatch{Blames: blames}
	}
	return result, nil
}

// parseDNSName parses "hostname:port" exactly, rejecting any other
// shape with an invalid-input error.
func parseDNSName(dnsName string) (hostname string, port uint16, err error) {
	parts := strings.Split(dnsName, ":")
	if len(parts) != 2 {
		return "", 0, &core.ErrInvalidInput{Field: "dns_name", Message: "invalid DNS name, expected hostname:port"}
	}
	p, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return "", 0, &core.ErrInvalidInput{Field: "dns_name", Message: "invalid DNS name: port is not a 16-bit decimal integer"}
	}
	return parts[0], uint16(p), nil
}

// Package registry provides this node's view of the operator set. The
// on-chain operator-set registry itself is external per spec — the
// core only consumes a get_operators() query — so this package is a
// thin, configuration-driven stand-in: the deployer lists every
// operator's public key and control-plane address up front, and this
// package answers both core.OperatorRegistry's query and
// session.PeerDirectory's address lookup from that static list.
package registry

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/cosnark/zksaas-node/internal/core"
)

// Operator is one participant's registry entry: its signing public
// key plus the address its Party Transcript control-plane connection
// can be dialed at.
type Operator struct {
	PublicKey      core.PublicKey
	ControlAddress string
}

// StaticRegistry answers operator-set queries from a fixed,
// configuration-supplied operator list. It implements both
// core.OperatorRegistry and session.PeerDirectory so the node's wiring
// needs only one source of truth for "who else is in this network."
type StaticRegistry struct {
	operators []Operator
	byKey     map[string]string
}

// New builds a StaticRegistry from operators. Duplicate public keys
// are rejected since the operator set must be able to sort to a
// unique canonical party ordering.
func New(operators []Operator) (*StaticRegistry, error) {
	byKey := make(map[string]string, len(operators))
	for _, op := range operators {
		if len(op.PublicKey) == 0 {
			return nil, &core.ErrInvalidInput{Field: "operators", Message: "operator public key must not be empty"}
		}
		k := string(op.PublicKey)
		if _, dup := byKey[k]; dup {
			return nil, &core.ErrInvalidInput{Field: "operators", Message: "duplicate operator public key in registry configuration"}
		}
		byKey[k] = op.ControlAddress
	}
	return &StaticRegistry{operators: operators, byKey: byKey}, nil
}

// GetOperators implements core.OperatorRegistry, returning the
// configured operator set sorted ascending by canonical byte order per
// spec.md §4.3 step 3.
func (r *StaticRegistry) GetOperators(ctx context.Context) ([]core.PublicKey, error) {
	if len(r.operators) == 0 {
		return nil, &core.DomainError{Code: core.ErrorCodeMissingConfiguration, Message: "operator registry is empty"}
	}
	keys := make([]core.PublicKey, len(r.operators))
	for i, op := range r.operators {
		keys[i] = op.PublicKey
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })
	return keys, nil
}

// ControlAddress implements session.PeerDirectory, resolving an
// operator's public key to the address its Party Transcript listens
// on.
func (r *StaticRegistry) ControlAddress(ctx context.Context, pk core.PublicKey) (string, error) {
	addr, ok := r.byKey[string(pk)]
	if !ok {
		return "", &core.ErrNotFound{Resource: "operator", ID: fmt.Sprintf("%x", pk)}
	}
	return addr, nil
}

// Package core defines the domain types and interfaces for the zkSaaS
// operator node. Infrastructure adapters (store, session, registry,
// backend) implement the interfaces declared here.
package core

import "fmt"

// ErrorCode classifies a DomainError into one of the kinds described by
// the node's error handling design. Job handlers translate these into
// whatever shape the host orchestration layer expects.
type ErrorCode int

const (
	ErrorCodeInternal ErrorCode = iota
	ErrorCodeInvalidInput
	ErrorCodeMissingConfiguration
	ErrorCodeState
	ErrorCodeNetwork
	ErrorCodeMPCProtocol
	ErrorCodeCommitmentMismatch
	ErrorCodeIO
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeInvalidInput:
		return "invalid-input"
	case ErrorCodeMissingConfiguration:
		return "missing-configuration"
	case ErrorCodeState:
		return "state"
	case ErrorCodeNetwork:
		return "network"
	case ErrorCodeMPCProtocol:
		return "mpc-protocol"
	case ErrorCodeCommitmentMismatch:
		return "commitment-mismatch"
	case ErrorCodeIO:
		return "io"
	default:
		return "internal"
	}
}

// DomainError is the generic error carrier for the node's core. Most
// call sites use one of the concrete sentinel types below instead, but
// adapters that wrap a lower-level failure (storage engine errors,
// HTTP failures) use DomainError directly with the closest-matching
// code.
type DomainError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// ErrInvalidInput indicates a malformed job argument: an unknown enum
// value, an incompatible circuit-kind/backend pairing, or an
// unparseable DNS name.
type ErrInvalidInput struct {
	Field   string
	Message string
}

func (e *ErrInvalidInput) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Field, e.Message)
}

// ErrNotFound indicates a lookup against the Circuit Store or the
// operator registry found nothing for the given identifier.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrNotReady indicates a required subsystem (store, keystore, TLS
// identity) has not finished initializing.
type ErrNotReady struct {
	Subsystem string
}

func (e *ErrNotReady) Error() string {
	return fmt.Sprintf("%s not initialized", e.Subsystem)
}

// ErrCommitmentMismatch is returned by Config Exchange when one or more
// parties revealed a configuration that does not hash to the
// commitment they broadcast in round 1. It carries enough evidence
// (Blames) for a caller to escalate to an external adjudicator.
type ErrCommitmentMismatch struct {
	Blames []Blame
}

func (e *ErrCommitmentMismatch) Error() string {
	return fmt.Sprintf("commitment mismatch: %d guilty part(ies)", len(e.Blames))
}

// Blame is evidence that a specific party's revealed configuration did
// not match the commitment it broadcast in round 1. CommitMsgID and
// RevealMsgID are the stable, verifiable message identifiers the peer
// transport attached to the two round deliveries, so an external
// adjudicator can check the claim against the transcript itself
// instead of trusting the accusing node.
type Blame struct {
	GuiltyParty int
	CommitMsgID string
	RevealMsgID string
}

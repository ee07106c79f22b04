// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package protocol holds the vocabulary shared by every consensus
// sub-protocol in this repository: node identity, the reactive handler
// contract, and the binary-value domain.
package protocol

// NodeID is an opaque node identifier. Protocols never interpret it beyond
// equality and ordering for display; no cryptographic meaning is attached
// to it (message authenticity is assumed to be provided by the channel,
// per this repository's scope).
type NodeID string

// Value is a binary consensus value.
type Value int

const (
	Zero Value = 0
	One  Value = 1
)

// Doubt is Ben-Or's sentinel "no strict majority" proposal, distinct from
// both binary values.
const Doubt Value = -1

// Round is a non-negative, monotonically advancing round number. Round 0
// means "not yet initialized" for the protocols that use it that way.
type Round uint64

// Handler is the three-method contract every reactive node in this
// repository implements: react to a local command, a network message, or a
// timer firing. Handlers run to completion with no suspension points, per
// this repository's concurrency model — see the individual protocol
// packages for the effects (sends, local deliveries, timer arms) each one
// emits through an env.Environment.
type Handler interface {
	OnLocal(cmd LocalCommand)
	OnMessage(msg Message, sender NodeID)
	OnTimer(name string)
}

// LocalCommand is a command injected by the application above a node, e.g.
// an INIT with a proposed value.
type LocalCommand struct {
	Kind  LocalKind
	Value Value
}

type LocalKind int

const (
	Init LocalKind = iota
)

// Message is the tagged union of every wire message used across the
// protocols in this repository. Exactly one of the typed payload fields is
// meaningful for a given Kind; dispatch is an exhaustive switch on Kind,
// not reflection or a registry (see SPEC_FULL.md §4).
type Message struct {
	Kind Kind

	// Round-indexed protocols (BV-Broadcast, MMR, PSync) use Round/Value.
	Round Round
	Value Value

	// BV-Broadcast / MMR / PSync AUX carry a small set of values.
	Values []Value

	// BRB carries an application-level proposal, which need not be
	// binary (dBFT's proposals are arbitrary application values), plus
	// the broadcaster's identity: (Payload, Origin) identifies the
	// payload being reliably broadcast.
	Payload string
	Origin  NodeID

	// dBFT tags every message with the binary-consensus instance it
	// belongs to.
	Instance int
}

type Kind int

const (
	// BV-Broadcast
	KindEst Kind = iota
	// Bracha BRB
	KindRBInit
	KindRBEcho
	KindRBReady
	// Ben-Or
	KindVote
	KindPropose
	// MMR / PSync BBC
	KindAux
	KindCoordValue
	// local-delivery only, never sent over the network
	KindResult
)

func (k Kind) String() string {
	switch k {
	case KindEst:
		return "EST"
	case KindRBInit:
		return "RB_INIT"
	case KindRBEcho:
		return "RB_ECHO"
	case KindRBReady:
		return "RB_READY"
	case KindVote:
		return "VOTE"
	case KindPropose:
		return "PROPOSE"
	case KindAux:
		return "AUX"
	case KindCoordValue:
		return "COORD_VALUE"
	case KindResult:
		return "RESULT"
	default:
		return "UNKNOWN"
	}
}

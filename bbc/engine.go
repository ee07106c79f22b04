// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bbc implements the safe (asynchronous) Binary Byzantine
// Consensus protocol from Mostéfaoui–Moniz–Raynal, using the deterministic
// round-parity common coin (spec.md §4.6). Engine holds the BV-Broadcast
// and AUX-validity machinery shared with the partial-synchrony coordinator
// variant in the psync subpackage; Node drives Engine for the plain
// asynchronous protocol.
//
// Grounded on original_source/BinaryByzantineConsensus's SafeBBC class.
package bbc

import (
	"github.com/kam3nskii/ConsensusProtocols/bvbroadcast"
	"github.com/kam3nskii/ConsensusProtocols/protocol"
	"github.com/kam3nskii/ConsensusProtocols/utils/linked"
	"github.com/kam3nskii/ConsensusProtocols/utils/set"
)

// Engine is the shared MMR core: BV-Broadcast plus AUX bookkeeping, the
// validity predicate, and idempotent decision tracking.
type Engine struct {
	n, f int

	BV *bvbroadcast.Engine

	// receivedAuxes[r] holds, in arrival order, each sender's most
	// recently received AUX value set for round r; a later AUX from the
	// same sender updates its value in place without moving it, so
	// psync's "first (insertion order) validated message" tie-break
	// (spec.md §4.7.4) sees senders in the order they first spoke.
	receivedAuxes map[protocol.Round]*linked.Hashmap[protocol.NodeID, []protocol.Value]

	decided      bool
	decidedRound protocol.Round
	decidedValue protocol.Value
}

// NewEngine returns an empty Engine for n nodes tolerating f faults.
func NewEngine(n, f int) *Engine {
	return &Engine{
		n:             n,
		f:             f,
		BV:            bvbroadcast.NewEngine(f),
		receivedAuxes: make(map[protocol.Round]*linked.Hashmap[protocol.NodeID, []protocol.Value]),
	}
}

// Coin returns the deterministic common-coin bit for round.
func Coin(round protocol.Round) protocol.Value {
	if round%2 == 0 {
		return protocol.Zero
	}
	return protocol.One
}

func (e *Engine) auxByRound(round protocol.Round) *linked.Hashmap[protocol.NodeID, []protocol.Value] {
	m, ok := e.receivedAuxes[round]
	if !ok {
		m = linked.NewHashmap[protocol.NodeID, []protocol.Value]()
		e.receivedAuxes[round] = m
	}
	return m
}

// RecordAux stores sender's AUX value set for round, overwriting any
// earlier AUX from the same sender in the same round without disturbing
// its position in arrival order, and returns the number of distinct
// senders recorded for round so far.
func (e *Engine) RecordAux(round protocol.Round, sender protocol.NodeID, values []protocol.Value) int {
	m := e.auxByRound(round)
	m.Put(sender, values)
	return m.Len()
}

// AuxCount returns the number of distinct senders recorded for round.
func (e *Engine) AuxCount(round protocol.Round) int {
	m, ok := e.receivedAuxes[round]
	if !ok {
		return 0
	}
	return m.Len()
}

// IterateAux calls f for every (sender, values) recorded for round, in the
// order those senders' first AUX for round arrived.
func (e *Engine) IterateAux(round protocol.Round, f func(protocol.NodeID, []protocol.Value) bool) {
	m, ok := e.receivedAuxes[round]
	if !ok {
		return
	}
	m.Iterate(f)
}

// SendersByValue aggregates, for round, the set of senders whose
// most-recent AUX included each value.
func (e *Engine) SendersByValue(round protocol.Round) map[protocol.Value]set.Set[protocol.NodeID] {
	zero := set.NewSet[protocol.NodeID](4)
	one := set.NewSet[protocol.NodeID](4)
	e.IterateAux(round, func(sender protocol.NodeID, values []protocol.Value) bool {
		for _, v := range values {
			switch v {
			case protocol.Zero:
				zero.Add(sender)
			case protocol.One:
				one.Add(sender)
			}
		}
		return true
	})
	return map[protocol.Value]set.Set[protocol.NodeID]{
		protocol.Zero: zero,
		protocol.One:  one,
	}
}

// ValidateAux reports whether an AUX value set is valid for round: every
// value in it has at least n-f supporting senders (by most-recent AUX) and
// lies in bin_values[round] (spec.md §4.6's aux validation predicate).
func (e *Engine) ValidateAux(round protocol.Round, values []protocol.Value) bool {
	if len(values) == 0 {
		return false
	}
	bv := e.BV.BinValues(round)
	sbv := e.SendersByValue(round)
	quorum := e.n - e.f
	for _, v := range values {
		if sbv[v].Len() < quorum {
			return false
		}
		if !bv.Contains(v) {
			return false
		}
	}
	return true
}

// Decide idempotently records a decision. It returns true the first time
// it is called for this Engine; subsequent calls (even with a different
// round/value) are no-ops, matching spec.md §7's "decide is idempotent".
func (e *Engine) Decide(round protocol.Round, value protocol.Value) bool {
	if e.decided {
		return false
	}
	e.decided = true
	e.decidedRound = round
	e.decidedValue = value
	return true
}

// Decided reports whether this Engine has decided, and the decision round.
func (e *Engine) Decided() (round protocol.Round, value protocol.Value, ok bool) {
	return e.decidedRound, e.decidedValue, e.decided
}

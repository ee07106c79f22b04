// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bvbroadcast implements Binary Value Broadcast (spec.md §4.3): it
// delivers any binary value proposed by at least one correct node, relays
// at most two distinct values per round, and ensures every correct node
// eventually delivers the same non-empty subset of {0,1}.
//
// Engine is the reusable core; it is embedded by bbc, bbc/psync, and dbft,
// which all drive their own EST traffic through it rather than
// reimplementing the echo-amplification rule. Node wraps Engine into a
// standalone protocol.Handler for direct use and testing (spec.md's
// component table lists BV-Broadcast as independently usable).
package bvbroadcast

import (
	"github.com/kam3nskii/ConsensusProtocols/protocol"
	"github.com/kam3nskii/ConsensusProtocols/quorum"
	"github.com/kam3nskii/ConsensusProtocols/utils/set"
)

// Engine holds one round-indexed BV-Broadcast instance's state: the EST
// quorum counter, the set of (round, value) pairs already broadcast by
// this node, and the delivered bin_values[r] sets.
type Engine struct {
	f int

	ests        *quorum.Counter[protocol.Value]
	broadcasted map[protocol.Round]set.Set[protocol.Value]
	binValues   map[protocol.Round]set.Set[protocol.Value]
}

// NewEngine returns an empty BV-Broadcast engine for a Byzantine bound f.
func NewEngine(f int) *Engine {
	return &Engine{
		f:           f,
		ests:        quorum.NewCounter[protocol.Value](),
		broadcasted: make(map[protocol.Round]set.Set[protocol.Value]),
		binValues:   make(map[protocol.Round]set.Set[protocol.Value]),
	}
}

// broadcastedSet returns (creating if needed) the set of values this node
// has already broadcast EST for in round.
func (e *Engine) broadcastedSet(round protocol.Round) set.Set[protocol.Value] {
	s, ok := e.broadcasted[round]
	if !ok {
		s = set.NewSet[protocol.Value](2)
		e.broadcasted[round] = s
	}
	return s
}

// BinValues returns the delivered bin_values[round] set. The caller must
// not mutate the returned set.
func (e *Engine) BinValues(round protocol.Round) set.Set[protocol.Value] {
	return e.binValues[round]
}

// ShouldBroadcast reports whether round/value has not yet been broadcast
// by this node and, if so, marks it broadcast. Callers use this both for
// the initial bv_broadcast(r, v) call and for EST-triggered amplification.
func (e *Engine) ShouldBroadcast(round protocol.Round, value protocol.Value) bool {
	s := e.broadcastedSet(round)
	if s.Contains(value) {
		return false
	}
	s.Add(value)
	return true
}

// Delivery is the result of processing a received EST message.
type Delivery struct {
	// Amplify is true when this node should (re)broadcast EST{round,
	// value} because the f+1 echo threshold was just crossed.
	Amplify bool
	// Delivered is true when value was just inserted into
	// bin_values[round] (the 2f+1 threshold was just crossed).
	Delivered bool
	// First is true when Delivered is true and bin_values[round] was
	// empty before this insertion (spec.md §4.7 uses this to decide
	// whether to arm the coordinator timer).
	First bool
}

// HandleEst records sender's support for (round, value) and reports
// whether this node should amplify and/or has just delivered the value.
func (e *Engine) HandleEst(round protocol.Round, value protocol.Value, sender protocol.NodeID) Delivery {
	count := e.ests.Add(round, value, sender)

	var d Delivery
	if count >= e.f+1 && e.ShouldBroadcast(round, value) {
		d.Amplify = true
	}

	if count >= 2*e.f+1 {
		bv, ok := e.binValues[round]
		if !ok {
			bv = set.NewSet[protocol.Value](2)
			e.binValues[round] = bv
		}
		if !bv.Contains(value) {
			d.First = bv.Len() == 0
			bv.Add(value)
			d.Delivered = true
		}
	}
	return d
}

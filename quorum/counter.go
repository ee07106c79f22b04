// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package quorum provides the sender-deduplicating (round, value) counter
// shared by every protocol in this repository: BV-Broadcast's EST tally,
// Bracha BRB's ECHO/READY/INIT tallies, and MMR/PSync's EST tally are all
// instances of the same shape (spec.md §4.2).
package quorum

import (
	"github.com/kam3nskii/ConsensusProtocols/protocol"
	"github.com/kam3nskii/ConsensusProtocols/utils/set"
)

// Counter tracks, for each (round, value) pair, the set of distinct
// senders that have supported it. Adding a sender is idempotent; Add's
// return value is monotone non-decreasing across any ordering of calls for
// a fixed (round, value) — a Byzantine sender replaying a message cannot
// inflate the count (spec.md §4.2, §7).
//
// Bracha BRB keys its per-payload counters by value alone; callers that
// don't have a natural round may use protocol.Round(0) uniformly.
type Counter[V comparable] struct {
	byRound map[protocol.Round]map[V]set.Set[protocol.NodeID]
}

// NewCounter returns an empty Counter.
func NewCounter[V comparable]() *Counter[V] {
	return &Counter[V]{byRound: make(map[protocol.Round]map[V]set.Set[protocol.NodeID])}
}

// Add records that sender supports value in round and returns the new
// distinct-sender count for that (round, value) pair.
func (c *Counter[V]) Add(round protocol.Round, value V, sender protocol.NodeID) int {
	byValue, ok := c.byRound[round]
	if !ok {
		byValue = make(map[V]set.Set[protocol.NodeID])
		c.byRound[round] = byValue
	}
	senders, ok := byValue[value]
	if !ok {
		senders = set.NewSet[protocol.NodeID](4)
		byValue[value] = senders
	}
	senders.Add(sender)
	return senders.Len()
}

// Count returns the current distinct-sender count for (round, value)
// without modifying anything.
func (c *Counter[V]) Count(round protocol.Round, value V) int {
	byValue, ok := c.byRound[round]
	if !ok {
		return 0
	}
	return byValue[value].Len()
}

// Senders returns the (unshared) set of distinct senders recorded for
// (round, value).
func (c *Counter[V]) Senders(round protocol.Round, value V) set.Set[protocol.NodeID] {
	byValue, ok := c.byRound[round]
	if !ok {
		return nil
	}
	return byValue[value]
}

// Values returns every value that has at least one sender recorded in
// round.
func (c *Counter[V]) Values(round protocol.Round) []V {
	byValue, ok := c.byRound[round]
	if !ok {
		return nil
	}
	values := make([]V, 0, len(byValue))
	for v := range byValue {
		values = append(values, v)
	}
	return values
}

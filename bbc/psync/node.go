// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package psync implements the partial-synchrony, rotating-coordinator
// variant of Binary Byzantine Consensus (spec.md §4.7). It augments bbc's
// asynchronous protocol with a per-round coordinator and two independent
// timers: a COORD-TIMER that gives the coordinator's value a head start
// before a node commits to its own AUX payload, and an AUX-TIMER that lets
// AUX votes accumulate before a node acts on them.
//
// Grounded on original_source/BinaryByzantineConsensus's PsyncBBC class,
// reusing package bbc's Engine for BV-Broadcast, AUX bookkeeping, and the
// AUX-validity predicate.
package psync

import (
	"strconv"
	"strings"
	"time"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kam3nskii/ConsensusProtocols/bbc"
	"github.com/kam3nskii/ConsensusProtocols/config"
	"github.com/kam3nskii/ConsensusProtocols/env"
	"github.com/kam3nskii/ConsensusProtocols/metrics"
	"github.com/kam3nskii/ConsensusProtocols/protocol"
)

const (
	coordTimerPrefix = "psync-coord-"
	auxTimerPrefix   = "psync-aux-"
)

// Node drives bbc.Engine for the coordinator-assisted partial-synchrony
// protocol.
type Node struct {
	id    protocol.NodeID
	peers []protocol.NodeID
	n, f  int
	round protocol.Round
	est   protocol.Value

	// timeout is the current AUX-TIMER delay. It starts at
	// initialAuxTimeout and grows by timeoutStep every time this node
	// sees a first BV-delivery for a round (spec.md §4.7.1's
	// timeout <- timeout + 1), so later rounds wait longer before acting
	// on whatever AUX votes have arrived.
	timeout           time.Duration
	initialAuxTimeout time.Duration
	timeoutStep       time.Duration

	engine *bbc.Engine

	// coordValues[r] is the value round r's coordinator broadcast, if any
	// has been received yet and accepted (sender verified).
	coordValues map[protocol.Round]protocol.Value
	// aux[r] is this node's own candidate AUX payload for round r,
	// composed when its COORD-TIMER fires.
	aux map[protocol.Round][]protocol.Value

	auxTimerArmed map[protocol.Round]bool

	env     env.Environment
	log     log.Logger
	metrics *metrics.Set
}

// NewNode constructs a partial-synchrony coordinator binary-consensus node.
// reg, if non-nil, receives this node's decisions-counter/round-gauge
// metric pair.
func NewNode(params config.Parameters, environment env.Environment, logger log.Logger, reg prometheus.Registerer) (*Node, error) {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	m, err := metrics.NewSet("bbc_psync_"+string(params.Self), reg)
	if err != nil {
		return nil, err
	}
	return &Node{
		id:                params.Self,
		peers:             params.Peers,
		n:                 params.N(),
		f:                 params.F,
		timeout:           params.InitialAuxTimeout,
		initialAuxTimeout: params.InitialAuxTimeout,
		timeoutStep:       params.TimeoutStep,
		engine:            bbc.NewEngine(params.N(), params.F),
		coordValues:       make(map[protocol.Round]protocol.Value),
		aux:               make(map[protocol.Round][]protocol.Value),
		auxTimerArmed:     make(map[protocol.Round]bool),
		env:               environment,
		log:               logger.With("protocol", "bbc-psync", "node", string(params.Self)),
		metrics:           m,
	}, nil
}

// coordinator returns the rotating coordinator for round, (r-1) mod n over
// the fixed peer order recorded at construction time.
func (n *Node) coordinator(round protocol.Round) protocol.NodeID {
	idx := (int(round) - 1) % n.n
	if idx < 0 {
		idx += n.n
	}
	return n.peers[idx]
}

func (n *Node) isCoordinator(round protocol.Round) bool {
	return n.coordinator(round) == n.id
}

func (n *Node) OnLocal(cmd protocol.LocalCommand) {
	if cmd.Kind != protocol.Init {
		return
	}
	n.est = cmd.Value
	n.startRound(1)
}

// terminated reports whether this node has decided and has already carried
// its decision two full extra rounds beyond the decision round — spec.md
// §4.7's termination guard (decided_round == r-2), which keeps a decided
// node helping stragglers reach the same decision for two more rounds
// before it stops participating.
func (n *Node) terminated(round protocol.Round) bool {
	decidedRound, _, ok := n.engine.Decided()
	return ok && round > decidedRound+2
}

func (n *Node) startRound(round protocol.Round) {
	if n.terminated(round) {
		return
	}
	n.round = round
	n.metrics.SetRound(float64(round))
	n.bvBroadcast(round, n.est)
}

func (n *Node) bvBroadcast(round protocol.Round, value protocol.Value) {
	if n.engine.BV.ShouldBroadcast(round, value) {
		n.env.Broadcast(protocol.Message{Kind: protocol.KindEst, Round: round, Value: value})
	}
}

func coordTimerName(round protocol.Round) string {
	return coordTimerPrefix + strconv.FormatUint(uint64(round), 10)
}

func auxTimerName(round protocol.Round) string {
	return auxTimerPrefix + strconv.FormatUint(uint64(round), 10)
}

func parseTimerName(prefix, name string) (protocol.Round, bool) {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return protocol.Round(v), true
}

func (n *Node) OnMessage(msg protocol.Message, sender protocol.NodeID) {
	switch msg.Kind {
	case protocol.KindEst:
		n.handleEst(msg.Round, msg.Value, sender)
	case protocol.KindCoordValue:
		n.handleCoordValue(msg.Round, msg.Value, sender)
	case protocol.KindAux:
		n.handleAux(msg.Round, msg.Values, sender)
	}
}

// handleEst is transition 1 (spec.md §4.7.1): ordinary BV-Broadcast echo
// amplification, plus, on this node's first delivery for round, arming
// COORD-TIMER and (if this node is the round's coordinator) broadcasting
// the delivered value as COORD_VALUE.
func (n *Node) handleEst(round protocol.Round, value protocol.Value, sender protocol.NodeID) {
	d := n.engine.BV.HandleEst(round, value, sender)
	if d.Amplify {
		n.env.Broadcast(protocol.Message{Kind: protocol.KindEst, Round: round, Value: value})
	}
	if d.First {
		n.timeout += n.timeoutStep
		n.env.SetTimer(coordTimerName(round), n.timeout)
		if n.isCoordinator(round) {
			n.env.Broadcast(protocol.Message{Kind: protocol.KindCoordValue, Round: round, Value: value})
		}
	}
}

func (n *Node) handleCoordValue(round protocol.Round, value protocol.Value, sender protocol.NodeID) {
	if sender != n.coordinator(round) {
		// Not from the round's designated coordinator: a faulty node
		// impersonating the coordinator cannot speed up termination.
		return
	}
	n.coordValues[round] = value
}

// handleAux is transition 3 (spec.md §4.7.3): record the vote, and once
// n-f distinct senders have been recorded for round, arm AUX-TIMER exactly
// once with the current timeout.
func (n *Node) handleAux(round protocol.Round, values []protocol.Value, sender protocol.NodeID) {
	count := n.engine.RecordAux(round, sender, values)
	if round != n.round || n.terminated(round) {
		return
	}
	quorum := n.n - n.f
	if count >= quorum && !n.auxTimerArmed[round] {
		n.auxTimerArmed[round] = true
		n.env.SetTimer(auxTimerName(round), n.timeout)
	}
}

func (n *Node) OnTimer(name string) {
	if round, ok := parseTimerName(coordTimerPrefix, name); ok {
		n.onCoordTimer(round)
		return
	}
	if round, ok := parseTimerName(auxTimerPrefix, name); ok {
		n.onAuxTimer(round)
		return
	}
}

// onCoordTimer is transition 2 (spec.md §4.7.2): compose this node's own
// AUX candidate — the coordinator's value if one was received and it lies
// in bin_values[round], otherwise the whole of bin_values[round] — and
// broadcast it once.
func (n *Node) onCoordTimer(round protocol.Round) {
	if round != n.round || n.terminated(round) {
		return
	}
	bv := n.engine.BV.BinValues(round)
	var candidate []protocol.Value
	if cv, ok := n.coordValues[round]; ok && bv.Contains(cv) {
		candidate = []protocol.Value{cv}
	} else {
		candidate = bv.List()
	}
	n.aux[round] = candidate
	n.env.Broadcast(protocol.Message{Kind: protocol.KindAux, Round: round, Values: candidate})
}

// onAuxTimer is transition 4 (spec.md §4.7.4): among all AUX messages
// recorded for round that satisfy the validity predicate, gather their
// value sets into checked_msgs in arrival order. Prefer this node's own
// candidate if it is among them; otherwise take the first one recorded;
// otherwise wait longer. Once a set is chosen, apply the MMR decision rule
// (§4.6) and advance the round.
func (n *Node) onAuxTimer(round protocol.Round) {
	if round != n.round || n.terminated(round) {
		return
	}

	var checkedMsgs [][]protocol.Value
	n.engine.IterateAux(round, func(_ protocol.NodeID, values []protocol.Value) bool {
		if n.engine.ValidateAux(round, values) {
			checkedMsgs = append(checkedMsgs, values)
		}
		return true
	})

	var values []protocol.Value
	switch {
	case containsValueSet(checkedMsgs, n.aux[round]):
		values = n.aux[round]
	case len(checkedMsgs) > 0:
		values = checkedMsgs[0]
	default:
		n.env.SetTimer(auxTimerName(round), n.timeoutStep)
		return
	}

	n.advance(round, values)
}

func (n *Node) advance(round protocol.Round, values []protocol.Value) {
	coin := bbc.Coin(round)
	var next protocol.Value
	if len(values) == 1 {
		w := values[0]
		if w == coin {
			if n.engine.Decide(round, w) {
				n.log.Debug("bbc-psync-decided", "round", uint64(round), "value", int(w))
				n.metrics.ObserveDecision()
				n.env.SendLocal(protocol.Message{Kind: protocol.KindResult, Round: round, Value: w})
			}
		}
		next = w
	} else {
		next = coin
	}

	n.est = next
	n.startRound(round + 1)
}

func valueSetEqual(a, b []protocol.Value) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[protocol.Value]bool, len(a))
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		if !seen[v] {
			return false
		}
	}
	return true
}

func containsValueSet(list [][]protocol.Value, target []protocol.Value) bool {
	if len(target) == 0 {
		return false
	}
	for _, v := range list {
		if valueSetEqual(v, target) {
			return true
		}
	}
	return false
}

// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bbc

import (
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kam3nskii/ConsensusProtocols/config"
	"github.com/kam3nskii/ConsensusProtocols/env"
	"github.com/kam3nskii/ConsensusProtocols/metrics"
	"github.com/kam3nskii/ConsensusProtocols/protocol"
)

// Node drives Engine for the plain asynchronous safe Binary Byzantine
// Consensus protocol: no coordinator, no timers, termination relies
// entirely on the round-parity common coin (spec.md §4.6).
type Node struct {
	id    protocol.NodeID
	n, f  int
	round protocol.Round

	engine  *Engine
	env     env.Environment
	log     log.Logger
	metrics *metrics.Set
}

// NewNode constructs an asynchronous MMR binary-consensus node. reg, if
// non-nil, receives this node's decisions-counter/round-gauge metric pair.
func NewNode(params config.Parameters, environment env.Environment, logger log.Logger, reg prometheus.Registerer) (*Node, error) {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	m, err := metrics.NewSet("bbc_"+string(params.Self), reg)
	if err != nil {
		return nil, err
	}
	return &Node{
		id:      params.Self,
		n:       params.N(),
		f:       params.F,
		engine:  NewEngine(params.N(), params.F),
		env:     environment,
		log:     logger.With("protocol", "bbc", "node", string(params.Self)),
		metrics: m,
	}, nil
}

func (n *Node) OnLocal(cmd protocol.LocalCommand) {
	if cmd.Kind != protocol.Init {
		return
	}
	n.round = 1
	n.bvBroadcast(n.round, cmd.Value)
}

func (n *Node) bvBroadcast(round protocol.Round, value protocol.Value) {
	if n.engine.BV.ShouldBroadcast(round, value) {
		n.env.Broadcast(protocol.Message{Kind: protocol.KindEst, Round: round, Value: value})
	}
}

func (n *Node) OnMessage(msg protocol.Message, sender protocol.NodeID) {
	switch msg.Kind {
	case protocol.KindEst:
		n.handleEst(msg.Round, msg.Value, sender)
	case protocol.KindAux:
		n.handleAux(msg.Round, msg.Values, sender)
	}
}

func (n *Node) handleEst(round protocol.Round, value protocol.Value, sender protocol.NodeID) {
	d := n.engine.BV.HandleEst(round, value, sender)
	if d.Amplify {
		n.env.Broadcast(protocol.Message{Kind: protocol.KindEst, Round: round, Value: value})
	}
	if d.Delivered {
		values := n.engine.BV.BinValues(round).List()
		n.env.Broadcast(protocol.Message{Kind: protocol.KindAux, Round: round, Values: values})
	}
}

// handleAux records the AUX and, if the just-received value set is itself
// valid against the accumulated senders_by_value tally (spec.md §4.6's aux
// validation predicate already embeds the n-f threshold), advances
// immediately — no separate quorum-of-senders pre-check is needed.
func (n *Node) handleAux(round protocol.Round, values []protocol.Value, sender protocol.NodeID) {
	n.engine.RecordAux(round, sender, values)
	if round != n.round {
		// Stale or future AUX: we only re-evaluate the round we are
		// currently waiting on, but the record above still benefits a
		// later re-check of this round should we somehow rewind to it.
		return
	}
	if n.engine.ValidateAux(round, values) {
		n.advance(round, values)
	}
}

func (n *Node) advance(round protocol.Round, values []protocol.Value) {
	coin := Coin(round)
	var next protocol.Value
	if len(values) == 1 {
		w := values[0]
		if w == coin {
			if n.engine.Decide(round, w) {
				n.log.Debug("bbc-decided", "round", uint64(round), "value", int(w))
				n.metrics.ObserveDecision()
				n.env.SendLocal(protocol.Message{Kind: protocol.KindResult, Round: round, Value: w})
			}
		}
		next = w
	} else {
		next = coin
	}

	n.round = round + 1
	n.metrics.SetRound(float64(n.round))
	n.bvBroadcast(n.round, next)
}

func (n *Node) OnTimer(string) {}

// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bvbroadcast

import (
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kam3nskii/ConsensusProtocols/config"
	"github.com/kam3nskii/ConsensusProtocols/env"
	"github.com/kam3nskii/ConsensusProtocols/metrics"
	"github.com/kam3nskii/ConsensusProtocols/protocol"
)

// round0 is the round BV-Broadcast's standalone Node operates in: a
// single-shot broadcast, as in original_source/BinaryValueBroadcast,
// generalized with Engine's round parameter fixed at the spec's pre-
// initialization value.
const round0 protocol.Round = 0

// Node is a standalone BV-Broadcast participant (spec.md §4.3, §6). Its
// Engine is what bbc, bbc/psync and dbft build on; Node exposes the
// component directly so it can be exercised and tested on its own.
type Node struct {
	id      protocol.NodeID
	peers   []protocol.NodeID
	engine  *Engine
	env     env.Environment
	log     log.Logger
	metrics *metrics.Set
}

// NewNode constructs a standalone BV-Broadcast node. reg, if non-nil,
// receives this node's decisions-counter/round-gauge metric pair under a
// namespace unique to this node.
func NewNode(params config.Parameters, environment env.Environment, logger log.Logger, reg prometheus.Registerer) (*Node, error) {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	m, err := metrics.NewSet("bvbroadcast_"+string(params.Self), reg)
	if err != nil {
		return nil, err
	}
	return &Node{
		id:      params.Self,
		peers:   params.Peers,
		engine:  NewEngine(params.F),
		env:     environment,
		log:     logger.With("protocol", "bv-broadcast", "node", string(params.Self)),
		metrics: m,
	}, nil
}

func (n *Node) OnLocal(cmd protocol.LocalCommand) {
	if cmd.Kind != protocol.Init {
		return
	}
	n.broadcast(cmd.Value)
}

func (n *Node) broadcast(value protocol.Value) {
	if !n.engine.ShouldBroadcast(round0, value) {
		return
	}
	n.env.Broadcast(protocol.Message{Kind: protocol.KindEst, Round: round0, Value: value})
}

func (n *Node) OnMessage(msg protocol.Message, sender protocol.NodeID) {
	if msg.Kind != protocol.KindEst {
		return
	}
	d := n.engine.HandleEst(round0, msg.Value, sender)
	if d.Amplify {
		n.env.Broadcast(protocol.Message{Kind: protocol.KindEst, Round: round0, Value: msg.Value})
	}
	if d.Delivered {
		n.log.Debug("bv-delivered", "value", int(msg.Value), "first", d.First)
		n.metrics.ObserveDecision()
		n.env.SendLocal(protocol.Message{Kind: protocol.KindResult, Round: round0, Value: msg.Value})
	}
}

func (n *Node) OnTimer(string) {}

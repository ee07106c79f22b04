// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package brb

import (
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kam3nskii/ConsensusProtocols/config"
	"github.com/kam3nskii/ConsensusProtocols/env"
	"github.com/kam3nskii/ConsensusProtocols/metrics"
	"github.com/kam3nskii/ConsensusProtocols/protocol"
)

// Node reliably broadcasts payloads originated by a single node, Origin.
// Construct one Node per origin you need to reliably broadcast from; dbft
// keeps one per participant.
type Node struct {
	id      protocol.NodeID
	origin  protocol.NodeID
	engine  *Engine
	env     env.Environment
	log     log.Logger
	metrics *metrics.Set

	// OnDeliver, if set, is invoked instead of the default SendLocal
	// RESULT when a payload is accepted — dbft uses this to feed BRB
	// deliveries into its proposal table instead of the application.
	OnDeliver func(payload string)
}

// NewNode constructs a BRB node that reliably broadcasts payloads
// originated by origin. reg, if non-nil, receives a decisions-counter
// metric namespaced by both this node and origin, since one node hosts one
// Node per origin and they must not collide in a shared registry.
func NewNode(params config.Parameters, origin protocol.NodeID, environment env.Environment, logger log.Logger, reg prometheus.Registerer) (*Node, error) {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	m, err := metrics.NewSet("brb_"+string(params.Self)+"_"+string(origin), reg)
	if err != nil {
		return nil, err
	}
	return &Node{
		id:      params.Self,
		origin:  origin,
		engine:  NewEngine(params.F),
		env:     environment,
		log:     logger.With("protocol", "brb", "node", string(params.Self), "origin", string(origin)),
		metrics: m,
	}, nil
}

// OnLocal starts reliable broadcast of cmd.Value from this node. Only the
// origin node should ever call this.
func (n *Node) OnLocal(cmd protocol.LocalCommand) {
	if cmd.Kind != protocol.Init || n.id != n.origin {
		return
	}
	n.broadcastInit(payloadOf(cmd.Value))
}

// Propose starts reliable broadcast of an arbitrary application payload
// (not just a binary value) from this node. Only the origin node should
// ever call this; dbft uses it directly instead of OnLocal's
// binary-value-only command shape.
func (n *Node) Propose(payload string) {
	if n.id != n.origin {
		return
	}
	n.broadcastInit(payload)
}

func (n *Node) broadcastInit(payload string) {
	n.env.Broadcast(protocol.Message{Kind: protocol.KindRBInit, Payload: payload, Origin: n.origin})
}

func payloadOf(v protocol.Value) string {
	if v == protocol.One {
		return "1"
	}
	return "0"
}

func (n *Node) OnMessage(msg protocol.Message, sender protocol.NodeID) {
	if msg.Origin != n.origin {
		return
	}
	var eff Effect
	switch msg.Kind {
	case protocol.KindRBInit:
		eff = n.engine.HandleInit(msg.Payload, sender)
	case protocol.KindRBEcho:
		eff = n.engine.HandleEcho(msg.Payload, sender)
	case protocol.KindRBReady:
		eff = n.engine.HandleReady(msg.Payload, sender)
	default:
		return
	}

	if eff.BroadcastEcho {
		n.env.Broadcast(protocol.Message{Kind: protocol.KindRBEcho, Payload: msg.Payload, Origin: n.origin})
	}
	if eff.BroadcastReady {
		n.env.Broadcast(protocol.Message{Kind: protocol.KindRBReady, Payload: msg.Payload, Origin: n.origin})
	}
	if eff.Deliver {
		n.log.Debug("brb-delivered", "origin", string(n.origin), "payload", msg.Payload)
		n.metrics.ObserveDecision()
		if n.OnDeliver != nil {
			n.OnDeliver(msg.Payload)
			return
		}
		n.env.SendLocal(protocol.Message{Kind: protocol.KindResult, Payload: msg.Payload, Origin: n.origin})
	}
}

func (n *Node) OnTimer(string) {}

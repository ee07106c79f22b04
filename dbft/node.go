// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dbft composes Byzantine Reliable Broadcast with n parallel binary
// consensus instances into multi-valued BFT agreement (spec.md §4.8): every
// node reliably broadcasts its own proposal, votes instance k of the binary
// agreement to 1 once it has delivered node k's proposal, and force-starts
// every instance it hasn't heard from as soon as the first instance decides
// 1 — guaranteeing termination even for origins whose broadcast a node
// never delivers. The final output pairs every instance that decided 1
// with its delivered payload, deferring origins whose broadcast is still
// in flight.
//
// Grounded on original_source/DBFT/main.py, generalized per SPEC_FULL.md §5
// from a single shared (value, sender)-keyed broadcast into one
// brb.Node per origin plus one bbc/psync.Node per instance.
package dbft

import (
	"strconv"
	"strings"
	"time"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kam3nskii/ConsensusProtocols/bbc/psync"
	"github.com/kam3nskii/ConsensusProtocols/brb"
	"github.com/kam3nskii/ConsensusProtocols/config"
	"github.com/kam3nskii/ConsensusProtocols/env"
	"github.com/kam3nskii/ConsensusProtocols/metrics"
	"github.com/kam3nskii/ConsensusProtocols/protocol"
)

// Node orchestrates one reliable broadcast per participant and one binary
// consensus instance per participant to reach multi-valued agreement on a
// subset of the proposals actually offered.
type Node struct {
	id    protocol.NodeID
	peers []protocol.NodeID
	n, f  int

	env     env.Environment
	log     log.Logger
	metrics *metrics.Set

	brbNodes map[protocol.NodeID]*brb.Node
	bcNodes  []*psync.Node

	started           []bool
	decided           []bool
	decidedValue      []protocol.Value
	delivered         []bool
	payloads          []string
	emitted           []bool
	alreadyDecidedOne bool
	finished          bool

	// OnDecide is invoked exactly once, when every binary instance has
	// decided and every instance that decided 1 has also had its
	// reliably-broadcast payload delivered. The result maps each such
	// origin to its agreed payload.
	OnDecide func(result map[protocol.NodeID]string)
}

// NewNode constructs a multi-valued BFT node. reg, if non-nil, receives
// this node's own decisions-counter metric; its n internal brb.Node and
// bbc/psync.Node sub-instances are always constructed with a nil
// registerer, since registering n copies of their metrics under one
// registry would either collide or require a namespace per sub-instance
// nobody consumes.
func NewNode(params config.Parameters, environment env.Environment, logger log.Logger, reg prometheus.Registerer) (*Node, error) {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	logger = logger.With("protocol", "dbft", "node", string(params.Self))

	m, err := metrics.NewSet("dbft_"+string(params.Self), reg)
	if err != nil {
		return nil, err
	}

	node := &Node{
		id:           params.Self,
		peers:        append([]protocol.NodeID(nil), params.Peers...),
		n:            params.N(),
		f:            params.F,
		env:          environment,
		log:          logger,
		metrics:      m,
		brbNodes:     make(map[protocol.NodeID]*brb.Node, params.N()),
		bcNodes:      make([]*psync.Node, params.N()),
		started:      make([]bool, params.N()),
		decided:      make([]bool, params.N()),
		decidedValue: make([]protocol.Value, params.N()),
		delivered:    make([]bool, params.N()),
		payloads:     make([]string, params.N()),
		emitted:      make([]bool, params.N()),
	}

	for _, origin := range node.peers {
		origin := origin
		bn, err := brb.NewNode(params, origin, environment, logger, nil)
		if err != nil {
			return nil, err
		}
		bn.OnDeliver = func(payload string) { node.handleDelivery(origin, payload) }
		node.brbNodes[origin] = bn
	}
	for k := range node.peers {
		ie := &instanceEnv{inner: environment, instance: k, onResult: node.handleInstanceResult}
		bc, err := psync.NewNode(params, ie, logger, nil)
		if err != nil {
			return nil, err
		}
		node.bcNodes[k] = bc
	}

	return node, nil
}

func (n *Node) indexOf(id protocol.NodeID) int {
	for i, p := range n.peers {
		if p == id {
			return i
		}
	}
	return -1
}

// Propose reliably broadcasts payload as this node's input to agreement.
func (n *Node) Propose(payload string) {
	n.brbNodes[n.id].Propose(payload)
}

// OnLocal bridges the binary Handler contract onto Propose, for callers
// that only have a binary LocalCommand to inject (e.g. simtest scenarios
// shared with the binary-only protocols). Propose should be preferred for
// arbitrary application payloads.
func (n *Node) OnLocal(cmd protocol.LocalCommand) {
	if cmd.Kind != protocol.Init {
		return
	}
	if cmd.Value == protocol.One {
		n.Propose("1")
		return
	}
	n.Propose("0")
}

func (n *Node) OnMessage(msg protocol.Message, sender protocol.NodeID) {
	switch msg.Kind {
	case protocol.KindRBInit, protocol.KindRBEcho, protocol.KindRBReady:
		if bn, ok := n.brbNodes[msg.Origin]; ok {
			bn.OnMessage(msg, sender)
		}
	case protocol.KindEst, protocol.KindCoordValue, protocol.KindAux:
		if msg.Instance >= 0 && msg.Instance < len(n.bcNodes) {
			n.bcNodes[msg.Instance].OnMessage(msg, sender)
		}
	}
}

func (n *Node) OnTimer(name string) {
	instance, inner, ok := parseInstanceTimerName(name)
	if !ok || instance < 0 || instance >= len(n.bcNodes) {
		return
	}
	n.bcNodes[instance].OnTimer(inner)
}

func (n *Node) handleDelivery(origin protocol.NodeID, payload string) {
	k := n.indexOf(origin)
	if k < 0 {
		return
	}
	n.delivered[k] = true
	n.payloads[k] = payload

	if !n.started[k] {
		n.started[k] = true
		n.bcNodes[k].OnLocal(protocol.LocalCommand{Kind: protocol.Init, Value: protocol.One})
	}
	n.maybeEmit(k)
	n.maybeComplete()
}

func (n *Node) handleInstanceResult(msg protocol.Message) {
	k := msg.Instance
	if k < 0 || k >= len(n.bcNodes) || n.decided[k] {
		return
	}
	n.decided[k] = true
	n.decidedValue[k] = msg.Value
	n.metrics.ObserveDecision()
	if msg.Value == protocol.One && !n.alreadyDecidedOne {
		n.alreadyDecidedOne = true
		n.forceStartRemaining()
	}
	n.maybeEmit(k)
	n.maybeComplete()
}

// forceStartRemaining votes 0 into every instance this node hasn't yet
// started. It fires once, the moment the first binary instance decides 1:
// spec.md §4.8's already_decided_one one-shot flag, not a quorum count —
// a proposer whose broadcast never gets BRB-delivered here must not be
// able to stall every other instance's termination.
func (n *Node) forceStartRemaining() {
	for k := range n.bcNodes {
		if n.started[k] {
			continue
		}
		n.started[k] = true
		n.bcNodes[k].OnLocal(protocol.LocalCommand{Kind: protocol.Init, Value: protocol.Zero})
	}
}

func (n *Node) maybeEmit(k int) {
	if n.emitted[k] || !n.decided[k] || n.decidedValue[k] != protocol.One || !n.delivered[k] {
		return
	}
	n.emitted[k] = true
}

func (n *Node) maybeComplete() {
	if n.finished {
		return
	}
	for k := range n.bcNodes {
		if !n.decided[k] {
			return
		}
		if n.decidedValue[k] == protocol.One && !n.delivered[k] {
			// Deferred: instance k decided 1 but its broadcast hasn't
			// delivered here yet. We'll be called again from
			// handleDelivery once it does.
			return
		}
	}
	n.finished = true

	result := make(map[protocol.NodeID]string)
	for k, peer := range n.peers {
		if n.decidedValue[k] == protocol.One {
			result[peer] = n.payloads[k]
		}
	}
	n.log.Debug("dbft-decided", "accepted", len(result))
	if n.OnDecide != nil {
		n.OnDecide(result)
	}
}

// instanceEnv tags outgoing traffic for one binary consensus instance with
// its instance number and namespaces its timers, then routes its would-be
// local delivery back into the owning dbft.Node instead of the network's
// result sink.
type instanceEnv struct {
	inner    env.Environment
	instance int
	onResult func(msg protocol.Message)
}

func (e *instanceEnv) Send(msg protocol.Message, peer protocol.NodeID) {
	msg.Instance = e.instance
	e.inner.Send(msg, peer)
}

func (e *instanceEnv) Broadcast(msg protocol.Message) {
	msg.Instance = e.instance
	e.inner.Broadcast(msg)
}

func (e *instanceEnv) SendLocal(msg protocol.Message) {
	msg.Instance = e.instance
	e.onResult(msg)
}

func (e *instanceEnv) SetTimer(name string, delay time.Duration) {
	e.inner.SetTimer(instanceTimerName(e.instance, name), delay)
}

func instanceTimerName(instance int, name string) string {
	return strconv.Itoa(instance) + ":" + name
}

func parseInstanceTimerName(name string) (instance int, inner string, ok bool) {
	prefix, rest, found := strings.Cut(name, ":")
	if !found {
		return 0, "", false
	}
	idx, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, "", false
	}
	return idx, rest, true
}

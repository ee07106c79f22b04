// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package benor implements Ben-Or randomized binary consensus (spec.md
// §4.5): a two-phase VOTE/PROPOSE round in which a node that sees no
// strict majority flips a coin seeded deterministically from (seed, node
// id) and tries again, terminating almost surely.
//
// Grounded on original_source/Ben-Or/main.py, with the quorum-constant fix
// mandated by spec.md §9: quorum n-f (not n-f+1), decision threshold
// > n/2+f, strong-decide threshold > 3f.
package benor

import (
	"hash/fnv"
	"math/rand"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kam3nskii/ConsensusProtocols/config"
	"github.com/kam3nskii/ConsensusProtocols/env"
	"github.com/kam3nskii/ConsensusProtocols/metrics"
	"github.com/kam3nskii/ConsensusProtocols/protocol"
	"github.com/kam3nskii/ConsensusProtocols/utils/bag"
)

// Node is one Ben-Or participant.
type Node struct {
	id    protocol.NodeID
	peers []protocol.NodeID
	n, f  int
	env   env.Environment
	log   log.Logger
	rng   *rand.Rand

	metrics *metrics.Set

	pref  protocol.Value
	round protocol.Round

	votes        map[protocol.Round]map[protocol.NodeID]protocol.Value
	proposed     map[protocol.Round]bool
	proposes     map[protocol.Round]map[protocol.NodeID]protocol.Value
	advanced     map[protocol.Round]bool
	decided      bool
	decidedValue protocol.Value
}

// NewNode constructs a Ben-Or node. Parameters.Seed combines with a hash
// of the node's own id to seed its private coin, mirroring
// original_source/Ben-Or/main.py's random.seed(seed + int(node_id)) —
// generalized to non-numeric node ids via an FNV hash. reg, if non-nil,
// receives this node's decisions-counter/round-gauge metric pair.
func NewNode(params config.Parameters, environment env.Environment, logger log.Logger, reg prometheus.Registerer) (*Node, error) {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	m, err := metrics.NewSet("benor_"+string(params.Self), reg)
	if err != nil {
		return nil, err
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(params.Self))
	seed := params.Seed + int64(h.Sum64())

	return &Node{
		id:       params.Self,
		peers:    params.Peers,
		n:        params.N(),
		f:        params.F,
		env:      environment,
		log:      logger.With("protocol", "ben-or", "node", string(params.Self)),
		rng:      rand.New(rand.NewSource(seed)),
		metrics:  m,
		votes:    make(map[protocol.Round]map[protocol.NodeID]protocol.Value),
		proposed: make(map[protocol.Round]bool),
		proposes: make(map[protocol.Round]map[protocol.NodeID]protocol.Value),
		advanced: make(map[protocol.Round]bool),
	}, nil
}

// quorumSize is the canonical Ben-Or quorum, n-f (spec.md §9).
func (n *Node) quorumSize() int { return n.n - n.f }

func (n *Node) OnLocal(cmd protocol.LocalCommand) {
	if cmd.Kind != protocol.Init {
		return
	}
	n.pref = cmd.Value
	n.round = 0
	n.metrics.SetRound(float64(n.round))
	n.broadcastVote(n.round, n.pref)
}

func (n *Node) broadcastVote(round protocol.Round, value protocol.Value) {
	n.env.Broadcast(protocol.Message{Kind: protocol.KindVote, Round: round, Value: value})
}

func (n *Node) broadcastPropose(round protocol.Round, value protocol.Value) {
	n.env.Broadcast(protocol.Message{Kind: protocol.KindPropose, Round: round, Value: value})
}

func (n *Node) OnMessage(msg protocol.Message, sender protocol.NodeID) {
	switch msg.Kind {
	case protocol.KindVote:
		n.handleVote(msg.Round, msg.Value, sender)
	case protocol.KindPropose:
		n.handlePropose(msg.Round, msg.Value, sender)
	}
}

// tally builds a Bag of the non-abstaining values recorded in byRound, the
// same multiset shape original_source's appendValue/BV_ReceiveMessage
// helpers reduce to before a quorum check.
func tally(byRound map[protocol.NodeID]protocol.Value) bag.Bag[protocol.Value] {
	b := bag.New[protocol.Value]()
	for _, v := range byRound {
		if v == protocol.Zero || v == protocol.One {
			b.Add(v)
		}
	}
	return b
}

func (n *Node) handleVote(round protocol.Round, value protocol.Value, sender protocol.NodeID) {
	byRound, ok := n.votes[round]
	if !ok {
		byRound = make(map[protocol.NodeID]protocol.Value)
		n.votes[round] = byRound
	}
	byRound[sender] = value

	if n.proposed[round] || len(byRound) < n.quorumSize() {
		return
	}
	n.proposed[round] = true

	b := tally(byRound)
	proposal := protocol.Doubt
	majority := n.n/2 + n.f
	for _, v := range []protocol.Value{protocol.Zero, protocol.One} {
		if b.Count(v) > majority {
			proposal = v
			break
		}
	}
	n.broadcastPropose(round, proposal)
}

func (n *Node) handlePropose(round protocol.Round, value protocol.Value, sender protocol.NodeID) {
	byRound, ok := n.proposes[round]
	if !ok {
		byRound = make(map[protocol.NodeID]protocol.Value)
		n.proposes[round] = byRound
	}
	byRound[sender] = value

	if n.advanced[round] || len(byRound) < n.quorumSize() {
		return
	}
	n.advanced[round] = true

	b := tally(byRound)
	haveDoubts := true
	for _, v := range []protocol.Value{protocol.Zero, protocol.One} {
		if b.Count(v) >= n.f+1 {
			haveDoubts = false
			n.pref = v
			if b.Count(v) > 3*n.f {
				n.decide(v)
				return
			}
			break
		}
	}
	if haveDoubts {
		if n.rng.Intn(2) == 0 {
			n.pref = protocol.Zero
		} else {
			n.pref = protocol.One
		}
	}

	n.round++
	n.metrics.SetRound(float64(n.round))
	n.broadcastVote(n.round, n.pref)
}

func (n *Node) decide(value protocol.Value) {
	if n.decided {
		return
	}
	n.decided = true
	n.decidedValue = value
	n.log.Debug("ben-or-decided", "value", int(value))
	n.metrics.ObserveDecision()
	n.env.SendLocal(protocol.Message{Kind: protocol.KindResult, Value: value})
}

func (n *Node) OnTimer(string) {}

// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package brb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kam3nskii/ConsensusProtocols/config"
	"github.com/kam3nskii/ConsensusProtocols/env"
	"github.com/kam3nskii/ConsensusProtocols/protocol"
	"github.com/kam3nskii/ConsensusProtocols/simtest"
)

func fourNodeParams(self protocol.NodeID) config.Parameters {
	p, err := config.NewBuilder(self, []protocol.NodeID{"n0", "n1", "n2", "n3"}, 1).Build()
	if err != nil {
		panic(err)
	}
	return p
}

func newNetwork(t *testing.T, peers []protocol.NodeID, origin protocol.NodeID) (*env.Network, map[protocol.NodeID]*Node) {
	net := env.NewNetwork(peers)
	lazies := make(map[protocol.NodeID]*simtest.LazyHandler, len(peers))
	for _, p := range peers {
		lazies[p] = &simtest.LazyHandler{}
	}
	nodes := make(map[protocol.NodeID]*Node, len(peers))
	for _, p := range peers {
		e := net.Register(p, lazies[p])
		n, err := NewNode(fourNodeParams(p), origin, e, nil, nil)
		require.NoError(t, err)
		nodes[p] = n
		lazies[p].Handler = n
	}
	return net, nodes
}

func TestNodeDeliversOriginsPayloadToEveryCorrectNode(t *testing.T) {
	require := require.New(t)

	peers := []protocol.NodeID{"n0", "n1", "n2", "n3"}
	net, nodes := newNetwork(t, peers, "n0")

	nodes["n0"].Propose("hello")
	net.Run(10_000)

	for _, p := range peers {
		results := net.Results[p]
		require.Len(results, 1)
		require.Equal("hello", results[0].Payload)
	}
}

func TestNodeIgnoresMessagesForAForeignOrigin(t *testing.T) {
	require := require.New(t)

	peers := []protocol.NodeID{"n0", "n1", "n2", "n3"}
	net, nodes := newNetwork(t, peers, "n0")

	// A message claiming a different origin must be dropped before it can
	// influence this instance's phase, even though the network will
	// faithfully deliver it.
	net.InjectLocal("n1", protocol.LocalCommand{}) // no-op, n1 isn't the origin
	nodes["n1"].OnMessage(protocol.Message{Kind: protocol.KindRBInit, Payload: "x", Origin: "n2"}, "n2")
	net.Run(1_000)

	require.Empty(net.Results["n1"])
}

func TestNodeDeliversAtMostOnePayloadUnderEquivocation(t *testing.T) {
	require := require.New(t)

	// An equivocating origin n0 sends INIT("a") to n1 and INIT("b") to n2
	// and n3 directly (bypassing its own Propose, which would only ever
	// send one value) to model a Byzantine broadcaster.
	peers := []protocol.NodeID{"n0", "n1", "n2", "n3"}
	net, nodes := newNetwork(t, peers, "n0")

	nodes["n1"].OnMessage(protocol.Message{Kind: protocol.KindRBInit, Payload: "a", Origin: "n0"}, "n0")
	nodes["n2"].OnMessage(protocol.Message{Kind: protocol.KindRBInit, Payload: "b", Origin: "n0"}, "n0")
	nodes["n3"].OnMessage(protocol.Message{Kind: protocol.KindRBInit, Payload: "b", Origin: "n0"}, "n0")
	net.Run(10_000)

	delivered := map[string]bool{}
	for _, p := range peers {
		for _, r := range net.Results[p] {
			delivered[r.Payload] = true
		}
	}
	require.LessOrEqual(len(delivered), 1, "Bracha BRB must not let two distinct payloads both reach ACCEPT")
}

// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package psync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kam3nskii/ConsensusProtocols/config"
	"github.com/kam3nskii/ConsensusProtocols/env"
	"github.com/kam3nskii/ConsensusProtocols/protocol"
	"github.com/kam3nskii/ConsensusProtocols/simtest"
)

func fourNodeParams(self protocol.NodeID) config.Parameters {
	p, err := config.NewBuilder(self, []protocol.NodeID{"n0", "n1", "n2", "n3"}, 1).
		WithInitialAuxTimeout(10 * time.Millisecond).
		WithTimeoutStep(5 * time.Millisecond).
		Build()
	if err != nil {
		panic(err)
	}
	return p
}

func newNetwork(t *testing.T) (*env.Network, map[protocol.NodeID]*Node, []protocol.NodeID) {
	peers := []protocol.NodeID{"n0", "n1", "n2", "n3"}
	net := env.NewNetwork(peers)
	lazies := make(map[protocol.NodeID]*simtest.LazyHandler, len(peers))
	for _, p := range peers {
		lazies[p] = &simtest.LazyHandler{}
	}
	nodes := make(map[protocol.NodeID]*Node, len(peers))
	for _, p := range peers {
		e := net.Register(p, lazies[p])
		n, err := NewNode(fourNodeParams(p), e, nil, nil)
		require.NoError(t, err)
		nodes[p] = n
		lazies[p].Handler = n
	}
	return net, nodes, peers
}

func TestCoordinatorRotatesOverPeerOrder(t *testing.T) {
	require := require.New(t)

	_, nodes, _ := newNetwork(t)
	n := nodes["n0"]
	require.Equal(protocol.NodeID("n0"), n.coordinator(1))
	require.Equal(protocol.NodeID("n1"), n.coordinator(2))
	require.Equal(protocol.NodeID("n2"), n.coordinator(3))
	require.Equal(protocol.NodeID("n3"), n.coordinator(4))
	require.Equal(protocol.NodeID("n0"), n.coordinator(5))
}

func TestNodeDecidesUnanimousInputViaCorrectCoordinator(t *testing.T) {
	require := require.New(t)

	net, _, peers := newNetwork(t)
	for _, p := range peers {
		net.InjectLocal(p, protocol.LocalCommand{Kind: protocol.Init, Value: protocol.One})
	}
	net.Run(10_000)

	for _, p := range peers {
		results := net.Results[p]
		require.Len(results, 1)
		require.Equal(protocol.One, results[0].Value)
	}
}

func TestNodeTerminatesWithCoordinatorCrashedForOneRound(t *testing.T) {
	require := require.New(t)

	net, nodes, peers := newNetwork(t)
	// Partition away round 1's coordinator (n0) entirely, simulating a
	// crash: the other three must still reach a decision once their
	// AUX-TIMER fires and the fallback common coin takes over.
	for _, p := range peers {
		if p == "n0" {
			continue
		}
		net.Partition("n0", p)
	}

	for _, p := range []protocol.NodeID{"n1", "n2", "n3"} {
		net.InjectLocal(p, protocol.LocalCommand{Kind: protocol.Init, Value: protocol.One})
	}
	net.Run(50_000)

	for _, p := range []protocol.NodeID{"n1", "n2", "n3"} {
		require.NotEmpty(net.Results[p], "node %s must still decide despite the crashed coordinator", p)
	}
	_ = nodes
}

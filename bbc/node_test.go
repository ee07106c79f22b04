// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bbc

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

func TestNodeDecidesUnanimousInput(t *testing.T) {
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

func TestNodeAgreesUnderOneSilentNode(t *testing.T) {
	require := require.New(t)

	net, _, peers := newNetwork(t)
	// n3 never receives a local INIT: it is silent but correct, and must
	// not prevent the other n-f=3 nodes from deciding.
	for _, p := range []protocol.NodeID{"n0", "n1", "n2"} {
		net.InjectLocal(p, protocol.LocalCommand{Kind: protocol.Init, Value: protocol.One})
	}
	net.Run(20_000)

	for _, p := range []protocol.NodeID{"n0", "n1", "n2"} {
		results := net.Results[p]
		require.NotEmpty(results, "node %s must still decide", p)
		require.Equal(protocol.One, results[0].Value)
	}
}

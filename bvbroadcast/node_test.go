// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bvbroadcast

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

func TestNodeDeliversUnanimousValue(t *testing.T) {
	require := require.New(t)

	peers := []protocol.NodeID{"n0", "n1", "n2", "n3"}
	net := env.NewNetwork(peers)

	lazies := make(map[protocol.NodeID]*simtest.LazyHandler, len(peers))
	for _, p := range peers {
		lazies[p] = &simtest.LazyHandler{}
	}
	for _, p := range peers {
		e := net.Register(p, lazies[p])
		n, err := NewNode(fourNodeParams(p), e, nil, nil)
		require.NoError(err)
		lazies[p].Handler = n
	}

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

func TestNodeDeliversBothValuesOnSplitInput(t *testing.T) {
	require := require.New(t)

	peers := []protocol.NodeID{"n0", "n1", "n2", "n3"}
	net := env.NewNetwork(peers)

	lazies := make(map[protocol.NodeID]*simtest.LazyHandler, len(peers))
	for _, p := range peers {
		lazies[p] = &simtest.LazyHandler{}
	}
	for _, p := range peers {
		e := net.Register(p, lazies[p])
		n, err := NewNode(fourNodeParams(p), e, nil, nil)
		require.NoError(err)
		lazies[p].Handler = n
	}

	net.InjectLocal("n0", protocol.LocalCommand{Kind: protocol.Init, Value: protocol.Zero})
	net.InjectLocal("n1", protocol.LocalCommand{Kind: protocol.Init, Value: protocol.Zero})
	net.InjectLocal("n2", protocol.LocalCommand{Kind: protocol.Init, Value: protocol.One})
	net.InjectLocal("n3", protocol.LocalCommand{Kind: protocol.Init, Value: protocol.One})
	net.Run(10_000)

	for _, p := range peers {
		values := map[protocol.Value]bool{}
		for _, r := range net.Results[p] {
			values[r.Value] = true
		}
		require.NotEmpty(values, "every correct node delivers at least one value")
	}
}

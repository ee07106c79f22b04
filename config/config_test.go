// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kam3nskii/ConsensusProtocols/protocol"
)

func TestValidateAcceptsAMinimalBFTQuorum(t *testing.T) {
	require := require.New(t)

	p, err := NewBuilder("n0", []protocol.NodeID{"n0", "n1", "n2", "n3"}, 1).Build()
	require.NoError(err)
	require.Equal(4, p.N())
}

func TestValidateRejectsTooFewNodesForF(t *testing.T) {
	require := require.New(t)

	_, err := NewBuilder("n0", []protocol.NodeID{"n0", "n1", "n2"}, 1).Build()
	require.ErrorIs(err, ErrTooFewNodes)
}

func TestValidateRejectsNegativeF(t *testing.T) {
	require := require.New(t)

	_, err := NewBuilder("n0", []protocol.NodeID{"n0", "n1", "n2", "n3"}, -1).Build()
	require.ErrorIs(err, ErrNegativeFaults)
}

func TestValidateRejectsEmptyPeers(t *testing.T) {
	require := require.New(t)

	_, err := NewBuilder("n0", nil, 0).Build()
	require.ErrorIs(err, ErrNoPeers)
}

func TestValidateRejectsDuplicatePeers(t *testing.T) {
	require := require.New(t)

	_, err := NewBuilder("n0", []protocol.NodeID{"n0", "n1", "n1", "n2"}, 0).Build()
	require.ErrorIs(err, ErrDuplicatePeer)
}

func TestValidateRejectsSelfNotInPeers(t *testing.T) {
	require := require.New(t)

	_, err := NewBuilder("n9", []protocol.NodeID{"n0", "n1", "n2", "n3"}, 1).Build()
	require.ErrorIs(err, ErrSelfNotInPeers)
}

func TestBuilderFluentOverrides(t *testing.T) {
	require := require.New(t)

	p, err := NewBuilder("n0", []protocol.NodeID{"n0", "n1", "n2", "n3"}, 1).
		WithSeed(7).
		Build()
	require.NoError(err)
	require.Equal(int64(7), p.Seed)
}

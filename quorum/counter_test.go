// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package quorum

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kam3nskii/ConsensusProtocols/protocol"
)

func TestCounterAddIsSenderDeduplicating(t *testing.T) {
	require := require.New(t)

	c := NewCounter[protocol.Value]()
	require.Equal(1, c.Add(1, protocol.One, "a"))
	require.Equal(1, c.Add(1, protocol.One, "a"), "replaying the same sender must not inflate the count")
	require.Equal(2, c.Add(1, protocol.One, "b"))
	require.Equal(2, c.Count(1, protocol.One))
}

func TestCounterRoundsAndValuesAreIndependent(t *testing.T) {
	require := require.New(t)

	c := NewCounter[protocol.Value]()
	c.Add(1, protocol.Zero, "a")
	c.Add(1, protocol.One, "b")
	c.Add(2, protocol.One, "a")

	require.Equal(1, c.Count(1, protocol.Zero))
	require.Equal(1, c.Count(1, protocol.One))
	require.Equal(0, c.Count(2, protocol.Zero))
	require.Equal(1, c.Count(2, protocol.One))

	require.ElementsMatch([]protocol.Value{protocol.Zero, protocol.One}, c.Values(1))
	require.ElementsMatch([]protocol.Value{protocol.One}, c.Values(2))
}

func TestCounterSendersUnknownRoundOrValue(t *testing.T) {
	require := require.New(t)

	c := NewCounter[protocol.Value]()
	require.Equal(0, c.Count(9, protocol.Zero))
	require.Nil(c.Senders(9, protocol.Zero))
	require.Nil(c.Values(9))
}

func TestCounterSendersReflectsDistinctSenders(t *testing.T) {
	require := require.New(t)

	c := NewCounter[protocol.Value]()
	c.Add(1, protocol.One, "a")
	c.Add(1, protocol.One, "b")
	c.Add(1, protocol.One, "a")

	senders := c.Senders(1, protocol.One)
	require.Equal(2, senders.Len())
	require.True(senders.Contains("a"))
	require.True(senders.Contains("b"))
}

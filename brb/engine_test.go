// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package brb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// n=4, f=1: ECHO needs 2f+1=3 both at EST and AUX-analogous thresholds,
// READY needs f+1=2 to relay early or 2f+1=3 to accept.

func TestEngineInitTriggersEcho(t *testing.T) {
	require := require.New(t)

	e := NewEngine(1)
	eff := e.HandleInit("a", "origin")
	require.True(eff.BroadcastEcho)
	require.Equal(PhaseReady, e.phaseOf("a"))

	eff = e.HandleInit("a", "origin")
	require.False(eff.BroadcastEcho, "a repeated INIT must not re-trigger the transition")
}

func TestEngineEchoQuorumTriggersReady(t *testing.T) {
	require := require.New(t)

	e := NewEngine(1)
	e.phase["a"] = PhaseReady

	var eff Effect
	for _, s := range []string{"n0", "n1", "n2"} {
		eff = e.HandleEcho("a", s)
	}
	require.True(eff.BroadcastReady)
	require.Equal(PhaseAccept, e.phaseOf("a"))
}

func TestEngineReadyQuorumDelivers(t *testing.T) {
	require := require.New(t)

	e := NewEngine(1)
	e.phase["a"] = PhaseAccept

	var eff Effect
	for _, s := range []string{"n0", "n1", "n2"} {
		eff = e.HandleReady("a", s)
	}
	require.True(eff.Deliver)
	require.Equal(PhaseDone, e.phaseOf("a"))
}

func TestEngineReadyEarlyRelayAtFPlusOne(t *testing.T) {
	require := require.New(t)

	e := NewEngine(1)
	e.phase["a"] = PhaseEcho

	eff := e.HandleReady("a", "n0")
	require.False(eff.BroadcastEcho)

	eff = e.HandleReady("a", "n1")
	require.True(eff.BroadcastEcho, "f+1=2 READYs while still in echo phase relay early")
	require.Equal(PhaseReady, e.phaseOf("a"))
}

func TestEngineTwoDistinctPayloadsAreIndependent(t *testing.T) {
	require := require.New(t)

	e := NewEngine(1)
	e.HandleInit("a", "origin")
	require.Equal(PhaseEcho, e.phaseOf("b"), "an untouched payload starts at PhaseEcho")
}

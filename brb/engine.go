// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package brb implements Bracha's Byzantine Reliable Broadcast (spec.md
// §4.4): ECHO/READY amplification over a payload from a single origin,
// terminating in a local ACCEPT delivered to every correct node once one
// correct node accepts (totality, spec.md §8 property 4).
//
// One Engine reliably broadcasts payloads from exactly one origin; dBFT
// (package dbft) runs one Engine per origin to reliably broadcast n
// concurrent proposals, generalizing original_source/DBFT's single shared
// (value, sender)-keyed map into one instance per sender.
package brb

import (
	"github.com/kam3nskii/ConsensusProtocols/protocol"
	"github.com/kam3nskii/ConsensusProtocols/quorum"
)

// Phase is a payload's reliable-broadcast phase. Phases only advance;
// re-entry from a message that would otherwise repeat a transition is a
// no-op (spec.md §4.4 "phase monotonicity").
type Phase int

const (
	PhaseEcho Phase = iota
	PhaseReady
	PhaseAccept
	PhaseDone
)

// round0 is the counter namespace BRB uses; a single Engine only ever
// reliably broadcasts payloads from one origin, so no real round
// structure is needed and quorum.Counter's round dimension is unused.
const round0 protocol.Round = 0

// Engine holds the INIT/ECHO/READY tallies and phase for every payload
// value this origin has (or might) reliably broadcast.
type Engine struct {
	f int

	initC  *quorum.Counter[string]
	echoC  *quorum.Counter[string]
	readyC *quorum.Counter[string]
	phase  map[string]Phase
}

// NewEngine returns an empty BRB engine for a single origin.
func NewEngine(f int) *Engine {
	return &Engine{
		f:      f,
		initC:  quorum.NewCounter[string](),
		echoC:  quorum.NewCounter[string](),
		readyC: quorum.NewCounter[string](),
		phase:  make(map[string]Phase),
	}
}

func (e *Engine) phaseOf(payload string) Phase {
	p, ok := e.phase[payload]
	if !ok {
		return PhaseEcho
	}
	return p
}

// Effect describes what an Engine transition asks the caller to do.
type Effect struct {
	BroadcastEcho  bool
	BroadcastReady bool
	Deliver        bool
}

// HandleInit processes a received RB_INIT for payload from sender.
func (e *Engine) HandleInit(payload string, sender protocol.NodeID) Effect {
	count := e.initC.Add(round0, payload, sender)
	var eff Effect
	if e.phaseOf(payload) == PhaseEcho && count >= 1 {
		e.phase[payload] = PhaseReady
		eff.BroadcastEcho = true
	}
	return eff
}

// HandleEcho processes a received RB_ECHO for payload from sender.
func (e *Engine) HandleEcho(payload string, sender protocol.NodeID) Effect {
	count := e.echoC.Add(round0, payload, sender)
	var eff Effect
	switch e.phaseOf(payload) {
	case PhaseEcho:
		if count >= 2*e.f+1 {
			e.phase[payload] = PhaseReady
			eff.BroadcastEcho = true
		}
	case PhaseReady:
		if count >= 2*e.f+1 {
			e.phase[payload] = PhaseAccept
			eff.BroadcastReady = true
		}
	}
	return eff
}

// HandleReady processes a received RB_READY for payload from sender.
func (e *Engine) HandleReady(payload string, sender protocol.NodeID) Effect {
	count := e.readyC.Add(round0, payload, sender)
	var eff Effect
	switch e.phaseOf(payload) {
	case PhaseEcho:
		if count >= e.f+1 {
			e.phase[payload] = PhaseReady
			eff.BroadcastEcho = true
		}
	case PhaseReady:
		if count >= e.f+1 {
			e.phase[payload] = PhaseAccept
			eff.BroadcastReady = true
		}
	case PhaseAccept:
		if count >= 2*e.f+1 {
			e.phase[payload] = PhaseDone
			eff.Deliver = true
		}
	}
	return eff
}

// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the parameters every protocol in this repository is
// constructed with, following the teacher repo's Config/Builder/Validate
// shape (see _examples/luxfi-consensus/config).
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kam3nskii/ConsensusProtocols/protocol"
)

var (
	ErrTooFewNodes    = errors.New("config: n must be at least 3f+1")
	ErrNegativeFaults = errors.New("config: f must be non-negative")
	ErrNoPeers        = errors.New("config: peers must not be empty")
	ErrDuplicatePeer  = errors.New("config: peers must not contain duplicates")
	ErrSelfNotInPeers = errors.New("config: self id must be one of peers")
)

// Parameters holds the Byzantine-fault-tolerance parameters every protocol
// node is constructed with.
type Parameters struct {
	// Self is this node's identity.
	Self protocol.NodeID
	// Peers is the ordered, fixed set of all n participants (including
	// Self). Coordinator selection in the partial-synchrony protocols
	// indexes into this order (spec.md §4.7).
	Peers []protocol.NodeID
	// F is the Byzantine fault bound. Requires len(Peers) >= 3F+1.
	F int
	// Seed seeds Ben-Or's deterministic per-node coin. The other
	// protocols, including the partial-synchrony BBC (whose coin is the
	// round parity), ignore it.
	Seed int64

	// InitialAuxTimeout is the partial-synchrony BBC's starting timeout
	// length (spec.md §4.7 calls the field "timeout", initial value 1).
	InitialAuxTimeout time.Duration
	// TimeoutStep is added to the timeout every round a node makes its
	// first BV-delivery, lengthening the coordinator/AUX timers.
	TimeoutStep time.Duration
}

// N returns the total participant count.
func (p Parameters) N() int {
	return len(p.Peers)
}

// Validate checks the Byzantine-fault-tolerance invariant n >= 3f+1 and
// that the peer list is well-formed.
func (p Parameters) Validate() error {
	if p.F < 0 {
		return ErrNegativeFaults
	}
	if len(p.Peers) == 0 {
		return ErrNoPeers
	}
	seen := make(map[protocol.NodeID]struct{}, len(p.Peers))
	selfPresent := false
	for _, peer := range p.Peers {
		if _, dup := seen[peer]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicatePeer, peer)
		}
		seen[peer] = struct{}{}
		if peer == p.Self {
			selfPresent = true
		}
	}
	if !selfPresent {
		return ErrSelfNotInPeers
	}
	if len(p.Peers) < 3*p.F+1 {
		return fmt.Errorf("%w: n=%d f=%d", ErrTooFewNodes, len(p.Peers), p.F)
	}
	return nil
}

// Builder provides the teacher repo's fluent-construction ergonomics for
// Parameters.
type Builder struct {
	params Parameters
}

// NewBuilder returns a Builder seeded with the partial-synchrony defaults
// observed in original_source/BinaryByzantineConsensus (initial timeout 1).
func NewBuilder(self protocol.NodeID, peers []protocol.NodeID, f int) *Builder {
	return &Builder{params: Parameters{
		Self:              self,
		Peers:             append([]protocol.NodeID(nil), peers...),
		F:                 f,
		InitialAuxTimeout: time.Second,
		TimeoutStep:       time.Second,
	}}
}

func (b *Builder) WithSeed(seed int64) *Builder {
	b.params.Seed = seed
	return b
}

func (b *Builder) WithInitialAuxTimeout(d time.Duration) *Builder {
	b.params.InitialAuxTimeout = d
	return b
}

func (b *Builder) WithTimeoutStep(d time.Duration) *Builder {
	b.params.TimeoutStep = d
	return b
}

// Build validates and returns the assembled Parameters.
func (b *Builder) Build() (Parameters, error) {
	if err := b.params.Validate(); err != nil {
		return Parameters{}, err
	}
	return b.params, nil
}

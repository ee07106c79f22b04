// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package env defines the capability set a consensus node is given to
// produce effects with, and a deterministic in-memory implementation used
// by tests and examples. Delivering those effects — across real processes,
// over a real network, with real clocks — is explicitly out of scope for
// this repository (SPEC_FULL.md §1); env.Environment is the seam.
package env

import (
	"time"

	"github.com/kam3nskii/ConsensusProtocols/protocol"
)

// Environment is the capability set every protocol handler consumes.
// Implementations may lose, duplicate, or reorder Send traffic; Broadcast
// is shorthand for Send to every peer including self. SetTimer arms a
// named timer; re-arming the same name overrides any pending delay, and
// there is no explicit cancel.
type Environment interface {
	Send(msg protocol.Message, peer protocol.NodeID)
	Broadcast(msg protocol.Message)
	SendLocal(msg protocol.Message)
	SetTimer(name string, delay time.Duration)
}

// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package simtest provides the deterministic multi-node harness used by
// every protocol package's tests, built on env.Network, plus the six
// end-to-end scenarios from spec.md §8.
package simtest

import (
	"github.com/kam3nskii/ConsensusProtocols/protocol"
)

// LazyHandler is a protocol.Handler whose real Handler is assigned after
// registration. Network.Register needs a Handler before a protocol Node
// can exist (it needs the Environment Register returns), so tests register
// one LazyHandler per node, construct every Node, then point each
// LazyHandler at its Node.
type LazyHandler struct {
	Handler protocol.Handler
}

func (h *LazyHandler) OnLocal(cmd protocol.LocalCommand) {
	h.Handler.OnLocal(cmd)
}

func (h *LazyHandler) OnMessage(msg protocol.Message, sender protocol.NodeID) {
	h.Handler.OnMessage(msg, sender)
}

func (h *LazyHandler) OnTimer(name string) {
	h.Handler.OnTimer(name)
}

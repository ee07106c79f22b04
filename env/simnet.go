// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package env

import (
	"container/heap"
	"time"

	"github.com/kam3nskii/ConsensusProtocols/protocol"
)

// Network is a deterministic, single-threaded simulation of the message-
// passing substrate consensus nodes run on top of. It exists only for
// tests and examples — see the package doc comment.
type Network struct {
	handlers map[protocol.NodeID]protocol.Handler
	peers    []protocol.NodeID

	msgQueue   []queuedMessage
	timerQueue timerHeap
	timerSeq   map[protocol.NodeID]map[string]uint64 // rearm generation, stale fires are dropped
	seq        uint64

	now time.Duration

	// Results holds every value a node has locally delivered via
	// SendLocal, in delivery order, keyed by node.
	Results map[protocol.NodeID][]protocol.Message

	// Dropped identifies (sender, peer) pairs whose traffic is discarded
	// before delivery, modelling a crashed or partitioned link.
	Dropped map[[2]protocol.NodeID]bool
}

type queuedMessage struct {
	from, to protocol.NodeID
	msg      protocol.Message
}

type timerEntry struct {
	at   time.Duration
	seq  uint64 // FIFO tie-break among timers scheduled for the same instant
	gen  uint64 // generation at arm time; a later rearm invalidates this fire
	node protocol.NodeID
	name string
}

type timerHeap []timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x interface{}) { *h = append(*h, x.(timerEntry)) }
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// NewNetwork returns an empty simulated network for the given peer set.
func NewNetwork(peers []protocol.NodeID) *Network {
	n := &Network{
		handlers: make(map[protocol.NodeID]protocol.Handler, len(peers)),
		peers:    append([]protocol.NodeID(nil), peers...),
		timerSeq: make(map[protocol.NodeID]map[string]uint64, len(peers)),
		Results:  make(map[protocol.NodeID][]protocol.Message, len(peers)),
		Dropped:  make(map[[2]protocol.NodeID]bool),
	}
	for _, p := range peers {
		n.timerSeq[p] = make(map[string]uint64)
	}
	return n
}

// Register attaches a node's handler to the network and returns the
// Environment that handler should use to produce effects.
func (n *Network) Register(id protocol.NodeID, h protocol.Handler) Environment {
	n.handlers[id] = h
	return &nodeEnv{net: n, self: id}
}

// Partition drops all future traffic between [from] and [to] in both
// directions, modelling a crashed or cut link.
func (n *Network) Partition(from, to protocol.NodeID) {
	n.Dropped[[2]protocol.NodeID{from, to}] = true
	n.Dropped[[2]protocol.NodeID{to, from}] = true
}

// InjectLocal delivers a local command to [id] as if the application above
// it issued it.
func (n *Network) InjectLocal(id protocol.NodeID, cmd protocol.LocalCommand) {
	n.handlers[id].OnLocal(cmd)
}

// Run drains queued messages and timer fires in scheduled order until both
// queues are empty or [maxEvents] handler invocations have occurred,
// whichever comes first (a safety valve against a non-terminating
// scenario, not a protocol mechanism).
func (n *Network) Run(maxEvents int) (events int) {
	for events < maxEvents {
		if len(n.msgQueue) > 0 {
			qm := n.msgQueue[0]
			n.msgQueue = n.msgQueue[1:]
			if n.Dropped[[2]protocol.NodeID{qm.from, qm.to}] {
				continue
			}
			h, ok := n.handlers[qm.to]
			if !ok {
				continue
			}
			h.OnMessage(qm.msg, qm.from)
			events++
			continue
		}
		if n.timerQueue.Len() > 0 {
			e := heap.Pop(&n.timerQueue).(timerEntry)
			if n.timerSeq[e.node][e.name] != e.gen {
				continue // superseded by a later SetTimer call
			}
			if e.at > n.now {
				n.now = e.at
			}
			h, ok := n.handlers[e.node]
			if !ok {
				continue
			}
			h.OnTimer(e.name)
			events++
			continue
		}
		break
	}
	return events
}

type nodeEnv struct {
	net  *Network
	self protocol.NodeID
}

func (e *nodeEnv) Send(msg protocol.Message, peer protocol.NodeID) {
	e.net.msgQueue = append(e.net.msgQueue, queuedMessage{from: e.self, to: peer, msg: msg})
}

func (e *nodeEnv) Broadcast(msg protocol.Message) {
	for _, p := range e.net.peers {
		e.Send(msg, p)
	}
}

func (e *nodeEnv) SendLocal(msg protocol.Message) {
	e.net.Results[e.self] = append(e.net.Results[e.self], msg)
}

func (e *nodeEnv) SetTimer(name string, delay time.Duration) {
	e.net.seq++
	gen := e.net.timerSeq[e.self][name] + 1
	e.net.timerSeq[e.self][name] = gen
	heap.Push(&e.net.timerQueue, timerEntry{
		at:   e.net.now + delay,
		seq:  e.net.seq,
		gen:  gen,
		node: e.self,
		name: name,
	})
}

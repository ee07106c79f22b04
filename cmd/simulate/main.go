// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command simulate drives one consensus protocol from this repository
// end-to-end over the deterministic in-memory network and prints the
// decisions every node reached.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/kam3nskii/ConsensusProtocols/bbc"
	"github.com/kam3nskii/ConsensusProtocols/bbc/psync"
	"github.com/kam3nskii/ConsensusProtocols/benor"
	"github.com/kam3nskii/ConsensusProtocols/config"
	"github.com/kam3nskii/ConsensusProtocols/env"
	"github.com/kam3nskii/ConsensusProtocols/protocol"
)

func main() {
	protocolName := flag.String("protocol", "benor", "Protocol to simulate: benor, bbc, or psync")
	nodes := flag.Int("nodes", 4, "Total number of nodes")
	byzantine := flag.Int("f", 1, "Byzantine fault bound")
	seed := flag.Int64("seed", 0, "Deterministic coin seed (0 for time-based)")
	maxEvents := flag.Int("max-events", 100_000, "Safety valve on handler invocations")
	split := flag.Bool("split", false, "Start nodes with divergent local values instead of unanimous 1")
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	logger := log.NewLogger("simulate")
	logger.Info("starting simulation", "protocol", *protocolName, "nodes", *nodes, "f", *byzantine, "seed", *seed)

	peers := make([]protocol.NodeID, *nodes)
	for i := range peers {
		peers[i] = protocol.NodeID(fmt.Sprintf("n%d", i))
	}

	net := env.NewNetwork(peers)
	lazies := make(map[protocol.NodeID]*lazyHandler, len(peers))
	for _, p := range peers {
		lazies[p] = &lazyHandler{}
		net.Register(p, lazies[p])
	}

	reg := prometheus.NewRegistry()
	for _, p := range peers {
		params, err := config.NewBuilder(p, peers, *byzantine).WithSeed(*seed).Build()
		if err != nil {
			logger.Error("invalid configuration", "error", err)
			os.Exit(1)
		}
		e := net.Register(p, lazies[p])
		handler, err := newHandler(*protocolName, params, e, logger, reg)
		if err != nil {
			logger.Error("failed to construct node", "node", string(p), "error", err)
			os.Exit(1)
		}
		lazies[p].handler = handler
	}

	for i, p := range peers {
		value := protocol.One
		if *split && i%2 == 0 {
			value = protocol.Zero
		}
		net.InjectLocal(p, protocol.LocalCommand{Kind: protocol.Init, Value: value})
	}

	events := net.Run(*maxEvents)
	logger.Info("simulation finished", "events", events)

	fmt.Println("\n=== Decisions ===")
	for _, p := range peers {
		results := net.Results[p]
		if len(results) == 0 {
			fmt.Printf("  %-4s  <no decision>\n", p)
			continue
		}
		fmt.Printf("  %-4s  %v\n", p, results[0].Value)
	}

	fmt.Println("\n=== Metrics ===")
	families, err := reg.Gather()
	if err != nil {
		logger.Error("failed to gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		fmt.Printf("  %-40s  %s\n", mf.GetName(), summarizeFamily(mf))
	}
}

func summarizeFamily(mf *dto.MetricFamily) string {
	var total float64
	for _, m := range mf.GetMetric() {
		if c := m.GetCounter(); c != nil {
			total += c.GetValue()
		}
		if g := m.GetGauge(); g != nil {
			total += g.GetValue()
		}
	}
	return fmt.Sprintf("%d series, sum=%v", len(mf.GetMetric()), total)
}

func newHandler(name string, params config.Parameters, environment env.Environment, logger log.Logger, reg prometheus.Registerer) (protocol.Handler, error) {
	switch name {
	case "bbc":
		return bbc.NewNode(params, environment, logger, reg)
	case "psync":
		return psync.NewNode(params, environment, logger, reg)
	default:
		return benor.NewNode(params, environment, logger, reg)
	}
}

// lazyHandler lets the Network hand out an Environment before the real
// protocol.Handler (which needs that Environment to construct) exists.
type lazyHandler struct {
	handler protocol.Handler
}

func (h *lazyHandler) OnLocal(cmd protocol.LocalCommand)              { h.handler.OnLocal(cmd) }
func (h *lazyHandler) OnMessage(msg protocol.Message, s protocol.NodeID) { h.handler.OnMessage(msg, s) }
func (h *lazyHandler) OnTimer(name string)                            { h.handler.OnTimer(name) }

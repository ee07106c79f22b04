// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics registers the small prometheus metric set every
// protocol node in this repository exposes, following the registration
// pattern in _examples/luxfi-consensus/engine/chain/poll/set.go.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Set is the metric set one consensus node instance of one protocol
// registers. A nil *Set is safe to use — every method becomes a no-op —
// so protocols can be constructed without a registerer in tests.
type Set struct {
	decisions prometheus.Counter
	round     prometheus.Gauge
}

// NewSet registers a decisions counter and a current-round gauge under
// [namespace] (typically the protocol package name) into reg. A nil
// registerer yields a usable no-op Set instead of an error, since most
// unit tests have no metrics server to scrape.
func NewSet(namespace string, reg prometheus.Registerer) (*Set, error) {
	if reg == nil {
		return nil, nil
	}
	s := &Set{
		decisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Number of times this node has locally decided.",
		}),
		round: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "round",
			Help:      "Current consensus round.",
		}),
	}
	if err := reg.Register(s.decisions); err != nil {
		return nil, fmt.Errorf("metrics: registering %s decisions_total: %w", namespace, err)
	}
	if err := reg.Register(s.round); err != nil {
		return nil, fmt.Errorf("metrics: registering %s round: %w", namespace, err)
	}
	return s, nil
}

// ObserveDecision increments the decisions counter.
func (s *Set) ObserveDecision() {
	if s == nil {
		return
	}
	s.decisions.Inc()
}

// SetRound sets the current-round gauge.
func (s *Set) SetRound(r float64) {
	if s == nil {
		return
	}
	s.round.Set(r)
}

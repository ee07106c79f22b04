// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewSetWithNilRegistererIsANoOp(t *testing.T) {
	require := require.New(t)

	set, err := NewSet("dbft", nil)
	require.NoError(err)
	require.Nil(set)

	// Must not panic on a nil receiver.
	set.ObserveDecision()
	set.SetRound(3)
}

func TestNewSetRegistersAgainstARealRegisterer(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	set, err := NewSet("dbft", reg)
	require.NoError(err)
	require.NotNil(set)

	set.ObserveDecision()
	set.SetRound(5)

	metricFamilies, err := reg.Gather()
	require.NoError(err)
	require.NotEmpty(metricFamilies)
}

func TestNewSetRejectsDuplicateRegistration(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	_, err := NewSet("dbft", reg)
	require.NoError(err)

	_, err = NewSet("dbft", reg)
	require.Error(err)
}

package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name     string
	interval time.Duration
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Interval() time.Duration   { return s.interval }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	payments := &stubJob{name: "payment-status", interval: time.Minute}
	shipments := &stubJob{name: "shipment-polling", interval: time.Minute}
	registry := NewRegistry(payments, shipments)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, payments, jobs[0])
	assert.Same(t, shipments, jobs[1])

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "callers get a copy")
}

func TestRegistryFiltersDisabledAndDuplicateJobs(t *testing.T) {
	registry := NewRegistry(
		nil,
		&stubJob{name: "off"},
		&stubJob{name: "on", interval: time.Second},
		&stubJob{name: "on", interval: time.Hour},
	)
	jobs := registry.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, time.Second, jobs[0].Interval())
}

package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/provider-scheduling/internal/app"
	"github.com/hackgods/provider-scheduling/internal/config"
	"github.com/hackgods/provider-scheduling/internal/logger"
	"github.com/hackgods/provider-scheduling/internal/timegrid"
)

func TestRunOnce_LogsSweep(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewTo(&buf, "info", "json")

	core, err := app.Build(context.Background(), config.Config{
		StorageDriver:   config.DriverMemory,
		GridStart:       timegrid.MustTimeOfDay(9, 0),
		SlotMinutes:     30,
		SlotCount:       17,
		ReasonMinLength: 1,
		ReasonMaxLength: 500,
		Location:        time.UTC,
		LockWait:        time.Second,
	}, log)
	require.NoError(t, err)
	defer core.Close()

	runOnce(context.Background(), core.Engine, log)

	assert.Contains(t, buf.String(), `"cancelled":0`)
	assert.Contains(t, buf.String(), "lapse run complete")
}

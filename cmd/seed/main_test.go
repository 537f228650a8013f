package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/provider-scheduling/internal/availability"
)

func TestSeedProviders(t *testing.T) {
	ctx := context.Background()
	schedules := availability.NewService(availability.NewMemoryRepository(), zerolog.Nop())

	var out bytes.Buffer
	enabled, err := seedProviders(ctx, schedules, gofakeit.New(7), 30, &out, zerolog.Nop())
	require.NoError(t, err)

	lines := strings.Fields(out.String())
	require.Len(t, lines, 30)
	total := 0
	for _, line := range lines {
		id, err := uuid.Parse(line)
		require.NoError(t, err)
		tmpl, err := schedules.GetSchedule(ctx, id)
		require.NoError(t, err)
		total += len(tmpl.EnabledDays())
	}
	assert.Equal(t, total, enabled)
}

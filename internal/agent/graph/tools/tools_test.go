package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylebot/server/internal/cache"
	"github.com/stylebot/server/internal/services"
	"github.com/stylebot/server/internal/session"
)

func TestMergeDistinct(t *testing.T) {
	existing := []string{"yoga", "pilates"}
	added := mergeDistinct(&existing, []string{"Yoga", " boxing ", "", "pilates", "barre"})

	assert.Equal(t, []string{"boxing", "barre"}, added)
	assert.Equal(t, []string{"yoga", "pilates", "boxing", "barre"}, existing)
}

func TestMergeDistinctNothingNew(t *testing.T) {
	existing := []string{"running"}
	added := mergeDistinct(&existing, []string{"RUNNING", "running"})

	assert.Empty(t, added)
	assert.Equal(t, []string{"running"}, existing)
}

func TestFormatStudioResultsEmpty(t *testing.T) {
	got := formatStudioResults(nil)
	assert.Contains(t, got, "No fitness studios found")
}

func TestFormatStudioResults(t *testing.T) {
	open := true
	got := formatStudioResults([]services.Place{
		{PlaceID: "abc123", Name: "Flow Yoga", Address: "1 Main St", Rating: 4.8, RatingCount: 120, IsOpen: &open},
		{PlaceID: "def456", Name: "Iron Gym", Address: "2 Side St"},
	})

	assert.Contains(t, got, "Found 2 fitness studios:")
	assert.Contains(t, got, "1. **Flow Yoga**")
	assert.Contains(t, got, "4.8 (120 reviews)")
	assert.Contains(t, got, "[ID: abc123]")
	assert.Contains(t, got, "2. **Iron Gym**")
	assert.Contains(t, got, "[ID: def456]")
}

func TestGetQueryToolsExposesAllTools(t *testing.T) {
	deps := Deps{Sessions: session.NewManager(cache.NewMemoryStore())}
	ts := GetQueryTools(deps)
	require.Len(t, ts, 5)

	infos, err := GetToolInfos(context.Background(), ts)
	require.NoError(t, err)

	names := make(map[string]bool, len(infos))
	for _, info := range infos {
		names[info.Name] = true
	}
	for _, want := range []string{
		ToolSearchStudios, ToolStudioDetails,
		ToolUpdateLocation, ToolUpdateGoals, ToolUpdateWorkouts,
	} {
		assert.True(t, names[want], want)
	}
}

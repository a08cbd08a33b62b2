package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthService_Checks(t *testing.T) {
	hs := NewHealthService("1.2.3", "2026-01-01", NewIndexService(discardLogger()), discardLogger())
	ctx := context.Background()

	health := hs.HealthCheck(ctx)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "1.2.3", health.Version)

	ready := hs.ReadinessCheck(ctx)
	assert.Equal(t, "ready", ready.Status)
	require.Contains(t, ready.Services, "index")

	live := hs.LivenessCheck(ctx)
	assert.Equal(t, "alive", live.Status)
	assert.Contains(t, live.Runtime, "goroutines")

	version := hs.Version()
	assert.Equal(t, "1.2.3", version["version"])
	assert.Equal(t, "2026-01-01", version["build_time"])
	assert.Equal(t, []string{"TPD", "TDH"}, version["methods"])
}

func TestHealthService_NotReady(t *testing.T) {
	hs := NewHealthService("dev", "", nil, discardLogger())
	assert.Equal(t, "not_ready", hs.ReadinessCheck(context.Background()).Status)

	store := new(MockRunStore)
	store.On("List", RunFilter{Limit: 1}).Return(nil, errors.New("store closed"))

	hs = NewHealthService("dev", "", NewIndexService(discardLogger(), WithStore(store)), discardLogger())
	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "not_ready", status.Status)

	sh, ok := status.Services["index"].(ServiceHealth)
	require.True(t, ok)
	assert.Contains(t, sh.Message, "store closed")
	store.AssertExpectations(t)
}

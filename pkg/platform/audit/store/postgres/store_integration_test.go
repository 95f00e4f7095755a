//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "verigate/pkg/platform/audit"
	"verigate/pkg/testutil/containers"
)

func TestSink(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()
	sink := New(pc.DB)
	require.NoError(t, sink.EnsureSchema(ctx))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dup := uuid.NewString()
	events := []audit.Event{
		{ID: dup, Action: string(audit.EventHealthTransition), ProviderID: "a", From: "healthy", To: "degraded", Timestamp: base},
		{ID: uuid.NewString(), Action: string(audit.EventManualQueued), Capability: "lookup", Timestamp: base.Add(time.Second)},
		{ID: "not-a-uuid", Action: string(audit.EventHealthTransition), ProviderID: "a", From: "degraded", To: "unavailable", Timestamp: base.Add(2 * time.Second)},
	}
	require.NoError(t, sink.Write(ctx, events))
	require.NoError(t, sink.Write(ctx, events[:1]), "duplicate ids are ignored")

	byProvider, err := sink.ListByProvider(ctx, "a")
	require.NoError(t, err)
	require.Len(t, byProvider, 2)
	assert.Equal(t, "degraded", byProvider[0].To)
	assert.Equal(t, audit.CategoryAvailability, byProvider[0].Category)

	recent, err := sink.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "unavailable", recent[0].To)
}

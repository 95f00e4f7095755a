package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "verigate/pkg/platform/audit"
)

func TestSink(t *testing.T) {
	ctx := context.Background()
	s := NewSink(3)

	require.NoError(t, s.Write(ctx, []audit.Event{
		{Action: "a", ProviderID: "p1"},
		{Action: "b", ProviderID: "p2"},
	}))
	require.NoError(t, s.Write(ctx, []audit.Event{
		{Action: "c", ProviderID: "p1"},
		{Action: "d", ProviderID: "p1"},
	}))

	recent, err := s.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "d", recent[0].Action)
	assert.Equal(t, "b", recent[2].Action)

	byProvider, err := s.ListByProvider(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, byProvider, 2)
	assert.Equal(t, "c", byProvider[0].Action)

	top, err := s.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)

	s.Clear()
	recent, err = s.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

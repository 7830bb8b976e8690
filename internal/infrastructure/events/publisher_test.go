package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	body, err := newEnvelope(TopicOrderPaid, map[string]any{"orderCode": "HD202610160001"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Equal(t, TopicOrderPaid, env.Type)
	assert.NotEmpty(t, env.EventID)
	assert.False(t, env.OccurredAt.IsZero())
	assert.JSONEq(t, `{"orderCode":"HD202610160001"}`, string(env.Data))
}

func TestNoop(t *testing.T) {
	p := NewNoop()
	assert.NoError(t, p.Publish(context.Background(), TopicOrderCreated, "1", struct{}{}))
	assert.NoError(t, p.Close())
}

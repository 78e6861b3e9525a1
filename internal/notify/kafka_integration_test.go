//go:build integration

package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"lifeline/pkg/testutil/containers"
)

func TestKafkaSink(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	const topic = "lifeline.events.test"
	rp.CreateTopic(t, topic)

	sink, err := NewKafkaSink([]string{rp.Broker}, topic)
	require.NoError(t, err)
	t.Cleanup(sink.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sent := Event{
		ID:         "evt-1",
		Type:       EventRequestAccepted,
		Target:     ToUserAndOps("recipient-1"),
		Payload:    map[string]any{"request_id": "req-1", "donor_id": "donor-1"},
		OccurredAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, sink.Send(ctx, sent))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)

	assert.Equal(t, "recipient-1", string(records[0].Key),
		"events are keyed by the first target user")

	var got Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, sent.Type, got.Type)
	assert.Equal(t, sent.Target.UserIDs, got.Target.UserIDs)
	assert.True(t, got.Target.Ops)
}

func TestKafkaSink_PartitionKeyFallback(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	const topic = "lifeline.events.ops"
	rp.CreateTopic(t, topic)

	sink, err := NewKafkaSink([]string{rp.Broker}, topic)
	require.NoError(t, err)
	t.Cleanup(sink.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, sink.Send(ctx, Event{
		ID:     "evt-ops",
		Type:   EventRequestDeclined,
		Target: ToOps(),
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, string(EventRequestDeclined), string(records[0].Key),
		"ops-only events fall back to the event type as key")
}

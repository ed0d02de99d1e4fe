//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "eventreg/pkg/platform/audit"
	auditkafka "eventreg/pkg/platform/audit/store/kafka"
	"eventreg/pkg/testutil/containers"
)

func TestKafkaStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rp := containers.GetManager().GetRedpanda(t)
	const topic = "eventreg.audit.test"

	producer := rp.Client(t, kgo.AllowAutoTopicCreation())
	store := auditkafka.New(producer, topic)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, store.Append(ctx, audit.Event{
		ID:        "evt-1",
		SessionID: "s-1",
		Action:    audit.ActionPaymentLinkMissing,
		Category:  audit.CategoryCompliance,
	}))

	consumer := rp.Client(t,
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())

	var got []audit.Event
	fetches.EachRecord(func(r *kgo.Record) {
		var e audit.Event
		require.NoError(t, json.Unmarshal(r.Value, &e))
		got = append(got, e)
	})
	require.Len(t, got, 1)
	require.Equal(t, audit.ActionPaymentLinkMissing, got[0].Action)
}

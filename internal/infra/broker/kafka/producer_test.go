package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"
)

func TestProducerPublishesKeyAndSortedHeaders(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	var got *sarama.ProducerMessage
	mock.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		got = msg
		return nil
	})
	p := newProducerWith(mock)

	err := p.Publish(context.Background(), "reservation.events.v1", "res-1", []byte(`{}`), map[string]string{
		"ce_type": "reservation.confirmed.v1",
		"ce_id":   "evt-1",
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	key, err := got.Key.Encode()
	require.NoError(t, err)
	require.Equal(t, "res-1", string(key))
	require.Len(t, got.Headers, 2)
	require.Equal(t, "ce_id", string(got.Headers[0].Key))
	require.Equal(t, "ce_type", string(got.Headers[1].Key))
	require.NoError(t, p.Close())
}

func TestProducerWrapsSendFailure(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)
	p := newProducerWith(mock)

	err := p.Publish(context.Background(), "t", "", nil, nil)
	require.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	require.ErrorContains(t, err, "publish t")
	require.NoError(t, p.Close())
}

func TestProducerHonoursCancelledContext(t *testing.T) {
	p := newProducerWith(mocks.NewSyncProducer(t, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.True(t, errors.Is(p.Publish(ctx, "t", "k", nil, nil), context.Canceled))
	require.NoError(t, p.Close())
}

func TestProducerConfigIsIdempotent(t *testing.T) {
	cfg := ProducerConfig()
	require.True(t, cfg.Producer.Idempotent)
	require.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	require.Equal(t, 1, cfg.Net.MaxOpenRequests)
	require.NoError(t, cfg.Validate())
}

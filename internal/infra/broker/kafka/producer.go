package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/IBM/sarama"
)

const clientID = "chaletbook"

// ProducerConfig returns the settings the relay publishes with: idempotent,
// acknowledged by every in-sync replica, keyed by reservation or chalet so
// events for one aggregate stay ordered on one partition.
func ProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

// Producer publishes relayed outbox records synchronously.
type Producer struct {
	client sarama.SyncProducer
}

func NewProducer(brokers []string, cfg *sarama.Config) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg == nil {
		cfg = ProducerConfig()
	}
	client, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka: producer: %w", err)
	}
	return &Producer{client: client}, nil
}

func newProducerWith(client sarama.SyncProducer) *Producer {
	return &Producer{client: client}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Value:   sarama.ByteEncoder(payload),
		Headers: recordHeaders(headers),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	if _, _, err := p.client.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka: publish %s: %w", topic, err)
	}
	return nil
}

func recordHeaders(headers map[string]string) []sarama.RecordHeader {
	if len(headers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]sarama.RecordHeader, 0, len(keys))
	for _, k := range keys {
		out = append(out, sarama.RecordHeader{Key: []byte(k), Value: []byte(headers[k])})
	}
	return out
}

func (p *Producer) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

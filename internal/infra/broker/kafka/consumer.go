package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// ConsumerConfig starts new groups at the oldest offset so a fresh deploy
// replays confirmations it has not seen, and rebalances sticky.
func ConsumerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Offsets.AutoCommit.Interval = time.Second
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategySticky()}
	return cfg
}

// Consumer runs one consumer-group member until its context ends.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	logger  *slog.Logger
}

func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, handler MessageHandler, logger *slog.Logger) (*Consumer, error) {
	if groupID == "" {
		return nil, errors.New("kafka: consumer group id is required")
	}
	if cfg == nil {
		cfg = ConsumerConfig()
	}
	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka: consumer group %s: %w", groupID, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{group: group, handler: handler, logger: logger.With("group", groupID)}, nil
}

// Run rejoins the group after every rebalance. It returns nil on a clean
// shutdown.
func (c *Consumer) Run(ctx context.Context, topics []string) error {
	member := groupMember{handler: c.handler, logger: c.logger}
	for ctx.Err() == nil {
		err := c.group.Consume(ctx, topics, member)
		switch {
		case errors.Is(err, sarama.ErrClosedConsumerGroup):
			return nil
		case err != nil:
			return fmt.Errorf("kafka: consume %v: %w", topics, err)
		}
	}
	return nil
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type groupMember struct {
	handler MessageHandler
	logger  *slog.Logger
}

func (m groupMember) Setup(sess sarama.ConsumerGroupSession) error {
	m.logger.Info("kafka partitions assigned", "claims", sess.Claims())
	return nil
}

func (groupMember) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks failed messages too; whatever they would have done is
// picked up by the periodic pending-sync job.
func (m groupMember) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-sess.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := m.handler.Handle(sess.Context(), msg); err != nil {
				m.logger.Warn("kafka message not handled",
					"topic", msg.Topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err,
				)
			}
			sess.MarkMessage(msg, "")
		}
	}
}

package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"chaletbook/internal/app/commands"
	"chaletbook/internal/app/dto"
	channelsapp "chaletbook/internal/app/handlers/channels"
	"chaletbook/internal/app/middleware"
)

const confirmedEventType = "reservation.confirmed.v1"

// Inbox de-duplicates deliveries by CloudEvent id.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type cloudEvent struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ConfirmedSync pushes a reservation to the channels when its
// reservation.confirmed event arrives. Other event types are acknowledged
// untouched.
type ConfirmedSync struct {
	Commands commands.Bus
	Inbox    Inbox
	Logger   *slog.Logger
}

func (h ConfirmedSync) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt cloudEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		h.logger().Warn("dropping undecodable event", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}
	if evt.Type != confirmedEventType {
		return nil
	}
	var data struct {
		ReservationID string `json:"reservation_id"`
	}
	if err := json.Unmarshal(evt.Data, &data); err != nil || data.ReservationID == "" {
		h.logger().Warn("dropping confirmed event without reservation id", "event_id", evt.ID)
		return nil
	}

	if h.Inbox != nil && evt.ID != "" {
		seen, err := h.Inbox.Seen(ctx, evt.ID)
		if err != nil {
			return fmt.Errorf("inbox: %w", err)
		}
		if seen {
			return nil
		}
	}

	ctx = middleware.WithOperator(ctx)
	cmd := channelsapp.SyncReservationCommand{ReservationID: data.ReservationID}
	result, err := commands.Dispatch[channelsapp.SyncReservationCommand, dto.ReservationSyncResult](ctx, h.Commands, cmd)
	if err != nil {
		if h.Inbox != nil && evt.ID != "" {
			if ferr := h.Inbox.Forget(ctx, evt.ID); ferr != nil {
				h.logger().Warn("inbox forget failed", "event_id", evt.ID, "error", ferr)
			}
		}
		return err
	}
	h.logger().Info("channel sync from event", "reservation_id", data.ReservationID, "event_id", evt.ID, "items", len(result.Items))
	return nil
}

func (h ConfirmedSync) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

var _ MessageHandler = ConfirmedSync{}

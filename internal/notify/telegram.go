// Package notify forwards sync failure events to an operator chat.
package notify

import (
	"encoding/json"
	"fmt"

	"shelfsync/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// sender is the slice of the bot API the notifier needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	bot    sender
	chatID int64
	logger zerolog.Logger
}

func NewTelegramNotifier(token string, chatID int64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}

	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "telegram_notifier").Logger()
	}

	return &TelegramNotifier{bot: bot, chatID: chatID, logger: log}, nil
}

// Subscribe attaches the notifier to the failure events on the bus.
func (n *TelegramNotifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventSyncItemFailed, n.handleSyncFailure)
	bus.Subscribe(events.EventScheduleDeactivated, n.handleScheduleEvent("schedule deactivated"))
	bus.Subscribe(events.EventPriceRestoreSkipped, n.handleScheduleEvent("price restore skipped"))
}

func (n *TelegramNotifier) handleSyncFailure(event *events.Event) error {
	var payload events.SyncFailurePayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		n.logger.Error().Err(err).Msg("decode sync failure payload")
		return err
	}

	text := fmt.Sprintf(
		"⚠️ Sync item #%d failed\nOperation: %s\nProduct: %d, store: %d\nCode: %s\nError: %s",
		payload.QueueItemID, payload.Operation, payload.SubjectID, payload.TargetID,
		payload.ErrorCode, payload.ErrorMessage,
	)
	return n.send(text)
}

func (n *TelegramNotifier) handleScheduleEvent(label string) events.EventHandler {
	return func(event *events.Event) error {
		var payload events.SchedulePayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			n.logger.Error().Err(err).Msg("decode schedule payload")
			return err
		}

		text := fmt.Sprintf("ℹ️ %s\nSchedule #%d, store %d", label, payload.ScheduleID, payload.TargetID)
		if payload.ProductCode != "" {
			text += fmt.Sprintf("\nProduct: %s", payload.ProductCode)
		}
		return n.send(text)
	}
}

func (n *TelegramNotifier) send(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error().Err(err).Msg("telegram send failed")
		return err
	}
	return nil
}

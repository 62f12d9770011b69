package bot

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/halcyondesk/mailroom/pkg/telegram"
)

// Listener long-polls the Bot API and feeds command messages through the
// router, replying into the chat each command came from.
type Listener struct {
	logger *log.Logger
	client *telegram.Client
	router *Router
}

func NewListener(logger *log.Logger, client *telegram.Client, router *Router) *Listener {
	return &Listener{
		logger: logger,
		client: client,
		router: router,
	}
}

func (l *Listener) Run(ctx context.Context) error {
	lastUpdateID := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		updates, err := l.client.GetUpdates(ctx, lastUpdateID+1)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.logger.Error("Failed to poll updates", "error", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, update := range updates {
			lastUpdateID = update.UpdateID
			if update.Message.Text == "" {
				continue
			}

			l.logger.Info("Received message",
				"message_id", update.Message.MessageID,
				"from", update.Message.From.Username,
				"chat_id", update.Message.Chat.ID,
				"text", update.Message.Text,
			)

			reply := l.router.Handle(ctx, update.Message.Text)
			if reply == "" {
				continue
			}
			if err := l.client.SendMessage(ctx, update.Message.Chat.ID, reply); err != nil {
				l.logger.Error("Failed to send reply", "chat_id", update.Message.Chat.ID, "error", err)
			}
		}
	}
}

// Package telegram pushes query lifecycle summaries to a Telegram chat. The
// notifier is outbound only; queries are started through the HTTP API or
// directly over NATS.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/mtsiakos/skopos/internal/config"
	"github.com/mtsiakos/skopos/internal/notify"
	"github.com/mtsiakos/skopos/internal/progress"
)

type Notifier struct {
	bot    *telego.Bot
	chatID int64
	broker *notify.Broker
}

func NewNotifier(cfg config.TelegramConfig, broker *notify.Broker) (*Notifier, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Notifier{
		bot:    bot,
		chatID: cfg.ChatID,
		broker: broker,
	}, nil
}

// Start consumes broker notifications until the context is cancelled. Only
// terminal events become messages; per-event progress would flood the chat.
func (n *Notifier) Start(ctx context.Context) {
	ch, cancel := n.broker.Subscribe(64)
	defer cancel()

	slog.Info("telegram notifier started", "chat_id", n.chatID)

	for {
		select {
		case <-ctx.Done():
			slog.Info("telegram notifier stopped")
			return
		case notification, ok := <-ch:
			if !ok {
				return
			}
			if !notification.Terminal() {
				continue
			}
			if err := n.SendMessage(ctx, formatSummary(notification)); err != nil {
				slog.Error("failed to send telegram summary", "query", notification.QueryID, "error", err)
			}
		}
	}
}

func (n *Notifier) SendMessage(ctx context.Context, text string) error {
	chunks := chunkMessage(text, 4096)
	for _, chunk := range chunks {
		msg := tu.Message(tu.ID(n.chatID), chunk)
		if _, err := n.bot.SendMessage(ctx, msg); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

var statusMarks = map[progress.Status]string{
	progress.StatusPending: "⏳",
	progress.StatusRunning: "▶️",
	progress.StatusSuccess: "✅",
	progress.StatusError:   "❌",
}

// formatSummary renders a terminal notification as a plain-text message: the
// question, the outcome and one line per display entry.
func formatSummary(n notify.Notification) string {
	var sb strings.Builder

	verb := "finished"
	if n.Type == notify.TypeQueryCancelled {
		verb = "was cancelled"
	}
	fmt.Fprintf(&sb, "Query %s: %s\n", verb, n.Question)

	if n.Overview == nil {
		return sb.String()
	}
	fmt.Fprintf(&sb, "%d of %d units completed\n", n.Overview.CompletedCount, n.Overview.TotalCount)

	for _, e := range n.Overview.Entries {
		mark, ok := statusMarks[e.Status]
		if !ok {
			mark = statusMarks[progress.StatusPending]
		}
		fmt.Fprintf(&sb, "%s %s", mark, e.Name)
		if e.EvidenceCount > 0 {
			fmt.Fprintf(&sb, " (%d items)", e.EvidenceCount)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

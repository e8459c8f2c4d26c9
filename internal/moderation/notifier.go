package moderation

import (
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"streamroom/sdk/internal/models"
)

// Notifier forwards moderation-filtered messages to a Telegram operator
// chat. A nil Notifier is a no-op, so alerting can be switched off by
// configuration.
type Notifier struct {
	BotAPI *tgbotapi.BotAPI
	ChatID int64
}

// NewNotifier authenticates the bot. Returns an error when the token is
// rejected by Telegram.
func NewNotifier(token string, chatID int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("Moderation notifier authorized on account %s", bot.Self.UserName)
	return &Notifier{BotAPI: bot, ChatID: chatID}, nil
}

// NotifyFiltered sends an alert describing the suppressed message.
func (n *Notifier) NotifyFiltered(roomID string, msg models.ChatMessage) {
	if n == nil {
		return
	}
	text := fmt.Sprintf(
		"Filtered message in room %s\nSender: %s (%s)\nReasons: %s\nText: %s",
		roomID,
		msg.Sender.Nickname,
		msg.Sender.ID,
		strings.Join(msg.FilterReasons(), ", "),
		msg.Text,
	)
	if _, err := n.BotAPI.Send(tgbotapi.NewMessage(n.ChatID, text)); err != nil {
		log.Printf("ERROR: Failed to send moderation alert for room %s: %v", roomID, err)
	}
}

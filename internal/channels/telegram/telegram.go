// Package telegram implements the Telegram channel adapter on top of the
// go-telegram/bot long-polling client.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/agentbridge/agentbridge/pkg/models"
)

// errorMarker prefixes outbound error responses, matching Telegram's
// convention of flagging failures with a visible glyph in chat.
const errorMarker = "❌ " // red cross mark

// Adapter bridges Telegram updates to ChannelEvents and AgentResponses back
// to the bot API. SessionId is always derived as "telegram:<chat-id>".
type Adapter struct {
	token string
	bot   *tgbot.Bot
}

// New creates a Telegram adapter for the given bot token. The bot client is
// constructed lazily in Run so that Adapter creation itself cannot fail on
// a bad token.
func New(token string) *Adapter {
	return &Adapter{token: token}
}

func (a *Adapter) ChannelID() models.ChannelID {
	return models.ChannelID("telegram:bot")
}

// Run starts long polling and emits one ChannelEvent per inbound text
// message until ctx is canceled.
func (a *Adapter) Run(ctx context.Context, inboundTx chan<- models.ChannelEvent) error {
	opts := []tgbot.Option{
		tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *tgmodels.Update) {
			handleUpdate(update, inboundTx)
		}),
	}
	b, err := tgbot.New(a.token, opts...)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	a.bot = b

	b.Start(ctx)
	return ctx.Err()
}

func handleUpdate(update *tgmodels.Update, inboundTx chan<- models.ChannelEvent) {
	if update == nil || update.Message == nil {
		return
	}
	text := strings.TrimSpace(update.Message.Text)
	if text == "" {
		return
	}

	sessionID := sessionIDForChat(update.Message.Chat.ID)
	inboundTx <- models.ChannelEvent{
		ChannelID:   models.ChannelID(sessionID),
		SessionID:   models.SessionID(sessionID),
		UserMessage: text,
	}
}

func sessionIDForChat(chatID int64) string {
	return "telegram:" + strconv.FormatInt(chatID, 10)
}

// SendResponse posts resp back to the chat encoded in its ChannelID
// ("telegram:<chat-id>"), prefixing the red-cross marker on errors.
func (a *Adapter) SendResponse(ctx context.Context, resp models.AgentResponse) error {
	if a.bot == nil {
		return fmt.Errorf("telegram bot not started")
	}
	chatID, err := chatIDFromChannel(resp.ChannelID)
	if err != nil {
		return err
	}

	text := resp.Content
	if resp.IsError {
		text = errorMarker + text
	}

	_, err = a.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	return err
}

func chatIDFromChannel(channelID models.ChannelID) (int64, error) {
	const prefix = "telegram:"
	s := string(channelID)
	if !strings.HasPrefix(s, prefix) {
		return 0, fmt.Errorf("not a telegram channel id: %q", channelID)
	}
	chatID, err := strconv.ParseInt(strings.TrimPrefix(s, prefix), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse chat id from %q: %w", channelID, err)
	}
	return chatID, nil
}

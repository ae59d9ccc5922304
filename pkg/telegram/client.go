// Package telegram wraps the Telegram Bot API behind the narrow send/edit
// capability the engine needs, plus the update stream the bot shell
// consumes. A dry-run mode returns deterministic fake message handles so
// everything above it can run without the network.
package telegram

import (
	"context"
	"fmt"
	"sync/atomic"

	"leadinbox/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Client talks to the Telegram Bot API. The zero value is not usable; use New.
type Client struct {
	bot         *tgbotapi.BotAPI
	dryRun      bool
	logger      *logrus.Logger
	fakeMessage atomic.Int64
}

// New connects to the Bot API, or returns a disconnected dry-run client
// when dryRun is set.
func New(botToken string, dryRun bool, logger *logrus.Logger) (*Client, error) {
	c := &Client{dryRun: dryRun, logger: logger}
	if dryRun {
		logger.Info("Telegram client in dry-run mode, no messages will be delivered")
		return c, nil
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	c.bot = bot
	logger.WithFields(logrus.Fields{
		"username": bot.Self.UserName,
		"id":       bot.Self.ID,
	}).Info("Telegram bot connected")
	return c, nil
}

// SendMessage sends a new chat message with the given action buttons and
// returns the remote message handle.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, actions []models.Action) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if c.dryRun {
		return c.nextFakeMessageID(), nil
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if markup, ok := actionMarkup(actions); ok {
		msg.ReplyMarkup = markup
	}

	sent, err := c.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("telegram send: %w", err)
	}
	return int64(sent.MessageID), nil
}

// EditMessage rewrites an existing chat message in place, replacing its
// action buttons.
func (c *Client) EditMessage(ctx context.Context, chatID, messageID int64, text string, actions []models.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.dryRun {
		return nil
	}

	markup, _ := actionMarkup(actions)
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, int(messageID), text, markup)

	if _, err := c.bot.Send(edit); err != nil {
		return fmt.Errorf("telegram edit: %w", err)
	}
	return nil
}

// SendText sends a plain message with no buttons. Used by the bot shell
// for command replies.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.dryRun {
		return nil
	}

	if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// AnswerCallback acknowledges a button press so the client stops showing a
// spinner.
func (c *Client) AnswerCallback(callbackID string) {
	if c.dryRun {
		return
	}
	if _, err := c.bot.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		c.logger.WithError(err).Warn("Failed to answer callback query")
	}
}

// Updates returns the long-poll update channel for the bot shell. In
// dry-run mode it returns a nil channel, which blocks forever.
func (c *Client) Updates(pollTimeoutSec int) tgbotapi.UpdatesChannel {
	if c.dryRun {
		return nil
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSec
	return c.bot.GetUpdatesChan(u)
}

// StopUpdates stops the long-poll loop started by Updates.
func (c *Client) StopUpdates() {
	if c.dryRun {
		return
	}
	c.bot.StopReceivingUpdates()
}

// DryRun reports whether the client delivers anything.
func (c *Client) DryRun() bool {
	return c.dryRun
}

func (c *Client) nextFakeMessageID() int64 {
	return 1_000_000 + c.fakeMessage.Add(1)
}

func actionMarkup(actions []models.Action) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(actions) == 0 {
		return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}, false
	}

	// Two buttons per row keeps labels readable on narrow screens.
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(actions); i += 2 {
		end := i + 2
		if end > len(actions) {
			end = len(actions)
		}
		var row []tgbotapi.InlineKeyboardButton
		for _, action := range actions[i:end] {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(action.Label, action.Data))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

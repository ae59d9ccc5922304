// Package bot is the Telegram-facing command shell: it turns chat commands
// into engine calls and button presses into status transitions. All
// rendering of engine results lives in internal/render; the bot only
// routes.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"leadinbox/internal/constants"
	"leadinbox/internal/errors"
	"leadinbox/internal/metrics"
	"leadinbox/internal/models"
	"leadinbox/internal/render"
	"leadinbox/internal/service"
	"leadinbox/pkg/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

const helpText = `Commands:
/start — register this chat and get a webhook token
/token — show this chat's webhook token
/today — requests created today (UTC)
/day YYYY-MM-DD — requests created on a UTC day
/last [N] — the N most recent requests (default 20, max 100)
/find TEXT — requests whose name, phone, or text contains TEXT
/help — this message`

// Bot wires Telegram updates to the engine services.
type Bot struct {
	client    *telegram.Client
	tokens    *service.TokenRegistry
	lifecycle *service.Lifecycle
	queries   *service.QueryService
	publicURL string
	logger    *logrus.Logger
}

func New(client *telegram.Client, tokens *service.TokenRegistry, lifecycle *service.Lifecycle, queries *service.QueryService, publicURL string, logger *logrus.Logger) *Bot {
	return &Bot{
		client:    client,
		tokens:    tokens,
		lifecycle: lifecycle,
		queries:   queries,
		publicURL: publicURL,
		logger:    logger,
	}
}

// Run consumes the update stream until the context is cancelled.
func (b *Bot) Run(ctx context.Context, pollTimeoutSec int) {
	updates := b.client.Updates(pollTimeoutSec)
	b.logger.Info("Bot command loop started")

	for {
		select {
		case <-ctx.Done():
			b.client.StopUpdates()
			b.logger.Info("Bot command loop stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.dispatch(ctx, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		chatID := update.Message.Chat.ID
		reply := b.HandleCommand(ctx, chatID, update.Message.Text)
		if reply == "" {
			return
		}
		if err := b.client.SendText(ctx, chatID, reply); err != nil {
			b.logger.WithError(err).WithField("chat_id", chatID).Warn("Failed to send command reply")
		}
	}
}

// HandleCommand executes one slash command and returns the reply text.
func (b *Bot) HandleCommand(ctx context.Context, chatID int64, text string) string {
	command, args := parseCommand(text)
	metrics.IncrementCounter("bot_commands_total", map[string]string{"command": command}, "Bot commands received")

	switch command {
	case "start":
		return b.cmdStart(ctx, chatID)
	case "help":
		return helpText
	case "token":
		return b.cmdToken(ctx, chatID)
	case "today":
		return b.withTenant(ctx, chatID, func(t *models.Tenant) ([]models.Request, error) {
			return b.queries.Today(ctx, t.ID)
		})
	case "day":
		return b.cmdDay(ctx, chatID, args)
	case "last":
		return b.cmdLast(ctx, chatID, args)
	case "find":
		return b.withTenant(ctx, chatID, func(t *models.Tenant) ([]models.Request, error) {
			return b.queries.Find(ctx, t.ID, args)
		})
	default:
		return "Unknown command. Try /help."
	}
}

func (b *Bot) cmdStart(ctx context.Context, chatID int64) string {
	tenant, err := b.tokens.Issue(ctx, chatID)
	if err != nil {
		b.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to issue token")
		return "Something went wrong, please try again."
	}
	return fmt.Sprintf(
		"This chat is registered. New requests will appear here.\n\n"+
			"Webhook token:\n%s\n\n"+
			"Point your form at:\nPOST %s/webhook/%s",
		tenant.Token, b.webhookBase(), tenant.Token,
	)
}

func (b *Bot) cmdToken(ctx context.Context, chatID int64) string {
	tenant, err := b.tokens.ResolveChat(ctx, chatID)
	if err != nil {
		b.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to resolve chat")
		return "Something went wrong, please try again."
	}
	if tenant == nil {
		return "This chat is not registered yet. Run /start first."
	}
	return fmt.Sprintf("Webhook token:\n%s\n\nPOST %s/webhook/%s",
		tenant.Token, b.webhookBase(), tenant.Token)
}

func (b *Bot) cmdDay(ctx context.Context, chatID int64, args string) string {
	day, err := time.Parse("2006-01-02", strings.TrimSpace(args))
	if err != nil {
		return "Usage: /day YYYY-MM-DD"
	}
	return b.withTenant(ctx, chatID, func(t *models.Tenant) ([]models.Request, error) {
		return b.queries.ByDay(ctx, t.ID, day)
	})
}

func (b *Bot) cmdLast(ctx context.Context, chatID int64, args string) string {
	limit := 0
	if args = strings.TrimSpace(args); args != "" {
		n, err := strconv.Atoi(args)
		if err != nil {
			return "Usage: /last [N]"
		}
		limit = n
	}
	return b.withTenant(ctx, chatID, func(t *models.Tenant) ([]models.Request, error) {
		return b.queries.Last(ctx, t.ID, limit)
	})
}

// withTenant resolves the chat's tenant, runs the query, and renders the
// result list.
func (b *Bot) withTenant(ctx context.Context, chatID int64, query func(*models.Tenant) ([]models.Request, error)) string {
	tenant, err := b.tokens.ResolveChat(ctx, chatID)
	if err != nil {
		b.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to resolve chat")
		return "Something went wrong, please try again."
	}
	if tenant == nil {
		return "This chat is not registered yet. Run /start first."
	}

	requests, err := query(tenant)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeInvalidQuery) {
			return "Usage: /find TEXT"
		}
		b.logger.WithError(err).WithField("chat_id", chatID).Error("Query failed")
		return "Something went wrong, please try again."
	}
	return render.RequestList(requests)
}

// handleCallback applies a button press. The pressed button carries the
// status the operator saw; if the request moved on since, nothing is
// applied and the notifier refreshes the message to current state.
func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	defer b.client.AnswerCallback(cb.ID)

	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	requestID, from, to, err := render.ParseAction(cb.Data)
	if err != nil {
		b.logger.WithError(err).WithField("chat_id", chatID).Warn("Malformed callback data")
		return
	}

	tenant, err := b.tokens.ResolveChat(ctx, chatID)
	if err != nil || tenant == nil {
		b.logger.WithField("chat_id", chatID).Warn("Callback from unregistered chat")
		return
	}

	req, applied, err := b.lifecycle.ApplyExpected(ctx, tenant.ID, requestID, from, to)
	if err != nil {
		b.logger.WithError(err).WithFields(logrus.Fields{
			"chat_id":    chatID,
			"request_id": requestID,
		}).Warn("Callback transition failed")
		return
	}

	if !applied {
		b.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"status":     req.Status,
		}).Info("Stale button press ignored")
	}
}

// parseCommand splits "/cmd@BotName args" into ("cmd", "args").
func parseCommand(text string) (command, args string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}

	rest := text[1:]
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		command, args = rest[:i], strings.TrimSpace(rest[i+1:])
	} else {
		command = rest
	}
	if at := strings.IndexByte(command, '@'); at >= 0 {
		command = command[:at]
	}
	return command, args
}

func (b *Bot) webhookBase() string {
	if b.publicURL != "" {
		return strings.TrimRight(b.publicURL, "/")
	}
	return "http://localhost:" + constants.DefaultServerPort
}

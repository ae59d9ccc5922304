// Package service implements the engine behind the webhook and the chat
// bot: token issuance, request intake, status lifecycle, the chat-mirror
// worker, and reporting queries.
package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"leadinbox/internal/constants"
	"leadinbox/internal/database"
	"leadinbox/internal/errors"
	"leadinbox/internal/models"

	"github.com/sirupsen/logrus"
)

// TokenRegistry maps chats to tenants and webhook tokens to tenants.
type TokenRegistry struct {
	db     *database.Database
	logger *logrus.Logger
}

func NewTokenRegistry(db *database.Database, logger *logrus.Logger) *TokenRegistry {
	return &TokenRegistry{db: db, logger: logger}
}

// Issue returns the tenant for a chat, creating one with a fresh random
// token on first contact. Issuing is idempotent per chat: a second call
// returns the same tenant and token.
func (r *TokenRegistry) Issue(ctx context.Context, chatID int64) (*models.Tenant, error) {
	tenant, err := r.db.GetTenantByChatID(ctx, chatID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to look up tenant")
	}
	if tenant != nil {
		return tenant, nil
	}

	for attempt := 0; attempt < constants.MaxTokenIssueAttempts; attempt++ {
		token, err := generateToken()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to generate token")
		}

		tenant, err := r.db.CreateTenant(ctx, chatID, token)
		if err == database.ErrTokenExists {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to create tenant")
		}

		r.logger.WithFields(logrus.Fields{
			"tenant_id": tenant.ID,
			"chat_id":   chatID,
		}).Info("Issued webhook token for new tenant")
		return tenant, nil
	}

	return nil, errors.New(errors.ErrCodeTokenConflict,
		fmt.Sprintf("could not find an unused token after %d attempts", constants.MaxTokenIssueAttempts))
}

// Resolve maps a webhook token to its tenant. An unknown token comes back
// as a plain unauthorized error with no hint about why.
func (r *TokenRegistry) Resolve(ctx context.Context, token string) (*models.Tenant, error) {
	tenant, err := r.db.GetTenantByToken(ctx, token)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to resolve token")
	}
	if tenant == nil {
		return nil, errors.New(errors.ErrCodeUnauthorized, "unknown token")
	}
	return tenant, nil
}

// ResolveChat maps a chat id to its tenant, nil when the chat never ran
// /start.
func (r *TokenRegistry) ResolveChat(ctx context.Context, chatID int64) (*models.Tenant, error) {
	tenant, err := r.db.GetTenantByChatID(ctx, chatID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to resolve chat")
	}
	return tenant, nil
}

func generateToken() (string, error) {
	buf := make([]byte, constants.TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

package service

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"leadinbox/internal/database"
	"leadinbox/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupDB(t *testing.T) *database.Database {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type nopWaker struct{}

func (nopWaker) Wake() {}

// mockSender records deliveries and can be told to fail.
type mockSender struct {
	mu         sync.Mutex
	nextID     int64
	sendCount  int
	editCount  int
	lastChatID int64
	lastMsgID  int64
	lastText   string
	lastActs   []models.Action
	failAll    bool
}

func (m *mockSender) SendMessage(_ context.Context, chatID int64, text string, actions []models.Action) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return 0, context.DeadlineExceeded
	}
	m.sendCount++
	m.nextID++
	m.lastChatID = chatID
	m.lastText = text
	m.lastActs = actions
	return m.nextID, nil
}

func (m *mockSender) EditMessage(_ context.Context, chatID, messageID int64, text string, actions []models.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return context.DeadlineExceeded
	}
	m.editCount++
	m.lastChatID = chatID
	m.lastMsgID = messageID
	m.lastText = text
	m.lastActs = actions
	return nil
}

func (m *mockSender) setFailAll(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = fail
}

func (m *mockSender) counts() (sends, edits int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendCount, m.editCount
}

// testNotifyConfig leaves the retry backoff at zero so back-to-back sweeps
// retry immediately and tests stay deterministic.
func testNotifyConfig() models.NotifyConfig {
	return models.NotifyConfig{
		PollIntervalMs:    60_000,
		MaxAttempts:       3,
		SendTimeoutSec:    5,
		BatchSize:         20,
		RetryBackoffMs:    0,
		RetryMaxBackoffMs: 0,
	}
}

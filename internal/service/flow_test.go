package service

import (
	"context"
	"testing"

	"leadinbox/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Full path: register a chat, ingest a submission over its token, deliver
// the chat message, confirm via lifecycle, and converge the edit onto the
// same message handle.
func TestEndToEndFlow(t *testing.T) {
	db := setupDB(t)
	logger := testLogger()
	ctx := context.Background()

	sender := &mockSender{}
	notifier := NewNotifier(db, sender, testNotifyConfig(), logger)
	registry := NewTokenRegistry(db, logger)
	gateway := NewIntakeGateway(db, registry, notifier, logger)
	lifecycle := NewLifecycle(db, notifier, logger)
	queries := NewQueryService(db)

	tenant, err := registry.Issue(ctx, 100)
	require.NoError(t, err)

	req, err := gateway.Ingest(ctx, tenant.Token,
		[]byte(`{"source":"landing","name":"Anna","phone":"+155500","text":"call me"}`))
	require.NoError(t, err)

	require.NoError(t, notifier.ProcessPending(ctx))
	loaded, err := db.GetRequest(ctx, tenant.ID, req.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.MessageID)
	handle := *loaded.MessageID

	updated, err := lifecycle.Apply(ctx, tenant.ID, req.ID, models.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, updated.Status)

	require.NoError(t, notifier.ProcessPending(ctx))

	sends, edits := sender.counts()
	assert.Equal(t, 1, sends)
	assert.Equal(t, 1, edits)
	assert.Equal(t, handle, sender.lastMsgID)
	assert.Contains(t, sender.lastText, "Confirmed")

	results, err := queries.Find(ctx, tenant.ID, "anna")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.StatusConfirmed, results[0].Status)
}

// A failed create leaves no handle; the next sweep creates instead of
// editing.
func TestCreateFallbackAfterFailedCreate(t *testing.T) {
	db := setupDB(t)
	logger := testLogger()
	ctx := context.Background()

	sender := &mockSender{}
	notifier := NewNotifier(db, sender, testNotifyConfig(), logger)
	registry := NewTokenRegistry(db, logger)
	tenant, err := registry.Issue(ctx, 100)
	require.NoError(t, err)
	req := insertRequest(t, db, tenant)

	sender.setFailAll(true)
	require.NoError(t, notifier.ProcessPending(ctx))

	loaded, err := db.GetRequest(ctx, tenant.ID, req.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded.MessageID)
	assert.Equal(t, 1, loaded.NotifyAttempts)

	sender.setFailAll(false)
	require.NoError(t, notifier.ProcessPending(ctx))

	sends, edits := sender.counts()
	assert.Equal(t, 1, sends)
	assert.Equal(t, 0, edits)

	loaded, err = db.GetRequest(ctx, tenant.ID, req.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.MessageID)
	assert.Equal(t, models.NotifyStateSent, loaded.NotifyState)
	assert.Equal(t, 0, loaded.NotifyAttempts)
}

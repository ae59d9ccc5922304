package telegram

import (
	"context"
	"io"
	"testing"

	"leadinbox/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dryRunClient(t *testing.T) *Client {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	client, err := New("", true, logger)
	require.NoError(t, err)
	return client
}

func TestDryRunSendReturnsDistinctHandles(t *testing.T) {
	client := dryRunClient(t)
	ctx := context.Background()

	first, err := client.SendMessage(ctx, 100, "hello", nil)
	require.NoError(t, err)
	second, err := client.SendMessage(ctx, 100, "hello again", nil)
	require.NoError(t, err)

	assert.NotZero(t, first)
	assert.NotEqual(t, first, second)
}

func TestDryRunEditAndText(t *testing.T) {
	client := dryRunClient(t)
	ctx := context.Background()

	assert.NoError(t, client.EditMessage(ctx, 100, 1, "edited", nil))
	assert.NoError(t, client.SendText(ctx, 100, "plain"))
	assert.True(t, client.DryRun())
}

func TestSendHonorsCancelledContext(t *testing.T) {
	client := dryRunClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.SendMessage(ctx, 100, "hello", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, client.EditMessage(ctx, 100, 1, "x", nil), context.Canceled)
}

func TestActionMarkupRows(t *testing.T) {
	actions := []models.Action{
		{Label: "✅ Confirm", Data: "req:1:new:confirmed"},
		{Label: "⏰ Snooze", Data: "req:1:new:snoozed"},
		{Label: "❌ Cancel", Data: "req:1:new:cancelled"},
	}

	markup, ok := actionMarkup(actions)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Len(t, markup.InlineKeyboard[0], 2)
	assert.Len(t, markup.InlineKeyboard[1], 1)
	assert.Equal(t, "✅ Confirm", markup.InlineKeyboard[0][0].Text)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "req:1:new:confirmed", *markup.InlineKeyboard[0][0].CallbackData)
}

func TestActionMarkupEmpty(t *testing.T) {
	_, ok := actionMarkup(nil)
	assert.False(t, ok)
}

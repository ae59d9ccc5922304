package render

import (
	"testing"
	"time"

	"leadinbox/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() *models.Request {
	return &models.Request{
		ID:        42,
		Source:    "landing-page",
		Name:      "Anna",
		Phone:     "+15550001111",
		Text:      "Please call me back",
		Status:    models.StatusNew,
		CreatedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestRequestCard(t *testing.T) {
	card := RequestCard(sampleRequest())

	assert.Contains(t, card, "Request #42")
	assert.Contains(t, card, "New")
	assert.Contains(t, card, "2026-03-14 09:30")
	assert.Contains(t, card, "Anna")
	assert.Contains(t, card, "+15550001111")
	assert.Contains(t, card, "landing-page")
	assert.Contains(t, card, "Please call me back")
}

func TestRequestCardEmptyFields(t *testing.T) {
	req := sampleRequest()
	req.Name = ""
	req.Phone = "  "
	req.Text = ""

	card := RequestCard(req)
	assert.Contains(t, card, "—")
	assert.NotContains(t, card, "  \n")
}

func TestRequestActions(t *testing.T) {
	req := sampleRequest()

	actions := RequestActions(req)
	require.Len(t, actions, 3)
	assert.Equal(t, "✅ Confirm", actions[0].Label)
	assert.Equal(t, "req:42:new:confirmed", actions[0].Data)
	assert.Equal(t, "⏰ Snooze", actions[1].Label)
	assert.Equal(t, "❌ Cancel", actions[2].Label)

	req.Status = models.StatusConfirmed
	actions = RequestActions(req)
	require.Len(t, actions, 2)
	assert.Equal(t, "req:42:confirmed:snoozed", actions[0].Data)

	req.Status = models.StatusCancelled
	assert.Empty(t, RequestActions(req))
}

func TestActionCodecRoundTrip(t *testing.T) {
	data := EncodeAction(7, models.StatusSnoozed, models.StatusConfirmed)
	assert.Equal(t, "req:7:snoozed:confirmed", data)

	id, from, to, err := ParseAction(data)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, models.StatusSnoozed, from)
	assert.Equal(t, models.StatusConfirmed, to)
}

func TestParseActionRejectsMalformedData(t *testing.T) {
	tests := []string{
		"",
		"req",
		"req:7",
		"req:7:new",
		"req:7:new:confirmed:extra",
		"lead:7:new:confirmed",
		"req:abc:new:confirmed",
		"req:7:bogus:confirmed",
		"req:7:new:bogus",
	}

	for _, data := range tests {
		t.Run(data, func(t *testing.T) {
			_, _, _, err := ParseAction(data)
			assert.Error(t, err)
		})
	}
}

func TestRequestList(t *testing.T) {
	assert.Equal(t, "Nothing found.", RequestList(nil))

	req := sampleRequest()
	list := RequestList([]models.Request{*req})
	assert.Contains(t, list, "#42")
	assert.Contains(t, list, "[New]")
	assert.Contains(t, list, "09:30")
	assert.Contains(t, list, "Anna")
}

// Package render turns stored requests into chat-facing text and action
// controls. It owns the callback-data codec, so the encoding stays opaque
// to everything outside this package and the bot shell.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"leadinbox/internal/models"
)

const actionPrefix = "req"

var statusEmoji = map[models.Status]string{
	models.StatusNew:       "\U0001F195",
	models.StatusConfirmed: "✅",
	models.StatusSnoozed:   "⏰",
	models.StatusCancelled: "❌",
}

var statusLabel = map[models.Status]string{
	models.StatusNew:       "New",
	models.StatusConfirmed: "Confirmed",
	models.StatusSnoozed:   "Snoozed",
	models.StatusCancelled: "Cancelled",
}

var actionLabel = map[models.Status]string{
	models.StatusConfirmed: "✅ Confirm",
	models.StatusSnoozed:   "⏰ Snooze",
	models.StatusCancelled: "❌ Cancel",
}

// StatusLabel returns the human-readable label for a status.
func StatusLabel(s models.Status) string {
	if label, ok := statusLabel[s]; ok {
		return label
	}
	return string(s)
}

// RequestCard renders the full chat message for one request.
func RequestCard(req *models.Request) string {
	emoji := statusEmoji[req.Status]
	if emoji == "" {
		emoji = "\U0001F4DD" // 📝
	}

	lines := []string{
		fmt.Sprintf("%s Request #%d — %s", emoji, req.ID, StatusLabel(req.Status)),
		fmt.Sprintf("\U0001F552 %s (UTC)", req.CreatedAt.UTC().Format("2006-01-02 15:04")),
		fmt.Sprintf("\U0001F464 %s", orDash(req.Name)),
		fmt.Sprintf("\U0001F4DE %s", orDash(req.Phone)),
		fmt.Sprintf("\U0001F4E9 %s", orDash(req.Source)),
		"",
		fmt.Sprintf("\U0001F4AC %s", orDash(req.Text)),
	}
	return strings.Join(lines, "\n")
}

// RequestActions returns the action controls legal from the request's
// current status. A cancelled request gets none.
func RequestActions(req *models.Request) []models.Action {
	targets := req.Status.TransitionTargets()
	actions := make([]models.Action, 0, len(targets))
	for _, target := range targets {
		actions = append(actions, models.Action{
			Label: actionLabel[target],
			Data:  EncodeAction(req.ID, req.Status, target),
		})
	}
	return actions
}

// RequestLine renders one request as a single list row.
func RequestLine(req *models.Request) string {
	return fmt.Sprintf("#%d [%s] %s — %s — %s",
		req.ID,
		StatusLabel(req.Status),
		req.CreatedAt.UTC().Format("15:04"),
		orDash(req.Name),
		orDash(req.Source),
	)
}

// RequestList renders a reporting result, newest ordering left to the caller.
func RequestList(requests []models.Request) string {
	if len(requests) == 0 {
		return "Nothing found."
	}
	lines := make([]string, 0, len(requests))
	for i := range requests {
		lines = append(lines, RequestLine(&requests[i]))
	}
	return strings.Join(lines, "\n")
}

// EncodeAction packs a request id and the expected transition into opaque
// callback data. The expected current status rides along so a stale button
// press (raced by another operator) can be detected server-side.
func EncodeAction(requestID int64, from, to models.Status) string {
	return fmt.Sprintf("%s:%d:%s:%s", actionPrefix, requestID, from, to)
}

// ParseAction unpacks callback data produced by EncodeAction.
func ParseAction(data string) (requestID int64, from, to models.Status, err error) {
	parts := strings.Split(data, ":")
	if len(parts) != 4 || parts[0] != actionPrefix {
		return 0, "", "", fmt.Errorf("malformed action data: %q", data)
	}

	requestID, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", "", fmt.Errorf("malformed request id in action data: %q", data)
	}

	from, ok := models.ParseStatus(parts[2])
	if !ok {
		return 0, "", "", fmt.Errorf("unknown status in action data: %q", data)
	}
	to, ok = models.ParseStatus(parts[3])
	if !ok {
		return 0, "", "", fmt.Errorf("unknown status in action data: %q", data)
	}
	return requestID, from, to, nil
}

func orDash(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "—"
	}
	return v
}

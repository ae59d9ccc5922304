package models

import "time"

// NotifyState tracks how far the chat mirror of a request has progressed.
type NotifyState string

const (
	// NotifyStatePending means no chat message has been created yet.
	NotifyStatePending NotifyState = "pending"
	// NotifyStateSent means a chat message exists for the request.
	NotifyStateSent NotifyState = "sent"
	// NotifyStateFailed means delivery was abandoned after the attempt
	// budget was exhausted. The stored request remains authoritative.
	NotifyStateFailed NotifyState = "failed"
)

// Tenant is one operator chat destination with its webhook credential.
type Tenant struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chatId"`
	Token     string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Client is a deduplicated contact extracted from inbound requests.
type Client struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenantId"`
	Name      string    `json:"name,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Request is a single inbound contact event with its handling status and
// the handle of the chat message mirroring it.
type Request struct {
	ID             int64       `json:"id"`
	TenantID       int64       `json:"tenantId"`
	ClientID       *int64      `json:"clientId,omitempty"`
	Source         string      `json:"source"`
	Name           string      `json:"name,omitempty"`
	Phone          string      `json:"phone,omitempty"`
	Text           string      `json:"text,omitempty"`
	Payload        string      `json:"-"`
	Status         Status      `json:"status"`
	ChatID         int64       `json:"-"`
	MessageID      *int64      `json:"-"`
	MirroredStatus *Status     `json:"-"`
	NotifyState    NotifyState `json:"notifyState"`
	NotifyAttempts int         `json:"-"`
	NextAttemptAt  *time.Time  `json:"-"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// HasHandle reports whether a chat message was ever created for the request.
func (r *Request) HasHandle() bool {
	return r.MessageID != nil
}

// Mirrored reports whether the chat message already reflects the current
// status.
func (r *Request) Mirrored() bool {
	return r.MirroredStatus != nil && *r.MirroredStatus == r.Status
}

// Action is one operator-invocable control attached to a chat message. Data
// is an opaque callback payload carrying the request id and the expected
// transition.
type Action struct {
	Label string
	Data  string
}

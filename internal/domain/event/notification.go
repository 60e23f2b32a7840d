package event

import "time"

// Notification is one message for an account holder, as carried by every
// notification transport.
type Notification struct {
	ID         string    `json:"id"`
	TransferID string    `json:"transfer_id,omitempty"`
	AccountID  string    `json:"account_id"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

package dto

import "time"

// OrderResponse represents a reconciled order as exposed via transport layers.
type OrderResponse struct {
	OrderID       string    `json:"order_id"`
	Provider      string    `json:"provider"`
	Status        string    `json:"status"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	Metadata      string    `json:"metadata,omitempty"`
	LastEventType string    `json:"last_event_type"`
	LastEventAt   time.Time `json:"last_event_at"`
	RawEventID    string    `json:"raw_event_id"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// WebhookResult is the typed outcome of processing one webhook delivery.
// Ignored means the event carried no order object and was acknowledged
// without mutation; Duplicate means the event id was already processed.
type WebhookResult struct {
	Success   bool   `json:"success"`
	Updated   bool   `json:"updated,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Ignored   bool   `json:"ignored,omitempty"`
	Provider  string `json:"provider"`
	OrderID   string `json:"order_id,omitempty"`
	EventID   string `json:"event_id,omitempty"`
}

package registry

import "time"

// Recipient is a unique (by email) destination identity for a campaign.
// The surrogate id addresses the open pixel; unguessability lives in the
// link token, not here.
type Recipient struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// TrackingLink binds one minted token to a recipient and a destination URL.
// Rows are immutable once created; a recipient accumulates one per send.
type TrackingLink struct {
	ID          int64     `json:"id"`
	RecipientID int64     `json:"recipient_id"`
	Token       string    `json:"token"`
	TargetURL   string    `json:"target_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// OpenEvent records a pixel fetch by a known recipient's mail client.
// Name and Email are projection fields joined in for reporting.
type OpenEvent struct {
	ID          int64     `json:"id"`
	RecipientID int64     `json:"recipient_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	IP          string    `json:"ip"`
	UserAgent   string    `json:"user_agent"`
	CreatedAt   time.Time `json:"created_at"`
}

// ClickEvent records a recipient following a tracked link, keyed by token.
// Duplicate clicks each get their own row; clicks are a log, not a counter.
type ClickEvent struct {
	ID          int64     `json:"id"`
	RecipientID int64     `json:"recipient_id"`
	Token       string    `json:"token"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	TargetURL   string    `json:"target_url"`
	IP          string    `json:"ip"`
	UserAgent   string    `json:"user_agent"`
	CreatedAt   time.Time `json:"created_at"`
}

// Report is the read-only projection over the four tables: recipients
// most-recently-registered first, events newest first.
type Report struct {
	Recipients []Recipient  `json:"recipients"`
	Opens      []OpenEvent  `json:"opens"`
	Clicks     []ClickEvent `json:"clicks"`
}

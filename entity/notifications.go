package entity

type TicketConfirmation struct {
	TicketID       string `json:"ticket_id"`
	EventID        string `json:"event_id"`
	EventTitle     string `json:"event_title"`
	GuestName      string `json:"guest_name"`
	GuestEmail     string `json:"guest_email"`
	ScanCode       string `json:"scan_code"`
	ShortCode      string `json:"short_code"`
	IdempotencyKey string `json:"idempotency_key"`
}

type HostNotification struct {
	HostID         string               `json:"host_id"`
	EventID        string               `json:"event_id"`
	TicketID       string               `json:"ticket_id,omitempty"`
	Kind           HostNotificationKind `json:"kind"`
	Message        string               `json:"message"`
	IdempotencyKey string               `json:"idempotency_key"`
}

package types

// Provider webhook event types this server reacts to.  Everything else is
// acknowledged and ignored.
const (
	EventChargeSucceeded = "charge.succeeded"
	EventRefundCreated   = "refund.created"
)

// WebhookEvent is the provider's delivery envelope.  Deliveries are
// at-least-once and may arrive out of order or duplicated.
type WebhookEvent struct {
	ID   string      `json:"id"`
	Type string      `json:"type"`
	Data WebhookData `json:"data"`
}

type WebhookData struct {
	Object WebhookObject `json:"object"`
}

// WebhookObject is the union of the fields used from charge and refund
// payloads.  For charge.succeeded, ID/Amount/Metadata are set; for
// refund.created, Charge names the originating charge id.
type WebhookObject struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Charge   string            `json:"charge,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

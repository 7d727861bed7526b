package types

// ChargeStatus is the ledger state of a payment charge.  A row is created
// in StatusSucceeded by the first successful webhook delivery; before that
// the charge is implicitly pending (row absent).  StatusRefunded is
// terminal.
type ChargeStatus string

const (
	StatusSucceeded ChargeStatus = "succeeded"
	StatusRefunded  ChargeStatus = "refunded"
)

// Charge is one payment-provider transaction recorded against a collection.
// Amount is in minor currency units.
type Charge struct {
	ChargeID     string       `json:"charge_id"`
	CollectionID string       `json:"collection_id"`
	Amount       int64        `json:"amount"`
	Status       ChargeStatus `json:"status"`
}

package event

import (
	"encoding/json"
	"time"
)

// Change notification kinds emitted by the upstream system of record.
const (
	KindStockUpdate       = "stock.update"
	KindStockout          = "stock.stockout"
	KindRequisitionUpdate = "requisition.update"
	KindFacilityUpdate    = "facility.update"
)

// ChangeEvent is one accepted change notification awaiting processing.
// Payload is kept as the raw JSON body the upstream sent; handlers decode
// it per kind. Attempts and LastError are bookkeeping for the retry loop
// and are only touched by the processor, which runs events one at a time.
type ChangeEvent struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"last_error,omitempty"`
}

// Notification is the upstream wire shape: a kind plus kind-specific fields
// in the same flat object. Only Kind is decoded at the boundary; the rest of
// the body rides along untouched in ChangeEvent.Payload.
type Notification struct {
	Kind string `json:"kind"`
}

// StockChange is the payload for stock.update and stock.stockout.
type StockChange struct {
	FacilityID string `json:"facilityId"`
	ProductID  string `json:"productId"`
	Quantity   int    `json:"quantity"`
	LGA        string `json:"lga,omitempty"`
	State      string `json:"state,omitempty"`
}

// RequisitionChange is the payload for requisition.update.
type RequisitionChange struct {
	RequisitionID string `json:"requisitionId"`
	FacilityID    string `json:"facilityId"`
	Status        string `json:"status"`
}

// FacilityChange is the payload for facility.update.
type FacilityChange struct {
	FacilityID string `json:"facilityId"`
	Name       string `json:"name,omitempty"`
	LGA        string `json:"lga,omitempty"`
	State      string `json:"state,omitempty"`
}

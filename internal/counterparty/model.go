package counterparty

import "time"

// Counterparty is a customer/vendor identity within a legal entity. The
// optional control-account ids override the purpose-derived AR/AP control
// account when the settlement engine posts against this counterparty.
type Counterparty struct {
	ID                 int64
	TenantID           int64
	LegalEntityID      int64
	Code               string
	Name               string
	IsCustomer         bool
	IsVendor           bool
	ARControlAccountID *int64
	APControlAccountID *int64
	Active             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

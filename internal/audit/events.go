// Package audit defines the typed settlement audit records. Payloads are
// structured rather than free-form blobs so downstream consumers (and the
// reversal engine's diagnostics) read them structurally, with a small open
// extension map for source-system extras.
package audit

import (
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Actions recorded by the settlement engine.
const (
	ActionSettlementApply   = "settlement.apply"
	ActionSettlementReverse = "settlement.reverse"
	ActionBankRefAttach     = "settlement.bank_ref.attach"
)

// AllocationRecord snapshots one allocation. Amounts are decimal strings.
type AllocationRecord struct {
	OpenItemID         int64  `json:"openItemId"`
	AmountTxn          string `json:"amountTxn"`
	AmountBaseHistoric string `json:"amountBaseHistoric"`
	AmountBaseSettle   string `json:"amountBaseSettle"`
}

// ConsumptionRecord snapshots one unapplied-cash consumption.
type ConsumptionRecord struct {
	UnappliedCashID int64  `json:"unappliedCashId"`
	AmountTxn       string `json:"amountTxn"`
	AmountBase      string `json:"amountBase"`
}

// ApplySnapshot captures the full computed plan of one apply.
type ApplySnapshot struct {
	BatchID            int64
	Number             string
	IdempotencyKey     string
	Allocations        []AllocationRecord
	Consumed           []ConsumptionRecord
	CreatedUnappliedID *int64
	CashTransactionID  *int64
	JournalEntryID     int64
	FXRate             string
	FXSource           string
	FXVarianceBase     string
	Ext                map[string]any
}

// Meta flattens the snapshot into the audit_logs meta shape.
func (s ApplySnapshot) Meta() map[string]any {
	meta := map[string]any{
		"number":           s.Number,
		"idempotency_key":  s.IdempotencyKey,
		"allocations":      s.Allocations,
		"consumed":         s.Consumed,
		"journal_entry_id": s.JournalEntryID,
		"fx_rate":          s.FXRate,
		"fx_source":        s.FXSource,
		"fx_variance_base": s.FXVarianceBase,
	}
	if s.CreatedUnappliedID != nil {
		meta["created_unapplied_id"] = *s.CreatedUnappliedID
	}
	if s.CashTransactionID != nil {
		meta["cash_transaction_id"] = *s.CashTransactionID
	}
	for k, v := range s.Ext {
		meta[k] = v
	}
	return meta
}

// ReverseSnapshot captures a reversal outcome.
type ReverseSnapshot struct {
	OriginalBatchID   int64
	ReversalBatchID   int64
	ReversalJournalID int64
	Memo              string
}

// Meta flattens the snapshot into the audit_logs meta shape.
func (s ReverseSnapshot) Meta() map[string]any {
	return map[string]any{
		"original_batch_id":   s.OriginalBatchID,
		"reversal_batch_id":   s.ReversalBatchID,
		"reversal_journal_id": s.ReversalJournalID,
		"memo":                s.Memo,
	}
}

// NewLog builds a shared.AuditLog for a settlement action.
func NewLog(actorID int64, action, entity, entityID string, meta map[string]any, at time.Time) shared.AuditLog {
	return shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
		At:       at,
	}
}

package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/counterparty"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Purpose codes consulted by the posting account resolver. Context-suffixed
// variants take priority over the generic code.
const (
	PurposeARControl = "CARI_AR_CONTROL"
	PurposeAROffset  = "CARI_AR_OFFSET"
	PurposeAPControl = "CARI_AP_CONTROL"
	PurposeAPOffset  = "CARI_AP_OFFSET"
)

func contextSuffix(sc SourceContext) string {
	switch sc {
	case ContextCashLinked:
		return "_CASH"
	case ContextOnAccountApply:
		return "_ON_ACCOUNT"
	default:
		return "_MANUAL"
	}
}

// CandidateCodes builds the ordered candidate list for one role: the
// context-suffixed code first, the generic code second.
func CandidateCodes(code string, sc SourceContext) []string {
	return []string{code + contextSuffix(sc), code}
}

// PostingAccounts is the resolved control/offset pair for a settlement.
type PostingAccounts struct {
	Control     ledger.Account
	Offset      ledger.Account
	ControlCode string
	OffsetCode  string
	// ControlOverridden is true when a counterparty override replaced the
	// purpose-derived control account.
	ControlOverridden bool
}

// AccountSource abstracts the lookups the resolver needs; the settlement
// transaction repository implements it so resolution sees transactional state.
type AccountSource interface {
	ResolvePurposeAccount(ctx context.Context, legalEntityID int64, codes []string) (ledger.Account, string, error)
	GetAccount(ctx context.Context, accountID int64) (ledger.Account, error)
}

// ResolvePostingAccounts maps direction + source context to a control/offset
// account pair for the legal entity. A role-compatible, validated
// counterparty override replaces the control account only; the offset is
// always purpose-derived.
func ResolvePostingAccounts(ctx context.Context, src AccountSource, legalEntityID int64, dir Direction, sc SourceContext, cp counterparty.Counterparty) (PostingAccounts, error) {
	controlBase, offsetBase := PurposeARControl, PurposeAROffset
	if dir == DirectionAP {
		controlBase, offsetBase = PurposeAPControl, PurposeAPOffset
	}
	controlCodes := CandidateCodes(controlBase, sc)
	offsetCodes := CandidateCodes(offsetBase, sc)

	var missing []string
	control, controlCode, err := src.ResolvePurposeAccount(ctx, legalEntityID, controlCodes)
	if err != nil {
		if errors.Is(err, ledger.ErrMappingNotFound) {
			missing = append(missing, controlCodes...)
		} else {
			return PostingAccounts{}, err
		}
	}
	offset, offsetCode, err := src.ResolvePurposeAccount(ctx, legalEntityID, offsetCodes)
	if err != nil {
		if errors.Is(err, ledger.ErrMappingNotFound) {
			missing = append(missing, offsetCodes...)
		} else {
			return PostingAccounts{}, err
		}
	}
	if len(missing) > 0 {
		return PostingAccounts{}, &SetupError{LegalEntityID: legalEntityID, MissingCodes: missing}
	}

	out := PostingAccounts{Control: control, Offset: offset, ControlCode: controlCode, OffsetCode: offsetCode}

	overrideID := cp.ARControlAccountID
	if dir == DirectionAP {
		overrideID = cp.APControlAccountID
	}
	if overrideID != nil {
		account, err := src.GetAccount(ctx, *overrideID)
		if err != nil {
			return PostingAccounts{}, err
		}
		if err := counterparty.ValidateOverride(cp, account, string(dir)); err != nil {
			return PostingAccounts{}, err
		}
		out.Control = account
		out.ControlOverridden = true
	}

	if err := checkPostable(out.Control, legalEntityID, "control"); err != nil {
		return PostingAccounts{}, err
	}
	if err := checkPostable(out.Offset, legalEntityID, "offset"); err != nil {
		return PostingAccounts{}, err
	}
	if out.Control.ID == out.Offset.ID {
		return PostingAccounts{}, fmt.Errorf("settlement: control and offset resolve to the same account %d: %w", out.Control.ID, shared.ErrSetup)
	}
	return out, nil
}

func checkPostable(account ledger.Account, legalEntityID int64, role string) error {
	if account.LegalEntityID != legalEntityID {
		return fmt.Errorf("settlement: %s account %d belongs to another legal entity: %w", role, account.ID, shared.ErrSetup)
	}
	if !account.Active {
		return fmt.Errorf("settlement: %s account %d is inactive: %w", role, account.ID, shared.ErrSetup)
	}
	if !account.Postable {
		return fmt.Errorf("settlement: %s account %d is not postable: %w", role, account.ID, shared.ErrSetup)
	}
	return nil
}

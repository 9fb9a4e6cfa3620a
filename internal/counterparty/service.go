package counterparty

import (
	"context"
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// AccountLookup loads ledger accounts for override validation.
type AccountLookup interface {
	GetAccount(ctx context.Context, accountID int64) (ledger.Account, error)
}

// Service validates and stores counterparty control-account overrides.
type Service struct {
	repo     *Repository
	accounts AccountLookup
}

// NewService builds a Service instance.
func NewService(repo *Repository, accounts AccountLookup) *Service {
	return &Service{repo: repo, accounts: accounts}
}

// ValidateOverride checks an override account against the counterparty's
// role, the account's activity, postability, and legal entity. direction is
// "AR" or "AP".
func ValidateOverride(cp Counterparty, account ledger.Account, direction string) error {
	switch direction {
	case "AR":
		if !cp.IsCustomer {
			return fmt.Errorf("counterparty: AR override requires isCustomer: %w", shared.ErrValidation)
		}
		if account.Type != ledger.AccountTypeAsset {
			return fmt.Errorf("counterparty: AR control account must be an asset account: %w", shared.ErrValidation)
		}
	case "AP":
		if !cp.IsVendor {
			return fmt.Errorf("counterparty: AP override requires isVendor: %w", shared.ErrValidation)
		}
		if account.Type != ledger.AccountTypeLiability {
			return fmt.Errorf("counterparty: AP control account must be a liability account: %w", shared.ErrValidation)
		}
	default:
		return fmt.Errorf("counterparty: unknown direction %q: %w", direction, shared.ErrValidation)
	}
	if account.LegalEntityID != cp.LegalEntityID {
		return fmt.Errorf("counterparty: override account belongs to another legal entity: %w", shared.ErrValidation)
	}
	if !account.Active {
		return fmt.Errorf("counterparty: override account is inactive: %w", shared.ErrValidation)
	}
	if !account.Postable {
		return fmt.Errorf("counterparty: override account is not postable: %w", shared.ErrValidation)
	}
	return nil
}

// SetControlOverrides validates and persists the override pair. Either id may
// be nil to clear the override.
func (s *Service) SetControlOverrides(ctx context.Context, counterpartyID int64, arAccountID, apAccountID *int64) error {
	cp, err := s.repo.Get(ctx, counterpartyID)
	if err != nil {
		return err
	}
	if arAccountID != nil {
		account, err := s.accounts.GetAccount(ctx, *arAccountID)
		if err != nil {
			return err
		}
		if err := ValidateOverride(cp, account, "AR"); err != nil {
			return err
		}
	}
	if apAccountID != nil {
		account, err := s.accounts.GetAccount(ctx, *apAccountID)
		if err != nil {
			return err
		}
		if err := ValidateOverride(cp, account, "AP"); err != nil {
			return err
		}
	}
	return s.repo.SetControlOverrides(ctx, counterpartyID, arAccountID, apAccountID)
}

package settlement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/counterparty"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func TestCandidateCodesOrder(t *testing.T) {
	require.Equal(t,
		[]string{"CARI_AR_CONTROL_CASH", "CARI_AR_CONTROL"},
		CandidateCodes(PurposeARControl, ContextCashLinked))
	require.Equal(t,
		[]string{"CARI_AP_OFFSET_ON_ACCOUNT", "CARI_AP_OFFSET"},
		CandidateCodes(PurposeAPOffset, ContextOnAccountApply))
	require.Equal(t,
		[]string{"CARI_AR_OFFSET_MANUAL", "CARI_AR_OFFSET"},
		CandidateCodes(PurposeAROffset, ContextManual))
}

func TestResolvePostingAccountsGeneric(t *testing.T) {
	repo := seedRepo()
	cp := repo.counterparties[testCounterparty]

	accounts, err := ResolvePostingAccounts(context.Background(), &memTx{r: repo}, testLegalEntity, DirectionAR, ContextManual, cp)
	require.NoError(t, err)
	require.Equal(t, arControlAccount, accounts.Control.ID)
	require.Equal(t, arOffsetAccount, accounts.Offset.ID)
	require.Equal(t, PurposeARControl, accounts.ControlCode)
	require.Equal(t, PurposeAROffset, accounts.OffsetCode)
	require.False(t, accounts.ControlOverridden)
}

func TestResolvePostingAccountsContextSuffixWins(t *testing.T) {
	repo := seedRepo()
	cashControl := ledger.Account{ID: 50, TenantID: testTenant, LegalEntityID: testLegalEntity, Code: "1201", Name: "Receivables Cash Desk", Type: ledger.AccountTypeAsset, Active: true, Postable: true}
	repo.accounts[cashControl.ID] = cashControl
	repo.purposes[purposeKey(testLegalEntity, PurposeARControl+"_CASH")] = cashControl.ID
	cp := repo.counterparties[testCounterparty]

	accounts, err := ResolvePostingAccounts(context.Background(), &memTx{r: repo}, testLegalEntity, DirectionAR, ContextCashLinked, cp)
	require.NoError(t, err)
	require.Equal(t, cashControl.ID, accounts.Control.ID)
	require.Equal(t, PurposeARControl+"_CASH", accounts.ControlCode)
	// The offset still falls back to the generic mapping.
	require.Equal(t, arOffsetAccount, accounts.Offset.ID)
	require.Equal(t, PurposeAROffset, accounts.OffsetCode)
}

func TestResolvePostingAccountsCounterpartyOverride(t *testing.T) {
	repo := seedRepo()
	override := ledger.Account{ID: overrideAccountID, TenantID: testTenant, LegalEntityID: testLegalEntity, Code: "1290", Name: "Receivables Key Accounts", Type: ledger.AccountTypeAsset, Active: true, Postable: true}
	repo.accounts[override.ID] = override
	cp := repo.counterparties[testCounterparty]
	cp.ARControlAccountID = &override.ID
	repo.counterparties[testCounterparty] = cp

	accounts, err := ResolvePostingAccounts(context.Background(), &memTx{r: repo}, testLegalEntity, DirectionAR, ContextManual, cp)
	require.NoError(t, err)
	require.True(t, accounts.ControlOverridden)
	require.Equal(t, override.ID, accounts.Control.ID)
	require.Equal(t, arOffsetAccount, accounts.Offset.ID)
}

func TestResolvePostingAccountsOverrideRoleMismatch(t *testing.T) {
	repo := seedRepo()
	// A liability account cannot serve as AR control.
	repo.accounts[overrideAccountID] = ledger.Account{ID: overrideAccountID, TenantID: testTenant, LegalEntityID: testLegalEntity, Code: "2290", Type: ledger.AccountTypeLiability, Active: true, Postable: true}
	cp := repo.counterparties[testCounterparty]
	id := overrideAccountID
	cp.ARControlAccountID = &id

	_, err := ResolvePostingAccounts(context.Background(), &memTx{r: repo}, testLegalEntity, DirectionAR, ContextManual, cp)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestResolvePostingAccountsOverrideRequiresRole(t *testing.T) {
	repo := seedRepo()
	override := ledger.Account{ID: overrideAccountID, TenantID: testTenant, LegalEntityID: testLegalEntity, Code: "1290", Type: ledger.AccountTypeAsset, Active: true, Postable: true}
	repo.accounts[override.ID] = override
	cp := counterparty.Counterparty{
		ID:                 testCounterparty,
		TenantID:           testTenant,
		LegalEntityID:      testLegalEntity,
		IsCustomer:         false,
		IsVendor:           true,
		ARControlAccountID: &override.ID,
		Active:             true,
	}

	_, err := ResolvePostingAccounts(context.Background(), &memTx{r: repo}, testLegalEntity, DirectionAR, ContextManual, cp)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestResolvePostingAccountsMissingMappings(t *testing.T) {
	repo := seedRepo()
	delete(repo.purposes, purposeKey(testLegalEntity, PurposeAPControl))
	delete(repo.purposes, purposeKey(testLegalEntity, PurposeAPOffset))
	cp := repo.counterparties[testCounterparty]

	_, err := ResolvePostingAccounts(context.Background(), &memTx{r: repo}, testLegalEntity, DirectionAP, ContextManual, cp)
	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	require.Equal(t, testLegalEntity, setupErr.LegalEntityID)
	require.Contains(t, setupErr.MissingCodes, PurposeAPControl)
	require.Contains(t, setupErr.MissingCodes, PurposeAPOffset)
}

func TestResolvePostingAccountsNotPostable(t *testing.T) {
	repo := seedRepo()
	control := repo.accounts[arControlAccount]
	control.Postable = false
	repo.accounts[arControlAccount] = control
	cp := repo.counterparties[testCounterparty]

	_, err := ResolvePostingAccounts(context.Background(), &memTx{r: repo}, testLegalEntity, DirectionAR, ContextManual, cp)
	require.ErrorIs(t, err, shared.ErrSetup)
}

func TestResolvePostingAccountsSameAccountRejected(t *testing.T) {
	repo := seedRepo()
	repo.purposes[purposeKey(testLegalEntity, PurposeAROffset)] = arControlAccount
	cp := repo.counterparties[testCounterparty]

	_, err := ResolvePostingAccounts(context.Background(), &memTx{r: repo}, testLegalEntity, DirectionAR, ContextManual, cp)
	require.ErrorIs(t, err, shared.ErrSetup)
}

package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ResolvePurposeAccount walks the ordered candidate codes and returns the
// account behind the first mapping found for the legal entity, together with
// the code that matched. Context-suffixed codes are expected first in the
// slice so they take priority over the generic code.
func ResolvePurposeAccount(ctx context.Context, q Querier, legalEntityID int64, codes []string) (Account, string, error) {
	for _, code := range codes {
		normalized := strings.ToUpper(strings.TrimSpace(code))
		if normalized == "" {
			continue
		}
		var accountID int64
		err := q.QueryRow(ctx, `SELECT account_id FROM journal_purpose_accounts WHERE legal_entity_id=$1 AND code=$2`,
			legalEntityID, normalized).Scan(&accountID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return Account{}, "", err
		}
		account, err := GetAccount(ctx, q, accountID)
		if err != nil {
			return Account{}, "", err
		}
		return account, normalized, nil
	}
	return Account{}, "", ErrMappingNotFound
}

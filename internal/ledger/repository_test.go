package ledger

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

// countingQuerier fails every call; InsertEntry must not reach the database
// when the posting input is invalid.
type countingQuerier struct {
	calls int
}

type erroringRow struct{}

func (erroringRow) Scan(dest ...any) error { return pgx.ErrNoRows }

func (q *countingQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.calls++
	return erroringRow{}
}

func (q *countingQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.calls++
	return nil, pgx.ErrNoRows
}

func (q *countingQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.calls++
	return pgconn.CommandTag{}, nil
}

func TestInsertEntryRejectsInvalidInput(t *testing.T) {
	q := &countingQuerier{}

	unbalanced := validPosting()
	unbalanced.Lines[1].Credit = dec("60")
	_, err := InsertEntry(context.Background(), q, unbalanced)
	require.ErrorIs(t, err, ErrUnbalanced)
	require.Zero(t, q.calls)

	oneLine := validPosting()
	oneLine.Lines = oneLine.Lines[:1]
	_, err = InsertEntry(context.Background(), q, oneLine)
	require.ErrorIs(t, err, ErrTooFewLines)
	require.Zero(t, q.calls)
}

package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
)

func createTransactionsTable(ctx context.Context, db *sqlx.DB) error {
	var schema = `
	CREATE TABLE IF NOT EXISTS transactions (
	id uuid DEFAULT uuid_generate_v4() PRIMARY KEY,
	type text NOT NULL CHECK (type IN ('Credit', 'Debit')),
	amount NUMERIC NOT NULL,
	category text NOT NULL CHECK (category <> ''),
	description text NOT NULL DEFAULT '',
	created_at timestamptz NOT NULL DEFAULT now()
	                         )
	`
	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return err
	}

	// listing is always newest first
	_, err = db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS transactions_created_at_idx ON transactions (created_at DESC)")
	return err
}

package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"expense/transaction/options"
)

// Data store abstraction for querying transactions
type TransactionRepo interface {
	// Create stores t and fills in its generated ID and, when zero, its Timestamp
	Create(ctx context.Context, t *Transaction) error
	FindById(ctx context.Context, id string) (*Transaction, error)
	// Find returns matching transactions, newest first
	Find(ctx context.Context, opts ...*options.TransactionOptions) ([]*Transaction, error)
	// UpdateById applies the supplied fields and returns the stored result
	UpdateById(ctx context.Context, id string, fields Fields) (*Transaction, error)
	// DeleteById removes the transaction and returns it as it was
	DeleteById(ctx context.Context, id string) (*Transaction, error)
}

var _ TransactionRepo = (*PostgresTransactionRepo)(nil)

const columns = "id, type, amount, category, description, created_at"

type PostgresTransactionRepo struct {
	db *sqlx.DB
}

func NewPostgresRepo(db *sqlx.DB) (*PostgresTransactionRepo, error) {
	if db == nil {
		return nil, errors.New("postgres repo: nil db")
	}
	return &PostgresTransactionRepo{db: db}, nil
}

func (r *PostgresTransactionRepo) Create(ctx context.Context, t *Transaction) error {
	var createdAt *time.Time
	if !t.Timestamp.IsZero() {
		ts := t.Timestamp
		createdAt = &ts
	}

	query, args, err := sqlx.Named(
		`INSERT INTO transactions (type, amount, category, description, created_at)
		VALUES (:type, :amount, :category, :description, COALESCE(CAST(:created_at AS timestamptz), now()))
		RETURNING id, created_at`,
		map[string]interface{}{
			"type":        string(t.Type),
			"amount":      t.Amount,
			"category":    t.Category,
			"description": t.Description,
			"created_at":  createdAt,
		},
	)
	if err != nil {
		return err
	}

	err = r.db.QueryRowxContext(ctx, r.db.Rebind(query), args...).Scan(&t.ID, &t.Timestamp)
	if err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}
	return nil
}

func (r *PostgresTransactionRepo) FindById(ctx context.Context, id string) (*Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	var result Transaction
	err := r.db.GetContext(ctx, &result, "SELECT "+columns+" FROM transactions WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "finding transaction "+id)
	}

	return &result, nil
}

// Executes a Find operation and returns a list of Transactions, newest first
// The `transactionOptions` can be used to specify options for the operation
func (r *PostgresTransactionRepo) Find(ctx context.Context, transactionOptions ...*options.TransactionOptions) ([]*Transaction, error) {
	result := make([]*Transaction, 0)

	query, namedParams := buildFindQuery(options.Merge(transactionOptions...))

	query, args, err := sqlx.Named(query, namedParams)
	if err != nil {
		return nil, err
	}
	query, args, err = sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)
	err = r.db.SelectContext(ctx, &result, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	return result, nil
}

// buildFindQuery turns options into a named query; filters are ANDed in a fixed order
func buildFindQuery(opt *options.TransactionOptions) (string, map[string]interface{}) {
	query := "SELECT " + columns + " FROM transactions"

	var where []string
	namedParams := make(map[string]interface{})

	in := func(columnName string, values []string) {
		if len(values) == 0 {
			return
		}
		where = append(where, fmt.Sprintf("%s IN (:%s)", columnName, columnName))
		namedParams[columnName] = values
	}
	between := func(columnName string, v options.Range) {
		from, ok := v.From()
		if ok {
			key := columnName + "_from"
			where = append(where, fmt.Sprintf("%s >= :%s", columnName, key))
			namedParams[key] = from
		}
		to, ok := v.To()
		if ok {
			key := columnName + "_to"
			where = append(where, fmt.Sprintf("%s <= :%s", columnName, key))
			namedParams[key] = to
		}
	}

	var ids []string
	for _, id := range opt.IDs {
		// a malformed uuid would fail the whole query
		if _, err := uuid.Parse(id); err == nil {
			ids = append(ids, id)
		}
	}
	if len(opt.IDs) > 0 && len(ids) == 0 {
		where = append(where, "FALSE")
	}
	in("id", ids)
	in("type", opt.Kinds)
	in("category", opt.Categories)
	if opt.Amount != nil {
		between("amount", opt.Amount)
	}
	if opt.Timestamp != nil {
		between("created_at", opt.Timestamp)
	}

	if len(where) > 0 {
		query = fmt.Sprintf("%s WHERE %s",
			query,
			strings.Join(where, " AND "),
		)
	}

	return query + " ORDER BY created_at DESC", namedParams
}

func (r *PostgresTransactionRepo) UpdateById(ctx context.Context, id string, fields Fields) (*Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	if fields.Empty() {
		return r.FindById(ctx, id)
	}

	var set []string
	namedParams := map[string]interface{}{"id": id}
	assign := func(columnName string, value interface{}) {
		set = append(set, fmt.Sprintf("%s = :%s", columnName, columnName))
		namedParams[columnName] = value
	}

	if fields.Type != nil {
		assign("type", string(*fields.Type))
	}
	if fields.Amount != nil {
		assign("amount", *fields.Amount)
	}
	if fields.Category != nil {
		assign("category", *fields.Category)
	}
	if fields.Description != nil {
		assign("description", *fields.Description)
	} else if fields.Has(FieldDescription) {
		assign("description", "")
	}
	if fields.Timestamp != nil {
		assign("created_at", *fields.Timestamp)
	}

	query, args, err := sqlx.Named(
		fmt.Sprintf("UPDATE transactions SET %s WHERE id = :id RETURNING %s", strings.Join(set, ", "), columns),
		namedParams,
	)
	if err != nil {
		return nil, err
	}

	var result Transaction
	err = r.db.GetContext(ctx, &result, r.db.Rebind(query), args...)
	if err != nil {
		return nil, notFound(err, "updating transaction "+id)
	}

	return &result, nil
}

func (r *PostgresTransactionRepo) DeleteById(ctx context.Context, id string) (*Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	var result Transaction
	err := r.db.GetContext(ctx, &result, "DELETE FROM transactions WHERE id = $1 RETURNING "+columns, id)
	if err != nil {
		return nil, notFound(err, "deleting transaction "+id)
	}

	return &result, nil
}

func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

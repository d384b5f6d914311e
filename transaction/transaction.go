package transaction

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Kind tells whether money came in or went out
type Kind string

const (
	Credit Kind = "Credit"
	Debit  Kind = "Debit"
)

// Valid reports whether k is one of the allowed kinds
func (k Kind) Valid() bool {
	return k == Credit || k == Debit
}

// Transaction represents a single recorded credit or debit
type Transaction struct {
	ID          string          `db:"id" json:"id"`
	Type        Kind            `db:"type" json:"type"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Category    string          `db:"category" json:"category"`
	Description string          `db:"description" json:"description"`
	Timestamp   time.Time       `db:"created_at" json:"timestamp"`
}

// MarshalJSON writes the amount as a JSON number rather than decimal's default quoted string.
func (t Transaction) MarshalJSON() ([]byte, error) {
	type alias Transaction
	return json.Marshal(struct {
		alias
		Amount json.Number `json:"amount"`
	}{
		alias:  alias(t),
		Amount: json.Number(t.Amount.String()),
	})
}

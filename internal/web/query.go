package web

import (
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"expense/transaction"
	"expense/transaction/options"
)

// parseListOptions reads the optional list filters:
// type and category (repeatable), min_amount and max_amount, from and to (RFC 3339).
func parseListOptions(q url.Values) (*options.TransactionOptions, error) {
	opts := options.NewTransactionOptions()
	verr := &transaction.ValidationError{Message: "Invalid query parameters"}

	if kinds := q["type"]; len(kinds) > 0 {
		for _, k := range kinds {
			if !transaction.Kind(k).Valid() {
				verr.Invalid = append(verr.Invalid, "type")
				break
			}
		}
		opts.SetKinds(kinds...)
	}
	if categories := q["category"]; len(categories) > 0 {
		opts.SetCategories(categories...)
	}

	amount := options.NewDecimalRange()
	amount.Low = parseDecimal(q, "min_amount", verr)
	amount.High = parseDecimal(q, "max_amount", verr)
	if amount.Low != nil || amount.High != nil {
		opts.SetAmountRange(amount)
	}

	timestamp := &options.TimeRange{
		Low:  parseTime(q, "from", verr),
		High: parseTime(q, "to", verr),
	}
	if timestamp.Low != nil || timestamp.High != nil {
		opts.SetTimeRange(timestamp)
	}

	if len(verr.Invalid) > 0 {
		return nil, verr
	}
	return opts, nil
}

func parseDecimal(q url.Values, key string, verr *transaction.ValidationError) *decimal.Decimal {
	raw := q.Get(key)
	if raw == "" {
		return nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		verr.Invalid = append(verr.Invalid, key)
		return nil
	}
	return &v
}

func parseTime(q url.Values, key string, verr *transaction.ValidationError) *time.Time {
	raw := q.Get(key)
	if raw == "" {
		return nil
	}
	v, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		verr.Invalid = append(verr.Invalid, key)
		return nil
	}
	return &v
}

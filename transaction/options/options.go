package options

// TransactionOptions represent options that can be used to configure a Find operation.
// Every non-empty option narrows the result; bounds are inclusive.
type TransactionOptions struct {
	// filters transactions that match any id in this slice
	IDs []string
	// filters transactions whose type is any of these values
	Kinds []string
	// filters transactions whose category is any of these values
	Categories []string
	// filters transactions that have an amount in this range (inclusive)
	Amount *DecimalRange
	// filters transactions that were recorded in this range (inclusive)
	Timestamp *TimeRange
}

func NewTransactionOptions() *TransactionOptions {
	return &TransactionOptions{}
}

func (this *TransactionOptions) SetIDs(v ...string) *TransactionOptions {
	this.IDs = v
	return this
}

func (this *TransactionOptions) SetKinds(v ...string) *TransactionOptions {
	this.Kinds = v
	return this
}

func (this *TransactionOptions) SetCategories(v ...string) *TransactionOptions {
	this.Categories = v
	return this
}

func (this *TransactionOptions) SetAmountRange(v *DecimalRange) *TransactionOptions {
	this.Amount = v
	return this
}

func (this *TransactionOptions) SetTimeRange(v *TimeRange) *TransactionOptions {
	this.Timestamp = v
	return this
}

// Merge folds several option sets into one; later non-empty values win.
func Merge(opts ...*TransactionOptions) *TransactionOptions {
	merged := NewTransactionOptions()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if len(opt.IDs) > 0 {
			merged.IDs = opt.IDs
		}
		if len(opt.Kinds) > 0 {
			merged.Kinds = opt.Kinds
		}
		if len(opt.Categories) > 0 {
			merged.Categories = opt.Categories
		}
		if opt.Amount != nil {
			merged.Amount = opt.Amount
		}
		if opt.Timestamp != nil {
			merged.Timestamp = opt.Timestamp
		}
	}
	return merged
}

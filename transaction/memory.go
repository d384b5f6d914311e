package transaction

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"expense/transaction/options"
)

var _ TransactionRepo = (*MemoryTransactionRepo)(nil)

// MemoryTransactionRepo keeps transactions in a map. It is safe for concurrent use
// and returns copies so callers never share state with the repo.
type MemoryTransactionRepo struct {
	mu           sync.RWMutex
	transactions map[string]Transaction
	now          func() time.Time
}

func NewMemoryRepo() *MemoryTransactionRepo {
	return &MemoryTransactionRepo{
		transactions: make(map[string]Transaction),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryTransactionRepo) Create(_ context.Context, t *Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t.ID = uuid.New().String()
	if t.Timestamp.IsZero() {
		t.Timestamp = r.now()
	}
	r.transactions[t.ID] = *t
	return nil
}

func (r *MemoryTransactionRepo) FindById(_ context.Context, id string) (*Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (r *MemoryTransactionRepo) Find(_ context.Context, transactionOptions ...*options.TransactionOptions) ([]*Transaction, error) {
	opt := options.Merge(transactionOptions...)

	r.mu.RLock()
	result := make([]*Transaction, 0, len(r.transactions))
	for _, t := range r.transactions {
		if !matches(opt, t) {
			continue
		}
		t := t
		result = append(result, &t)
	}
	r.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result, nil
}

func matches(opt *options.TransactionOptions, t Transaction) bool {
	if len(opt.IDs) > 0 && !contains(opt.IDs, t.ID) {
		return false
	}
	if len(opt.Kinds) > 0 && !contains(opt.Kinds, string(t.Type)) {
		return false
	}
	if len(opt.Categories) > 0 && !contains(opt.Categories, t.Category) {
		return false
	}
	if opt.Amount != nil && !opt.Amount.Contains(t.Amount) {
		return false
	}
	if opt.Timestamp != nil && !opt.Timestamp.Contains(t.Timestamp) {
		return false
	}
	return true
}

func contains(values []string, v string) bool {
	for _, each := range values {
		if each == v {
			return true
		}
	}
	return false
}

func (r *MemoryTransactionRepo) UpdateById(_ context.Context, id string, fields Fields) (*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	fields.Apply(&t)
	r.transactions[id] = t
	return &t, nil
}

func (r *MemoryTransactionRepo) DeleteById(_ context.Context, id string) (*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.transactions, id)
	return &t, nil
}

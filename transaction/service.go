package transaction

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"expense/transaction/options"
)

type EventType string

const (
	EventCreated EventType = "transaction.created"
	EventUpdated EventType = "transaction.updated"
	EventDeleted EventType = "transaction.deleted"
)

// Event describes a change that has been written to the store
type Event struct {
	Type        EventType    `json:"type"`
	ID          string       `json:"id"`
	Transaction *Transaction `json:"transaction,omitempty"`
	OccurredAt  time.Time    `json:"occurred_at"`
}

// Publisher hands change events to whoever listens for them
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Config used to create a new Service
type Config struct {
	// our data-access layer used to store transactions
	Repo TransactionRepo
	// receives an event after every successful write; optional
	Publisher Publisher
	Logger    zerolog.Logger
}

// Service validates requests and passes them on to the repo, one repo call per operation
type Service struct {
	repo      TransactionRepo
	publisher Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(config *Config) (*Service, error) {
	if config.Repo == nil {
		return nil, errors.New("transaction service: repo is required")
	}

	return &Service{
		repo:      config.Repo,
		publisher: config.Publisher,
		logger:    config.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Service) Create(ctx context.Context, fields Fields) (*Transaction, error) {
	if err := fields.ValidateCreate(); err != nil {
		return nil, err
	}

	t := fields.Transaction()
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	s.publish(ctx, EventCreated, t.ID, t)
	return t, nil
}

// List returns every matching transaction, newest first
func (s *Service) List(ctx context.Context, opts ...*options.TransactionOptions) ([]*Transaction, error) {
	transactions, err := s.repo.Find(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if transactions == nil {
		transactions = []*Transaction{}
	}
	return transactions, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Transaction, error) {
	return s.repo.FindById(ctx, id)
}

func (s *Service) Update(ctx context.Context, id string, fields Fields) (*Transaction, error) {
	if err := fields.ValidateUpdate(); err != nil {
		return nil, err
	}

	t, err := s.repo.UpdateById(ctx, id, fields)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventUpdated, t.ID, t)
	return t, nil
}

func (s *Service) Delete(ctx context.Context, id string) (*Transaction, error) {
	t, err := s.repo.DeleteById(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventDeleted, id, t)
	return t, nil
}

// publish never fails the caller: the write has already happened
func (s *Service) publish(ctx context.Context, eventType EventType, id string, t *Transaction) {
	if s.publisher == nil {
		return
	}

	event := Event{
		Type:        eventType,
		ID:          id,
		Transaction: t,
		OccurredAt:  s.now(),
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn().Err(err).
			Str("event", string(eventType)).
			Str("transaction_id", id).
			Msg("publishing transaction event")
	}
}

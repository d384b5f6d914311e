package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"expense/transaction"
)

type recorder struct {
	events []transaction.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, e transaction.Event) error {
	r.events = append(r.events, e)
	return r.err
}

func TestMultiPublishesToEveryone(t *testing.T) {
	failing := &recorder{err: errors.New("broker down")}
	ok := &recorder{}

	err := Multi{failing, ok}.Publish(context.Background(), transaction.Event{
		Type: transaction.EventCreated,
		ID:   "abc",
	})
	require.Error(t, err)
	require.ErrorIs(t, err, failing.err)

	require.Len(t, failing.events, 1)
	require.Len(t, ok.events, 1)
	require.Equal(t, "abc", ok.events[0].ID)
}

func TestMultiEmpty(t *testing.T) {
	require.NoError(t, Multi{}.Publish(context.Background(), transaction.Event{}))
}

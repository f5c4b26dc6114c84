package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestPublishRunsSubscribersInOrder(t *testing.T) {
	bus := NewBus()
	var calls []string

	require.NoError(t, bus.Subscribe(UserDelete, "first", func(_ context.Context, payload any) error {
		calls = append(calls, "first:"+payload.(UserDeleted).UserID)
		return nil
	}))
	require.NoError(t, bus.Subscribe(UserDelete, "second", func(context.Context, any) error {
		calls = append(calls, "second")
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), UserDelete, UserDeleted{UserID: "u1"}))
	require.Equal(t, []string{"first:u1", "second"}, calls)
	require.Equal(t, []string{"first", "second"}, bus.Subscribers(UserDelete))
}

func TestPublishWithoutSubscribers(t *testing.T) {
	require.NoError(t, NewBus().Publish(context.Background(), "nothing", nil))
}

func TestSubscribeReplacesSameName(t *testing.T) {
	bus := NewBus()
	hits := 0
	require.NoError(t, bus.Subscribe(UserDelete, "snippets", func(context.Context, any) error { hits += 10; return nil }))
	require.NoError(t, bus.Subscribe(UserDelete, "snippets", func(context.Context, any) error { hits++; return nil }))

	require.NoError(t, bus.Publish(context.Background(), UserDelete, nil))
	require.Equal(t, 1, hits)
}

func TestSubscribeValidatesArguments(t *testing.T) {
	bus := NewBus()
	require.Error(t, bus.Subscribe("", "x", func(context.Context, any) error { return nil }))
	require.Error(t, bus.Subscribe(UserDelete, " ", func(context.Context, any) error { return nil }))
	require.Error(t, bus.Subscribe(UserDelete, "x", nil))
}

func TestPublishAggregatesErrorsAndRecoversPanics(t *testing.T) {
	bus := NewBus()
	boom := errors.New("boom")
	ran := false

	require.NoError(t, bus.Subscribe(UserDelete, "fails", func(context.Context, any) error { return boom }))
	require.NoError(t, bus.Subscribe(UserDelete, "panics", func(context.Context, any) error { panic("bad") }))
	require.NoError(t, bus.Subscribe(UserDelete, "ok", func(context.Context, any) error { ran = true; return nil }))

	err := bus.Publish(context.Background(), UserDelete, UserDeleted{})
	require.Error(t, err)
	require.True(t, ran)
	require.ErrorIs(t, err, boom)
	require.Len(t, multierr.Errors(err), 2)
	require.Contains(t, err.Error(), "panics: panic: bad")
}

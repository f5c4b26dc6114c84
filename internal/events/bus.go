// Package events is a small synchronous in-process event bus. Host operations
// publish lifecycle events (such as a user being deleted) and feature modules
// subscribe to react to them inside the same request.
package events

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/snippets/pkg/logger"
)

// UserDelete is published after a user account has been removed.
const UserDelete = "user.delete"

// UserDeleted is the payload of UserDelete. Tx is the transaction deleting
// the account; subscribers write through it so their cleanup commits or
// rolls back with the deletion.
type UserDeleted struct {
	UserID   string
	Username string
	Tx       *gorm.DB
}

// Handler reacts to a published event.
type Handler func(ctx context.Context, payload any) error

type subscription struct {
	name    string
	handler Handler
}

// Bus dispatches events to named subscribers in registration order.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]subscription
	log  *zap.Logger
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string][]subscription),
		log:  logger.WithModule("events"),
	}
}

// Subscribe registers handler for event under name. Registering the same name
// twice for an event replaces the earlier handler.
func (b *Bus) Subscribe(event, name string, handler Handler) error {
	event = strings.TrimSpace(event)
	name = strings.TrimSpace(name)
	if event == "" || name == "" {
		return fmt.Errorf("events: event and subscriber name are required")
	}
	if handler == nil {
		return fmt.Errorf("events: handler for %s/%s is nil", event, name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[event]
	for i, sub := range list {
		if sub.name == name {
			list[i].handler = handler
			return nil
		}
	}
	b.subs[event] = append(list, subscription{name: name, handler: handler})
	return nil
}

// Subscribers lists the subscriber names for event, sorted.
func (b *Bus) Subscribers(event string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.subs[event]))
	for _, sub := range b.subs[event] {
		names = append(names, sub.name)
	}
	sort.Strings(names)
	return names
}

// Publish runs every subscriber of event. All handlers run even if some fail;
// their errors are combined.
func (b *Bus) Publish(ctx context.Context, event string, payload any) error {
	b.mu.RLock()
	list := append([]subscription(nil), b.subs[event]...)
	b.mu.RUnlock()

	var errs error
	for _, sub := range list {
		if err := b.dispatch(ctx, sub, payload); err != nil {
			b.log.Error("event handler failed",
				zap.String("event", event),
				zap.String("subscriber", sub.name),
				zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", sub.name, err))
		}
	}
	return errs
}

func (b *Bus) dispatch(ctx context.Context, sub subscription, payload any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return sub.handler(ctx, payload)
}

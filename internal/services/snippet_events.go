package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/snippets/internal/events"
)

const snippetsSubscriber = "snippets"

// SubscribeUserDelete removes a user's snippets whenever their account is
// deleted. With a transaction in the payload the rows go with it; cached
// visible sets are left alone there since nothing reads them for an owner
// that no longer exists.
func (s *SnippetService) SubscribeUserDelete(bus *events.Bus) error {
	if bus == nil {
		return fmt.Errorf("snippet service: event bus is required")
	}
	return bus.Subscribe(events.UserDelete, snippetsSubscriber, func(ctx context.Context, payload any) error {
		deleted, ok := payload.(events.UserDeleted)
		if !ok {
			return fmt.Errorf("unexpected payload %T", payload)
		}
		var (
			removed int64
			err     error
		)
		if deleted.Tx != nil {
			removed, err = deleteOwnedBy(deleted.Tx.WithContext(ctx), strings.TrimSpace(deleted.UserID))
		} else {
			removed, err = s.DeleteByUserID(ctx, deleted.UserID)
		}
		if err != nil {
			return err
		}
		s.log.Info("deleted snippets of removed user",
			zap.String("user_id", deleted.UserID),
			zap.Int64("count", removed))
		return nil
	})
}

package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/charlesng35/snippets/internal/auditctx"
	"github.com/charlesng35/snippets/pkg/logger"
)

// recordAudit logs the supplied entry while tolerating audit failures. Actor
// fields missing from the entry are filled from the request context.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}
	actor, ok := auditctx.FromContext(ctx)
	if ok {
		if entry.UserID == nil && actor.UserID != "" {
			id := actor.UserID
			entry.UserID = &id
		}
		if entry.Username == "" {
			entry.Username = actor.Username
		}
		if entry.IPAddress == "" {
			entry.IPAddress = actor.IPAddress
		}
		if entry.UserAgent == "" {
			entry.UserAgent = actor.UserAgent
		}
		if actor.RequestID != "" {
			if entry.Metadata == nil {
				entry.Metadata = map[string]any{}
			}
			entry.Metadata["request_id"] = actor.RequestID
		}
	}
	if err := audit.Log(ctx, entry); err != nil {
		fields := append(actor.LogFields(), zap.String("action", entry.Action), zap.Error(err))
		logger.WithModule("audit").Warn("failed to record audit entry", fields...)
	}
}

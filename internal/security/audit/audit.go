package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/doorgate/internal/infrastructure/logger"
)

// Logger records administrative actions as structured audit lines
type Logger struct {
	logger *slog.Logger
}

func NewLogger(log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{logger: log}
}

func (al *Logger) LogAction(ctx context.Context, actor, action, resource, resourceID, status, details string) {
	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("actor", actor),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", logger.RequestID(ctx)),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogLogin(ctx context.Context, actor, status string) {
	al.LogAction(ctx, actor, "login", "session", "", status, "")
}

func (al *Logger) LogDenied(ctx context.Context, actor, reason string) {
	al.LogAction(ctx, actor, "access_denied", "admin_api", "", "denied", reason)
}

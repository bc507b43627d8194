// Package audit records pipeline decisions as append-only events. Every
// model call, flag, finalization, merge, delete, and restore leaves an
// entry sufficient to reconstruct the decision afterwards.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/wins-cli/internal/model"
	"github.com/sells-group/wins-cli/internal/store"
)

// SystemActor marks events produced by the pipeline itself rather than a
// human approver.
const SystemActor = "system"

// Logger appends audit events to the store and mirrors them to the
// structured log. A write failure is logged but never fails the pipeline
// operation that produced the event.
type Logger struct {
	Store store.Store
	Clock func() time.Time
}

func NewLogger(st store.Store) *Logger {
	return &Logger{Store: st, Clock: time.Now}
}

// Record appends one event. Subjects carry the ids involved; detail holds
// kind-specific context.
func (l *Logger) Record(ctx context.Context, kind model.AuditKind, actor string, subjects []string, detail map[string]any) {
	if actor == "" {
		actor = SystemActor
	}
	ev := model.AuditEvent{
		ID:       uuid.New().String(),
		Kind:     kind,
		Subjects: subjects,
		Actor:    actor,
		Detail:   detail,
		At:       l.Clock().UTC(),
	}

	if err := l.Store.AppendAudit(ctx, ev); err != nil {
		zap.L().Error("audit write failed",
			zap.String("kind", string(kind)),
			zap.Strings("subjects", subjects),
			zap.Error(err),
		)
		return
	}

	zap.L().Debug("audit",
		zap.String("kind", string(kind)),
		zap.String("actor", actor),
		zap.Strings("subjects", subjects),
	)
}

// System is shorthand for a system-actor event.
func (l *Logger) System(ctx context.Context, kind model.AuditKind, subjects []string, detail map[string]any) {
	l.Record(ctx, kind, SystemActor, subjects, detail)
}

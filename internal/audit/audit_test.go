package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wins-cli/internal/model"
	"github.com/sells-group/wins-cli/internal/store"
)

func newTestLogger(t *testing.T) (*Logger, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	l := NewLogger(st)
	l.Clock = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
	return l, st
}

func TestRecordWritesEvent(t *testing.T) {
	l, st := newTestLogger(t)

	l.Record(context.Background(), model.AuditFinalize, "reviewer", []string{"win-1"}, map[string]any{
		"batch": "de/2026-08",
	})

	events, err := st.ListAudit(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, model.AuditFinalize, ev.Kind)
	assert.Equal(t, "reviewer", ev.Actor)
	assert.Equal(t, []string{"win-1"}, ev.Subjects)
	assert.Equal(t, "de/2026-08", ev.Detail["batch"])
	assert.Equal(t, l.Clock(), ev.At)
}

func TestSystemShorthand(t *testing.T) {
	l, st := newTestLogger(t)

	l.System(context.Background(), model.AuditEvaluate, []string{"win-1", "win-2"}, nil)

	events, err := st.ListAudit(context.Background(), model.AuditEvaluate, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, SystemActor, events[0].Actor)
}

func TestRecordStoreFailureIsNonFatal(t *testing.T) {
	l, st := newTestLogger(t)
	require.NoError(t, st.Close())

	// A closed store fails the append; Record must swallow it, never panic
	// or block the calling operation.
	l.Record(context.Background(), model.AuditDelete, "reviewer", []string{"win-1"}, nil)
}

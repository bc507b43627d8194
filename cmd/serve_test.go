package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wins-cli/internal/model"
	"github.com/sells-group/wins-cli/internal/store"
)

func newServeStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedServeRecord(t *testing.T, st store.Store, id string, internal bool) {
	t.Helper()
	rec := &model.FinalizedRecord{
		ID:           id,
		Country:      "de",
		Month:        "2026-08",
		Customer:     "Acme",
		Context:      "ctx",
		Action:       "act",
		Outcome:      "out",
		Metrics:      []string{"90%"},
		Confidence:   model.ConfidenceHigh,
		InternalOnly: internal,
		Status:       model.RecordStatusRanked,
		FinalizedAt:  time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, st.InsertRecord(context.Background(), rec))
}

func TestSnapshotRouterHealth(t *testing.T) {
	srv := httptest.NewServer(newSnapshotRouter(newServeStore(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSnapshotRouterExcludesInternal(t *testing.T) {
	st := newServeStore(t)
	seedServeRecord(t, st, "win-public", false)
	seedServeRecord(t, st, "win-internal", true)

	srv := httptest.NewServer(newSnapshotRouter(st))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var recs []model.FinalizedRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "win-public", recs[0].ID)
}

func TestSnapshotRouterRecordLookup(t *testing.T) {
	st := newServeStore(t)
	seedServeRecord(t, st, "win-public", false)
	seedServeRecord(t, st, "win-internal", true)

	srv := httptest.NewServer(newSnapshotRouter(st))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/records/win-public")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Internal-only and missing records are both invisible here.
	for _, id := range []string{"win-internal", "win-nope"} {
		resp, err := http.Get(srv.URL + "/api/records/" + id)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
}

func TestSnapshotRouterRankings(t *testing.T) {
	st := newServeStore(t)
	require.NoError(t, st.ReplaceRankScores(context.Background(), []model.RankScore{
		{RecordID: "win-1", Score: 0.9, Rank: 1, RankingMethod: "weighted/v1"},
	}))

	srv := httptest.NewServer(newSnapshotRouter(st))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/rankings")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var scores []model.RankScore
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&scores))
	require.Len(t, scores, 1)
	assert.Equal(t, "win-1", scores[0].RecordID)
}

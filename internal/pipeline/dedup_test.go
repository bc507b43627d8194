package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wins-cli/internal/model"
	"github.com/sells-group/wins-cli/internal/rules"
)

func dedupPolicy(threshold float64) rules.DedupPolicy {
	return rules.DedupPolicy{Method: MethodTokenJaccard, Threshold: threshold}
}

func dedupRecord(id, customer, action, outcome string) model.FinalizedRecord {
	return model.FinalizedRecord{ID: id, Customer: customer, Action: action, Outcome: outcome}
}

func TestFlagDuplicatesNearIdentical(t *testing.T) {
	now := time.Now()
	recs := []model.FinalizedRecord{
		dedupRecord("r1", "Acme GmbH", "migrated reporting to the cloud", "close runs 80% faster"),
		dedupRecord("r2", "ACME GmbH", "migrated reporting to the cloud", "close runs 80% faster now"),
		dedupRecord("r3", "Globex", "rolled out a new CRM", "pipeline visibility doubled"),
	}

	flags, err := FlagDuplicates(recs, dedupPolicy(0.7), now)
	require.NoError(t, err)
	require.Len(t, flags, 1)

	f := flags[0]
	assert.Equal(t, "r1", f.CandidateA)
	assert.Equal(t, "r2", f.CandidateB)
	assert.GreaterOrEqual(t, f.SimilarityScore, 0.7)
	assert.Equal(t, MethodTokenJaccard, f.MethodVersion)
	assert.Equal(t, now, f.FlaggedAt)
}

func TestFlagDuplicatesOrderIndependent(t *testing.T) {
	now := time.Now()
	a := dedupRecord("r1", "Acme", "migrated reporting", "faster close")
	b := dedupRecord("r2", "Acme", "migrated reporting", "faster closing")

	flags1, err := FlagDuplicates([]model.FinalizedRecord{a, b}, dedupPolicy(0.5), now)
	require.NoError(t, err)
	flags2, err := FlagDuplicates([]model.FinalizedRecord{b, a}, dedupPolicy(0.5), now)
	require.NoError(t, err)

	assert.Equal(t, flags1, flags2)
}

func TestFlagDuplicatesBelowThreshold(t *testing.T) {
	recs := []model.FinalizedRecord{
		dedupRecord("r1", "Acme", "built a data lake", "storage costs halved"),
		dedupRecord("r2", "Globex", "trained the sales team", "win rate up"),
	}
	flags, err := FlagDuplicates(recs, dedupPolicy(0.5), time.Now())
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestFlagDuplicatesUnknownMethod(t *testing.T) {
	_, err := FlagDuplicates(nil, rules.DedupPolicy{Method: "embedding/v9", Threshold: 0.8}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding/v9")
}

func TestFlagDuplicatesDoesNotModifyInput(t *testing.T) {
	recs := []model.FinalizedRecord{
		dedupRecord("z-last", "Acme", "a", "b"),
		dedupRecord("a-first", "Acme", "a", "b"),
	}
	_, err := FlagDuplicates(recs, dedupPolicy(0.5), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "z-last", recs[0].ID)
}

func TestJaccard(t *testing.T) {
	a := tokenSet("the quick brown fox")
	b := tokenSet("the quick brown dog")
	assert.InDelta(t, 3.0/5.0, jaccard(a, b), 0.001)

	assert.Equal(t, 0.0, jaccard(tokenSet(""), tokenSet("")))
	assert.Equal(t, 1.0, jaccard(tokenSet("Same Words"), tokenSet("same words")))
}

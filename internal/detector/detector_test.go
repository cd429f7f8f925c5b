package detector

import (
	"testing"

	"github.com/rohankatakam/filewatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitsOf(shas ...string) []models.CommitRecord {
	out := make([]models.CommitRecord, 0, len(shas))
	for _, sha := range shas {
		out = append(out, models.NewCommitRecord(sha, "octocat", "update "+sha, "https://github.com/o/r/commit/"+sha))
	}
	return out
}

func shasOf(commits []models.CommitRecord) []string {
	out := make([]string, 0, len(commits))
	for _, c := range commits {
		out = append(out, c.SHA)
	}
	return out
}

func TestDetect_FirstRunRecordsLatestWithoutNewCommits(t *testing.T) {
	for _, history := range [][]string{{"c1"}, {"c3", "c2", "c1"}} {
		decision, err := Detect(models.NoCheckpoint, commitsOf(history...))
		require.NoError(t, err)

		changed, ok := decision.(Changed)
		require.True(t, ok, "expected Changed, got %T", decision)
		assert.Equal(t, history[0], changed.LatestSHA)
		assert.True(t, changed.FirstRun)
		assert.Empty(t, changed.NewCommits)
	}
}

func TestDetect_CheckpointAtHeadIsUnchanged(t *testing.T) {
	for _, history := range [][]string{{"x"}, {"x", "w", "v"}} {
		decision, err := Detect(models.CheckpointAt("x"), commitsOf(history...))
		require.NoError(t, err)
		assert.Equal(t, Unchanged{SHA: "x"}, decision)
	}
}

func TestDetect_ExactGap(t *testing.T) {
	decision, err := Detect(models.CheckpointAt("c3"), commitsOf("c5", "c4", "c3", "c2"))
	require.NoError(t, err)

	changed, ok := decision.(Changed)
	require.True(t, ok)
	assert.Equal(t, "c5", changed.LatestSHA)
	assert.False(t, changed.FirstRun)
	assert.Equal(t, []string{"c5", "c4"}, shasOf(changed.NewCommits))
}

func TestDetect_CheckpointNotFoundReportsWholePage(t *testing.T) {
	decision, err := Detect(models.CheckpointAt("zzz"), commitsOf("c5", "c4", "c3"))
	require.NoError(t, err)

	changed, ok := decision.(Changed)
	require.True(t, ok)
	assert.Equal(t, "c5", changed.LatestSHA)
	assert.Equal(t, []string{"c5", "c4", "c3"}, shasOf(changed.NewCommits))
}

func TestDetect_EmptyHistoryIsAnError(t *testing.T) {
	for _, cp := range []models.Checkpoint{models.NoCheckpoint, models.CheckpointAt("c1")} {
		decision, err := Detect(cp, nil)
		assert.ErrorIs(t, err, ErrEmptyHistory)
		assert.Nil(t, decision)
	}
}

func TestDetect_RerunAfterPersistIsUnchanged(t *testing.T) {
	history := commitsOf("c9", "c8", "c7")
	checkpoints := []models.Checkpoint{models.NoCheckpoint, models.CheckpointAt("c8"), models.CheckpointAt("gone")}

	for _, cp := range checkpoints {
		first, err := Detect(cp, history)
		require.NoError(t, err)

		second, err := Detect(models.CheckpointAt(first.Latest()), history)
		require.NoError(t, err)
		assert.IsType(t, Unchanged{}, second)
	}
}

func TestDetect_DoesNotMutateOrAliasInput(t *testing.T) {
	history := commitsOf("c3", "c2", "c1")
	snapshot := append([]models.CommitRecord(nil), history...)

	decision, err := Detect(models.CheckpointAt("c1"), history)
	require.NoError(t, err)
	assert.Equal(t, snapshot, history)

	changed := decision.(Changed)
	changed.NewCommits[0].SHA = "mutated"
	assert.Equal(t, "c3", history[0].SHA)
}

func TestDetect_ChangedNeverEqualsCheckpoint(t *testing.T) {
	history := commitsOf("a", "b", "c")
	for _, sha := range []string{"b", "c", "missing"} {
		decision, err := Detect(models.CheckpointAt(sha), history)
		require.NoError(t, err)
		changed, ok := decision.(Changed)
		require.True(t, ok)
		assert.NotEqual(t, sha, changed.LatestSHA)
		assert.NotEmpty(t, changed.NewCommits)
	}
}

package watcher

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/rohankatakam/filewatch/internal/errors"
	"github.com/rohankatakam/filewatch/internal/github"
	"github.com/rohankatakam/filewatch/internal/logging"
	"github.com/rohankatakam/filewatch/internal/models"
	"github.com/rohankatakam/filewatch/internal/notify"
	"github.com/rohankatakam/filewatch/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var target = models.Target{Owner: "octo", Repo: "hello", Branch: "dev", Path: "README.md"}

const stateKey = "octo/hello@dev:README.md"

type fakeSource struct {
	commits []models.CommitRecord
	err     error
	calls   int
	opts    github.ListOptions
}

func (f *fakeSource) ListCommits(ctx context.Context, t models.Target, opts github.ListOptions) ([]models.CommitRecord, error) {
	f.calls++
	f.opts = opts
	return f.commits, f.err
}

type fakeNotifier struct {
	sent []notify.Notification
	err  error
}

func (f *fakeNotifier) Send(ctx context.Context, n notify.Notification) error {
	f.sent = append(f.sent, n)
	return f.err
}

// flakyStore fails the selected operations and otherwise delegates
type flakyStore struct {
	*storage.MemoryStore
	getErr error
	setErr error
}

func (s *flakyStore) Get(ctx context.Context, key string) (models.Checkpoint, error) {
	if s.getErr != nil {
		return models.NoCheckpoint, s.getErr
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *flakyStore) Set(ctx context.Context, key, sha string) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.MemoryStore.Set(ctx, key, sha)
}

func (s *flakyStore) CompareAndSwap(ctx context.Context, key string, expected models.Checkpoint, sha string) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.MemoryStore.CompareAndSwap(ctx, key, expected, sha)
}

type recordingObserver struct {
	results []Result
}

func (o *recordingObserver) ObserveRun(res Result, elapsed time.Duration) {
	o.results = append(o.results, res)
}

func history(shas ...string) []models.CommitRecord {
	out := make([]models.CommitRecord, 0, len(shas))
	for _, sha := range shas {
		out = append(out, models.NewCommitRecord(sha, "octocat", "edit "+sha, "https://github.com/octo/hello/commit/"+sha))
	}
	return out
}

func newWatcher(source CommitSource, store storage.Store, notifier notify.Notifier, cas bool) *Watcher {
	return New(Options{
		Target:         target,
		Recipients:     []string{"team@example.com"},
		PerPage:        30,
		MaxPages:       1,
		CompareAndSwap: cas,
	}, source, store, notifier, logging.Discard())
}

func checkpointOf(t *testing.T, store storage.Store) models.Checkpoint {
	t.Helper()
	cp, err := store.Get(context.Background(), stateKey)
	require.NoError(t, err)
	return cp
}

func TestRun_FirstRunEstablishesCheckpointWithoutNotifying(t *testing.T) {
	store := storage.NewMemoryStore()
	notifier := &fakeNotifier{}
	w := newWatcher(&fakeSource{commits: history("c1")}, store, notifier, true)

	res := w.Run(context.Background())

	assert.True(t, res.OK)
	assert.True(t, res.Changed)
	assert.True(t, res.FirstRun)
	assert.Equal(t, 0, res.NewCommits)
	assert.Equal(t, "c1", res.SHA)
	assert.False(t, res.Notified)
	assert.Empty(t, notifier.sent)
	assert.Equal(t, models.CheckpointAt("c1"), checkpointOf(t, store))
	assert.Equal(t, []State{StateReading, StateFetching, StateDetecting, StatePersisting, StateDone}, res.States)
}

func TestRun_NewCommitsAreNotifiedNewestFirst(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), stateKey, "c1"))
	notifier := &fakeNotifier{}
	source := &fakeSource{commits: history("c3", "c2", "c1")}
	w := newWatcher(source, store, notifier, true)

	res := w.Run(context.Background())

	assert.True(t, res.OK)
	assert.True(t, res.Changed)
	assert.Equal(t, 2, res.NewCommits)
	assert.Equal(t, "c3", res.SHA)
	assert.True(t, res.Notified)
	assert.Equal(t, "c1", source.opts.StopAt)

	require.Len(t, notifier.sent, 1)
	sent := notifier.sent[0]
	assert.Equal(t, []string{"team@example.com"}, sent.Recipients)
	assert.Equal(t, "[GitHub] README.md changed in octo/hello@dev", sent.Subject)
	require.Len(t, sent.Commits, 2)
	assert.Equal(t, "c3", sent.Commits[0].SHA)
	assert.Equal(t, "c2", sent.Commits[1].SHA)

	assert.Equal(t, models.CheckpointAt("c3"), checkpointOf(t, store))
	assert.Equal(t, []State{StateReading, StateFetching, StateDetecting, StateNotifying, StatePersisting, StateDone}, res.States)
}

func TestRun_UnchangedSkipsWrite(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), stateKey, "c3"))
	notifier := &fakeNotifier{}
	w := newWatcher(&fakeSource{commits: history("c3", "c2")}, store, notifier, true)

	res := w.Run(context.Background())

	assert.True(t, res.OK)
	assert.False(t, res.Changed)
	assert.Equal(t, "c3", res.SHA)
	assert.Empty(t, notifier.sent)
	assert.Equal(t, 1, store.Writes(), "only the seeding write")
	assert.Equal(t, []State{StateReading, StateFetching, StateDetecting, StateIdle, StateDone}, res.States)
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), stateKey, "c1"))
	notifier := &fakeNotifier{}
	w := newWatcher(&fakeSource{commits: history("c2", "c1")}, store, notifier, true)

	first := w.Run(context.Background())
	second := w.Run(context.Background())

	assert.True(t, first.Changed)
	assert.False(t, second.Changed)
	assert.Len(t, notifier.sent, 1)
}

func TestRun_FetchFailureIsNoOp(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), stateKey, "c1"))
	notifier := &fakeNotifier{}
	w := newWatcher(&fakeSource{err: github.ErrRateLimited}, store, notifier, true)

	res := w.Run(context.Background())

	assert.False(t, res.OK)
	assert.Equal(t, "fetch", res.Stage)
	assert.ErrorIs(t, res.Err, github.ErrRateLimited)
	assert.Contains(t, res.Error(), "GitHub API error")
	assert.Empty(t, notifier.sent)
	assert.Equal(t, 1, store.Writes())
	assert.Equal(t, StateFailed, res.States[len(res.States)-1])
}

func TestRun_EmptyHistoryFailsDetect(t *testing.T) {
	store := storage.NewMemoryStore()
	notifier := &fakeNotifier{}
	w := newWatcher(&fakeSource{commits: []models.CommitRecord{}}, store, notifier, true)

	res := w.Run(context.Background())

	assert.False(t, res.OK)
	assert.Equal(t, "detect", res.Stage)
	assert.Equal(t, models.NoCheckpoint, checkpointOf(t, store))
	assert.Empty(t, notifier.sent)
}

func TestRun_ReadFailureIsNoOp(t *testing.T) {
	store := &flakyStore{MemoryStore: storage.NewMemoryStore(), getErr: stderrors.New("connection refused")}
	source := &fakeSource{commits: history("c1")}
	w := newWatcher(source, store, &fakeNotifier{}, true)

	res := w.Run(context.Background())

	assert.False(t, res.OK)
	assert.Equal(t, "read", res.Stage)
	assert.Equal(t, 0, source.calls)
	assert.Equal(t, 0, store.Writes())
}

func TestRun_NotifyFailureStillPersists(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), stateKey, "c1"))
	notifier := &fakeNotifier{err: stderrors.New("535 authentication failed")}
	w := newWatcher(&fakeSource{commits: history("c2", "c1")}, store, notifier, true)

	res := w.Run(context.Background())

	assert.True(t, res.OK)
	assert.True(t, res.Partial)
	assert.False(t, res.Notified)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Email send failed")
	assert.Equal(t, models.CheckpointAt("c2"), checkpointOf(t, store))
}

func TestRun_PersistFailureIsPartial(t *testing.T) {
	store := &flakyStore{MemoryStore: storage.NewMemoryStore()}
	require.NoError(t, store.MemoryStore.Set(context.Background(), stateKey, "c1"))
	store.setErr = stderrors.New("timeout")
	notifier := &fakeNotifier{}
	w := newWatcher(&fakeSource{commits: history("c2", "c1")}, store, notifier, false)

	res := w.Run(context.Background())

	assert.True(t, res.OK)
	assert.True(t, res.Notified)
	assert.True(t, res.Partial)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "KV write error")
}

// racingStore simulates another run writing between our read and our write
type racingStore struct {
	*storage.MemoryStore
	concurrent string
}

func (s *racingStore) CompareAndSwap(ctx context.Context, key string, expected models.Checkpoint, sha string) error {
	if s.concurrent != "" {
		_ = s.MemoryStore.Set(ctx, key, s.concurrent)
	}
	return s.MemoryStore.CompareAndSwap(ctx, key, expected, sha)
}

func TestRun_CompareAndSwapKeepsNewerCheckpoint(t *testing.T) {
	store := &racingStore{MemoryStore: storage.NewMemoryStore(), concurrent: "c9"}
	require.NoError(t, store.MemoryStore.Set(context.Background(), stateKey, "c1"))
	w := newWatcher(&fakeSource{commits: history("c2", "c1")}, store, &fakeNotifier{}, true)

	res := w.Run(context.Background())

	assert.True(t, res.OK)
	assert.True(t, res.Partial)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "KV write error")
	assert.Equal(t, models.CheckpointAt("c9"), checkpointOf(t, store))
}

func TestRun_CompareAndSwapConflictOnSameValueIsSuccess(t *testing.T) {
	store := &racingStore{MemoryStore: storage.NewMemoryStore(), concurrent: "c2"}
	require.NoError(t, store.MemoryStore.Set(context.Background(), stateKey, "c1"))
	w := newWatcher(&fakeSource{commits: history("c2", "c1")}, store, &fakeNotifier{}, true)

	res := w.Run(context.Background())

	assert.True(t, res.OK)
	assert.False(t, res.Partial)
	assert.Equal(t, models.CheckpointAt("c2"), checkpointOf(t, store))
}

func TestRun_StateKeyOverride(t *testing.T) {
	store := storage.NewMemoryStore()
	w := New(Options{Target: target, StateKey: "custom"}, &fakeSource{commits: history("c1")}, store, &fakeNotifier{}, logging.Discard())

	res := w.Run(context.Background())
	require.True(t, res.OK)

	cp, err := store.Get(context.Background(), "custom")
	require.NoError(t, err)
	assert.Equal(t, models.CheckpointAt("c1"), cp)
	assert.Equal(t, "custom", w.StateKey())
}

func TestRun_NotifiesObserver(t *testing.T) {
	obs := &recordingObserver{}
	w := newWatcher(&fakeSource{commits: history("c1")}, storage.NewMemoryStore(), &fakeNotifier{}, true).WithObserver(obs)

	res := w.Run(context.Background())

	require.Len(t, obs.results, 1)
	assert.Equal(t, res.RunID, obs.results[0].RunID)
	assert.NotEmpty(t, res.RunID)
}

func TestResult_JSONShapes(t *testing.T) {
	unchanged, err := json.Marshal(Result{OK: true, SHA: "0123456789abcdef", Target: target})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"changed":false,"sha":"01234567","repo":"octo/hello","branch":"dev","path":"README.md"}`, string(unchanged))

	changed, err := json.Marshal(Result{OK: true, Changed: true, Notified: true, SHA: "fedcba9876543210", NewCommits: 2, Target: target})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"changed":true,"latest":"fedcba98","new_commits":2,"first_run":false,"notified":true,"repo":"octo/hello","branch":"dev","path":"README.md"}`, string(changed))

	failed, err := json.Marshal(Result{OK: false, Stage: "fetch", Err: stderrors.New("GitHub API error: 404"), Target: target})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":false,"error":"GitHub API error: 404","stage":"fetch"}`, string(failed))
}

func TestFailed_ConfigStage(t *testing.T) {
	res := Failed(target, errors.ConfigError("SMTP not configured: MAIL_TO required"))

	out, err := json.Marshal(res)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &body))
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "config", body["stage"])
	assert.Equal(t, "SMTP not configured: MAIL_TO required", body["error"])
}

func TestRun_FailureLogsDetail(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)

	w := New(Options{Target: target}, &fakeSource{err: github.ErrNotFound}, storage.NewMemoryStore(), &fakeNotifier{}, logger)
	res := w.Run(context.Background())

	require.False(t, res.OK)
	assert.Contains(t, buf.String(), "[HIGH] [fetch] GitHub API error")
	assert.Contains(t, buf.String(), "Caused by:")
}

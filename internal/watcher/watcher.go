// Package watcher runs one check of the watched file: read the checkpoint,
// fetch history, decide, notify and persist.
package watcher

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/rohankatakam/filewatch/internal/detector"
	"github.com/rohankatakam/filewatch/internal/errors"
	"github.com/rohankatakam/filewatch/internal/github"
	"github.com/rohankatakam/filewatch/internal/models"
	"github.com/rohankatakam/filewatch/internal/notify"
	"github.com/rohankatakam/filewatch/internal/storage"
	"github.com/sirupsen/logrus"
)

// CommitSource lists commits touching a file, newest first
type CommitSource interface {
	ListCommits(ctx context.Context, target models.Target, opts github.ListOptions) ([]models.CommitRecord, error)
}

// Observer is told about every finished run
type Observer interface {
	ObserveRun(res Result, elapsed time.Duration)
}

// Options configures a Watcher
type Options struct {
	Target     models.Target
	StateKey   string // empty derives the key from Target
	Recipients []string
	PerPage    int
	MaxPages   int

	// CompareAndSwap makes the checkpoint write conditional on the value read
	// at the start of the run, so a slower overlapping run cannot move it back
	CompareAndSwap bool
}

// Watcher coordinates a single run. It holds no state between runs; overlapping
// runs may both notify for the same commits.
type Watcher struct {
	opts     Options
	stateKey string
	source   CommitSource
	store    storage.Store
	notifier notify.Notifier
	observer Observer
	logger   *logrus.Logger
}

// New creates a Watcher
func New(opts Options, source CommitSource, store storage.Store, notifier notify.Notifier, logger *logrus.Logger) *Watcher {
	return &Watcher{
		opts:     opts,
		stateKey: models.ResolveStateKey(opts.Target, opts.StateKey),
		source:   source,
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// WithObserver registers an observer for finished runs
func (w *Watcher) WithObserver(o Observer) *Watcher {
	w.observer = o
	return w
}

// StateKey returns the key the checkpoint is stored under
func (w *Watcher) StateKey() string {
	return w.stateKey
}

// run carries the mutable state of one invocation
type run struct {
	res Result
	log *logrus.Entry
}

func (r *run) enter(s State) {
	r.res.States = append(r.res.States, s)
	r.log.WithField("state", s).Debug("state transition")
}

func (r *run) fail(err *errors.Error) Result {
	r.res.OK = false
	r.res.Stage = err.Stage()
	r.res.Err = err
	r.enter(StateFailed)
	r.log.WithError(err).WithField("stage", r.res.Stage).Error("run failed")
	r.log.Debug(err.DetailedString())
	return r.res
}

// report records err. Fatal errors end the run, the rest become warnings.
func (r *run) report(err *errors.Error) (aborted bool) {
	if err.IsFatal() {
		r.fail(err)
		return true
	}
	r.warn(err)
	return false
}

func (r *run) warn(err *errors.Error) {
	r.res.Partial = true
	r.res.Warnings = append(r.res.Warnings, err.Error())
	r.log.WithError(err).WithField("stage", err.Stage()).Warn("run partially failed")
}

// Run performs one check. Failures before a decision leave the store untouched.
func (w *Watcher) Run(ctx context.Context) Result {
	start := time.Now()
	r := &run{
		res: Result{
			RunID:  uuid.NewString(),
			Target: w.opts.Target,
		},
	}
	r.log = w.logger.WithFields(logrus.Fields{
		"run_id":    r.res.RunID,
		"state_key": w.stateKey,
	})

	res := w.execute(ctx, r)

	if w.observer != nil {
		w.observer.ObserveRun(res, time.Since(start))
	}
	return res
}

func (w *Watcher) execute(ctx context.Context, r *run) Result {
	r.enter(StateReading)
	checkpoint, err := w.store.Get(ctx, w.stateKey)
	if err != nil {
		r.report(errors.StoreError(err, "KV read error"))
		return r.res
	}

	r.enter(StateFetching)
	commits, err := w.source.ListCommits(ctx, w.opts.Target, github.ListOptions{
		PerPage:  w.opts.PerPage,
		MaxPages: w.opts.MaxPages,
		StopAt:   checkpoint.SHA,
	})
	if err != nil {
		r.report(errors.FetchError(err, "GitHub API error"))
		return r.res
	}

	r.enter(StateDetecting)
	decision, err := detector.Detect(checkpoint, commits)
	if err != nil {
		r.report(errors.EmptyHistoryError(err, w.opts.Target.Path))
		return r.res
	}

	r.res.OK = true
	r.res.SHA = decision.Latest()

	switch d := decision.(type) {
	case detector.Unchanged:
		r.enter(StateIdle)
		r.log.WithField("sha", models.ShortSHA(d.SHA)).Info("no change")

	case detector.Changed:
		r.res.Changed = true
		r.res.FirstRun = d.FirstRun
		r.res.NewCommits = len(d.NewCommits)

		if len(d.NewCommits) > 0 {
			r.enter(StateNotifying)
			w.notify(ctx, r, d.NewCommits)
		}

		r.enter(StatePersisting)
		w.persist(ctx, r, checkpoint, d.LatestSHA)

		r.log.WithFields(logrus.Fields{
			"latest":      models.ShortSHA(d.LatestSHA),
			"new_commits": len(d.NewCommits),
			"first_run":   d.FirstRun,
			"notified":    r.res.Notified,
		}).Info("change detected")

	default:
		return r.fail(errors.InternalErrorf("unexpected decision %T", decision))
	}

	r.enter(StateDone)
	return r.res
}

// notify is best-effort: a failure is recorded and the checkpoint still moves
// forward, so a missed email is never retried.
func (w *Watcher) notify(ctx context.Context, r *run, commits []models.CommitRecord) {
	n := notify.NewNotification(w.opts.Target, w.opts.Recipients, commits)
	if err := w.notifier.Send(ctx, n); err != nil {
		r.report(errors.NotifyError(err, "Email send failed"))
		return
	}
	r.res.Notified = true
}

func (w *Watcher) persist(ctx context.Context, r *run, read models.Checkpoint, latest string) {
	var err error
	if w.opts.CompareAndSwap {
		err = w.store.CompareAndSwap(ctx, w.stateKey, read, latest)
	} else {
		err = w.store.Set(ctx, w.stateKey, latest)
	}
	if err == nil {
		return
	}

	if stderrors.Is(err, storage.ErrConflict) {
		// An overlapping run that already stored the same commit is not a failure
		if current, getErr := w.store.Get(ctx, w.stateKey); getErr == nil && current.Found && current.SHA == latest {
			r.log.Info("checkpoint already advanced by a concurrent run")
			return
		}
	}

	r.report(errors.PersistError(err, "KV write error").
		WithContext("state_key", w.stateKey).
		WithContext("sha", latest))
}

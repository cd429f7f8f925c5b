// Package detector decides which commits of a file's history are new
// relative to a stored checkpoint.
package detector

import (
	"errors"

	"github.com/rohankatakam/filewatch/internal/models"
)

// ErrEmptyHistory is returned when the commit source reports no commits at all.
// An empty history is indistinguishable from a misconfigured path, so it is never
// treated as "no change".
var ErrEmptyHistory = errors.New("commit history is empty")

// Decision is the outcome of a detection. It is either Unchanged or Changed.
type Decision interface {
	// Latest returns the newest commit id observed
	Latest() string
	decision()
}

// Unchanged means the newest commit equals the checkpoint
type Unchanged struct {
	SHA string
}

func (u Unchanged) Latest() string { return u.SHA }
func (Unchanged) decision()        {}

// Changed means the checkpoint must move to LatestSHA.
// NewCommits is newest-first and empty only when FirstRun is set.
type Changed struct {
	LatestSHA  string
	NewCommits []models.CommitRecord
	FirstRun   bool
}

func (c Changed) Latest() string { return c.LatestSHA }
func (Changed) decision()        {}

// Detect compares a newest-first commit list against the checkpoint.
//
// When the checkpoint is not present in commits (it is older than the fetched
// page, or history was rewritten) every fetched commit is reported as new. That
// can under-report a gap larger than the page but never re-reports commits that
// precede the checkpoint.
func Detect(checkpoint models.Checkpoint, commits []models.CommitRecord) (Decision, error) {
	if len(commits) == 0 {
		return nil, ErrEmptyHistory
	}

	latest := commits[0]

	if !checkpoint.Found {
		return Changed{
			LatestSHA:  latest.SHA,
			NewCommits: []models.CommitRecord{},
			FirstRun:   true,
		}, nil
	}

	if checkpoint.SHA == latest.SHA {
		return Unchanged{SHA: latest.SHA}, nil
	}

	gap := len(commits)
	for i, c := range commits {
		if c.SHA == checkpoint.SHA {
			gap = i
			break
		}
	}

	newCommits := make([]models.CommitRecord, gap)
	copy(newCommits, commits[:gap])

	return Changed{
		LatestSHA:  latest.SHA,
		NewCommits: newCommits,
	}, nil
}

package watcher

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rohankatakam/filewatch/internal/errors"
	"github.com/rohankatakam/filewatch/internal/models"
)

// State is a step of a run
type State string

const (
	StateReading    State = "reading"
	StateFetching   State = "fetching"
	StateDetecting  State = "detecting"
	StateIdle       State = "idle"
	StateNotifying  State = "notifying"
	StatePersisting State = "persisting"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Result summarises one run. It is the only externally observable outcome
// and its JSON form is consumed by monitoring, so field names are fixed.
type Result struct {
	RunID  string
	Target models.Target

	OK         bool
	Changed    bool
	FirstRun   bool
	Notified   bool
	SHA        string // latest commit id observed
	NewCommits int

	// Partial is set when notification or checkpoint persistence failed
	// after the decision was made
	Partial  bool
	Warnings []string

	// Stage and Err are set when OK is false
	Stage string
	Err   error

	// States lists the states visited, in order
	States []State
}

// Error returns the failure message, or "" for successful runs
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

type failureJSON struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
	RunID string `json:"run_id,omitempty"`
}

type unchangedJSON struct {
	OK      bool   `json:"ok"`
	Changed bool   `json:"changed"`
	SHA     string `json:"sha"`
	Repo    string `json:"repo"`
	Branch  string `json:"branch"`
	Path    string `json:"path"`
	RunID   string `json:"run_id,omitempty"`
}

type changedJSON struct {
	OK         bool     `json:"ok"`
	Changed    bool     `json:"changed"`
	Latest     string   `json:"latest"`
	NewCommits int      `json:"new_commits"`
	FirstRun   bool     `json:"first_run"`
	Notified   bool     `json:"notified"`
	Repo       string   `json:"repo"`
	Branch     string   `json:"branch"`
	Path       string   `json:"path"`
	Partial    bool     `json:"partial,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	RunID      string   `json:"run_id,omitempty"`
}

// MarshalJSON renders one of three shapes: failure, unchanged or changed
func (r Result) MarshalJSON() ([]byte, error) {
	switch {
	case !r.OK:
		return json.Marshal(failureJSON{
			OK:    false,
			Error: r.Error(),
			Stage: r.Stage,
			RunID: r.RunID,
		})
	case !r.Changed:
		return json.Marshal(unchangedJSON{
			OK:      true,
			Changed: false,
			SHA:     models.ShortSHA(r.SHA),
			Repo:    r.Target.FullName(),
			Branch:  r.Target.Branch,
			Path:    r.Target.Path,
			RunID:   r.RunID,
		})
	default:
		return json.Marshal(changedJSON{
			OK:         true,
			Changed:    true,
			Latest:     models.ShortSHA(r.SHA),
			NewCommits: r.NewCommits,
			FirstRun:   r.FirstRun,
			Notified:   r.Notified,
			Repo:       r.Target.FullName(),
			Branch:     r.Target.Branch,
			Path:       r.Target.Path,
			Partial:    r.Partial,
			Warnings:   r.Warnings,
			RunID:      r.RunID,
		})
	}
}

// Failed builds the result of a run that could not start, such as one rejected
// by configuration validation
func Failed(target models.Target, err error) Result {
	return Result{
		RunID:  uuid.NewString(),
		Target: target,
		Stage:  errors.StageOf(err),
		Err:    err,
		States: []State{StateFailed},
	}
}

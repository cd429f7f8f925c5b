package models

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// ShortSHALength is the display truncation applied to commit ids
	ShortSHALength = 8

	// MaxMessageLength caps the first message line shown in notifications
	MaxMessageLength = 100
)

// Target identifies the single file being watched
type Target struct {
	Owner  string `json:"owner" yaml:"owner" mapstructure:"owner" validate:"required"`
	Repo   string `json:"repo" yaml:"repo" mapstructure:"repo" validate:"required"`
	Branch string `json:"branch" yaml:"branch" mapstructure:"branch" validate:"required"`
	Path   string `json:"path" yaml:"path" mapstructure:"path" validate:"required"`
}

// FullName returns "owner/repo"
func (t Target) FullName() string {
	return fmt.Sprintf("%s/%s", t.Owner, t.Repo)
}

// StateKey derives the checkpoint key for this target.
// The format matches the key layout used by existing deployments, so it must not change.
func (t Target) StateKey() string {
	return fmt.Sprintf("%s/%s@%s:%s", t.Owner, t.Repo, t.Branch, t.Path)
}

// RepoURL returns the repository web URL
func (t Target) RepoURL() string {
	return fmt.Sprintf("https://github.com/%s/%s", t.Owner, t.Repo)
}

// FileURL returns the web URL of the watched file on its branch
func (t Target) FileURL() string {
	return fmt.Sprintf("https://github.com/%s/%s/blob/%s/%s", t.Owner, t.Repo, t.Branch, t.Path)
}

// ResolveStateKey returns the override when set, otherwise the derived key
func ResolveStateKey(t Target, override string) string {
	if override = strings.TrimSpace(override); override != "" {
		return override
	}
	return t.StateKey()
}

// CommitRecord is one entry of the commit history for the watched file
type CommitRecord struct {
	SHA      string `json:"sha"`
	ShortSHA string `json:"short_sha"`
	Author   string `json:"author"`
	Message  string `json:"message"`
	URL      string `json:"url"`
}

// NewCommitRecord builds a record, deriving the short id and display message
func NewCommitRecord(sha, author, message, url string) CommitRecord {
	if author == "" {
		author = "Unknown"
	}
	return CommitRecord{
		SHA:      sha,
		ShortSHA: ShortSHA(sha),
		Author:   author,
		Message:  FirstLine(message, MaxMessageLength),
		URL:      url,
	}
}

// ShortSHA truncates a commit id for display
func ShortSHA(sha string) string {
	if len(sha) <= ShortSHALength {
		return sha
	}
	return sha[:ShortSHALength]
}

// FirstLine returns the first line of msg, truncated to max runes
func FirstLine(msg string, max int) string {
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	msg = strings.TrimRight(msg, "\r")
	if max > 0 && utf8.RuneCountInString(msg) > max {
		runes := []rune(msg)
		msg = string(runes[:max])
	}
	return msg
}

// Checkpoint is the last-seen commit id for a state key.
// The zero value means no prior run has been recorded.
type Checkpoint struct {
	SHA   string
	Found bool
}

// NoCheckpoint is the absent checkpoint
var NoCheckpoint = Checkpoint{}

// CheckpointAt returns a present checkpoint for sha
func CheckpointAt(sha string) Checkpoint {
	return Checkpoint{SHA: sha, Found: true}
}

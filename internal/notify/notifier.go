// Package notify formats and sends change notifications.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/rohankatakam/filewatch/internal/models"
)

// Notification describes one batch of new commits for the watched file
type Notification struct {
	Recipients []string
	Subject    string
	Target     models.Target
	Commits    []models.CommitRecord // newest first
}

// Notifier transmits a notification. Implementations must honour ctx and
// must not retry; delivery is at most once.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// NewNotification builds the notification for commits on target
func NewNotification(target models.Target, recipients []string, commits []models.CommitRecord) Notification {
	return Notification{
		Recipients: recipients,
		Subject:    Subject(target),
		Target:     target,
		Commits:    commits,
	}
}

// Subject returns the email subject for a change to target
func Subject(t models.Target) string {
	return fmt.Sprintf("[GitHub] %s changed in %s@%s", t.Path, t.FullName(), t.Branch)
}

var bodyTemplate = template.Must(template.New("body").Parse(`<h3>&#128276; File Change Notification</h3>
<p><strong>Repository:</strong> <a href='{{.Target.RepoURL}}'>{{.Target.FullName}}</a></p>
<p><strong>Branch:</strong> {{.Target.Branch}}</p>
<p><strong>File:</strong> <a href='{{.Target.FileURL}}'>{{.Target.Path}}</a></p>
<p><strong>New commits:</strong> {{len .Commits}}</p>
<hr>
<h4>Recent Commits:</h4>
<ul>
{{- range .Commits}}
<li><strong><a href='{{.URL}}'>{{.ShortSHA}}</a></strong> by {{.Author}}<br><em>{{.Message}}</em></li>
{{- end}}
</ul>
<p><small>Generated by filewatch</small></p>
`))

// RenderHTML renders the HTML email body
func RenderHTML(n Notification) (string, error) {
	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, n); err != nil {
		return "", fmt.Errorf("render email body: %w", err)
	}
	return buf.String(), nil
}

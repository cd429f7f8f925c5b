package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogNotifier writes notifications to the log instead of sending them
type LogNotifier struct {
	logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Send(ctx context.Context, n Notification) error {
	entry := l.logger.WithFields(logrus.Fields{
		"subject":    n.Subject,
		"recipients": n.Recipients,
		"commits":    len(n.Commits),
	})
	entry.Info("notification (dry run)")
	for _, c := range n.Commits {
		entry.WithFields(logrus.Fields{
			"sha":     c.ShortSHA,
			"author":  c.Author,
			"message": c.Message,
			"url":     c.URL,
		}).Info("new commit")
	}
	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/rohankatakam/filewatch/internal/config"
	"github.com/rohankatakam/filewatch/internal/github"
	"github.com/rohankatakam/filewatch/internal/notify"
	"github.com/rohankatakam/filewatch/internal/storage"
	"github.com/rohankatakam/filewatch/internal/watcher"
	"github.com/sirupsen/logrus"
)

// newNotifier picks the configured notifier. "log" never sends mail.
func newNotifier(cfg *config.Config, logger *logrus.Logger) notify.Notifier {
	if cfg.Notifier == "log" {
		return notify.NewLogNotifier(logger)
	}
	return notify.NewEmailNotifier(notify.SMTPSettings{
		Host:    cfg.SMTP.Host,
		Port:    cfg.SMTP.Port,
		User:    cfg.SMTP.User,
		Pass:    cfg.SMTP.Pass,
		From:    cfg.Mail.From,
		Timeout: cfg.SMTP.Timeout,
	}, logger)
}

// newWatcher opens the store and assembles a watcher. The caller closes the store.
// With readOnly set, checkpoint writes stay in memory.
func newWatcher(ctx context.Context, cfg *config.Config, logger *logrus.Logger, readOnly bool) (*watcher.Watcher, storage.Store, error) {
	source, err := github.NewClient(github.Options{
		Token:     cfg.GitHub.Token,
		BaseURL:   cfg.GitHub.BaseURL,
		RateLimit: cfg.GitHub.RateLimit,
		Timeout:   cfg.GitHub.Timeout,
		UserAgent: "filewatch/" + Version,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	store, err := storage.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, nil, err
	}
	if readOnly {
		store = storage.NewOverlay(store)
	}

	w := watcher.New(watcher.Options{
		Target:         cfg.Target,
		StateKey:       cfg.StateKey,
		Recipients:     cfg.Mail.To,
		PerPage:        cfg.GitHub.PerPage,
		MaxPages:       cfg.GitHub.MaxPages,
		CompareAndSwap: cfg.Store.CompareAndSwap,
	}, source, store, newNotifier(cfg, logger), logger)

	return w, store, nil
}

// validateConfig logs warnings and returns the first blocking problem
func validateConfig(cfg *config.Config, logger *logrus.Logger) error {
	result := cfg.Validate()
	for _, w := range result.Warnings {
		logger.Warn(w)
	}
	return result.Err()
}

package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rohankatakam/filewatch/internal/errors"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Err returns the first error as a config error, or nil.
// The first message is kept verbatim because it is reported in run results.
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}
	e := errors.ConfigError(vr.Errors[0])
	if len(vr.Errors) > 1 {
		e.WithContext("additional", strings.Join(vr.Errors[1:], "; "))
	}
	return e
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints and the settings each collaborator needs
// before any network call is made.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{Valid: true}

	c.validateStore(result)
	c.validateNotifier(result)

	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				result.AddError("invalid %s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
			}
		} else {
			result.AddError("validation failed: %v", err)
		}
	}

	if c.GitHub.Token == "" {
		result.AddWarning("GH_TOKEN not set: unauthenticated GitHub API limit is 60 requests/hour")
	}
	if !c.Store.CompareAndSwap {
		result.AddWarning("store.compare_and_swap disabled: overlapping runs may move the checkpoint backwards")
	}

	return result
}

func (c *Config) validateStore(result *ValidationResult) {
	switch c.Store.Type {
	case "bolt", "badger", "sqlite":
		if c.Store.ResolvedPath() == "" {
			result.AddError("store not configured: STORE_PATH required for %s", c.Store.Type)
		}
	case "redis":
		if c.Store.URL == "" {
			result.AddError("KV not configured: REDIS_URL or KV_URL required")
		}
	case "postgres":
		if c.Store.DSN == "" {
			result.AddError("store not configured: POSTGRES_DSN required")
		}
	case "memory":
		result.AddWarning("memory store does not persist checkpoints between invocations")
	}
}

func (c *Config) validateNotifier(result *ValidationResult) {
	if c.Notifier != "email" {
		return
	}
	if c.SMTP.User == "" || c.SMTP.Pass == "" {
		result.AddError("SMTP not configured: SMTP_USER and SMTP_PASS required")
	}
	if len(c.Mail.To) == 0 {
		result.AddError("SMTP not configured: MAIL_TO required")
	}
}

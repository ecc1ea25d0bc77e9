package config

import (
	"fmt"
	"net"
	"slices"
	"strings"
	"time"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "supervisor.restart_delay")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateSupervisor()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateAPI()...)

	return errors
}

func (c *Config) validateSupervisor() []ValidationError {
	var errors []ValidationError
	s := c.Supervisor

	if strings.TrimSpace(s.Shell) == "" {
		errors = append(errors, ValidationError{
			Field:   "supervisor.shell",
			Value:   s.Shell,
			Message: "cannot be empty",
		})
	}

	const maxAttempts = 100
	if s.MaxRestartAttempts < 0 || s.MaxRestartAttempts > maxAttempts {
		errors = append(errors, ValidationError{
			Field:   "supervisor.max_restart_attempts",
			Value:   s.MaxRestartAttempts,
			Message: fmt.Sprintf("must be between 0 and %d", maxAttempts),
		})
	}

	durations := []struct {
		field string
		value time.Duration
	}{
		{"supervisor.restart_delay", s.RestartDelay},
		{"supervisor.restart_pause", s.RestartPause},
		{"supervisor.reconcile_interval", s.ReconcileInterval},
	}
	for _, d := range durations {
		if d.value < 0 {
			errors = append(errors, ValidationError{
				Field:   d.field,
				Value:   d.value,
				Message: "must be non-negative",
			})
		}
	}

	if s.StopGracePeriod <= 0 {
		errors = append(errors, ValidationError{
			Field:   "supervisor.stop_grace_period",
			Value:   s.StopGracePeriod,
			Message: "must be positive",
		})
	}

	const minLines, maxLines = 10, 1_000_000
	if s.LogBufferLines < minLines || s.LogBufferLines > maxLines {
		errors = append(errors, ValidationError{
			Field:   "supervisor.log_buffer_lines",
			Value:   s.LogBufferLines,
			Message: fmt.Sprintf("must be between %d and %d", minLines, maxLines),
		})
	}

	if s.SubscriberBuffer < 1 {
		errors = append(errors, ValidationError{
			Field:   "supervisor.subscriber_buffer",
			Value:   s.SubscriberBuffer,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateAPI() []ValidationError {
	var errors []ValidationError

	if _, _, err := net.SplitHostPort(c.API.Listen); err != nil {
		errors = append(errors, ValidationError{
			Field:   "api.listen",
			Value:   c.API.Listen,
			Message: "must be host:port",
		})
	}

	return errors
}

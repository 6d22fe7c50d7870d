package config

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	// DATABASE_URL is required
	if cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_URL",
			Message: "required",
		})
	}

	if cfg.OwnerID != "" {
		if _, err := uuid.Parse(cfg.OwnerID); err != nil {
			errs = append(errs, ValidationError{
				Field:   "OWNER_ID",
				Message: "must be a uuid",
			})
		}
	}

	errs = append(errs, validateDuration("TICK_INTERVAL", cfg.TickIntervalStr)...)
	errs = append(errs, validateDuration("JOB_TIMEOUT", cfg.JobTimeoutStr)...)
	errs = append(errs, validateDuration("RETENTION_INTERVAL", cfg.RetentionIntervalStr)...)
	errs = append(errs, validateDuration("JANITOR_INTERVAL", cfg.JanitorIntervalStr)...)
	errs = append(errs, validateDuration("GATE_COOLDOWN", cfg.GateCooldownStr)...)
	errs = append(errs, validateDuration("RUNNER_DRAIN_TIMEOUT", cfg.RunnerDrainTimeoutStr)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateDuration(field, value string) ValidationErrors {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return ValidationErrors{{Field: field, Message: fmt.Sprintf("invalid duration: %v", err)}}
	}
	if d <= 0 {
		return ValidationErrors{{Field: field, Message: "must be positive"}}
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrMissingRegion       = errors.New("region is required")
	ErrMissingZone         = errors.New("dns zone id is required when a domain name is set")
	ErrInvalidSizing       = errors.New("cpu/memory combination is not a supported task size")
	ErrInvalidDesiredCount = errors.New("desired count must not be negative")
	ErrInvalidDomain       = errors.New("invalid domain name")
)

// ConfigError reports which input field failed validation.
type ConfigError struct {
	Field   string // e.g., "dns_zone_id"
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string, err error) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate validates Config using struct tags, plus cross-field rules that
// don't fit the validator's declarative tags.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateStorageBackend(); err != nil {
		return err
	}

	return nil
}

// validateStorageBackend ensures the redis/valkey backend carries a
// connection URL; the memory backend needs none.
func (c *Config) validateStorageBackend() error {
	if (c.Storage.Type == "redis" || c.Storage.Type == "valkey") && c.Storage.ValkeyURL == "" {
		return fmt.Errorf("storage.valkeyUrl is required when storage.type is %q", c.Storage.Type)
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors into a single
// readable error joining every failing field.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}

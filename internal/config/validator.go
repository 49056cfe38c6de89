package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers service-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	// listen_addr: validates a "host:port" listen address.
	if err := v.RegisterValidation("listen_addr", validateListenAddr); err != nil {
		return fmt.Errorf("failed to register listen_addr validator: %w", err)
	}
	return nil
}

// validateListenAddr validates a host:port listen address. The host part may
// be empty (listen on all interfaces) but the port is required.
func validateListenAddr(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	_, port, err := net.SplitHostPort(addr)
	return err == nil && port != ""
}

// Validate validates the Config using struct tags and cross-field rules.
// Returns an error with actionable messages if validation fails.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	// Cross-field: the sqlite driver needs a database path.
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		return errors.New("store.path is required when store.driver is sqlite")
	}

	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "listen_addr":
		return fmt.Sprintf("%s must be a valid host:port listen address", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}

package config

import "fmt"

// ConfigurationError reports a missing or unusable required configuration
// value. It is fatal for whatever operation needed the value; callers must
// never default around it.
type ConfigurationError struct {
	Variable string
	Message  string
}

// NewConfigurationError creates a ConfigurationError for the named variable.
func NewConfigurationError(variable, message string) *ConfigurationError {
	return &ConfigurationError{Variable: variable, Message: message}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s (set the %s environment variable). Please contact G-Cubed support.",
		e.Variable, e.Message, e.Variable)
}

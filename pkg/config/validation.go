package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Declarative constraints live in struct tags; rules that relate multiple
// fields are checked here. Log level normalization is handled in
// ApplyDefaults, so validation accepts both cases.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	w := &cfg.Walk
	if w.MaxBufferSize > 0 && w.InitialBufferSize > w.MaxBufferSize {
		return fmt.Errorf("walk: initial_buffer_size (%d) exceeds max_buffer_size (%d)",
			w.InitialBufferSize, w.MaxBufferSize)
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly
// messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}

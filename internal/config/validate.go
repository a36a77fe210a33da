package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is the package-level validator instance.
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("duration", validateDuration)
}

// Validate checks the configuration, including the strictly-increasing
// invariant on the default severity boundaries.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		if fieldErrors, ok := err.(validator.ValidationErrors); ok {
			var sb strings.Builder
			sb.WriteString("config validation failed:")
			for _, fe := range fieldErrors {
				sb.WriteString(fmt.Sprintf("\n  - %s: failed %q", fieldPath(fe.Namespace()), fe.Tag()))
			}
			return fmt.Errorf("%s", sb.String())
		}
		return err
	}

	if err := cfg.Thresholds.Defaults.Validate(); err != nil {
		return fmt.Errorf("thresholds.defaults: %w", err)
	}

	return nil
}

// validateDuration accepts any string time.ParseDuration understands.
func validateDuration(fl validator.FieldLevel) bool {
	_, err := time.ParseDuration(fl.Field().String())
	return err == nil
}

// fieldPath converts the validator namespace to config-file notation.
// Example: "Config.Engine.BatchSize" -> "engine.batchsize"
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, part := range parts {
		parts[i] = strings.ToLower(part)
	}
	return strings.Join(parts, ".")
}

// Duration parses a duration string, falling back to a default on empty or
// malformed input. Config validation has already rejected malformed values
// coming from a file; the fallback guards direct struct construction.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// conf/validate.go

package conf

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"

	"github.com/tphakala/audiograph/internal/logger"
)

// Engine driver names
const (
	DriverMalgo = "malgo"
	DriverNull  = "null"
)

// Session categories
const (
	CategoryPlayback      = "playback"
	CategoryRecord        = "record"
	CategoryPlayAndRecord = "playandrecord"
)

const (
	minSampleRate = 8000
	maxSampleRate = 384000
	maxChannels   = 8
)

var (
	validDrivers    = []string{DriverMalgo, DriverNull}
	validBackends   = []string{"auto", "alsa", "pulse", "jack", "wasapi", "dsound", "coreaudio"}
	validCategories = []string{CategoryPlayback, CategoryRecord, CategoryPlayAndRecord}
	validBitDepths  = []int{16, 24, 32}
	validLogLevels  = []string{"trace", "debug", "info", "warn", "error"}
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		func(s *Settings) error { return validateEngineSettings(&s.Engine) },
		func(s *Settings) error { return validateRenderSettings(&s.Render) },
		func(s *Settings) error { return validateRecoverySettings(&s.Recovery) },
		func(s *Settings) error { return validateLoggingSettings(&s.Logging) },
		func(s *Settings) error { return validateTelemetrySettings(&s.Telemetry) },
		func(s *Settings) error { return validateMetricsSettings(&s.Metrics) },
		func(s *Settings) error { return validateEventSettings(&s.Events) },
	}

	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateEngineSettings validates the live transport settings
func validateEngineSettings(settings *EngineSettings) error {
	var errs []error

	if settings.SampleRate < minSampleRate || settings.SampleRate > maxSampleRate {
		errs = append(errs, fmt.Errorf("engine sample rate must be between %d and %d Hz, got %v",
			minSampleRate, maxSampleRate, settings.SampleRate))
	}
	if settings.Channels < 1 || settings.Channels > maxChannels {
		errs = append(errs, fmt.Errorf("engine channels must be between 1 and %d, got %d", maxChannels, settings.Channels))
	}
	if settings.BufferFrames <= 0 {
		errs = append(errs, fmt.Errorf("engine buffer frames must be positive, got %d", settings.BufferFrames))
	}
	if !slices.Contains(validDrivers, settings.Driver) {
		errs = append(errs, fmt.Errorf("engine driver must be one of %v, got %q", validDrivers, settings.Driver))
	}
	if !slices.Contains(validBackends, strings.ToLower(settings.Backend)) {
		errs = append(errs, fmt.Errorf("engine backend must be one of %v, got %q", validBackends, settings.Backend))
	}
	if !slices.Contains(validCategories, strings.ToLower(settings.Category)) {
		errs = append(errs, fmt.Errorf("engine category must be one of %v, got %q", validCategories, settings.Category))
	}

	return errors.Join(errs...)
}

// validateRenderSettings validates the offline renderer settings
func validateRenderSettings(settings *RenderSettings) error {
	var errs []error

	if settings.MaxFrames <= 0 {
		errs = append(errs, fmt.Errorf("render max frames must be positive, got %d", settings.MaxFrames))
	}
	if settings.MaxStalls <= 0 {
		errs = append(errs, fmt.Errorf("render max stalls must be positive, got %d", settings.MaxStalls))
	}
	if settings.RetryBackoff < 0 {
		errs = append(errs, fmt.Errorf("render retry backoff cannot be negative"))
	}
	if !slices.Contains(validBitDepths, settings.BitDepth) {
		errs = append(errs, fmt.Errorf("render bit depth must be one of %v, got %d", validBitDepths, settings.BitDepth))
	}

	return errors.Join(errs...)
}

// validateRecoverySettings validates the auto-recovery settings
func validateRecoverySettings(settings *RecoverySettings) error {
	if !settings.Enabled {
		return nil
	}

	var errs []error

	if settings.MinRestartInterval < 0 {
		errs = append(errs, fmt.Errorf("recovery min restart interval cannot be negative"))
	}
	if settings.RoutePollInterval < 0 {
		errs = append(errs, fmt.Errorf("recovery route poll interval cannot be negative"))
	}
	if settings.InboxSize <= 0 {
		errs = append(errs, fmt.Errorf("recovery inbox size must be positive, got %d", settings.InboxSize))
	}

	return errors.Join(errs...)
}

// validateLoggingSettings validates log levels
func validateLoggingSettings(settings *logger.LoggingConfig) error {
	var errs []error

	check := func(name, level string) {
		if level != "" && !slices.Contains(validLogLevels, strings.ToLower(level)) {
			errs = append(errs, fmt.Errorf("logging %s level must be one of %v, got %q", name, validLogLevels, level))
		}
	}

	check("default", settings.DefaultLevel)
	if settings.Console != nil {
		check("console", settings.Console.Level)
	}
	if settings.FileOutput != nil {
		check("file", settings.FileOutput.Level)
		if settings.FileOutput.Enabled && settings.FileOutput.Path == "" {
			errs = append(errs, fmt.Errorf("logging file path is required when file output is enabled"))
		}
	}
	for module, level := range settings.ModuleLevels {
		check("module "+module, level)
	}

	return errors.Join(errs...)
}

// validateTelemetrySettings validates the Sentry settings
func validateTelemetrySettings(settings *TelemetrySettings) error {
	if settings.Enabled && settings.DSN == "" {
		return fmt.Errorf("telemetry DSN is required when telemetry is enabled")
	}
	return nil
}

// validateMetricsSettings validates the metrics endpoint address
func validateMetricsSettings(settings *MetricsSettings) error {
	if !settings.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
		return fmt.Errorf("metrics listen address %q is invalid: %w", settings.Listen, err)
	}
	return nil
}

// validateEventSettings validates the event bus settings
func validateEventSettings(settings *EventSettings) error {
	var errs []error

	if settings.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("events buffer size must be positive, got %d", settings.BufferSize))
	}
	if settings.Workers <= 0 {
		errs = append(errs, fmt.Errorf("events workers must be positive, got %d", settings.Workers))
	}
	if settings.DedupTTL < 0 {
		errs = append(errs, fmt.Errorf("events dedup TTL cannot be negative"))
	}

	return errors.Join(errs...)
}

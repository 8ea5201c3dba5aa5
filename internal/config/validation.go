package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"doc-migrator/internal/logging"

	"github.com/Knetic/govaluate"
)

// Define known valid enum values for configuration fields.
var (
	knownLogLevels   = []string{"none", "error", "warn", "warning", "info", "debug"}
	knownSourceTypes = []string{SourceTypeMongo, SourceTypeFile}
	knownKinds       = []string{KindAccounts, KindDonations, KindTransactions, KindExpenses, KindUsers}
	knownReportExts  = []string{".csv", ".xlsx"}
)

// isValidEnumValue checks if a value is present in a list of allowed string values (case-insensitive).
func isValidEnumValue(value string, allowedValues []string) bool {
	lowerValue := strings.ToLower(value)
	for _, allowed := range allowedValues {
		if lowerValue == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// ValidateConfig performs validation of the entire migrator configuration and
// reports every problem found in a single error.
func ValidateConfig(cfg *Config) error {
	var allErrors []string

	if !isValidEnumValue(cfg.Logging.Level, knownLogLevels) {
		allErrors = append(allErrors, fmt.Sprintf("- Config.Logging.Level: invalid log level '%s', must be one of %v", cfg.Logging.Level, knownLogLevels))
	}

	allErrors = append(allErrors, validateSourceConfig("Config.Source", &cfg.Source)...)

	if cfg.Target.ConnectTimeout < 0 {
		allErrors = append(allErrors, "- Config.Target.ConnectTimeout: cannot be negative")
	}

	allErrors = append(allErrors, validateMigrationConfig("Config.Migration", &cfg.Migration)...)

	if cfg.Verify.SampleSize < 0 {
		allErrors = append(allErrors, "- Config.Verify.SampleSize: cannot be negative")
	}

	allErrors = append(allErrors, validateIndexerConfig("Config.Indexer", &cfg.Indexer)...)

	if cfg.Report.File != "" {
		ext := strings.ToLower(filepath.Ext(cfg.Report.File))
		if !isValidEnumValue(ext, knownReportExts) {
			allErrors = append(allErrors, fmt.Sprintf("- Config.Report.File: unsupported extension '%s', must be one of %v", ext, knownReportExts))
		}
	}

	if len(allErrors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(allErrors, "\n"))
	}
	logging.Logf(logging.Debug, "Configuration validation successful.")
	return nil
}

// validateSourceConfig validates the Source section of the configuration.
func validateSourceConfig(prefix string, cfg *SourceConfig) []string {
	var errs []string
	if !isValidEnumValue(cfg.Type, knownSourceTypes) {
		return append(errs, fmt.Sprintf("- %s.Type: invalid source type '%s', must be one of %v", prefix, cfg.Type, knownSourceTypes))
	}

	switch strings.ToLower(cfg.Type) {
	case SourceTypeMongo:
		if strings.TrimSpace(cfg.URI) == "" {
			errs = append(errs, fmt.Sprintf("- %s.URI: is required for source type 'mongodb'", prefix))
		} else if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
			errs = append(errs, fmt.Sprintf("- %s.URI: must start with mongodb:// or mongodb+srv://", prefix))
		}
		if cfg.Dir != "" {
			logging.Logf(logging.Warning, "Validation: %s.Dir is specified but will be ignored for source type 'mongodb'", prefix)
		}
	case SourceTypeFile:
		if strings.TrimSpace(cfg.Dir) == "" {
			errs = append(errs, fmt.Sprintf("- %s.Dir: is required for source type 'file'", prefix))
		}
	}

	for _, kind := range knownKinds {
		if strings.TrimSpace(cfg.Collections.Collection(kind)) == "" {
			errs = append(errs, fmt.Sprintf("- %s.Collections.%s: cannot be empty", prefix, kind))
		}
	}
	return errs
}

// validateMigrationConfig validates batch sizing and per-kind filter expressions.
func validateMigrationConfig(prefix string, cfg *MigrationConfig) []string {
	var errs []string
	if cfg.BatchSize <= 0 {
		errs = append(errs, fmt.Sprintf("- %s.BatchSize: must be positive, got %d", prefix, cfg.BatchSize))
	}

	kinds := make([]string, 0, len(cfg.Filters))
	for kind := range cfg.Filters {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		expr := cfg.Filters[kind]
		if !isValidEnumValue(kind, knownKinds) {
			errs = append(errs, fmt.Sprintf("- %s.Filters: unknown entity kind '%s', must be one of %v", prefix, kind, knownKinds))
			continue
		}
		if strings.TrimSpace(expr) == "" {
			errs = append(errs, fmt.Sprintf("- %s.Filters.%s: expression cannot be empty", prefix, kind))
			continue
		}
		if _, err := govaluate.NewEvaluableExpression(expr); err != nil {
			errs = append(errs, fmt.Sprintf("- %s.Filters.%s: invalid expression syntax: %v", prefix, kind, err))
		}
	}
	return errs
}

// validateIndexerConfig checks every collection name used by the indexer is set.
func validateIndexerConfig(prefix string, cfg *IndexerConfig) []string {
	var errs []string
	fields := []struct {
		name  string
		value string
	}{
		{"References", cfg.References},
		{"Mappings", cfg.Mappings},
		{"Info", cfg.Info},
		{"WatermarkKey", cfg.WatermarkKey},
		{"Donations", cfg.Donations},
		{"Expenses", cfg.Expenses},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, fmt.Sprintf("- %s.%s: cannot be empty", prefix, f.name))
		}
	}
	if cfg.References != "" && cfg.References == cfg.Mappings {
		errs = append(errs, fmt.Sprintf("- %s.Mappings: must differ from %s.References", prefix, prefix))
	}
	return errs
}

// ErrTargetRequired is returned by RequireTarget when no target URI is set.
var ErrTargetRequired = errors.New("Config.Target.URI: is required (set target.uri, POSTGRES_URL or --target)")

// RequireTarget checks the settings needed by commands that write to the
// target database. The indexer only touches the source store.
func (cfg *Config) RequireTarget() error {
	if strings.TrimSpace(cfg.Target.URI) == "" {
		return ErrTargetRequired
	}
	return nil
}

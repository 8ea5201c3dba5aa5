package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"doc-migrator/internal/logging"
	"doc-migrator/internal/util"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvSourceURI      = "MONGODB_URL"
	EnvSourceDatabase = "MONGO_DB"
	EnvTargetURI      = "POSTGRES_URL"
	EnvBatchSize      = "BATCH_SIZE"
	EnvLogLevel       = "LOG_LEVEL"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig reads, parses, and validates the YAML configuration file.
// Environment overrides are applied before validation.
func LoadConfig(filename string) (*Config, error) {
	return Resolve(filename, Overrides{})
}

// Resolve builds the effective configuration. Values are layered as
// defaults < file < environment < overrides, then validated as a whole.
// An empty filename skips the file layer.
func Resolve(filename string, o Overrides) (*Config, error) {
	cfg := &Config{}
	if filename != "" {
		fileBytes, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", filename, err)
		}
		if err := yaml.Unmarshal(fileBytes, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML in '%s': %w", filename, err)
		}
	}

	applyDefaults(cfg)
	ApplyEnv(cfg)
	cfg.Apply(o)

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for unset configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}

	if cfg.Source.Type == "" {
		cfg.Source.Type = SourceTypeMongo
	}
	if cfg.Source.Type == SourceTypeMongo && cfg.Source.URI == "" {
		cfg.Source.URI = DefaultSourceURI
	}
	setDefault(&cfg.Source.Collections.Accounts, DefaultAccountsCollection)
	setDefault(&cfg.Source.Collections.Donations, DefaultDonationsCollection)
	setDefault(&cfg.Source.Collections.Transactions, DefaultTransactionsCollection)
	setDefault(&cfg.Source.Collections.Expenses, DefaultExpensesCollection)
	setDefault(&cfg.Source.Collections.Users, DefaultUsersCollection)

	if cfg.Target.ConnectTimeout <= 0 {
		cfg.Target.ConnectTimeout = DefaultConnectTimeout
	}

	// Zero or negative batch sizes are treated as unset.
	if cfg.Migration.BatchSize <= 0 {
		cfg.Migration.BatchSize = DefaultBatchSize
	}
	if cfg.Verify.SampleSize == 0 {
		cfg.Verify.SampleSize = DefaultSampleSize
	}

	setDefault(&cfg.Indexer.References, DefaultReferencesCollection)
	setDefault(&cfg.Indexer.Mappings, DefaultMappingsCollection)
	setDefault(&cfg.Indexer.Info, DefaultInfoCollection)
	setDefault(&cfg.Indexer.WatermarkKey, DefaultWatermarkKey)
	setDefault(&cfg.Indexer.Donations, DefaultIndexerDonations)
	setDefault(&cfg.Indexer.Expenses, DefaultIndexerExpenses)
}

func setDefault(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}

// ApplyEnv layers the migrator environment variables over cfg.
// An unparsable BATCH_SIZE is reported and ignored.
func ApplyEnv(cfg *Config) {
	if v := util.FirstEnv(EnvSourceURI); v != "" {
		cfg.Source.URI = v
	}
	if v := util.FirstEnv(EnvSourceDatabase); v != "" {
		cfg.Source.Database = v
	}
	if v := util.FirstEnv(EnvTargetURI); v != "" {
		cfg.Target.URI = v
	}
	if v := util.FirstEnv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := util.FirstEnv(EnvBatchSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			logging.Logf(logging.Warning, "Ignoring invalid %s=%q; using batch size %d.", EnvBatchSize, v, cfg.Migration.BatchSize)
		} else {
			cfg.Migration.BatchSize = n
		}
	}
}

// Apply layers non-empty override values over cfg and expands environment
// references in every connection string and path.
func (cfg *Config) Apply(o Overrides) {
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	if o.SourceURI != "" {
		cfg.Source.URI = o.SourceURI
	}
	if o.SourceDatabase != "" {
		cfg.Source.Database = o.SourceDatabase
	}
	if o.SourceDir != "" {
		cfg.Source.Type = SourceTypeFile
		cfg.Source.Dir = o.SourceDir
	}
	if o.TargetURI != "" {
		cfg.Target.URI = o.TargetURI
	}
	if o.BatchSize > 0 {
		cfg.Migration.BatchSize = o.BatchSize
	}
	if o.ReportFile != "" {
		cfg.Report.File = o.ReportFile
	}
	if o.DryRun != nil {
		cfg.Migration.DryRun = *o.DryRun
	}

	cfg.Source.URI = util.ExpandEnvUniversal(cfg.Source.URI)
	cfg.Source.Dir = util.ExpandEnvUniversal(cfg.Source.Dir)
	cfg.Target.URI = util.ExpandEnvUniversal(cfg.Target.URI)
	cfg.Report.File = util.ExpandEnvUniversal(cfg.Report.File)
}

// Collection returns the configured source collection for an entity kind.
func (c CollectionsConfig) Collection(kind string) string {
	switch kind {
	case KindAccounts:
		return c.Accounts
	case KindDonations:
		return c.Donations
	case KindTransactions:
		return c.Transactions
	case KindExpenses:
		return c.Expenses
	case KindUsers:
		return c.Users
	default:
		return ""
	}
}

package config

import "time"

// Define constants for configuration keys, types and defaults.
const (
	SourceTypeMongo = "mongodb" // Live MongoDB deployment
	SourceTypeFile  = "file"    // Directory of mongoexport extended-JSON dumps

	KindAccounts     = "accounts"
	KindDonations    = "donations"
	KindTransactions = "transactions"
	KindExpenses     = "expenses"
	KindUsers        = "users"

	DefaultLogLevel       = "info"
	DefaultSourceURI      = "mongodb://localhost:27017/nabarun_stage"
	DefaultBatchSize      = 100
	DefaultSampleSize     = 5
	DefaultConnectTimeout = 30 * time.Second

	DefaultAccountsCollection     = "accounts"
	DefaultDonationsCollection    = "contributions"
	DefaultTransactionsCollection = "transactions"
	DefaultExpensesCollection     = "expenses"
	DefaultUsersCollection        = "user_profiles"

	DefaultReferencesCollection = "document_references"
	DefaultMappingsCollection   = "document_mappings"
	DefaultInfoCollection       = "migration_info"
	DefaultWatermarkKey         = "mig-doc-map-info"
	DefaultIndexerDonations     = "donations"
	DefaultIndexerExpenses      = "expenses"
)

// Config defines the overall structure of the migrator YAML configuration file.
type Config struct {
	// Logging configuration specifies the verbosity level.
	Logging LoggingConfig `yaml:"logging"`
	// Source describes the document store being migrated from.
	Source SourceConfig `yaml:"source"`
	// Target describes the relational store being migrated into.
	Target TargetConfig `yaml:"target"`
	// Migration tunes the batch driver.
	Migration MigrationConfig `yaml:"migration"`
	// Verify tunes the reconciliation run.
	Verify VerifyConfig `yaml:"verify"`
	// Indexer configures the cross-reference document indexer.
	Indexer IndexerConfig `yaml:"indexer"`
	// Report optionally exports failures and reconciliation results.
	Report ReportConfig `yaml:"report"`
}

// LoggingConfig holds settings related to logging verbosity.
type LoggingConfig struct {
	// Level defines the logging detail ("none", "error", "warn", "info", "debug").
	Level string `yaml:"level"`
}

// SourceConfig details the source document store.
type SourceConfig struct {
	// Type is "mongodb" (default) or "file".
	Type string `yaml:"type"`
	// URI is the MongoDB connection string. Environment variables are expanded.
	URI string `yaml:"uri,omitempty"`
	// Database overrides the database named in URI.
	Database string `yaml:"database,omitempty"`
	// Dir holds one <collection>.json extended-JSON dump per collection for type "file".
	Dir string `yaml:"dir,omitempty"`
	// Collections maps entity kinds to source collection names.
	Collections CollectionsConfig `yaml:"collections"`
}

// CollectionsConfig names the source collection for each entity kind.
type CollectionsConfig struct {
	Accounts     string `yaml:"accounts"`
	Donations    string `yaml:"donations"`
	Transactions string `yaml:"transactions"`
	Expenses     string `yaml:"expenses"`
	Users        string `yaml:"users"`
}

// TargetConfig details the PostgreSQL target.
type TargetConfig struct {
	// URI is the PostgreSQL connection string. Environment variables are expanded.
	URI string `yaml:"uri,omitempty"`
	// ConnectTimeout bounds the initial connection attempt to either store.
	ConnectTimeout time.Duration `yaml:"connectTimeout,omitempty"`
}

// MigrationConfig tunes the batch driver.
type MigrationConfig struct {
	// BatchSize is the number of documents pulled from the source cursor per window.
	BatchSize int `yaml:"batchSize"`
	// DryRun transforms and validates every document without writing to the target.
	DryRun bool `yaml:"dryRun,omitempty"`
	// Filters holds optional per-kind govaluate expressions evaluated against each
	// source document. Documents evaluating to false are not migrated.
	// Example: accounts: "accountStatus != 'BLOCKED'"
	Filters map[string]string `yaml:"filters,omitempty"`
}

// VerifyConfig tunes reconciliation.
type VerifyConfig struct {
	// SampleSize is the number of source documents spot-checked per entity kind.
	SampleSize int `yaml:"sampleSize"`
}

// IndexerConfig names the collections the cross-reference indexer reads and writes.
type IndexerConfig struct {
	References   string `yaml:"references"`
	Mappings     string `yaml:"mappings"`
	Info         string `yaml:"info"`
	WatermarkKey string `yaml:"watermarkKey"`
	Donations    string `yaml:"donations"`
	Expenses     string `yaml:"expenses"`
}

// ReportConfig configures the remediation report.
type ReportConfig struct {
	// File is a .csv or .xlsx path. Empty disables the report.
	File string `yaml:"file,omitempty"`
}

// Overrides carries command-line and environment values layered on top of the file.
// Empty fields leave the configuration untouched.
type Overrides struct {
	LogLevel       string
	SourceURI      string
	SourceDatabase string
	SourceDir      string
	TargetURI      string
	BatchSize      int
	ReportFile     string
	DryRun         *bool
}

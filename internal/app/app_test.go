package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"doc-migrator/internal/config"
	"doc-migrator/internal/logging"
	"doc-migrator/internal/model"
	"doc-migrator/internal/source"
	"doc-migrator/internal/target"
)

// --- Test Helper Functions ---

func createTempYAML(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "*.yaml")
	if err != nil {
		t.Fatalf("Create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		t.Fatalf("Write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close temp file: %v", err)
	}
	return f.Name()
}

// testEnv holds the stores handed to the runner by the factory seams.
type testEnv struct {
	src       *source.MemoryStore
	dst       *target.MemoryStore
	srcErr    error
	dstErr    error
	dstOpened int
	logs      *bytes.Buffer
}

var setupMu sync.Mutex

func setupTestEnv(t *testing.T) *testEnv {
	setupMu.Lock()
	t.Helper()
	for _, name := range []string{config.EnvSourceURI, config.EnvSourceDatabase, config.EnvTargetURI, config.EnvBatchSize, config.EnvLogLevel} {
		t.Setenv(name, "")
	}

	env := &testEnv{src: source.NewMemoryStore(), dst: target.NewMemoryStore(), logs: &bytes.Buffer{}}
	origSourceFn := newSourceStoreFunc
	origTargetFn := newTargetStoreFunc
	origStatFn := osStatFunc
	newSourceStoreFunc = func(ctx context.Context, cfg *config.Config) (source.Store, error) {
		if env.srcErr != nil {
			return nil, env.srcErr
		}
		return env.src, nil
	}
	newTargetStoreFunc = func(ctx context.Context, cfg *config.Config) (target.Store, error) {
		env.dstOpened++
		if env.dstErr != nil {
			return nil, env.dstErr
		}
		return env.dst, nil
	}
	origLogLevel := logging.GetLevel()
	logging.SetOutput(env.logs)
	t.Cleanup(func() {
		newSourceStoreFunc = origSourceFn
		newTargetStoreFunc = origTargetFn
		osStatFunc = origStatFn
		logging.SetOutput(os.Stderr)
		logging.SetLevel(origLogLevel)
		setupMu.Unlock()
	})
	return env
}

func seedFinance(src *source.MemoryStore) {
	src.Seed("accounts", source.Document{"_id": "a1", "accountName": "Main", "currentBalance": 100.0})
	src.Seed("contributions", source.Document{"_id": "d1", "isGuest": true, "guestFullNameOrOrgName": "Jane", "amount": 25.0, "accountId": "a1"})
	src.Seed("transactions", source.Document{"_id": "t1", "toAccount": "a1", "transactionAmt": 25.0})
	src.Seed("expenses", source.Document{"_id": "e1", "expenseTitle": "Tea", "expenseAmount": 5.0})
}

const targetFlag = "--target=postgres://app:pw@localhost:5432/db"

// --- Test Functions ---

func TestAppRunner_Usage(t *testing.T) {
	var buf bytes.Buffer
	NewAppRunner().Usage(&buf)
	got := buf.String()
	for _, want := range []string{"Usage:", "users", "finance", "index-documents", "--dry-run", "--batch-size", "--source-db"} {
		if !strings.Contains(got, want) {
			t.Errorf("Usage missing %q:\n%s", want, got)
		}
	}
}

func TestAppRunner_Run_InvalidFlag(t *testing.T) {
	setupTestEnv(t)
	err := NewAppRunner().Run([]string{"finance", "--invalid-flag"})
	if !errors.Is(err, ErrUsage) {
		t.Errorf("Expected ErrUsage, got: %v", err)
	}
}

func TestAppRunner_Run_UnknownCommand(t *testing.T) {
	setupTestEnv(t)
	err := NewAppRunner().Run([]string{"payroll"})
	if !errors.Is(err, ErrUsage) {
		t.Errorf("Expected ErrUsage, got: %v", err)
	}
}

func TestAppRunner_Run_ConfigNotFound(t *testing.T) {
	setupTestEnv(t)
	err := NewAppRunner().Run([]string{"finance", "--config", filepath.Join(t.TempDir(), "non-existent.yaml"), targetFlag})
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Expected ErrConfigNotFound, got: %v", err)
	}
}

func TestAppRunner_Run_StatError(t *testing.T) {
	setupTestEnv(t)
	osStatFunc = func(string) (os.FileInfo, error) { return nil, os.ErrPermission }
	err := NewAppRunner().Run([]string{"finance", targetFlag})
	if err == nil || !strings.Contains(err.Error(), "failed to stat config file") {
		t.Errorf("Expected stat error, got: %v", err)
	}
}

func TestAppRunner_Run_InvalidConfigContent(t *testing.T) {
	setupTestEnv(t)
	t.Run("InvalidYAML", func(t *testing.T) {
		cp := createTempYAML(t, "logging: { level:")
		err := NewAppRunner().Run([]string{"users", "--config", cp, targetFlag})
		if err == nil || !strings.Contains(err.Error(), "YAML") {
			t.Errorf("Expected YAML err, got: %v", err)
		}
	})
	t.Run("InvalidSchema", func(t *testing.T) {
		cp := createTempYAML(t, "source: { type: cassandra }\n")
		err := NewAppRunner().Run([]string{"users", "--config", cp, targetFlag})
		if err == nil || !strings.Contains(err.Error(), "validation failed") {
			t.Errorf("Expected validation err, got: %v", err)
		}
	})
}

func TestAppRunner_Run_MissingTarget(t *testing.T) {
	env := setupTestEnv(t)
	err := NewAppRunner().Run([]string{"finance"})
	if !errors.Is(err, ErrUsage) || !strings.Contains(err.Error(), "Target.URI") {
		t.Errorf("Expected missing target usage error, got: %v", err)
	}
	if env.dstOpened != 0 {
		t.Errorf("target opened %d times, want 0", env.dstOpened)
	}
}

func TestAppRunner_Run_Finance(t *testing.T) {
	env := setupTestEnv(t)
	seedFinance(env.src)
	reportPath := filepath.Join(t.TempDir(), "finance.csv")

	err := NewAppRunner().Run([]string{"finance", targetFlag, "--batch-size", "2", "--report", reportPath, "--loglevel", "debug"})
	if err != nil {
		t.Fatalf("Run err: %v", err)
	}
	ctx := context.Background()
	for _, table := range []string{model.TableAccounts, model.TableDonations, model.TableTransactions, model.TableExpenses} {
		if n, _ := env.dst.Count(ctx, table); n != 1 {
			t.Errorf("%s rows = %d, want 1", table, n)
		}
	}
	if logging.GetLevel() != logging.Debug {
		t.Errorf("log level = %d, want debug", logging.GetLevel())
	}
	if !strings.Contains(env.logs.String(), "Verification passed") {
		t.Errorf("verification did not pass:\n%s", env.logs.String())
	}
	if _, err := os.Stat(reportPath); err != nil {
		t.Errorf("failure report not written: %v", err)
	}
	if _, err := os.Stat(strings.TrimSuffix(reportPath, ".csv") + "_verification.csv"); err != nil {
		t.Errorf("verification report not written: %v", err)
	}
}

func TestAppRunner_Run_VerifyOnly(t *testing.T) {
	env := setupTestEnv(t)
	seedFinance(env.src)

	if err := NewAppRunner().Run([]string{"finance", "--verify", targetFlag}); err != nil {
		t.Fatalf("Run err: %v", err)
	}
	if n, _ := env.dst.Count(context.Background(), model.TableAccounts); n != 0 {
		t.Errorf("verify wrote %d accounts, want 0", n)
	}
	if !strings.Contains(env.logs.String(), "Verification found differences") {
		t.Errorf("expected differences to be reported:\n%s", env.logs.String())
	}
}

func TestAppRunner_Run_DryRun(t *testing.T) {
	env := setupTestEnv(t)
	env.src.Seed("user_profiles", source.Document{"_id": "u1", "email": "asha@example.org", "roleCodes": "MEMBER", "phoneNumber": "111"})

	if err := NewAppRunner().Run([]string{"users", "--dry-run", targetFlag}); err != nil {
		t.Fatalf("Run err: %v", err)
	}
	ctx := context.Background()
	for _, table := range []string{model.TableUserProfiles, model.TableUserRoles, model.TablePhoneNumbers} {
		if n, _ := env.dst.Count(ctx, table); n != 0 {
			t.Errorf("dry run wrote %d rows to %s", n, table)
		}
	}
	if !strings.Contains(env.logs.String(), "DRY RUN: 1 user_profiles rows would be written.") {
		t.Errorf("dry run summary missing:\n%s", env.logs.String())
	}
}

func TestAppRunner_Run_SourceFactoryError(t *testing.T) {
	env := setupTestEnv(t)
	env.srcErr = errors.New("no reachable servers")
	err := NewAppRunner().Run([]string{"users", targetFlag})
	if err == nil || !strings.Contains(err.Error(), "failed to open source store: no reachable servers") {
		t.Errorf("Expected source error, got: %v", err)
	}
}

func TestAppRunner_Run_TargetFactoryError(t *testing.T) {
	env := setupTestEnv(t)
	env.dstErr = errors.New("connection refused")
	err := NewAppRunner().Run([]string{"users", targetFlag})
	if err == nil || !strings.Contains(err.Error(), "failed to open target store: connection refused") {
		t.Errorf("Expected target error, got: %v", err)
	}
}

func TestAppRunner_Run_IndexDocuments(t *testing.T) {
	env := setupTestEnv(t)
	env.src.Seed("document_references", source.Document{"_id": "doc1", "documentRefId": "don1", "documentType": "DONATION"})
	env.src.Seed("donations", source.Document{"_id": "don1", "transactionRefNumber": "TXN-1"})

	if err := NewAppRunner().Run([]string{"index-documents"}); err != nil {
		t.Fatalf("Run err: %v", err)
	}
	if got := len(env.src.All("document_mappings")); got != 2 {
		t.Errorf("mappings = %d, want 2", got)
	}
	if env.dstOpened != 0 {
		t.Errorf("indexer opened the target %d times", env.dstOpened)
	}
}

func TestAppRunner_Run_ConfigFileValues(t *testing.T) {
	env := setupTestEnv(t)
	env.src.Seed("members", source.Document{"_id": "u1", "email": "asha@example.org"})
	cp := createTempYAML(t, `
logging: { level: error }
source:
  uri: mongodb://localhost:27017/legacy
  collections: { users: members }
target: { uri: "postgres://localhost/db" }
migration:
  filters:
    users: "email != ''"
`)
	if err := NewAppRunner().Run([]string{"users", "--config", cp}); err != nil {
		t.Fatalf("Run err: %v", err)
	}
	if ok, _ := env.dst.Exists(context.Background(), model.TableUserProfiles, "u1"); !ok {
		t.Error("user from the configured collection was not migrated")
	}
	if logging.GetLevel() != logging.Error {
		t.Errorf("log level = %d, want error", logging.GetLevel())
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "b", "c"); got != "b" {
		t.Errorf("firstNonEmpty = %q, want b", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Errorf("firstNonEmpty = %q, want empty", got)
	}
}

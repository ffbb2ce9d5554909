package integration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/platform/clock"
	"github.com/ehr/intake/internal/platform/db"
	"github.com/ehr/intake/internal/platform/storage"
	"github.com/ehr/intake/internal/platform/telemetry"
)

// testDB holds the shared database infrastructure for integration tests.
type testDB struct {
	Pool    *pgxpool.Pool
	ConnStr string
	Store   *storage.Postgres
}

// globalDB is the package-level test database, initialized once in TestMain.
var globalDB *testDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	tdb, cleanup, err := setupPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "skipping integration tests: %v\n", err)
		os.Exit(0)
	}

	globalDB = tdb
	code := m.Run()
	cleanup()
	os.Exit(code)
}

// setupPostgres connects to INTEGRATION_DATABASE_URL when set and otherwise
// starts a throwaway container. Migrations are applied either way.
func setupPostgres(ctx context.Context) (*testDB, func(), error) {
	connStr := os.Getenv("INTEGRATION_DATABASE_URL")
	cleanup := func() {}
	if connStr == "" {
		if _, err := exec.LookPath("docker"); err != nil {
			return nil, nil, fmt.Errorf("no INTEGRATION_DATABASE_URL and no docker: %w", err)
		}
		var err error
		connStr, cleanup, err = startPostgresContainer(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("start postgres container: %w", err)
		}
	}

	pool, err := db.NewPool(ctx, connStr, 5, 1)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}
	if _, err := db.NewMigrator(pool, db.Migrations()).Up(ctx); err != nil {
		pool.Close()
		cleanup()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	return &testDB{
			Pool:    pool,
			ConnStr: connStr,
			Store:   storage.NewPostgresFromPool(pool),
		}, func() {
			pool.Close()
			cleanup()
		}, nil
}

// uniquePatientID generates a patient id that no other test run uses.
func uniquePatientID(prefix string) string {
	short := strings.ReplaceAll(uuid.New().String()[:8], "-", "")
	return fmt.Sprintf("%s-%s", prefix, short)
}

// testOptions returns session options backed by the shared Postgres store.
func testOptions(sched clock.Scheduler) intake.Options {
	return intake.Options{
		Storage:   globalDB.Store,
		Scheduler: sched,
		Logger:    zerolog.Nop(),
		Metrics:   telemetry.New(),
	}
}

func manualClock() *clock.Manual {
	return clock.NewManual(time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC))
}

// deletePatient removes every key stored for patientID.
func deletePatient(t *testing.T, ctx context.Context, patientID string) {
	t.Helper()
	_, err := globalDB.Pool.Exec(ctx, `DELETE FROM kv_store WHERE key LIKE $1`, "patients/"+patientID+"/%")
	if err != nil {
		t.Logf("warning: failed to delete keys of %s: %v", patientID, err)
	}
}

package database

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ngs-reimbursement-mcp-server/internal/domain"
	"github.com/ngs-reimbursement-mcp-server/internal/history"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	})

	url, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return url
}

func TestMigrationsAndHistoryStore(t *testing.T) {
	url := startPostgres(t)
	ctx := context.Background()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel) // Reduce noise in tests

	runner, err := NewMigrationRunner(url, logger)
	require.NoError(t, err)
	defer runner.Close()

	require.NoError(t, runner.Up(ctx))
	version, dirty, err := runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Re-running is a no-op
	require.NoError(t, runner.Up(ctx))

	db, err := NewConnection(ctx, domain.DatabaseConfig{URL: url, MaxOpenConns: 5, MaxIdleConns: 1}, logger)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Health(ctx))
	assert.NotZero(t, db.Stats().MaxConns())

	store, err := history.NewPostgresStore(db.SQL)
	require.NoError(t, err)

	rec, err := history.NewRecord(
		&domain.AnalysisRequest{Catalog: "sophia", Panel: "Liquid Biopsy – ctDNA (500 genes)"},
		&domain.AnalysisResult{Classification: domain.PanelClassification{
			Catalog: "sophia", Panel: "Liquid Biopsy – ctDNA (500 genes)", CPTCode: domain.CPT0326U, RiskLevel: domain.RiskHigh,
		}},
	)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "0326U", got.CPTCode)
	assert.JSONEq(t, string(rec.Result), string(got.Result))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, runner.Down(ctx))
	version, _, err = runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestNewConnectionRequiresURL(t *testing.T) {
	_, err := NewConnection(context.Background(), domain.DatabaseConfig{}, logrus.New())
	assert.Error(t, err)
}

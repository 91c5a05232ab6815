package database

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"arbscan/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	pool *pgxpool.Pool
)

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	// Define the PostgreSQL container request
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpassword",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	}

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		log.Fatalf("could not start postgres container: %s", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Printf("could not stop postgres container: %s", err)
		}
	}()

	host, err := pgContainer.Host(ctx)
	if err != nil {
		log.Fatalf("could not get container host: %s", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		log.Fatalf("could not get mapped port: %s", err)
	}

	connStr := "postgres://testuser:testpassword@" + host + ":" + port.Port() + "/testdb?sslmode=disable"

	// The container reports its port before postgres accepts connections; retry the ping.
	var repo *PostgresRepository
	for i := 0; i < 30; i++ {
		repo, err = NewPostgresRepository(ctx, connStr)
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		log.Fatalf("could not connect to database: %s", err)
	}
	defer repo.Close()
	pool = repo.Pool

	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("could not create table: %s", err)
	}

	return m.Run()
}

func TestPostgresRepository_LogRun(t *testing.T) {
	ctx := context.Background()
	repo := &PostgresRepository{Pool: pool}

	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	scan := model.ScanRun{
		ID:            uuid.NewString(),
		StartedAt:     started,
		FinishedAt:    started.Add(90 * time.Second),
		Status:        model.ScanPartial,
		ExchangeA:     "bitget",
		ExchangeB:     "mexc",
		Symbols:       120,
		FetchFailures: 3,
		Evaluated:     41,
		Ranked:        5,
		Notified:      2,
		OutputPath:    "results/arbitrage_opportunities_20240501_120000.csv",
		Error:         "context deadline exceeded",
	}

	err := repo.LogRun(ctx, scan)
	assert.NoError(t, err)

	var logged model.ScanRun
	var status string
	err = pool.QueryRow(ctx, "SELECT status, exchange_a, exchange_b, symbols, fetch_failures, evaluated, ranked, notified, output_path, error, started_at FROM scan_runs WHERE id = $1", scan.ID).Scan(
		&status, &logged.ExchangeA, &logged.ExchangeB, &logged.Symbols, &logged.FetchFailures, &logged.Evaluated, &logged.Ranked, &logged.Notified, &logged.OutputPath, &logged.Error, &logged.StartedAt,
	)
	require.NoError(t, err)
	assert.Equal(t, string(scan.Status), status)
	assert.Equal(t, scan.ExchangeA, logged.ExchangeA)
	assert.Equal(t, scan.ExchangeB, logged.ExchangeB)
	assert.Equal(t, scan.Symbols, logged.Symbols)
	assert.Equal(t, scan.FetchFailures, logged.FetchFailures)
	assert.Equal(t, scan.Ranked, logged.Ranked)
	assert.Equal(t, scan.OutputPath, logged.OutputPath)
	assert.True(t, scan.StartedAt.Equal(logged.StartedAt))
}

func TestPostgresRepository_LogRunDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := &PostgresRepository{Pool: pool}

	scan := model.ScanRun{ID: uuid.NewString(), StartedAt: time.Now(), FinishedAt: time.Now(), Status: model.ScanCompleted, ExchangeA: "bitget", ExchangeB: "mexc"}
	require.NoError(t, repo.LogRun(ctx, scan))

	err := repo.LogRun(ctx, scan)
	assert.ErrorIs(t, err, model.ErrDeliveryFailed)
}

func TestPostgresRepository_MigrateIsIdempotent(t *testing.T) {
	repo := &PostgresRepository{Pool: pool}
	assert.NoError(t, repo.Migrate(context.Background()))
}

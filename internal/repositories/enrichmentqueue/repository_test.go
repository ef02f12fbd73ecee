package enrichmentqueue_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/internal/repositories/enrichmentqueue"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

const testMaxAttempts = 3

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func getTestDB(t *testing.T) database.DB {
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}
	dbUser := os.Getenv("DB_USER_NAME")
	if dbUser == "" {
		dbUser = "user"
	}
	dbPass := os.Getenv("DB_PASSWORD")
	if dbPass == "" {
		dbPass = "password"
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "fern"
	}

	dsn := "host=" + dbHost + " user=" + dbUser + " password=" + dbPass + " dbname=" + dbName + " sslmode=disable"
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err, "Failed to connect to test database")

	return database.NewDatabaseInstance(db, getTestLogger())
}

func getRepo(t *testing.T) *enrichmentqueue.Repository {
	return enrichmentqueue.NewRepository(getTestDB(t), getTestLogger(), testMaxAttempts)
}

// drainTo claims tasks until the one for publicID comes back, so tests stay
// correct when other rows are in the queue.
func drainTo(t *testing.T, repo *enrichmentqueue.Repository, ctx context.Context, publicID string) *models.EnrichmentTask {
	t.Helper()
	for i := 0; i < 100; i++ {
		task, err := repo.ClaimNext(ctx)
		require.NoError(t, err)
		if task == nil {
			break
		}
		if task.PublicID == publicID {
			return task
		}
	}
	t.Fatalf("task for %s never became claimable", publicID)
	return nil
}

func TestQueueRepository_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	repo := getRepo(t)
	ctx := context.Background()

	publicID := "test-queue-" + uuid.New().String()

	require.NoError(t, repo.Enqueue(ctx, publicID))

	task, err := repo.Get(ctx, publicID)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.Equal(t, 0, task.Attempts)

	// Re-enqueue of an active task is a no-op
	require.NoError(t, repo.Enqueue(ctx, publicID))
	again, err := repo.Get(ctx, publicID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, again.ID)
	assert.Equal(t, 0, again.Attempts)

	claimed := drainTo(t, repo, ctx, publicID)
	assert.Equal(t, models.TaskStatusProcessing, claimed.Status)
	assert.Equal(t, 1, claimed.Attempts)
	require.NotNil(t, claimed.StartedAt)

	require.NoError(t, repo.MarkCompleted(ctx, publicID))

	done, err := repo.Get(ctx, publicID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.Nil(t, done.LastError)

	// Enqueue re-arms a terminal task from scratch
	require.NoError(t, repo.Enqueue(ctx, publicID))
	rearmed, err := repo.Get(ctx, publicID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, rearmed.Status)
	assert.Equal(t, 0, rearmed.Attempts)
	assert.Nil(t, rearmed.CompletedAt)
}

func TestQueueRepository_RetryBudget(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	repo := getRepo(t)
	ctx := context.Background()

	publicID := "test-retry-" + uuid.New().String()
	require.NoError(t, repo.Enqueue(ctx, publicID))

	// First two failures return the task to pending
	for i := 1; i < testMaxAttempts; i++ {
		claimed := drainTo(t, repo, ctx, publicID)
		assert.Equal(t, i, claimed.Attempts)

		require.NoError(t, repo.MarkFailed(ctx, publicID, "fetch timed out"))

		task, err := repo.Get(ctx, publicID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusPending, task.Status)
		require.NotNil(t, task.LastError)
		assert.Equal(t, "fetch timed out", *task.LastError)
	}

	// The final failure lands terminal
	drainTo(t, repo, ctx, publicID)
	require.NoError(t, repo.MarkFailed(ctx, publicID, "fetch timed out"))

	task, err := repo.Get(ctx, publicID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, task.Status)
	assert.Equal(t, testMaxAttempts, task.Attempts)
}

func TestQueueRepository_StatusAndClear(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	repo := getRepo(t)
	ctx := context.Background()

	publicID := "test-status-" + uuid.New().String()
	require.NoError(t, repo.Enqueue(ctx, publicID))

	status, err := repo.Status(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, status.Pending, 1)
	assert.Equal(t, status.Total, status.Pending+status.Processing+status.Completed+status.Failed)

	drainTo(t, repo, ctx, publicID)
	require.NoError(t, repo.MarkCompleted(ctx, publicID))

	removed, err := repo.ClearTerminal(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, 1)

	gone, err := repo.Get(ctx, publicID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestQueueRepository_ReclaimStale(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	repo := getRepo(t)
	ctx := context.Background()

	publicID := "test-stale-" + uuid.New().String()
	require.NoError(t, repo.Enqueue(ctx, publicID))
	drainTo(t, repo, ctx, publicID)

	// Nothing is stale yet at a generous threshold
	_, err := repo.ReclaimStale(ctx, time.Hour)
	require.NoError(t, err)
	task, err := repo.Get(ctx, publicID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusProcessing, task.Status)

	// A zero threshold reclaims anything in processing
	reclaimed, err := repo.ReclaimStale(ctx, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, reclaimed, 1)

	task, err = repo.Get(ctx, publicID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	require.NotNil(t, task.LastError)
}

package profile_test

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

	"github.com/Ramsey-B/fern/internal/repositories/profile"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func getTestDB(t *testing.T) database.DB {
	// Use environment variables or defaults for test DB
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

func strPtr(s string) *string {
	return &s
}

func newProfile(publicID string) *models.Profile {
	return &models.Profile{
		ID:           uuid.New().String(),
		PublicID:     publicID,
		Completeness: models.CompletenessPartial,
		FullName:     strPtr("Test Person"),
		Headline:     strPtr("Engineer"),
		ObservedAt:   time.Now().UTC(),
	}
}

func TestProfileRepository_UpsertAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := profile.NewRepository(db, getTestLogger())
	ctx := context.Background()

	publicID := "test-" + uuid.New().String()
	p := newProfile(publicID)
	p.Skills = database.NewJSONB([]string{"go", "sql"})

	require.NoError(t, repo.Upsert(ctx, p))

	fetched, err := repo.GetByPublicID(ctx, publicID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, p.ID, fetched.ID)
	assert.Equal(t, "Test Person", *fetched.FullName)
	require.True(t, fetched.Skills.Valid)
	assert.Equal(t, []string{"go", "sql"}, fetched.Skills.Data)
	assert.False(t, fetched.Experience.Valid, "never-observed collection should stay NULL")

	// Upsert on the same public id updates in place, the surrogate id is
	// stable
	p.Headline = strPtr("Staff Engineer")
	require.NoError(t, repo.Upsert(ctx, p))

	updated, err := repo.GetByPublicID(ctx, publicID)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, fetched.ID, updated.ID)
	assert.Equal(t, "Staff Engineer", *updated.Headline)

	missing, err := repo.GetByPublicID(ctx, "test-missing-"+uuid.New().String())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProfileRepository_Stub(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := profile.NewRepository(db, getTestLogger())
	ctx := context.Background()

	publicID := "test-stub-" + uuid.New().String()

	require.NoError(t, repo.CreateStub(ctx, publicID))
	// Idempotent for an existing row
	require.NoError(t, repo.CreateStub(ctx, publicID))

	stub, err := repo.GetByPublicID(ctx, publicID)
	require.NoError(t, err)
	require.NotNil(t, stub)
	assert.Equal(t, models.CompletenessPartial, stub.Completeness)
	assert.Nil(t, stub.FullName)

	require.NoError(t, repo.SetCompleteness(ctx, publicID, models.CompletenessFull))

	flipped, err := repo.GetByPublicID(ctx, publicID)
	require.NoError(t, err)
	require.NotNil(t, flipped)
	assert.Equal(t, models.CompletenessFull, flipped.Completeness)
}

func TestProfileRepository_ListAndCounts(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := profile.NewRepository(db, getTestLogger())
	ctx := context.Background()

	company := "test-co-" + uuid.New().String()
	for i := 0; i < 3; i++ {
		p := newProfile("test-list-" + uuid.New().String())
		p.Company = strPtr(company)
		require.NoError(t, repo.Upsert(ctx, p))
	}

	result, err := repo.List(ctx, models.ProfileFilter{Company: company})
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalCount)
	assert.Len(t, result.Items, 3)

	paged, err := repo.List(ctx, models.ProfileFilter{Company: company, Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, paged.TotalCount)
	assert.Len(t, paged.Items, 1)

	stats, err := repo.Counts(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Total, 3)
	assert.Equal(t, stats.Total, stats.Partial+stats.Full)
}

func TestProfileRepository_RepairDoubledText(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := profile.NewRepository(db, getTestLogger())
	ctx := context.Background()

	p := newProfile("test-doubled-" + uuid.New().String())
	p.FullName = strPtr("JohnJohn")
	p.Headline = strPtr("EngineerEngineer")
	require.NoError(t, repo.Upsert(ctx, p))

	repaired, err := repo.RepairDoubledText(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, repaired, 1)

	fixed, err := repo.GetByPublicID(ctx, p.PublicID)
	require.NoError(t, err)
	require.NotNil(t, fixed)
	assert.Equal(t, "John", *fixed.FullName)
	assert.Equal(t, "Engineer", *fixed.Headline)

	// A second sweep finds nothing left to repair for this row
	fixedAgain, err := repo.GetByPublicID(ctx, p.PublicID)
	require.NoError(t, err)
	assert.Equal(t, "John", *fixedAgain.FullName)
}

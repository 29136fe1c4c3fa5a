package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/shopsight/backend/internal/domain/export"
	"github.com/shopsight/backend/internal/domain/shared"
)

// newMockJobRepository creates a GormJobRepository with a mocked SQL connection
func newMockJobRepository(t *testing.T) (*GormJobRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormJobRepository(gormDB), mock, mockDB
}

func newTestJob(t *testing.T) *export.BulkExportJob {
	job, err := export.NewBulkExportJob(uuid.New(), export.KindOrder, "gid://commerce/BulkOperation/42")
	require.NoError(t, err)
	return job
}

func jobRows(job *export.BulkExportJob) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "created_at", "updated_at", "version",
		"shop_id", "kind", "operation_id", "status", "poll_attempts",
	}).AddRow(
		job.ID, job.CreatedAt, job.UpdatedAt, job.Version,
		job.ShopID, job.Kind, job.OperationID, job.Status, job.PollAttempts,
	)
}

func TestGormJobRepository_Create(t *testing.T) {
	t.Run("persists a new job", func(t *testing.T) {
		repo, mock, mockDB := newMockJobRepository(t)
		defer mockDB.Close()

		job := newTestJob(t)

		mock.ExpectQuery(`INSERT INTO "export_jobs"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(job.ID))

		err := repo.Create(context.Background(), job)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps unique violation to ErrDuplicateJob", func(t *testing.T) {
		repo, mock, mockDB := newMockJobRepository(t)
		defer mockDB.Close()

		job := newTestJob(t)

		mock.ExpectQuery(`INSERT INTO "export_jobs"`).
			WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

		err := repo.Create(context.Background(), job)

		assert.ErrorIs(t, err, export.ErrDuplicateJob)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: pgUniqueViolation}),
		"unique violation from the pgx driver must map to ErrDuplicateJob")
	assert.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(sql.ErrConnDone))
}

func TestGormJobRepository_FindDue(t *testing.T) {
	t.Run("filters on status, staleness and lease", func(t *testing.T) {
		repo, mock, mockDB := newMockJobRepository(t)
		defer mockDB.Close()

		job := newTestJob(t)

		mock.ExpectQuery(`SELECT \* FROM "export_jobs" WHERE status IN \(\$1,\$2\) AND \(last_checked_at IS NULL OR last_checked_at <= \$3\) AND \(lease_expires_at IS NULL OR lease_expires_at < \$4\) ORDER BY last_checked_at ASC NULLS FIRST LIMIT \$5`).
			WillReturnRows(jobRows(job))

		jobs, err := repo.FindDue(context.Background(), 30*time.Second, 20)

		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, job.ID, jobs[0].ID)
		assert.Equal(t, export.JobStatusCreated, jobs[0].Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns empty slice when nothing is due", func(t *testing.T) {
		repo, mock, mockDB := newMockJobRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "export_jobs"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		jobs, err := repo.FindDue(context.Background(), 30*time.Second, 20)

		require.NoError(t, err)
		assert.Empty(t, jobs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormJobRepository_FindActive(t *testing.T) {
	t.Run("finds the active job for a shop and kind", func(t *testing.T) {
		repo, mock, mockDB := newMockJobRepository(t)
		defer mockDB.Close()

		job := newTestJob(t)

		mock.ExpectQuery(`SELECT \* FROM "export_jobs" WHERE shop_id = \$1 AND kind = \$2 AND status IN \(\$3,\$4\) ORDER BY .* LIMIT .*`).
			WillReturnRows(jobRows(job))

		found, err := repo.FindActive(context.Background(), job.ShopID, job.Kind)

		require.NoError(t, err)
		assert.Equal(t, job.ID, found.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound when no active job exists", func(t *testing.T) {
		repo, mock, mockDB := newMockJobRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "export_jobs"`).
			WillReturnError(gorm.ErrRecordNotFound)

		found, err := repo.FindActive(context.Background(), uuid.New(), export.KindProduct)

		assert.Nil(t, found)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormJobRepository_Claim(t *testing.T) {
	t.Run("leases the job and bumps its version", func(t *testing.T) {
		repo, mock, mockDB := newMockJobRepository(t)
		defer mockDB.Close()

		job := newTestJob(t)
		until := time.Now().Add(time.Minute)

		mock.ExpectExec(`UPDATE "export_jobs" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Claim(context.Background(), job, until)

		require.NoError(t, err)
		assert.Equal(t, 2, job.Version)
		require.NotNil(t, job.LeaseExpiresAt)
		assert.True(t, job.LeaseExpiresAt.Equal(until))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("loses the race when the version moved on", func(t *testing.T) {
		repo, mock, mockDB := newMockJobRepository(t)
		defer mockDB.Close()

		job := newTestJob(t)

		mock.ExpectExec(`UPDATE "export_jobs" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Claim(context.Background(), job, time.Now().Add(time.Minute))

		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.Equal(t, 1, job.Version)
		assert.Nil(t, job.LeaseExpiresAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormJobRepository_Save(t *testing.T) {
	t.Run("persists a state transition", func(t *testing.T) {
		repo, mock, mockDB := newMockJobRepository(t)
		defer mockDB.Close()

		job := newTestJob(t)
		require.NoError(t, job.MarkPolled())

		mock.ExpectExec(`UPDATE "export_jobs" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Save(context.Background(), job)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrConcurrencyConflict on a stale version", func(t *testing.T) {
		repo, mock, mockDB := newMockJobRepository(t)
		defer mockDB.Close()

		job := newTestJob(t)
		require.NoError(t, job.MarkPolled())

		mock.ExpectExec(`UPDATE "export_jobs" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Save(context.Background(), job)

		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormJobRepository_AbandonActiveForShop(t *testing.T) {
	t.Run("abandons every active job and reports the count", func(t *testing.T) {
		repo, mock, mockDB := newMockJobRepository(t)
		defer mockDB.Close()

		shopID := uuid.New()

		mock.ExpectExec(`UPDATE "export_jobs" SET`).
			WillReturnResult(sqlmock.NewResult(0, 3))

		count, err := repo.AbandonActiveForShop(context.Background(), shopID)

		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

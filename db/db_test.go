package db

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"gouden-gids-crawler/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return New(conn, zaptest.NewLogger(t)), mock
}

func TestInitSchema(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS crawl_runs")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS businesses")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("idx_crawl_runs_category").WillReturnResult(sqlmock.NewResult(0, 0))
	// index failures are only logged
	mock.ExpectExec("idx_businesses_category").WillReturnError(errors.New("permission denied"))
	mock.ExpectExec("idx_businesses_run_id").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.InitSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitSchema_TableError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS crawl_runs")).WillReturnError(errors.New("boom"))

	err := db.InitSchema(context.Background())
	assert.ErrorContains(t, err, "crawl_runs")
}

func TestCreateRun(t *testing.T) {
	db, mock := newMockDB(t)
	started := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO crawl_runs")).
		WithArgs("4f1c0d9e-2d1b-4c36-9d43-8f7d1f3f0a11", "advocaten", models.RunStatusRunning, started).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := db.CreateRun(context.Background(), models.CrawlRun{
		ID:        "4f1c0d9e-2d1b-4c36-9d43-8f7d1f3f0a11",
		Category:  "advocaten",
		StartedAt: started,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishRun(t *testing.T) {
	db, mock := newMockDB(t)
	run := models.CrawlRun{
		ID:         "run-1",
		Status:     models.RunStatusDone,
		MaxPage:    42,
		Pages:      42,
		Records:    800,
		Errors:     2,
		FinishedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE crawl_runs")).
		WithArgs(models.RunStatusDone, 42, 42, 800, 2, nil, run.FinishedAt, "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.FinishRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishRun_Unknown(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE crawl_runs")).WillReturnResult(sqlmock.NewResult(0, 0))

	err := db.FinishRun(context.Background(), models.CrawlRun{ID: "missing", Status: models.RunStatusFailed, LastError: "x"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestGetRun(t *testing.T) {
	db, mock := newMockDB(t)
	started := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "category", "status", "max_page", "pages", "records", "errors", "last_error", "started_at", "finished_at"}).
		AddRow("run-1", "advocaten", "running", 0, 3, 10, 0, nil, started, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM crawl_runs")).WithArgs("run-1").WillReturnRows(rows)

	run, err := db.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "advocaten", run.Category)
	assert.Equal(t, 10, run.Records)
	assert.True(t, run.FinishedAt.IsZero())
	assert.Empty(t, run.LastError)
}

func TestGetRun_NotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM crawl_runs")).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	run, err := db.GetRun(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestSaveBusiness(t *testing.T) {
	db, mock := newMockDB(t)

	record := models.NewBusinessRecord()
	record.URL = "https://www.goudengids.nl/nl/bedrijf/Deurne/L145578951/Advocatenkantoor+Hendriks/"
	record.Category = "advocaten"
	record.Name = "Advocatenkantoor Hendriks"
	record.PaymentOptions = []string{"Pin", "Contant"}
	record.WorkingTime.Monday = "Maandag 9:00 - 17:30"

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (url) DO UPDATE")).
		WithArgs(
			record.URL, "run-1", "advocaten", "Advocatenkantoor Hendriks", "", "", "", "", "",
			`[]`, `["Pin","Contant"]`, `[]`, `{}`,
			`{"monday":"Maandag 9:00 - 17:30","tuesday":"","wednesday":"","thursday":"","friday":"","saturday":"","sunday":""}`,
			`{}`, `{}`, "", `[]`, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, db.SaveBusiness(context.Background(), "run-1", record))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBusiness_WithoutRun(t *testing.T) {
	db, mock := newMockDB(t)

	record := models.NewBusinessRecord()
	record.URL = "https://www.goudengids.nl/nl/bedrijf/x/"

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO businesses")).
		WithArgs(record.URL, nil, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err := db.SaveBusiness(context.Background(), "", record)
	assert.ErrorContains(t, err, "failed to save business")
}

func TestCountBusinesses(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM businesses")).
		WithArgs("advocaten").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(17))

	count, err := db.CountBusinesses(context.Background(), "advocaten")
	require.NoError(t, err)
	assert.Equal(t, 17, count)
}

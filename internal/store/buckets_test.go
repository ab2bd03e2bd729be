package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucketNow = int64(1700003600000)

func TestAdvanceHourlyOpensFirstBucket(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT * FROM top_hourly ORDER BY timestamp DESC LIMIT 1",
	)).WillReturnRows(sqlmock.NewRows([]string{"timestamp", "amount"}))

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO top_hourly (timestamp, amount) VALUES ($1, 1)",
	)).
		WithArgs(bucketNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	row, err := s.AdvanceHourly(context.Background(), bucketNow)
	require.NoError(t, err)
	assert.Equal(t, bucketNow, row.Timestamp)
	assert.EqualValues(t, 1, row.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceHourlyIncrementsFreshBucket(t *testing.T) {
	s, mock := newMockStore(t)

	// Half an hour old: still inside the bucket width.
	opened := bucketNow - HourMS/2

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT * FROM top_hourly ORDER BY timestamp DESC LIMIT 1",
	)).WillReturnRows(sqlmock.NewRows([]string{"timestamp", "amount"}).AddRow(opened, int64(5)))

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE top_hourly SET amount = $1 WHERE timestamp = $2",
	)).
		WithArgs(int64(6), opened).
		WillReturnResult(sqlmock.NewResult(0, 1))

	row, err := s.AdvanceHourly(context.Background(), bucketNow)
	require.NoError(t, err)
	assert.Equal(t, opened, row.Timestamp)
	assert.EqualValues(t, 6, row.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceHourlyOpensNewBucketAfterWidth(t *testing.T) {
	s, mock := newMockStore(t)

	// One millisecond past the width: a new bucket opens.
	opened := bucketNow - HourMS - 1

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT * FROM top_hourly ORDER BY timestamp DESC LIMIT 1",
	)).WillReturnRows(sqlmock.NewRows([]string{"timestamp", "amount"}).AddRow(opened, int64(42)))

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO top_hourly (timestamp, amount) VALUES ($1, 1)",
	)).
		WithArgs(bucketNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	row, err := s.AdvanceHourly(context.Background(), bucketNow)
	require.NoError(t, err)
	assert.Equal(t, bucketNow, row.Timestamp)
	assert.EqualValues(t, 1, row.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceHourlyExactWidthStillIncrements(t *testing.T) {
	s, mock := newMockStore(t)

	// Exactly one width old is not "older than": the bucket is reused.
	opened := bucketNow - HourMS

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT * FROM top_hourly ORDER BY timestamp DESC LIMIT 1",
	)).WillReturnRows(sqlmock.NewRows([]string{"timestamp", "amount"}).AddRow(opened, int64(1)))

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE top_hourly SET amount = $1 WHERE timestamp = $2",
	)).
		WithArgs(int64(2), opened).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := s.AdvanceHourly(context.Background(), bucketNow)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceWidthsPerTable(t *testing.T) {
	tests := []struct {
		table   string
		width   int64
		advance func(s *Store, ctx context.Context, now int64) error
	}{
		{"top_daily", DayMS, func(s *Store, ctx context.Context, now int64) error {
			_, err := s.AdvanceDaily(ctx, now)
			return err
		}},
		{"top_weekly", WeekMS, func(s *Store, ctx context.Context, now int64) error {
			_, err := s.AdvanceWeekly(ctx, now)
			return err
		}},
		{"top_yearly", YearMS, func(s *Store, ctx context.Context, now int64) error {
			_, err := s.AdvanceYearly(ctx, now)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			s, mock := newMockStore(t)

			// A row just inside the width must be updated, not replaced.
			opened := bucketNow - tt.width + 1

			mock.ExpectQuery("SELECT \\* FROM " + tt.table).
				WillReturnRows(sqlmock.NewRows([]string{"timestamp", "amount"}).AddRow(opened, int64(3)))
			mock.ExpectExec("UPDATE " + tt.table).
				WithArgs(int64(4), opened).
				WillReturnResult(sqlmock.NewResult(0, 1))

			require.NoError(t, tt.advance(s, context.Background(), bucketNow))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHourlyBucketsListing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT * FROM top_hourly ORDER BY timestamp DESC LIMIT $1",
	)).
		WithArgs(24).
		WillReturnRows(sqlmock.NewRows([]string{"timestamp", "amount"}).
			AddRow(bucketNow, int64(10)).
			AddRow(bucketNow-HourMS-5, int64(3)))

	rows, err := s.HourlyBuckets(context.Background(), 24)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Greater(t, rows[0].Timestamp, rows[1].Timestamp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

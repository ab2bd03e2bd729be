package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"github.com/brute-sh/brute/internal/model"
)

// Bucket widths in milliseconds.
const (
	HourMS = 3_600_000
	DayMS  = 86_400_000
	WeekMS = 604_800_000
	YearMS = 31_556_800_000
)

// advanceBucket increments the newest row of a time-bucket table, or opens a
// new row when the newest one is older than the bucket width. The read-then-
// write here is only safe because a single goroutine drives the pipeline;
// see the pipeline package doc.
func (s *Store) advanceBucket(ctx context.Context, table string, width, now int64) (model.Bucket, error) {
	selectQuery := fmt.Sprintf(`
		SELECT * FROM %s
		ORDER BY timestamp DESC
		LIMIT 1`, table)
	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (timestamp, amount)
		VALUES ($1, 1)`, table)
	updateQuery := fmt.Sprintf(`
		UPDATE %s
		SET amount = $1
		WHERE timestamp = $2`, table)

	var latest model.Bucket
	err := s.db.GetContext(ctx, &latest, selectQuery)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First event ever for this table.
	case err != nil:
		return model.Bucket{}, errors.Wrapf(err, "select latest %s", table)
	case now-latest.Timestamp <= width:
		latest.Amount++
		if _, err := s.db.ExecContext(ctx, updateQuery, latest.Amount, latest.Timestamp); err != nil {
			return model.Bucket{}, errors.Wrapf(err, "update %s", table)
		}
		return latest, nil
	}

	if _, err := s.db.ExecContext(ctx, insertQuery, now); err != nil {
		return model.Bucket{}, errors.Wrapf(err, "insert %s", table)
	}
	return model.Bucket{Timestamp: now, Amount: 1}, nil
}

func (s *Store) listBuckets(ctx context.Context, table string, limit int) ([]model.Bucket, error) {
	query := fmt.Sprintf(`
		SELECT * FROM %s
		ORDER BY timestamp DESC
		LIMIT $1`, table)
	rows := []model.Bucket{}
	err := s.db.SelectContext(ctx, &rows, query, limit)
	return rows, errors.Wrapf(err, "list %s", table)
}

func (s *Store) AdvanceHourly(ctx context.Context, now int64) (model.Bucket, error) {
	return s.advanceBucket(ctx, "top_hourly", HourMS, now)
}

func (s *Store) AdvanceDaily(ctx context.Context, now int64) (model.Bucket, error) {
	return s.advanceBucket(ctx, "top_daily", DayMS, now)
}

func (s *Store) AdvanceWeekly(ctx context.Context, now int64) (model.Bucket, error) {
	return s.advanceBucket(ctx, "top_weekly", WeekMS, now)
}

func (s *Store) AdvanceYearly(ctx context.Context, now int64) (model.Bucket, error) {
	return s.advanceBucket(ctx, "top_yearly", YearMS, now)
}

func (s *Store) HourlyBuckets(ctx context.Context, limit int) ([]model.Bucket, error) {
	return s.listBuckets(ctx, "top_hourly", limit)
}

func (s *Store) DailyBuckets(ctx context.Context, limit int) ([]model.Bucket, error) {
	return s.listBuckets(ctx, "top_daily", limit)
}

func (s *Store) WeeklyBuckets(ctx context.Context, limit int) ([]model.Bucket, error) {
	return s.listBuckets(ctx, "top_weekly", limit)
}

func (s *Store) YearlyBuckets(ctx context.Context, limit int) ([]model.Bucket, error) {
	return s.listBuckets(ctx, "top_yearly", limit)
}

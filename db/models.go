package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"gouden-gids-crawler/models"
)

// CreateRun inserts a run in status 'running'
func (db *DB) CreateRun(ctx context.Context, run models.CrawlRun) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO crawl_runs (id, category, status, started_at)
		VALUES ($1, $2, $3, $4)
	`, run.ID, run.Category, models.RunStatusRunning, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun stores the final status and counters of a run
func (db *DB) FinishRun(ctx context.Context, run models.CrawlRun) error {
	var lastError sql.NullString
	if run.LastError != "" {
		lastError = sql.NullString{String: run.LastError, Valid: true}
	}

	res, err := db.conn.ExecContext(ctx, `
		UPDATE crawl_runs
		SET status = $1, max_page = $2, pages = $3, records = $4, errors = $5, last_error = $6, finished_at = $7
		WHERE id = $8
	`, run.Status, run.MaxPage, run.Pages, run.Records, run.Errors, lastError, run.FinishedAt, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, sql.ErrNoRows)
	}
	return nil
}

// GetRun returns a run by id, or nil when it doesn't exist
func (db *DB) GetRun(ctx context.Context, id string) (*models.CrawlRun, error) {
	var run models.CrawlRun
	var lastError sql.NullString
	var finishedAt sql.NullTime
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, category, status, max_page, pages, records, errors, last_error, started_at, finished_at
		FROM crawl_runs
		WHERE id = $1
	`, id).Scan(
		&run.ID, &run.Category, &run.Status, &run.MaxPage, &run.Pages, &run.Records,
		&run.Errors, &lastError, &run.StartedAt, &finishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}

	run.LastError = lastError.String
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}
	return &run, nil
}

// SaveBusiness upserts a record keyed by its detail page URL
func (db *DB) SaveBusiness(ctx context.Context, runID string, record models.BusinessRecord) error {
	args := []interface{}{
		record.URL, nullUUID(runID), record.Category, record.Name, record.Location,
		record.Description, record.Phone, record.Website, record.Email,
	}

	for _, v := range []interface{}{
		record.SocialMedia, record.PaymentOptions, record.Certificates, record.OtherInformation,
		record.WorkingTime, record.ParkingInfo, record.EconomicData,
	} {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode business %s: %w", record.URL, err)
		}
		args = append(args, string(b))
	}

	pictures, err := json.Marshal(record.Pictures)
	if err != nil {
		return fmt.Errorf("failed to encode business %s: %w", record.URL, err)
	}
	args = append(args, record.Logo, string(pictures), time.Now().UTC())

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO businesses (
			url, run_id, category, name, location, description, phone, website, email,
			social_media, payment_options, certificates, other_information, working_time,
			parking_info, economic_data, logo, pictures, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (url) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			category = EXCLUDED.category,
			name = EXCLUDED.name,
			location = EXCLUDED.location,
			description = EXCLUDED.description,
			phone = EXCLUDED.phone,
			website = EXCLUDED.website,
			email = EXCLUDED.email,
			social_media = EXCLUDED.social_media,
			payment_options = EXCLUDED.payment_options,
			certificates = EXCLUDED.certificates,
			other_information = EXCLUDED.other_information,
			working_time = EXCLUDED.working_time,
			parking_info = EXCLUDED.parking_info,
			economic_data = EXCLUDED.economic_data,
			logo = EXCLUDED.logo,
			pictures = EXCLUDED.pictures,
			updated_at = EXCLUDED.updated_at
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to save business %s: %w", record.URL, err)
	}
	return nil
}

// CountBusinesses returns the number of stored businesses in a category
func (db *DB) CountBusinesses(ctx context.Context, category string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM businesses WHERE category = $1`, category).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count businesses: %w", err)
	}
	return count, nil
}

func nullUUID(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}

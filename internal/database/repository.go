package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository provides database operations
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a new repository instance
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// SubmissionRepository provides submission-specific database operations
type SubmissionRepository struct {
	*Repository
}

// ReportRepository provides vehicle-report-specific database operations
type ReportRepository struct {
	*Repository
}

// CredentialRepository provides credential-specific database operations
type CredentialRepository struct {
	*Repository
}

// SettingRepository provides admin-setting database operations
type SettingRepository struct {
	*Repository
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{Repository: NewRepository(db)}
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{Repository: NewRepository(db)}
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{Repository: NewRepository(db)}
}

// NewSettingRepository creates a new setting repository
func NewSettingRepository(db *sqlx.DB) *SettingRepository {
	return &SettingRepository{Repository: NewRepository(db)}
}

// Submission Operations

// CreateSubmission creates a new VIN submission in the pending state
func (r *SubmissionRepository) CreateSubmission(ctx context.Context, submission *Submission) error {
	submission.ID = uuid.New()
	if submission.Status == "" {
		submission.Status = StatusPending
	}
	submission.SubmittedAt = time.Now()
	submission.CreatedAt = time.Now()
	submission.UpdatedAt = time.Now()

	query := `
		INSERT INTO vin_submissions (id, user_id, vin, status, run_id, error_message, submitted_at, completed_at, created_at, updated_at)
		VALUES (:id, :user_id, :vin, :status, :run_id, :error_message, :submitted_at, :completed_at, :created_at, :updated_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, submission)
	if err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}

	return nil
}

// GetSubmissionByID retrieves a submission by ID
func (r *SubmissionRepository) GetSubmissionByID(ctx context.Context, id uuid.UUID) (*Submission, error) {
	var submission Submission
	query := `SELECT * FROM vin_submissions WHERE id = $1`

	err := r.db.GetContext(ctx, &submission, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	return &submission, nil
}

// GetSubmissionByRunID retrieves the submission tracking an external run
func (r *SubmissionRepository) GetSubmissionByRunID(ctx context.Context, runID string) (*Submission, error) {
	var submission Submission
	query := `SELECT * FROM vin_submissions WHERE run_id = $1`

	err := r.db.GetContext(ctx, &submission, query, runID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get submission by run: %w", err)
	}

	return &submission, nil
}

// GetSubmissionsByUser retrieves a user's submissions, newest first
func (r *SubmissionRepository) GetSubmissionsByUser(ctx context.Context, userID string) ([]*Submission, error) {
	var submissions []*Submission
	query := `SELECT * FROM vin_submissions WHERE user_id = $1 ORDER BY submitted_at DESC`

	err := r.db.SelectContext(ctx, &submissions, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get submissions by user: %w", err)
	}

	return submissions, nil
}

// GetPendingSubmissions retrieves pending submissions, oldest first
func (r *SubmissionRepository) GetPendingSubmissions(ctx context.Context, limit int) ([]*Submission, error) {
	var submissions []*Submission
	query := `SELECT * FROM vin_submissions WHERE status = $1 ORDER BY submitted_at ASC LIMIT $2`

	err := r.db.SelectContext(ctx, &submissions, query, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending submissions: %w", err)
	}

	return submissions, nil
}

// ClaimPendingSubmissions atomically moves up to limit pending submissions
// to processing and returns them. Concurrent workers never claim the same
// row twice.
func (r *SubmissionRepository) ClaimPendingSubmissions(ctx context.Context, limit int) ([]*Submission, error) {
	var submissions []*Submission
	query := `
		UPDATE vin_submissions
		SET status = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM vin_submissions
			WHERE status = $2
			ORDER BY submitted_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *
	`

	err := r.db.SelectContext(ctx, &submissions, query, StatusProcessing, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending submissions: %w", err)
	}

	return submissions, nil
}

// ReclaimStaleSubmissions returns processing submissions untouched since
// the cutoff to pending, so claims orphaned by a crashed worker get
// picked up again. Returns the number of rows reclaimed.
func (r *SubmissionRepository) ReclaimStaleSubmissions(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `UPDATE vin_submissions SET status = $1, updated_at = NOW() WHERE status = $2 AND updated_at < $3`

	result, err := r.db.ExecContext(ctx, query, StatusPending, StatusProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale submissions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// SetSubmissionProcessing marks a submission as processing
func (r *SubmissionRepository) SetSubmissionProcessing(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE vin_submissions SET status = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, StatusProcessing, id)
	if err != nil {
		return fmt.Errorf("failed to mark submission processing: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("submission not found")
	}

	return nil
}

// SetSubmissionRunID records the external run tracking a submission
func (r *SubmissionRepository) SetSubmissionRunID(ctx context.Context, id uuid.UUID, runID string) error {
	query := `UPDATE vin_submissions SET run_id = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, runID, id)
	if err != nil {
		return fmt.Errorf("failed to set submission run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("submission not found")
	}

	return nil
}

// MarkSubmissionCompleted moves a submission to completed. The transition
// is guarded in SQL so that when the poll loop and the webhook race, only
// the first terminal writer wins. Returns false when the submission was
// already terminal.
func (r *SubmissionRepository) MarkSubmissionCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE vin_submissions
		SET status = $1, error_message = '', completed_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status NOT IN ($3, $4)
	`

	result, err := r.db.ExecContext(ctx, query, StatusCompleted, id, StatusCompleted, StatusFailed)
	if err != nil {
		return false, fmt.Errorf("failed to mark submission completed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// MarkSubmissionFailed moves a submission to failed with an error message.
// Same first-writer-wins guard as MarkSubmissionCompleted.
func (r *SubmissionRepository) MarkSubmissionFailed(ctx context.Context, id uuid.UUID, errorMessage string) (bool, error) {
	query := `
		UPDATE vin_submissions
		SET status = $1, error_message = $2, completed_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND status NOT IN ($4, $5)
	`

	result, err := r.db.ExecContext(ctx, query, StatusFailed, errorMessage, id, StatusCompleted, StatusFailed)
	if err != nil {
		return false, fmt.Errorf("failed to mark submission failed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// SubmissionStats holds submission counts by status
type SubmissionStats struct {
	Total      int `db:"total" json:"total"`
	Pending    int `db:"pending" json:"pending"`
	Processing int `db:"processing" json:"processing"`
	Completed  int `db:"completed" json:"completed"`
	Failed     int `db:"failed" json:"failed"`
}

// GetSubmissionStats returns submission counts by status
func (r *SubmissionRepository) GetSubmissionStats(ctx context.Context) (*SubmissionStats, error) {
	var stats SubmissionStats
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'processing') AS processing,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed
		FROM vin_submissions
	`

	err := r.db.GetContext(ctx, &stats, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get submission stats: %w", err)
	}

	return &stats, nil
}

// Report Operations

// CreateReport stores a scraped vehicle report
func (r *ReportRepository) CreateReport(ctx context.Context, report *VehicleReport) error {
	report.ID = uuid.New()
	if report.ScrapedAt.IsZero() {
		report.ScrapedAt = time.Now()
	}
	report.CreatedAt = time.Now()
	report.UpdatedAt = time.Now()

	query := `
		INSERT INTO vehicle_reports (
			id, submission_id, vin, year, make, model, trim, mileage, price, color,
			engine_type, transmission, accident_count, owner_count, service_record_count,
			accident_history, service_history, ownership_history, title_info, additional_data,
			scraped_at, created_at, updated_at
		)
		VALUES (
			:id, :submission_id, :vin, :year, :make, :model, :trim, :mileage, :price, :color,
			:engine_type, :transmission, :accident_count, :owner_count, :service_record_count,
			:accident_history, :service_history, :ownership_history, :title_info, :additional_data,
			:scraped_at, :created_at, :updated_at
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, report)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	return nil
}

// GetReportByVIN retrieves the most recent report for a VIN
func (r *ReportRepository) GetReportByVIN(ctx context.Context, vin string) (*VehicleReport, error) {
	var report VehicleReport
	query := `SELECT * FROM vehicle_reports WHERE vin = $1 ORDER BY scraped_at DESC LIMIT 1`

	err := r.db.GetContext(ctx, &report, query, vin)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get report by vin: %w", err)
	}

	return &report, nil
}

// GetReportBySubmissionID retrieves the report produced by a submission
func (r *ReportRepository) GetReportBySubmissionID(ctx context.Context, submissionID uuid.UUID) (*VehicleReport, error) {
	var report VehicleReport
	query := `SELECT * FROM vehicle_reports WHERE submission_id = $1`

	err := r.db.GetContext(ctx, &report, query, submissionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get report by submission: %w", err)
	}

	return &report, nil
}

// GetReportsByUser retrieves reports for a user's submissions, newest first
func (r *ReportRepository) GetReportsByUser(ctx context.Context, userID string) ([]*VehicleReport, error) {
	var reports []*VehicleReport
	query := `
		SELECT r.* FROM vehicle_reports r
		JOIN vin_submissions s ON s.id = r.submission_id
		WHERE s.user_id = $1
		ORDER BY r.scraped_at DESC
	`

	err := r.db.SelectContext(ctx, &reports, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reports by user: %w", err)
	}

	return reports, nil
}

// Credential Operations

// UpsertCredentials stores or replaces a user's encrypted credentials
func (r *CredentialRepository) UpsertCredentials(ctx context.Context, record *CredentialRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.CreatedAt = time.Now()
	record.UpdatedAt = time.Now()

	query := `
		INSERT INTO carfax_credentials (id, user_id, encrypted_username, encrypted_password, session_cookie, expires_at, created_at, updated_at)
		VALUES (:id, :user_id, :encrypted_username, :encrypted_password, :session_cookie, :expires_at, :created_at, :updated_at)
		ON CONFLICT (user_id) DO UPDATE SET
			encrypted_username = EXCLUDED.encrypted_username,
			encrypted_password = EXCLUDED.encrypted_password,
			session_cookie = EXCLUDED.session_cookie,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
	`

	_, err := r.db.NamedExecContext(ctx, query, record)
	if err != nil {
		return fmt.Errorf("failed to upsert credentials: %w", err)
	}

	return nil
}

// GetCredentialsByUser retrieves a user's stored credentials
func (r *CredentialRepository) GetCredentialsByUser(ctx context.Context, userID string) (*CredentialRecord, error) {
	var record CredentialRecord
	query := `SELECT * FROM carfax_credentials WHERE user_id = $1`

	err := r.db.GetContext(ctx, &record, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}

	return &record, nil
}

// UpdateSessionCookie stores a fresh session cookie for a user
func (r *CredentialRepository) UpdateSessionCookie(ctx context.Context, userID, cookie string, expiresAt *time.Time) error {
	query := `UPDATE carfax_credentials SET session_cookie = $1, expires_at = $2, updated_at = NOW() WHERE user_id = $3`

	result, err := r.db.ExecContext(ctx, query, cookie, expiresAt, userID)
	if err != nil {
		return fmt.Errorf("failed to update session cookie: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("credentials not found")
	}

	return nil
}

// DeleteCredentials removes a user's stored credentials
func (r *CredentialRepository) DeleteCredentials(ctx context.Context, userID string) error {
	query := `DELETE FROM carfax_credentials WHERE user_id = $1`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("credentials not found")
	}

	return nil
}

// Setting Operations

// UpsertSetting stores or replaces an operator setting
func (r *SettingRepository) UpsertSetting(ctx context.Context, setting *AdminSetting) error {
	if setting.ID == uuid.Nil {
		setting.ID = uuid.New()
	}
	setting.CreatedAt = time.Now()
	setting.UpdatedAt = time.Now()

	query := `
		INSERT INTO admin_settings (id, key, value, created_at, updated_at)
		VALUES (:id, :key, :value, :created_at, :updated_at)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()
	`

	_, err := r.db.NamedExecContext(ctx, query, setting)
	if err != nil {
		return fmt.Errorf("failed to upsert setting: %w", err)
	}

	return nil
}

// GetSetting retrieves a setting by key
func (r *SettingRepository) GetSetting(ctx context.Context, key string) (*AdminSetting, error) {
	var setting AdminSetting
	query := `SELECT * FROM admin_settings WHERE key = $1`

	err := r.db.GetContext(ctx, &setting, query, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}

	return &setting, nil
}

// ListSettings retrieves all settings ordered by key
func (r *SettingRepository) ListSettings(ctx context.Context) ([]*AdminSetting, error) {
	var settings []*AdminSetting
	query := `SELECT * FROM admin_settings ORDER BY key ASC`

	err := r.db.SelectContext(ctx, &settings, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}

	return settings, nil
}

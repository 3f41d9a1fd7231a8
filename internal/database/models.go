package database

import (
	"time"

	"github.com/google/uuid"
)

// Submission statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Submission represents a VIN lookup request made by a user
type Submission struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	UserID       string     `db:"user_id" json:"user_id"`
	VIN          string     `db:"vin" json:"vin"`
	Status       string     `db:"status" json:"status"` // pending, processing, completed, failed
	RunID        string     `db:"run_id" json:"run_id,omitempty"`
	ErrorMessage string     `db:"error_message" json:"error_message,omitempty"`
	SubmittedAt  time.Time  `db:"submitted_at" json:"submitted_at"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// IsTerminal reports whether the submission has reached a final state.
func (s *Submission) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// VehicleReport represents the vehicle history data scraped for a VIN
type VehicleReport struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	SubmissionID       uuid.UUID `db:"submission_id" json:"submission_id"`
	VIN                string    `db:"vin" json:"vin"`
	Year               int       `db:"year" json:"year"`
	Make               string    `db:"make" json:"make"`
	Model              string    `db:"model" json:"model"`
	Trim               string    `db:"trim" json:"trim"`
	Mileage            int       `db:"mileage" json:"mileage"`
	Price              string    `db:"price" json:"price"`
	Color              string    `db:"color" json:"color"`
	EngineType         string    `db:"engine_type" json:"engine_type"`
	Transmission       string    `db:"transmission" json:"transmission"`
	AccidentCount      int       `db:"accident_count" json:"accident_count"`
	OwnerCount         int       `db:"owner_count" json:"owner_count"`
	ServiceRecordCount int       `db:"service_record_count" json:"service_record_count"`
	AccidentHistory    string    `db:"accident_history" json:"accident_history,omitempty"`
	ServiceHistory     string    `db:"service_history" json:"service_history,omitempty"`
	OwnershipHistory   string    `db:"ownership_history" json:"ownership_history,omitempty"`
	TitleInfo          string    `db:"title_info" json:"title_info,omitempty"`
	AdditionalData     string    `db:"additional_data" json:"additional_data,omitempty"`
	ScrapedAt          time.Time `db:"scraped_at" json:"scraped_at"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// CredentialRecord holds a user's encrypted report-provider login
type CredentialRecord struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	UserID            string     `db:"user_id" json:"user_id"`
	EncryptedUsername string     `db:"encrypted_username" json:"-"`
	EncryptedPassword string     `db:"encrypted_password" json:"-"`
	SessionCookie     string     `db:"session_cookie" json:"-"`
	ExpiresAt         *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// HasSessionCookie reports whether a usable session cookie is stored.
func (c *CredentialRecord) HasSessionCookie() bool {
	if c.SessionCookie == "" {
		return false
	}
	if c.ExpiresAt != nil && c.ExpiresAt.Before(time.Now()) {
		return false
	}
	return true
}

// AdminSetting represents a key/value operator setting
type AdminSetting struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Table names
const (
	TableSubmissions = "vin_submissions"
	TableReports     = "vehicle_reports"
	TableCredentials = "carfax_credentials"
	TableSettings    = "admin_settings"
)

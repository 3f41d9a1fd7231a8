package api

import (
	"github.com/go-playground/validator/v10"
)

// SubmitVINRequest asks for a single VIN lookup
type SubmitVINRequest struct {
	VIN string `json:"vin" validate:"required,len=17"`
}

// BulkSubmitRequest asks for lookups of several VINs at once
type BulkSubmitRequest struct {
	VINs []string `json:"vins" validate:"required,min=1,max=20,dive,len=17"`
}

// StoreCredentialsRequest stores a user's report-provider login
type StoreCredentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateCookieRequest stores a refreshed session cookie for a user
type UpdateCookieRequest struct {
	UserID    string `json:"userId" validate:"required"`
	Cookie    string `json:"cookie" validate:"required"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

// WebhookReportData is report content delivered alongside a completed
// status.
type WebhookReportData struct {
	VIN                string `json:"vin" validate:"required"`
	Year               int    `json:"year,omitempty"`
	Make               string `json:"make,omitempty"`
	Model              string `json:"model,omitempty"`
	Trim               string `json:"trim,omitempty"`
	Mileage            int    `json:"mileage,omitempty"`
	Price              string `json:"price,omitempty"`
	Color              string `json:"color,omitempty"`
	EngineType         string `json:"engineType,omitempty"`
	Transmission       string `json:"transmission,omitempty"`
	AccidentCount      int    `json:"accidentCount,omitempty"`
	OwnerCount         int    `json:"ownerCount,omitempty"`
	ServiceRecordCount int    `json:"serviceRecordCount,omitempty"`
	AccidentHistory    string `json:"accidentHistory,omitempty"`
	ServiceHistory     string `json:"serviceHistory,omitempty"`
	OwnershipHistory   string `json:"ownershipHistory,omitempty"`
	TitleInfo          string `json:"titleInfo,omitempty"`
	AdditionalData     string `json:"additionalData,omitempty"`
}

// WebhookStatusRequest is an inbound status notification. Automation
// posts either a submission ID with the dashboard status vocabulary, or
// a run ID with the platform's run status.
type WebhookStatusRequest struct {
	SubmissionID string             `json:"submissionId,omitempty"`
	RunID        string             `json:"runId,omitempty"`
	Status       string             `json:"status" validate:"required"`
	ErrorMessage string             `json:"errorMessage,omitempty"`
	ReportData   *WebhookReportData `json:"reportData,omitempty"`
}

// UpsertSettingRequest stores an operator setting
type UpsertSettingRequest struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value" validate:"required"`
}

var validate = validator.New()

// Validate validates the SubmitVINRequest using the validator.
func (r *SubmitVINRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the BulkSubmitRequest using the validator.
func (r *BulkSubmitRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the StoreCredentialsRequest using the validator.
func (r *StoreCredentialsRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the UpdateCookieRequest using the validator.
func (r *UpdateCookieRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the WebhookStatusRequest using the validator.
func (r *WebhookStatusRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the UpsertSettingRequest using the validator.
func (r *UpsertSettingRequest) Validate() error {
	return validate.Struct(r)
}

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vindash/internal/database"
	"github.com/vindash/internal/export"
	"github.com/vindash/internal/instant"
	"github.com/vindash/internal/utils"
)

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

// submitVIN accepts a single VIN lookup request.
func (s *Server) submitVIN(w http.ResponseWriter, r *http.Request) {
	var req SubmitVINRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "vin must be 17 characters")
		return
	}

	vin := utils.NormalizeVIN(req.VIN)
	if err := utils.ValidateVIN(vin); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	submission := &database.Submission{
		UserID: userIDFrom(r.Context()),
		VIN:    vin,
	}
	if err := s.submissionRepo.CreateSubmission(r.Context(), submission); err != nil {
		logrus.Errorf("Failed to create submission: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create submission")
		return
	}

	writeJSON(w, http.StatusCreated, submission)
}

// submitVINsBulk accepts up to twenty VINs in one request. Valid VINs
// become pending submissions, malformed ones are reported back without
// sinking the rest of the batch.
func (s *Server) submitVINsBulk(w http.ResponseWriter, r *http.Request) {
	var req BulkSubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.VINs) == 0 {
		writeError(w, http.StatusBadRequest, "vins must not be empty")
		return
	}
	if len(req.VINs) > 20 {
		writeError(w, http.StatusBadRequest, "at most 20 vins per request")
		return
	}

	userID := userIDFrom(r.Context())
	submissions := make([]*database.Submission, 0, len(req.VINs))
	invalid := make([]string, 0)

	for _, raw := range req.VINs {
		vin := utils.NormalizeVIN(raw)
		if err := utils.ValidateVIN(vin); err != nil {
			invalid = append(invalid, raw)
			continue
		}

		submission := &database.Submission{UserID: userID, VIN: vin}
		if err := s.submissionRepo.CreateSubmission(r.Context(), submission); err != nil {
			logrus.Errorf("Failed to create submission for %s: %v", vin, err)
			writeError(w, http.StatusInternalServerError, "failed to create submissions")
			return
		}
		submissions = append(submissions, submission)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"submissions": submissions,
		"invalid":     invalid,
	})
}

// listSubmissions returns the caller's submissions, newest first.
func (s *Server) listSubmissions(w http.ResponseWriter, r *http.Request) {
	submissions, err := s.submissionRepo.GetSubmissionsByUser(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		logrus.Errorf("Failed to list submissions: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list submissions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": submissions})
}

// ownedSubmission loads a submission and enforces that it belongs to
// the caller. Foreign submissions are indistinguishable from missing
// ones.
func (s *Server) ownedSubmission(w http.ResponseWriter, r *http.Request) (*database.Submission, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid submission id")
		return nil, false
	}

	submission, err := s.submissionRepo.GetSubmissionByID(r.Context(), id)
	if err != nil {
		logrus.Errorf("Failed to get submission %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to get submission")
		return nil, false
	}
	if submission == nil || submission.UserID != userIDFrom(r.Context()) {
		writeError(w, http.StatusNotFound, "submission not found")
		return nil, false
	}

	return submission, true
}

func (s *Server) getSubmission(w http.ResponseWriter, r *http.Request) {
	submission, ok := s.ownedSubmission(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, submission)
}

// submissionReport loads the report behind an owned submission.
func (s *Server) submissionReport(w http.ResponseWriter, r *http.Request) (*database.VehicleReport, bool) {
	submission, ok := s.ownedSubmission(w, r)
	if !ok {
		return nil, false
	}

	report, err := s.reportRepo.GetReportBySubmissionID(r.Context(), submission.ID)
	if err != nil {
		logrus.Errorf("Failed to get report for submission %s: %v", submission.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to get report")
		return nil, false
	}
	if report == nil {
		writeError(w, http.StatusNotFound, "report not found")
		return nil, false
	}

	return report, true
}

func (s *Server) getSubmissionReport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.submissionReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) exportJSON(w http.ResponseWriter, r *http.Request) {
	report, ok := s.submissionReport(w, r)
	if !ok {
		return
	}
	s.metrics.RecordReportExported("json")
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	report, ok := s.submissionReport(w, r)
	if !ok {
		return
	}

	data, err := export.ReportCSV(report)
	if err != nil {
		logrus.Errorf("Failed to render CSV for %s: %v", report.VIN, err)
		writeError(w, http.StatusInternalServerError, "failed to render csv")
		return
	}

	s.metrics.RecordReportExported("csv")
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.CSVFilename(report)))
	w.Write(data)
}

func (s *Server) exportPDF(w http.ResponseWriter, r *http.Request) {
	report, ok := s.submissionReport(w, r)
	if !ok {
		return
	}

	data, err := export.ReportPDF(report)
	if err != nil {
		logrus.Errorf("Failed to render PDF for %s: %v", report.VIN, err)
		writeError(w, http.StatusInternalServerError, "failed to render pdf")
		return
	}

	s.metrics.RecordReportExported("pdf")
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.PDFFilename(report)))
	w.Write(data)
}

// listReports returns reports for the caller's submissions.
func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.reportRepo.GetReportsByUser(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		logrus.Errorf("Failed to list reports: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

// getReportByVIN returns the caller's most recent report for a VIN.
func (s *Server) getReportByVIN(w http.ResponseWriter, r *http.Request) {
	vin := utils.NormalizeVIN(chi.URLParam(r, "vin"))
	if err := utils.ValidateVIN(vin); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.reportRepo.GetReportByVIN(r.Context(), vin)
	if err != nil {
		logrus.Errorf("Failed to get report for VIN %s: %v", vin, err)
		writeError(w, http.StatusInternalServerError, "failed to get report")
		return
	}
	if report == nil {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}

	// The VIN index is shared, ownership is enforced through the
	// originating submission.
	submission, err := s.submissionRepo.GetSubmissionByID(r.Context(), report.SubmissionID)
	if err != nil {
		logrus.Errorf("Failed to get submission %s: %v", report.SubmissionID, err)
		writeError(w, http.StatusInternalServerError, "failed to get report")
		return
	}
	if submission == nil || submission.UserID != userIDFrom(r.Context()) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// storeCredentials encrypts and stores the caller's provider login.
func (s *Server) storeCredentials(w http.ResponseWriter, r *http.Request) {
	var req StoreCredentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	encUsername, err := s.vault.Encrypt(req.Username)
	if err != nil {
		logrus.Errorf("Failed to encrypt username: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to store credentials")
		return
	}
	encPassword, err := s.vault.Encrypt(req.Password)
	if err != nil {
		logrus.Errorf("Failed to encrypt password: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to store credentials")
		return
	}

	record := &database.CredentialRecord{
		UserID:            userIDFrom(r.Context()),
		EncryptedUsername: encUsername,
		EncryptedPassword: encPassword,
	}
	if err := s.credentialRepo.UpsertCredentials(r.Context(), record); err != nil {
		logrus.Errorf("Failed to store credentials: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to store credentials")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// credentialStatus reports whether the caller has credentials and a
// live session cookie, never the values themselves.
func (s *Server) credentialStatus(w http.ResponseWriter, r *http.Request) {
	record, err := s.credentialRepo.GetCredentialsByUser(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		logrus.Errorf("Failed to get credentials: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to get credential status")
		return
	}

	status := map[string]bool{"hasCredentials": false, "hasValidSession": false}
	if record != nil {
		status["hasCredentials"] = record.EncryptedUsername != "" && record.EncryptedPassword != ""
		status["hasValidSession"] = record.HasSessionCookie()
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *Server) deleteCredentials(w http.ResponseWriter, r *http.Request) {
	if err := s.credentialRepo.DeleteCredentials(r.Context(), userIDFrom(r.Context())); err != nil {
		writeError(w, http.StatusNotFound, "no credentials stored")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// updateSessionCookie lets the scraping automation push a refreshed
// session cookie for a user.
func (s *Server) updateSessionCookie(w http.ResponseWriter, r *http.Request) {
	var req UpdateCookieRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "userId and cookie are required")
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "expiresAt must be RFC 3339")
			return
		}
		expiresAt = &parsed
	}

	if err := s.credentialRepo.UpdateSessionCookie(r.Context(), req.UserID, req.Cookie, expiresAt); err != nil {
		writeError(w, http.StatusNotFound, "credentials not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// webhookStatus ingests status notifications from the scraping
// automation.
func (s *Server) webhookStatus(w http.ResponseWriter, r *http.Request) {
	var req WebhookStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	if req.RunID != "" {
		if err := s.orchestrator.HandleRunStatus(r.Context(), req.RunID, req.Status); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	if req.SubmissionID == "" {
		writeError(w, http.StatusBadRequest, "submissionId or runId is required")
		return
	}
	submissionID, err := uuid.Parse(req.SubmissionID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid submission id")
		return
	}

	var report *database.VehicleReport
	if req.ReportData != nil {
		report = reportFromWebhook(req.ReportData)
	}

	if err := s.orchestrator.ApplyStatusUpdate(r.Context(), submissionID, req.Status, req.ErrorMessage, report); err != nil {
		s.metrics.RecordWebhookDelivery(req.Status, "error")
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	s.metrics.RecordWebhookDelivery(req.Status, "applied")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// testApifyConnection checks the scraping platform account. Mirrors the
// dashboard's connection test widget, failures come back as success
// false rather than an HTTP error.
func (s *Server) testApifyConnection(w http.ResponseWriter, r *http.Request) {
	info, err := s.orchestrator.TestConnection(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"userId":   info.ID,
		"username": info.Username,
		"message":  "Apify connection successful",
	})
}

// instantReport serves canned demo reports without touching the
// platform.
func (s *Server) instantReport(w http.ResponseWriter, r *http.Request) {
	report, ok := instant.Generate(chi.URLParam(r, "vin"))
	if !ok {
		writeError(w, http.StatusNotFound, "no instant report for this VIN")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// adminPendingQueue shows the processing backlog and overall counts.
func (s *Server) adminPendingQueue(w http.ResponseWriter, r *http.Request) {
	pending, err := s.submissionRepo.GetPendingSubmissions(r.Context(), 50)
	if err != nil {
		logrus.Errorf("Failed to get pending submissions: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to get pending queue")
		return
	}

	stats, err := s.submissionRepo.GetSubmissionStats(r.Context())
	if err != nil {
		logrus.Errorf("Failed to get submission stats: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to get pending queue")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pending": pending,
		"stats":   stats,
	})
}

func (s *Server) listSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settingRepo.ListSettings(r.Context())
	if err != nil {
		logrus.Errorf("Failed to list settings: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

func (s *Server) upsertSetting(w http.ResponseWriter, r *http.Request) {
	var req UpsertSettingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "key and value are required")
		return
	}

	setting := &database.AdminSetting{Key: req.Key, Value: req.Value}
	if err := s.settingRepo.UpsertSetting(r.Context(), setting); err != nil {
		logrus.Errorf("Failed to upsert setting %s: %v", req.Key, err)
		writeError(w, http.StatusInternalServerError, "failed to store setting")
		return
	}

	writeJSON(w, http.StatusOK, setting)
}

// reportFromWebhook maps delivered report data onto a report row.
func reportFromWebhook(data *WebhookReportData) *database.VehicleReport {
	return &database.VehicleReport{
		VIN:                utils.NormalizeVIN(data.VIN),
		Year:               data.Year,
		Make:               data.Make,
		Model:              data.Model,
		Trim:               data.Trim,
		Mileage:            data.Mileage,
		Price:              data.Price,
		Color:              data.Color,
		EngineType:         data.EngineType,
		Transmission:       data.Transmission,
		AccidentCount:      data.AccidentCount,
		OwnerCount:         data.OwnerCount,
		ServiceRecordCount: data.ServiceRecordCount,
		AccidentHistory:    data.AccidentHistory,
		ServiceHistory:     data.ServiceHistory,
		OwnershipHistory:   data.OwnershipHistory,
		TitleInfo:          data.TitleInfo,
		AdditionalData:     data.AdditionalData,
		ScrapedAt:          time.Now(),
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/vindash/internal/apify"
	"github.com/vindash/internal/config"
	"github.com/vindash/internal/database"
	"github.com/vindash/internal/metrics"
	"github.com/vindash/internal/utils"
	"github.com/vindash/internal/vault"
)

// Orchestrator drives a VIN submission from pending to a stored vehicle
// report: it validates the VIN, starts a scraping run with the user's
// credentials attached, tracks the run and persists the outcome.
type Orchestrator struct {
	config         *config.Config
	submissionRepo *database.SubmissionRepository
	reportRepo     *database.ReportRepository
	credentialRepo *database.CredentialRepository
	runClient      apify.RunClient
	vault          *vault.Vault
	metrics        *metrics.Metrics
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(cfg *config.Config, db *sqlx.DB, runClient apify.RunClient, v *vault.Vault, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		config:         cfg,
		submissionRepo: database.NewSubmissionRepository(db),
		reportRepo:     database.NewReportRepository(db),
		credentialRepo: database.NewCredentialRepository(db),
		runClient:      runClient,
		vault:          v,
		metrics:        m,
	}
}

// ProcessSubmission processes a single submission end to end. Submissions
// that are already terminal are left alone. Context cancellation leaves
// the submission in processing until the maintenance sweep returns stale
// processing rows to pending.
func (o *Orchestrator) ProcessSubmission(ctx context.Context, submission *database.Submission) error {
	if submission.IsTerminal() {
		logrus.Debugf("Submission %s already %s, skipping", submission.ID, submission.Status)
		return nil
	}

	vin := utils.NormalizeVIN(submission.VIN)
	if err := utils.ValidateVIN(vin); err != nil {
		// Invalid VINs fail before any platform call is made.
		return o.failSubmission(ctx, submission, err.Error())
	}

	if submission.Status == database.StatusPending {
		if err := o.submissionRepo.SetSubmissionProcessing(ctx, submission.ID); err != nil {
			return fmt.Errorf("failed to claim submission %s: %w", submission.ID, err)
		}
		submission.Status = database.StatusProcessing
	}

	input, err := o.buildRunInput(ctx, submission.UserID, vin)
	if err != nil {
		return o.failSubmission(ctx, submission, fmt.Sprintf("failed to prepare scrape input: %v", err))
	}

	run, err := o.runClient.StartRun(ctx, input)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return o.failSubmission(ctx, submission, fmt.Sprintf("failed to start scrape run: %v", err))
	}
	o.metrics.RecordRunStarted()

	if err := o.submissionRepo.SetSubmissionRunID(ctx, submission.ID, run.ID); err != nil {
		logrus.Errorf("Failed to record run %s on submission %s: %v", run.ID, submission.ID, err)
	}

	started := time.Now()
	finished, err := o.runClient.PollRun(ctx, run.ID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		var timeoutErr *apify.PollTimeoutError
		if errors.As(err, &timeoutErr) {
			return o.failSubmission(ctx, submission, "scraping run timed out")
		}
		return o.failSubmission(ctx, submission, fmt.Sprintf("failed to track scrape run: %v", err))
	}
	o.metrics.RecordRunCompleted(finished.Status, time.Since(started))

	if finished.Status != apify.StatusSucceeded {
		return o.failSubmission(ctx, submission, fmt.Sprintf("scraping run finished with status %s", finished.Status))
	}

	return o.completeFromRun(ctx, submission, run.ID)
}

// HandleRunStatus applies a webhook status notification for a run. The
// poll loop and the webhook race for the terminal transition, the
// guarded update in the repository means whichever arrives first wins
// and the loser becomes a no-op.
func (o *Orchestrator) HandleRunStatus(ctx context.Context, runID, status string) error {
	submission, err := o.submissionRepo.GetSubmissionByRunID(ctx, runID)
	if err != nil {
		return err
	}
	if submission == nil {
		o.metrics.RecordWebhookDelivery(status, "unknown_run")
		return fmt.Errorf("no submission tracks run %s", runID)
	}

	if submission.IsTerminal() {
		o.metrics.RecordWebhookDelivery(status, "ignored")
		return nil
	}

	if !apify.IsTerminalStatus(status) {
		o.metrics.RecordWebhookDelivery(status, "ignored")
		return nil
	}

	if status == apify.StatusSucceeded {
		if err := o.completeFromRun(ctx, submission, runID); err != nil {
			o.metrics.RecordWebhookDelivery(status, "error")
			return err
		}
		o.metrics.RecordWebhookDelivery(status, "applied")
		return nil
	}

	if err := o.failSubmission(ctx, submission, fmt.Sprintf("scraping run finished with status %s", status)); err != nil {
		o.metrics.RecordWebhookDelivery(status, "error")
		return err
	}
	o.metrics.RecordWebhookDelivery(status, "applied")
	return nil
}

// ApplyStatusUpdate applies an externally reported status to a
// submission, optionally storing report data supplied with a completed
// status. Non-terminal statuses are ignored, terminal ones go through
// the same first-writer-wins guard as the poll path.
func (o *Orchestrator) ApplyStatusUpdate(ctx context.Context, submissionID uuid.UUID, status, errorMessage string, report *database.VehicleReport) error {
	submission, err := o.submissionRepo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return err
	}
	if submission == nil {
		return fmt.Errorf("submission %s not found", submissionID)
	}

	switch status {
	case database.StatusCompleted:
		applied, err := o.submissionRepo.MarkSubmissionCompleted(ctx, submission.ID)
		if err != nil {
			return err
		}
		if !applied {
			logrus.Infof("Submission %s already finished by another writer", submission.ID)
			return nil
		}
		o.metrics.RecordSubmission(database.StatusCompleted)

		if report != nil {
			report.SubmissionID = submission.ID
			if report.VIN == "" {
				report.VIN = submission.VIN
			}
			if err := o.reportRepo.CreateReport(ctx, report); err != nil {
				return fmt.Errorf("failed to store report for submission %s: %w", submission.ID, err)
			}
		}
		return nil
	case database.StatusFailed:
		if errorMessage == "" {
			errorMessage = "submission failed"
		}
		return o.failSubmission(ctx, submission, errorMessage)
	default:
		logrus.Debugf("Ignoring non-terminal status %q for submission %s", status, submission.ID)
		return nil
	}
}

// TestConnection verifies the scraping platform is reachable with the
// configured API key.
func (o *Orchestrator) TestConnection(ctx context.Context) (*apify.AccountInfo, error) {
	return o.runClient.GetAccountInfo(ctx)
}

// buildRunInput assembles the actor input for a VIN, attaching the
// user's session cookie when one is still valid, otherwise their
// decrypted credentials.
func (o *Orchestrator) buildRunInput(ctx context.Context, userID, vin string) (*apify.RunInput, error) {
	input := &apify.RunInput{
		VINs: []string{vin},
		Proxy: &apify.ProxyConfiguration{
			UseApifyProxy: true,
			ProxyGroups:   []string{"RESIDENTIAL"},
		},
	}

	record, err := o.credentialRepo.GetCredentialsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return input, nil
	}

	if record.HasSessionCookie() {
		input.SessionCookie = record.SessionCookie
		return input, nil
	}

	if record.EncryptedUsername != "" && record.EncryptedPassword != "" {
		username, err := o.vault.Decrypt(record.EncryptedUsername)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt stored username: %w", err)
		}
		password, err := o.vault.Decrypt(record.EncryptedPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt stored password: %w", err)
		}
		input.CarfaxUsername = username
		input.CarfaxPassword = password
	}

	return input, nil
}

// completeFromRun fetches a succeeded run's results and stores the
// report. The terminal transition decides ownership: only the writer
// that flips the status persists the report, so racing writers never
// store duplicates.
func (o *Orchestrator) completeFromRun(ctx context.Context, submission *database.Submission, runID string) error {
	items, err := o.runClient.GetRunResults(ctx, runID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return o.failSubmission(ctx, submission, fmt.Sprintf("failed to fetch scrape results: %v", err))
	}

	if len(items) == 0 {
		return o.failSubmission(ctx, submission, "no report data returned for VIN")
	}

	item := items[0]
	if item.Error != "" {
		return o.failSubmission(ctx, submission, item.Error)
	}

	applied, err := o.submissionRepo.MarkSubmissionCompleted(ctx, submission.ID)
	if err != nil {
		return err
	}
	if !applied {
		logrus.Infof("Submission %s already finished by another writer", submission.ID)
		return nil
	}
	submission.Status = database.StatusCompleted
	o.metrics.RecordSubmission(database.StatusCompleted)

	report := reportFromItem(submission, item)
	if err := o.reportRepo.CreateReport(ctx, report); err != nil {
		return fmt.Errorf("failed to store report for submission %s: %w", submission.ID, err)
	}

	logrus.Infof("Submission %s completed, report stored for VIN %s", submission.ID, report.VIN)
	return nil
}

// failSubmission moves a submission to failed unless another writer got
// there first.
func (o *Orchestrator) failSubmission(ctx context.Context, submission *database.Submission, message string) error {
	applied, err := o.submissionRepo.MarkSubmissionFailed(ctx, submission.ID, message)
	if err != nil {
		return err
	}
	if !applied {
		logrus.Infof("Submission %s already finished by another writer", submission.ID)
		return nil
	}
	submission.Status = database.StatusFailed
	submission.ErrorMessage = message
	o.metrics.RecordSubmission(database.StatusFailed)

	logrus.Warnf("Submission %s failed: %s", submission.ID, message)
	return nil
}

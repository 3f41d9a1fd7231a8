package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vindash/internal/apify"
	"github.com/vindash/internal/config"
	"github.com/vindash/internal/database"
	"github.com/vindash/internal/metrics"
	"github.com/vindash/internal/vault"
)

// fakeRunClient lets tests script platform behavior and count calls.
type fakeRunClient struct {
	startRunFn   func(ctx context.Context, input *apify.RunInput) (*apify.Run, error)
	pollRunFn    func(ctx context.Context, runID string) (*apify.Run, error)
	getResultsFn func(ctx context.Context, runID string) ([]*apify.DatasetItem, error)

	startCalls   int
	pollCalls    int
	resultsCalls int
}

func (f *fakeRunClient) StartRun(ctx context.Context, input *apify.RunInput) (*apify.Run, error) {
	f.startCalls++
	return f.startRunFn(ctx, input)
}

func (f *fakeRunClient) GetRun(ctx context.Context, runID string) (*apify.Run, error) {
	return &apify.Run{ID: runID, Status: apify.StatusRunning}, nil
}

func (f *fakeRunClient) GetRunResults(ctx context.Context, runID string) ([]*apify.DatasetItem, error) {
	f.resultsCalls++
	return f.getResultsFn(ctx, runID)
}

func (f *fakeRunClient) PollRun(ctx context.Context, runID string) (*apify.Run, error) {
	f.pollCalls++
	return f.pollRunFn(ctx, runID)
}

func (f *fakeRunClient) RunAndWait(ctx context.Context, input *apify.RunInput) ([]*apify.DatasetItem, error) {
	run, err := f.StartRun(ctx, input)
	if err != nil {
		return nil, err
	}
	finished, err := f.PollRun(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	if finished.Status != apify.StatusSucceeded {
		return nil, &apify.RunFailedError{RunID: finished.ID, Status: finished.Status}
	}
	return f.GetRunResults(ctx, finished.ID)
}

func (f *fakeRunClient) GetAccountInfo(ctx context.Context) (*apify.AccountInfo, error) {
	return &apify.AccountInfo{ID: "acct-1", Username: "vindash"}, nil
}

var (
	sharedMetrics     *metrics.Metrics
	sharedMetricsOnce sync.Once
)

// testMetrics returns a process-wide metrics instance, promauto
// registers collectors globally and re-registration panics.
func testMetrics() *metrics.Metrics {
	sharedMetricsOnce.Do(func() {
		sharedMetrics = metrics.NewMetrics()
	})
	return sharedMetrics
}

func newTestOrchestrator(t *testing.T, client apify.RunClient) (*Orchestrator, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")

	v, err := vault.New("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	orch := NewOrchestrator(&config.Config{}, sqlxDB, client, v, testMetrics())
	return orch, mock, func() { sqlxDB.Close() }
}

func pendingSubmission(vin string) *database.Submission {
	return &database.Submission{
		ID:          uuid.New(),
		UserID:      "user-123",
		VIN:         vin,
		Status:      database.StatusPending,
		SubmittedAt: time.Now(),
	}
}

func TestOrchestrator_ProcessSubmission_InvalidVIN(t *testing.T) {
	client := &fakeRunClient{}
	orch, mock, cleanup := newTestOrchestrator(t, client)
	defer cleanup()

	submission := pendingSubmission("TOOSHORT")

	mock.ExpectExec("UPDATE vin_submissions").
		WithArgs(database.StatusFailed, "invalid VIN", submission.ID, database.StatusCompleted, database.StatusFailed).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := orch.ProcessSubmission(context.Background(), submission)
	assert.NoError(t, err)
	assert.Equal(t, database.StatusFailed, submission.Status)
	assert.Equal(t, "invalid VIN", submission.ErrorMessage)

	// An invalid VIN must never reach the scraping platform.
	assert.Equal(t, 0, client.startCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrchestrator_ProcessSubmission_HappyPath(t *testing.T) {
	client := &fakeRunClient{
		startRunFn: func(ctx context.Context, input *apify.RunInput) (*apify.Run, error) {
			assert.Equal(t, []string{"3KPF24AD6KE105424"}, input.VINs)
			return &apify.Run{ID: "run-1", Status: apify.StatusReady}, nil
		},
		pollRunFn: func(ctx context.Context, runID string) (*apify.Run, error) {
			return &apify.Run{ID: runID, Status: apify.StatusSucceeded}, nil
		},
		getResultsFn: func(ctx context.Context, runID string) ([]*apify.DatasetItem, error) {
			return []*apify.DatasetItem{{
				VIN:           "3KPF24AD6KE105424",
				Year:          2019,
				Make:          "Hyundai",
				Model:         "Santa Fe",
				AccidentCount: 1,
			}}, nil
		},
	}
	orch, mock, cleanup := newTestOrchestrator(t, client)
	defer cleanup()

	submission := pendingSubmission("3KPF24AD6KE105424")

	mock.ExpectExec("UPDATE vin_submissions SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT \\* FROM carfax_credentials WHERE user_id = \\$1").
		WithArgs("user-123").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("UPDATE vin_submissions SET run_id").
		WithArgs("run-1", submission.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE vin_submissions").
		WithArgs(database.StatusCompleted, submission.ID, database.StatusCompleted, database.StatusFailed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO vehicle_reports").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := orch.ProcessSubmission(context.Background(), submission)
	assert.NoError(t, err)
	assert.Equal(t, database.StatusCompleted, submission.Status)
	assert.Equal(t, 1, client.startCalls)
	assert.Equal(t, 1, client.pollCalls)
	assert.Equal(t, 1, client.resultsCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrchestrator_ProcessSubmission_RunFailed(t *testing.T) {
	client := &fakeRunClient{
		startRunFn: func(ctx context.Context, input *apify.RunInput) (*apify.Run, error) {
			return &apify.Run{ID: "run-1", Status: apify.StatusReady}, nil
		},
		pollRunFn: func(ctx context.Context, runID string) (*apify.Run, error) {
			return &apify.Run{ID: runID, Status: apify.StatusFailed}, nil
		},
	}
	orch, mock, cleanup := newTestOrchestrator(t, client)
	defer cleanup()

	submission := pendingSubmission("3KPF24AD6KE105424")

	mock.ExpectExec("UPDATE vin_submissions SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT \\* FROM carfax_credentials WHERE user_id = \\$1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("UPDATE vin_submissions SET run_id").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE vin_submissions").
		WithArgs(database.StatusFailed, "scraping run finished with status FAILED", submission.ID, database.StatusCompleted, database.StatusFailed).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := orch.ProcessSubmission(context.Background(), submission)
	assert.NoError(t, err)
	assert.Equal(t, database.StatusFailed, submission.Status)

	// Failed runs never have their dataset fetched and never produce a
	// partial report.
	assert.Equal(t, 0, client.resultsCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrchestrator_ProcessSubmission_EmptyDataset(t *testing.T) {
	client := &fakeRunClient{
		startRunFn: func(ctx context.Context, input *apify.RunInput) (*apify.Run, error) {
			return &apify.Run{ID: "run-1", Status: apify.StatusReady}, nil
		},
		pollRunFn: func(ctx context.Context, runID string) (*apify.Run, error) {
			return &apify.Run{ID: runID, Status: apify.StatusSucceeded}, nil
		},
		getResultsFn: func(ctx context.Context, runID string) ([]*apify.DatasetItem, error) {
			return nil, nil
		},
	}
	orch, mock, cleanup := newTestOrchestrator(t, client)
	defer cleanup()

	submission := pendingSubmission("3KPF24AD6KE105424")

	mock.ExpectExec("UPDATE vin_submissions SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT \\* FROM carfax_credentials WHERE user_id = \\$1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("UPDATE vin_submissions SET run_id").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE vin_submissions").
		WithArgs(database.StatusFailed, "no report data returned for VIN", submission.ID, database.StatusCompleted, database.StatusFailed).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := orch.ProcessSubmission(context.Background(), submission)
	assert.NoError(t, err)
	assert.Equal(t, database.StatusFailed, submission.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrchestrator_ProcessSubmission_AlreadyTerminal(t *testing.T) {
	client := &fakeRunClient{}
	orch, mock, cleanup := newTestOrchestrator(t, client)
	defer cleanup()

	submission := pendingSubmission("3KPF24AD6KE105424")
	submission.Status = database.StatusCompleted

	err := orch.ProcessSubmission(context.Background(), submission)
	assert.NoError(t, err)
	assert.Equal(t, 0, client.startCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrchestrator_HandleRunStatus_UnknownRun(t *testing.T) {
	client := &fakeRunClient{}
	orch, mock, cleanup := newTestOrchestrator(t, client)
	defer cleanup()

	mock.ExpectQuery("SELECT \\* FROM vin_submissions WHERE run_id = \\$1").
		WithArgs("run-404").
		WillReturnError(sql.ErrNoRows)

	err := orch.HandleRunStatus(context.Background(), "run-404", apify.StatusSucceeded)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no submission tracks run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrchestrator_HandleRunStatus_TerminalSubmissionIsNoop(t *testing.T) {
	client := &fakeRunClient{}
	orch, mock, cleanup := newTestOrchestrator(t, client)
	defer cleanup()

	id := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "vin", "status", "run_id", "error_message", "submitted_at", "completed_at", "created_at", "updated_at"}).
		AddRow(id, "user-123", "3KPF24AD6KE105424", database.StatusCompleted, "run-1", "", now, now, now, now)

	mock.ExpectQuery("SELECT \\* FROM vin_submissions WHERE run_id = \\$1").
		WithArgs("run-1").
		WillReturnRows(rows)

	err := orch.HandleRunStatus(context.Background(), "run-1", apify.StatusSucceeded)
	assert.NoError(t, err)
	assert.Equal(t, 0, client.resultsCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrchestrator_HandleRunStatus_FailureStatus(t *testing.T) {
	client := &fakeRunClient{}
	orch, mock, cleanup := newTestOrchestrator(t, client)
	defer cleanup()

	id := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "vin", "status", "run_id", "error_message", "submitted_at", "completed_at", "created_at", "updated_at"}).
		AddRow(id, "user-123", "3KPF24AD6KE105424", database.StatusProcessing, "run-1", "", now, nil, now, now)

	mock.ExpectQuery("SELECT \\* FROM vin_submissions WHERE run_id = \\$1").
		WithArgs("run-1").
		WillReturnRows(rows)
	mock.ExpectExec("UPDATE vin_submissions").
		WithArgs(database.StatusFailed, "scraping run finished with status ABORTED", id, database.StatusCompleted, database.StatusFailed).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := orch.HandleRunStatus(context.Background(), "run-1", apify.StatusAborted)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrchestrator_BuildRunInput_SessionCookiePreferred(t *testing.T) {
	client := &fakeRunClient{}
	orch, mock, cleanup := newTestOrchestrator(t, client)
	defer cleanup()

	future := time.Now().Add(time.Hour)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "encrypted_username", "encrypted_password", "session_cookie", "expires_at", "created_at", "updated_at"}).
		AddRow(uuid.New(), "user-123", "aa:bb", "cc:dd", "session-abc", future, now, now)

	mock.ExpectQuery("SELECT \\* FROM carfax_credentials WHERE user_id = \\$1").
		WithArgs("user-123").
		WillReturnRows(rows)

	input, err := orch.buildRunInput(context.Background(), "user-123", "3KPF24AD6KE105424")
	require.NoError(t, err)
	assert.Equal(t, "session-abc", input.SessionCookie)
	assert.Empty(t, input.CarfaxUsername)
	assert.Empty(t, input.CarfaxPassword)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrchestrator_BuildRunInput_DecryptsCredentials(t *testing.T) {
	client := &fakeRunClient{}
	orch, mock, cleanup := newTestOrchestrator(t, client)
	defer cleanup()

	encUser, err := orch.vault.Encrypt("driver@example.com")
	require.NoError(t, err)
	encPass, err := orch.vault.Encrypt("hunter2")
	require.NoError(t, err)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "encrypted_username", "encrypted_password", "session_cookie", "expires_at", "created_at", "updated_at"}).
		AddRow(uuid.New(), "user-123", encUser, encPass, "", nil, now, now)

	mock.ExpectQuery("SELECT \\* FROM carfax_credentials WHERE user_id = \\$1").
		WithArgs("user-123").
		WillReturnRows(rows)

	input, err := orch.buildRunInput(context.Background(), "user-123", "3KPF24AD6KE105424")
	require.NoError(t, err)
	assert.Equal(t, "driver@example.com", input.CarfaxUsername)
	assert.Equal(t, "hunter2", input.CarfaxPassword)
	assert.Empty(t, input.SessionCookie)
	assert.NoError(t, mock.ExpectationsWereMet())
}

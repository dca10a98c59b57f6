package mock

import (
	"time"

	"github.com/caasmo/dripsched/db"
)

// Db implements db.DbApp for testing. Every method is backed by an
// overridable function field; tests set only the ones they care about and
// get a reasonable zero-value default for the rest.
type Db struct {
	GetCredentialFunc    func(ownerID string) (*db.Credential, error)
	UpsertCredentialFunc func(ownerID, email, refreshToken string) error
	TouchCredentialFunc  func(ownerID string) error

	InsertOAuthStateFunc  func(state db.OAuthState) error
	ConsumeOAuthStateFunc func(state string) (*db.OAuthState, error)

	InsertStepsFunc         func(sequenceID string, steps []db.Step) ([]db.Step, error)
	UpsertStepFunc          func(step db.Step) (*db.Step, error)
	StepsBySequenceFunc     func(sequenceID string) ([]db.Step, error)
	StepByIDFunc            func(stepID string) (*db.Step, error)
	NextStepFunc            func(sequenceID string, afterOrder int) (*db.Step, error)
	RecipientsBySequenceFunc func(sequenceID string) ([]string, error)

	InsertRunFunc    func(run db.Run) (*db.Run, error)
	GetRunFunc       func(runID string) (*db.Run, error)
	AdvanceRunFunc   func(runID string, stepOrder int, threadID string, sentAt time.Time) (*db.Run, error)
	SetRunStatusFunc func(runID string, status string) error

	InsertJobFunc   func(job db.Job) (*db.Job, error)
	ClaimFunc       func(batchSize int) ([]*db.Job, error)
	MarkSentFunc    func(jobID int64, messageID string) error
	RescheduleFunc  func(jobID int64, scheduledFor time.Time, attempts int, lastError string) error
	MarkFailedFunc  func(jobID int64, attempts int, lastError string) error

	InsertEmailEventFunc func(event db.EmailEvent) error

	LatestConfigFunc func(scope string) ([]byte, error)
	InsertConfigFunc func(scope string, encryptedData []byte, format, description string) error

	TopFailingTenantsFunc func(limit int) ([]db.TenantFailureCount, error)

	CloseFunc func()
}

var _ db.DbApp = (*Db)(nil)

func (m *Db) GetCredential(ownerID string) (*db.Credential, error) {
	if m.GetCredentialFunc != nil {
		return m.GetCredentialFunc(ownerID)
	}
	return nil, nil
}

func (m *Db) UpsertCredential(ownerID, email, refreshToken string) error {
	if m.UpsertCredentialFunc != nil {
		return m.UpsertCredentialFunc(ownerID, email, refreshToken)
	}
	return nil
}

func (m *Db) TouchCredential(ownerID string) error {
	if m.TouchCredentialFunc != nil {
		return m.TouchCredentialFunc(ownerID)
	}
	return nil
}

func (m *Db) InsertOAuthState(state db.OAuthState) error {
	if m.InsertOAuthStateFunc != nil {
		return m.InsertOAuthStateFunc(state)
	}
	return nil
}

func (m *Db) ConsumeOAuthState(state string) (*db.OAuthState, error) {
	if m.ConsumeOAuthStateFunc != nil {
		return m.ConsumeOAuthStateFunc(state)
	}
	return nil, db.ErrStateExpired
}

func (m *Db) InsertSteps(sequenceID string, steps []db.Step) ([]db.Step, error) {
	if m.InsertStepsFunc != nil {
		return m.InsertStepsFunc(sequenceID, steps)
	}
	return steps, nil
}

func (m *Db) UpsertStep(step db.Step) (*db.Step, error) {
	if m.UpsertStepFunc != nil {
		return m.UpsertStepFunc(step)
	}
	return &step, nil
}

func (m *Db) StepsBySequence(sequenceID string) ([]db.Step, error) {
	if m.StepsBySequenceFunc != nil {
		return m.StepsBySequenceFunc(sequenceID)
	}
	return nil, nil
}

func (m *Db) StepByID(stepID string) (*db.Step, error) {
	if m.StepByIDFunc != nil {
		return m.StepByIDFunc(stepID)
	}
	return nil, nil
}

func (m *Db) NextStep(sequenceID string, afterOrder int) (*db.Step, error) {
	if m.NextStepFunc != nil {
		return m.NextStepFunc(sequenceID, afterOrder)
	}
	return nil, nil
}

func (m *Db) RecipientsBySequence(sequenceID string) ([]string, error) {
	if m.RecipientsBySequenceFunc != nil {
		return m.RecipientsBySequenceFunc(sequenceID)
	}
	return nil, nil
}

func (m *Db) InsertRun(run db.Run) (*db.Run, error) {
	if m.InsertRunFunc != nil {
		return m.InsertRunFunc(run)
	}
	return &run, nil
}

func (m *Db) GetRun(runID string) (*db.Run, error) {
	if m.GetRunFunc != nil {
		return m.GetRunFunc(runID)
	}
	return nil, nil
}

func (m *Db) AdvanceRun(runID string, stepOrder int, threadID string, sentAt time.Time) (*db.Run, error) {
	if m.AdvanceRunFunc != nil {
		return m.AdvanceRunFunc(runID, stepOrder, threadID, sentAt)
	}
	return nil, nil
}

func (m *Db) SetRunStatus(runID string, status string) error {
	if m.SetRunStatusFunc != nil {
		return m.SetRunStatusFunc(runID, status)
	}
	return nil
}

func (m *Db) InsertJob(job db.Job) (*db.Job, error) {
	if m.InsertJobFunc != nil {
		return m.InsertJobFunc(job)
	}
	return &job, nil
}

func (m *Db) Claim(batchSize int) ([]*db.Job, error) {
	if m.ClaimFunc != nil {
		return m.ClaimFunc(batchSize)
	}
	return nil, nil
}

func (m *Db) MarkSent(jobID int64, messageID string) error {
	if m.MarkSentFunc != nil {
		return m.MarkSentFunc(jobID, messageID)
	}
	return nil
}

func (m *Db) Reschedule(jobID int64, scheduledFor time.Time, attempts int, lastError string) error {
	if m.RescheduleFunc != nil {
		return m.RescheduleFunc(jobID, scheduledFor, attempts, lastError)
	}
	return nil
}

func (m *Db) MarkFailed(jobID int64, attempts int, lastError string) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(jobID, attempts, lastError)
	}
	return nil
}

func (m *Db) InsertEmailEvent(event db.EmailEvent) error {
	if m.InsertEmailEventFunc != nil {
		return m.InsertEmailEventFunc(event)
	}
	return nil
}

func (m *Db) LatestConfig(scope string) ([]byte, error) {
	if m.LatestConfigFunc != nil {
		return m.LatestConfigFunc(scope)
	}
	return nil, db.ErrNotFound
}

func (m *Db) InsertConfig(scope string, encryptedData []byte, format, description string) error {
	if m.InsertConfigFunc != nil {
		return m.InsertConfigFunc(scope, encryptedData, format, description)
	}
	return nil
}

func (m *Db) TopFailingTenants(limit int) ([]db.TenantFailureCount, error) {
	if m.TopFailingTenantsFunc != nil {
		return m.TopFailingTenantsFunc(limit)
	}
	return nil, nil
}

func (m *Db) Close() {
	if m.CloseFunc != nil {
		m.CloseFunc()
	}
}

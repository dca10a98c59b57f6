package db

import "time"

// CredentialStore persists one connected mail account per tenant.
type CredentialStore interface {
	GetCredential(ownerID string) (*Credential, error)
	UpsertCredential(ownerID, email, refreshToken string) error
	TouchCredential(ownerID string) error
}

// OAuthStateStore persists single-use OAuth nonces.
type OAuthStateStore interface {
	InsertOAuthState(state OAuthState) error
	ConsumeOAuthState(state string) (*OAuthState, error)
}

// SequenceStore is the thin CRUD layer over sequences, steps, recipient lists.
type SequenceStore interface {
	InsertSteps(sequenceID string, steps []Step) ([]Step, error)
	UpsertStep(step Step) (*Step, error)
	StepsBySequence(sequenceID string) ([]Step, error)
	StepByID(stepID string) (*Step, error)
	NextStep(sequenceID string, afterOrder int) (*Step, error)
	RecipientsBySequence(sequenceID string) ([]string, error)
}

// RunStore manages sequence runs.
type RunStore interface {
	InsertRun(run Run) (*Run, error)
	GetRun(runID string) (*Run, error)
	AdvanceRun(runID string, stepOrder int, threadID string, sentAt time.Time) (*Run, error)
	SetRunStatus(runID string, status string) error
}

// JobStore is the durable job queue, including the atomic claim primitive.
type JobStore interface {
	InsertJob(job Job) (*Job, error)
	Claim(batchSize int) ([]*Job, error)
	MarkSent(jobID int64, messageID string) error
	Reschedule(jobID int64, scheduledFor time.Time, attempts int, lastError string) error
	MarkFailed(jobID int64, attempts int, lastError string) error
}

// EmailEventStore is the append-only send audit log.
type EmailEventStore interface {
	InsertEmailEvent(ev EmailEvent) error
}

// TenantFailureCount pairs a tenant with its total failed-job count from
// the tenant_failure_counts view.
type TenantFailureCount struct {
	OwnerID      string
	FailureCount int
}

// ReportStore serves operator triage queries; never consulted by the
// scheduling or claim path.
type ReportStore interface {
	TopFailingTenants(limit int) ([]TenantFailureCount, error)
}

// ConfigStore persists encrypted configuration blobs by scope, versioned
// so the most recent save for a scope is always what Latest returns.
type ConfigStore interface {
	LatestConfig(scope string) ([]byte, error)
	InsertConfig(scope string, encryptedData []byte, format, description string) error
}

// DbApp combines every role the application's handlers and worker need.
// A single concrete backend (e.g. *crawshaw.Db) implements all of them.
type DbApp interface {
	CredentialStore
	OAuthStateStore
	SequenceStore
	RunStore
	JobStore
	EmailEventStore
	ConfigStore
	ReportStore
	Close()
}

package core

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/caasmo/dripsched/config"
	"github.com/caasmo/dripsched/db"
	"github.com/caasmo/dripsched/db/mock"
	"github.com/caasmo/dripsched/mail"
	"github.com/caasmo/dripsched/queue/worker"
	"github.com/caasmo/dripsched/sequence"
)

func newTestWorker(m *mock.Db) *worker.Worker {
	return &worker.Worker{Store: m}
}

func newTestStarter(m *mock.Db) *sequence.Starter {
	return &sequence.Starter{Store: m}
}

func newTestApp(t *testing.T, m *mock.Db) *App {
	t.Helper()
	a := &App{}
	a.SetDb(m)
	a.SetLogger(slog.Default())
	a.SetConfigProvider(config.NewProvider(config.NewDefaultConfig()))
	return a
}

func TestStatusHandler(t *testing.T) {
	cases := []struct {
		name string
		cred *db.Credential
		want int
		conn bool
	}{
		{"no credential", nil, http.StatusOK, false},
		{"no refresh token", &db.Credential{OwnerID: "o1", Email: "a@b.com"}, http.StatusOK, false},
		{"connected", &db.Credential{OwnerID: "o1", Email: "a@b.com", RefreshToken: "rt"}, http.StatusOK, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := &mock.Db{GetCredentialFunc: func(ownerID string) (*db.Credential, error) { return c.cred, nil }}
			a := newTestApp(t, m)

			req := httptest.NewRequest(http.MethodGet, "/status?owner_id=o1", nil)
			w := httptest.NewRecorder()
			a.StatusHandler(w, req)

			if w.Code != c.want {
				t.Fatalf("status = %d, want %d", w.Code, c.want)
			}
			var resp struct {
				Ok        bool `json:"ok"`
				Connected bool `json:"connected"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp.Connected != c.conn {
				t.Fatalf("connected = %v, want %v", resp.Connected, c.conn)
			}
		})
	}
}

func TestStatusHandler_MissingOwnerID(t *testing.T) {
	a := newTestApp(t, &mock.Db{})
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	a.StatusHandler(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSendEmailHandler(t *testing.T) {
	providerServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"msg-1","threadId":"thread-1"}`))
	}))
	defer providerServer.Close()

	m := &mock.Db{
		GetCredentialFunc: func(ownerID string) (*db.Credential, error) {
			return &db.Credential{OwnerID: ownerID, RefreshToken: "rt"}, nil
		},
	}
	a := newTestApp(t, m)
	a.SetMailer(&mail.Sender{SendEndpoint: providerServer.URL, HTTPClient: providerServer.Client()})

	payload, _ := json.Marshal(map[string]string{"owner_id": "o1", "to": "x@y.com", "subject": "hi", "body_text": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/send_email", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	a.SendEmailHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Ok        bool   `json:"ok"`
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Ok || resp.MessageID != "msg-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestSendEmailHandler_NoRefreshToken(t *testing.T) {
	m := &mock.Db{GetCredentialFunc: func(ownerID string) (*db.Credential, error) { return nil, nil }}
	a := newTestApp(t, m)
	a.SetMailer(&mail.Sender{})

	payload, _ := json.Marshal(map[string]string{"owner_id": "o1", "to": "x@y.com"})
	req := httptest.NewRequest(http.MethodPost, "/send_email", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	a.SendEmailHandler(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
}

func TestStepsHandler_BulkInsert(t *testing.T) {
	m := &mock.Db{
		InsertStepsFunc: func(sequenceID string, steps []db.Step) ([]db.Step, error) {
			for i := range steps {
				steps[i].SequenceID = sequenceID
			}
			return steps, nil
		},
	}
	a := newTestApp(t, m)

	payload, _ := json.Marshal(map[string]interface{}{
		"sequence_id": "123e4567-e89b-12d3-a456-426614174000",
		"steps": []map[string]interface{}{
			{"step_order": 0, "subject": "s0", "body_text": "b0"},
			{"step_order": 1, "subject": "s1", "body_text": "b1"},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/steps", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	a.StepsHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Ok       bool `json:"ok"`
		Inserted int  `json:"inserted"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Inserted != 2 {
		t.Fatalf("inserted = %d, want 2", resp.Inserted)
	}
}

func TestStepsHandler_ConflictMapsTo409(t *testing.T) {
	m := &mock.Db{
		InsertStepsFunc: func(sequenceID string, steps []db.Step) ([]db.Step, error) {
			return nil, db.ErrConstraintUnique
		},
	}
	a := newTestApp(t, m)

	payload, _ := json.Marshal(map[string]interface{}{
		"sequence_id": "123e4567-e89b-12d3-a456-426614174000",
		"steps":       []map[string]interface{}{{"step_order": 0, "subject": "s0"}},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/steps", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	a.StepsHandler(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestStepsHandler_InvalidSequenceID(t *testing.T) {
	a := newTestApp(t, &mock.Db{})
	payload, _ := json.Marshal(map[string]interface{}{"sequence_id": "not-a-uuid", "steps": []map[string]interface{}{{"subject": "x"}}})
	req := httptest.NewRequest(http.MethodPost, "/api/steps", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	a.StepsHandler(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSequenceStepUpsertHandler(t *testing.T) {
	m := &mock.Db{
		UpsertStepFunc: func(step db.Step) (*db.Step, error) {
			step.ID = "generated-id"
			return &step, nil
		},
	}
	a := newTestApp(t, m)

	payload, _ := json.Marshal(map[string]interface{}{"sequence_id": "seq-1", "subject": "s", "body_text": "b", "step_order": 2})
	req := httptest.NewRequest(http.MethodPost, "/api/sequence_step_upsert", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	a.SequenceStepUpsertHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Ok   bool `json:"ok"`
		Step db.Step `json:"step"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Step.ID != "generated-id" {
		t.Fatalf("unexpected step: %+v", resp.Step)
	}
}

func TestRunScheduledJobsHandler(t *testing.T) {
	m := &mock.Db{
		ClaimFunc: func(batchSize int) ([]*db.Job, error) { return nil, nil },
	}
	a := newTestApp(t, m)
	a.SetWorker(newTestWorker(m))

	req := httptest.NewRequest(http.MethodGet, "/api/run_scheduled_jobs", nil)
	w := httptest.NewRecorder()
	a.RunScheduledJobsHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
}

func TestStartSequenceHandler_NoSteps(t *testing.T) {
	m := &mock.Db{
		StepsBySequenceFunc: func(sequenceID string) ([]db.Step, error) { return nil, nil },
	}
	a := newTestApp(t, m)
	a.SetStarter(newTestStarter(m))

	payload, _ := json.Marshal(map[string]interface{}{"sequence_id": "seq-1", "owner_id": "o1", "recipients": []string{"a@b.com"}})
	req := httptest.NewRequest(http.MethodPost, "/api/start_sequence", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	a.StartSequenceHandler(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body=%s", w.Code, w.Body.String())
	}
}

func TestStartSequenceHandler_Success(t *testing.T) {
	m := &mock.Db{
		StepsBySequenceFunc: func(sequenceID string) ([]db.Step, error) {
			return []db.Step{{ID: "step-1", SequenceID: sequenceID, StepOrder: 0, Subject: "hi"}}, nil
		},
		InsertRunFunc: func(run db.Run) (*db.Run, error) { run.ID = "run-1"; return &run, nil },
		InsertJobFunc: func(job db.Job) (*db.Job, error) { job.ID = 1; return &job, nil },
	}
	a := newTestApp(t, m)
	a.SetStarter(newTestStarter(m))

	payload, _ := json.Marshal(map[string]interface{}{"sequence_id": "seq-1", "owner_id": "o1", "recipients": []string{"a@b.com"}})
	req := httptest.NewRequest(http.MethodPost, "/api/start_sequence", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	a.StartSequenceHandler(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", w.Code, w.Body.String())
	}
}

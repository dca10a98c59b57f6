package sequence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/net/idna"

	"github.com/caasmo/dripsched/db"
)

// MXChecker performs a best-effort, advisory-only MX lookup on a recipient
// domain. A nil MXChecker skips the check entirely.
type MXChecker interface {
	HasMX(ctx context.Context, domain string) (bool, error)
}

// StartRequest is the input to Starter.Start (spec §4.G).
type StartRequest struct {
	SequenceID     string
	OwnerID        string
	Recipients     []string
	FirstSendTime  time.Time
	Timezone       string
}

// StartResult carries the runs and jobs materialized by one Start call.
type StartResult struct {
	Runs []db.Run
	Jobs []db.Job
}

// Starter materializes one run and one first-step job per recipient.
type Starter struct {
	Store   db.DbApp
	Checker MXChecker
}

// Start implements spec §4.G. Recipients are processed in the given order;
// a store error aborts with the remaining recipients unprocessed - there is
// no compensating transaction, partial progress is accepted by design.
func (s *Starter) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	steps, err := s.Store.StepsBySequence(req.SequenceID)
	if err != nil {
		return nil, fmt.Errorf("sequence: load steps: %w", err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("sequence: sequence %s has no steps", req.SequenceID)
	}
	firstStep := steps[0]
	for _, st := range steps {
		if st.StepOrder < firstStep.StepOrder {
			firstStep = st
		}
	}

	recipients := req.Recipients
	if len(recipients) == 0 {
		recipients, err = s.Store.RecipientsBySequence(req.SequenceID)
		if err != nil {
			return nil, fmt.Errorf("sequence: load recipient list: %w", err)
		}
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("sequence: no recipients for sequence %s", req.SequenceID)
	}

	scheduledFor := req.FirstSendTime
	if scheduledFor.IsZero() {
		scheduledFor = time.Now()
	}

	result := &StartResult{}
	for _, recipient := range recipients {
		normalized, err := normalizeRecipient(recipient)
		if err != nil {
			return result, fmt.Errorf("sequence: normalize recipient %q: %w", recipient, err)
		}
		s.checkMX(ctx, normalized)

		run, err := s.Store.InsertRun(db.Run{
			SequenceID:     req.SequenceID,
			OwnerID:        req.OwnerID,
			RecipientEmail: normalized,
			Status:         db.RunActive,
			CurrentStep:    0,
			Timezone:       req.Timezone,
		})
		if err != nil {
			return result, fmt.Errorf("sequence: insert run for %s: %w", normalized, err)
		}

		job, err := s.Store.InsertJob(db.Job{
			OwnerID:       req.OwnerID,
			ToEmail:       normalized,
			Subject:       firstStep.Subject,
			BodyText:      firstStep.BodyText,
			ScheduledFor:  scheduledFor,
			SequenceRunID: run.ID,
			StepID:        firstStep.ID,
			Timezone:      req.Timezone,
		})
		if err != nil {
			return result, fmt.Errorf("sequence: insert first job for %s: %w", normalized, err)
		}

		result.Runs = append(result.Runs, *run)
		result.Jobs = append(result.Jobs, *job)
	}

	return result, nil
}

// checkMX performs the best-effort advisory lookup; a failure is logged
// only, never returned, consistent with the spec's fail-open bias (§4.G).
func (s *Starter) checkMX(ctx context.Context, email string) {
	if s.Checker == nil {
		return
	}
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return
	}
	domain := email[at+1:]
	ok, err := s.Checker.HasMX(ctx, domain)
	if err != nil {
		slog.Warn("sequence: mx lookup failed, proceeding anyway", "domain", domain, "err", err)
		return
	}
	if !ok {
		slog.Warn("sequence: recipient domain has no MX record, proceeding anyway", "domain", domain)
	}
}

// normalizeRecipient lowercases and IDNA-folds the domain part of an email
// address, leaving the local part untouched.
func normalizeRecipient(email string) (string, error) {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return "", fmt.Errorf("missing @ in address %q", email)
	}
	local, domain := email[:at], email[at+1:]
	folded, err := idna.New(idna.MapForLookup(), idna.Transitional(true)).ToUnicode(domain)
	if err != nil {
		return "", fmt.Errorf("idna fold: %w", err)
	}
	return local + "@" + strings.ToLower(folded), nil
}

// Package engine orchestrates the plan pipeline: generation, validation,
// repair, fallback, guardrails, and transactional execution, with an audit
// entry for every meaningful transition.
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"arborplan/internal/audit"
	"arborplan/internal/config"
	"arborplan/internal/domain"
	"arborplan/internal/plan"
	"arborplan/internal/planner"
	"arborplan/internal/repo"
)

// Generator produces and repairs candidate plans. *planner.Client is the
// production implementation; tests substitute stubs.
type Generator interface {
	Generate(ctx context.Context, payload, schemaRef map[string]any) (planner.Result, error)
	Repair(ctx context.Context, invalidRaw string, validationErrors []string, payload, schemaRef map[string]any) (planner.Result, error)
	Model() string
}

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Audit     audit.Writer
	Generator Generator
	Config    *config.Config
	Now       func() time.Time

	mu        sync.Mutex
	leadLocks map[string]*sync.Mutex
}

func New(db *sql.DB, cfg *config.Config, gen Generator) *Engine {
	return &Engine{
		DB:        db,
		Repo:      repo.Repo{DB: db},
		Audit:     audit.Writer{DB: db},
		Generator: gen,
		Config:    cfg,
		Now:       time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) today() time.Time {
	loc, err := time.LoadLocation(e.Config.Scheduling.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return e.now().In(loc)
}

// lockLead serializes execute-mode runs for one lead within this process.
// The check-then-act between ActiveAssignmentExists and the execution
// writes is otherwise racy; cross-process runs remain unguarded.
func (e *Engine) lockLead(leadID string) func() {
	e.mu.Lock()
	if e.leadLocks == nil {
		e.leadLocks = make(map[string]*sync.Mutex)
	}
	lock, ok := e.leadLocks[leadID]
	if !ok {
		lock = &sync.Mutex{}
		e.leadLocks[leadID] = lock
	}
	e.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

// RunMode selects how far the pipeline goes after a plan validates.
type RunMode string

const (
	ModePlanOnly RunMode = "plan_only"
	ModeExecute  RunMode = "execute"
)

func ParseRunMode(s string) (RunMode, error) {
	switch RunMode(s) {
	case ModePlanOnly, ModeExecute:
		return RunMode(s), nil
	case "":
		return ModeExecute, nil
	}
	return "", fmt.Errorf("invalid run mode %q", s)
}

const lockedMessage = "Lead already has an active assignment."

// RunOutcome is the result of one pipeline invocation. Either Errors is
// empty and the payload fields for the chosen mode are set, or Errors is
// non-empty and the run is failed.
type RunOutcome struct {
	Run          domain.AgentRun      `json:"agent_run"`
	Plan         *plan.Plan           `json:"plan,omitempty"`
	Quote        *domain.Quote        `json:"quote,omitempty"`
	Job          *domain.Job          `json:"job,omitempty"`
	Assignment   *domain.Assignment   `json:"assignment,omitempty"`
	Notification *domain.Notification `json:"notification,omitempty"`
	Errors       []string             `json:"errors,omitempty"`
}

// RunPlan drives one agent run for a lead to a terminal state. Every exit
// path leaves a terminal AgentRun and an audit trail behind; the returned
// error is reserved for infrastructure failures (db unavailable), not
// pipeline outcomes.
func (e *Engine) RunPlan(ctx context.Context, leadID string, mode RunMode) (RunOutcome, error) {
	if mode == ModeExecute {
		unlock := e.lockLead(leadID)
		defer unlock()
	}

	lead, err := e.Repo.GetLead(ctx, leadID)
	if err != nil {
		return RunOutcome{}, err
	}
	ref, err := e.Repo.LoadReference(ctx)
	if err != nil {
		return RunOutcome{}, err
	}

	started := e.now()
	payload := planner.BuildInputPayload(lead, ref, e.Config.Scheduling.Timezone)
	inputContext, err := json.Marshal(payload)
	if err != nil {
		return RunOutcome{}, fmt.Errorf("marshal input context: %w", err)
	}

	ts := started.UTC().Format(time.RFC3339)
	run := domain.AgentRun{
		ID:           uuid.New().String(),
		LeadID:       leadID,
		Status:       domain.RunStarted,
		InputContext: inputContext,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	if err := e.Repo.InsertAgentRun(ctx, run); err != nil {
		return RunOutcome{}, err
	}
	if err := e.advanceRun(ctx, &run, domain.RunValidating); err != nil {
		return RunOutcome{}, err
	}

	chosen, model, genNotes := e.producePlan(ctx, lead, ref, payload)

	genStatus := audit.StatusOK
	genErrMsg := ""
	genPayload := audit.Payload{"model": model}
	if len(genNotes) > 0 {
		genPayload["notes"] = genNotes
		if model == planner.FallbackModel {
			genStatus = audit.StatusError
			genErrMsg = genNotes[0]
		}
	}
	if err := e.Audit.Append(ctx, nil, leadID, run.ID, "generate_plan", genStatus, genPayload, genErrMsg); err != nil {
		return RunOutcome{}, err
	}

	validationErrors := plan.Validate(chosen)
	if len(validationErrors) > 0 {
		// The fallback builder must always produce a valid plan; reaching
		// here means a defect, surfaced as a run failure.
		return e.failRun(ctx, lead, run, started, model, nil, validationErrors, audit.Payload{
			"validation_errors": validationErrors,
			"model":             model,
		})
	}

	p, err := plan.Decode(chosen)
	if err != nil {
		return e.failRun(ctx, lead, run, started, model, nil, []string{err.Error()}, audit.Payload{"model": model})
	}

	corrected, adjustments := planner.ApplyGuardrails(p, ref, e.today())

	run.Status = domain.RunValidated
	run.Model = model
	outputPlan, _ := json.Marshal(corrected.AsMap())
	run.OutputPlan = outputPlan
	run.DurationMs = e.now().Sub(started).Milliseconds()
	run.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.FinishAgentRun(ctx, run); err != nil {
		return RunOutcome{}, err
	}
	auditPayload := audit.Payload{
		"model":       model,
		"adjustments": adjustments,
	}
	if err := e.Audit.Append(ctx, nil, leadID, run.ID, "validate_plan", audit.StatusOK, auditPayload, ""); err != nil {
		return RunOutcome{}, err
	}

	if mode == ModePlanOnly {
		if err := e.Repo.UpdateLeadStatus(ctx, nil, leadID, domain.LeadPlanned, e.now().UTC().Format(time.RFC3339)); err != nil {
			return RunOutcome{}, err
		}
		if err := e.Audit.Append(ctx, nil, leadID, run.ID, "plan_only", audit.StatusOK, audit.Payload{"plan": corrected.AsMap()}, ""); err != nil {
			return RunOutcome{}, err
		}
		return RunOutcome{Run: run, Plan: &corrected}, nil
	}

	locked, err := e.Repo.ActiveAssignmentExists(ctx, leadID)
	if err != nil {
		return RunOutcome{}, err
	}
	if locked {
		if err := e.Audit.Append(ctx, nil, leadID, run.ID, "assignment_locked", audit.StatusError, nil, lockedMessage); err != nil {
			return RunOutcome{}, err
		}
		return e.failRun(ctx, lead, run, started, model, &corrected, []string{lockedMessage}, nil)
	}

	if err := e.advanceRun(ctx, &run, domain.RunExecuting); err != nil {
		return RunOutcome{}, err
	}

	result, execErr := e.executePlan(ctx, lead, run, corrected)
	if execErr != nil {
		if err := e.Audit.Append(ctx, nil, leadID, run.ID, "execute_plan", audit.StatusError, nil, execErr.Error()); err != nil {
			return RunOutcome{}, err
		}
		return e.failRun(ctx, lead, run, started, model, &corrected, []string{execErr.Error()}, nil)
	}

	run.Status = domain.RunSucceeded
	run.DurationMs = e.now().Sub(started).Milliseconds()
	run.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.FinishAgentRun(ctx, run); err != nil {
		return RunOutcome{}, err
	}
	if err := e.Repo.UpdateLeadStatus(ctx, nil, leadID, domain.LeadExecuted, run.UpdatedAt); err != nil {
		return RunOutcome{}, err
	}
	if err := e.Audit.Append(ctx, nil, leadID, run.ID, "execute_plan", audit.StatusOK, audit.Payload{
		"quote_id":        result.Quote.ID,
		"job_id":          result.Job.ID,
		"assignment_id":   result.Assignment.ID,
		"notification_id": result.Notification.ID,
	}, ""); err != nil {
		return RunOutcome{}, err
	}

	return RunOutcome{
		Run:          run,
		Plan:         &corrected,
		Quote:        &result.Quote,
		Job:          &result.Job,
		Assignment:   &result.Assignment,
		Notification: &result.Notification,
	}, nil
}

// producePlan runs the generate -> validate -> repair -> fallback sequence
// and returns the chosen candidate, the model that produced it, and notes
// about generation failures for the generate_plan audit entry.
func (e *Engine) producePlan(ctx context.Context, lead domain.Lead, ref planner.Reference, payload map[string]any) (map[string]any, string, []string) {
	var notes []string
	schemaRef := plan.SchemaReference()

	res, err := e.Generator.Generate(ctx, payload, schemaRef)
	if err != nil {
		notes = append(notes, fmt.Sprintf("generation failed: %v", err))
		return e.fallback(lead, ref), planner.FallbackModel, notes
	}

	if errs := plan.Validate(res.Candidate); len(errs) > 0 {
		notes = append(notes, fmt.Sprintf("initial candidate invalid: %d violation(s)", len(errs)))
		repaired, repairErr := e.Generator.Repair(ctx, res.Raw, errs, payload, schemaRef)
		if repairErr != nil {
			notes = append(notes, fmt.Sprintf("repair failed: %v", repairErr))
			return e.fallback(lead, ref), planner.FallbackModel, notes
		}
		if repairErrs := plan.Validate(repaired.Candidate); len(repairErrs) > 0 {
			notes = append(notes, fmt.Sprintf("repaired candidate invalid: %d violation(s)", len(repairErrs)))
			return e.fallback(lead, ref), planner.FallbackModel, notes
		}
		return repaired.Candidate, repaired.Model, notes
	}

	return res.Candidate, res.Model, notes
}

func (e *Engine) fallback(lead domain.Lead, ref planner.Reference) map[string]any {
	return planner.BuildFallback(lead, ref, e.today()).AsMap()
}

func (e *Engine) advanceRun(ctx context.Context, run *domain.AgentRun, next domain.RunStatus) error {
	if err := domain.EnsureRunTransition(run.Status, next); err != nil {
		return err
	}
	run.Status = next
	run.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	return e.Repo.UpdateAgentRunStatus(ctx, run.ID, next, run.UpdatedAt)
}

// failRun marks the run and lead failed, records duration and errors, and
// returns the failure outcome. auditPayload nil means the caller already
// wrote the relevant audit entry.
func (e *Engine) failRun(ctx context.Context, lead domain.Lead, run domain.AgentRun, started time.Time, model string, p *plan.Plan, errs []string, auditPayload audit.Payload) (RunOutcome, error) {
	run.Status = domain.RunFailed
	run.Model = model
	run.ValidationErrors = errs
	if p != nil {
		outputPlan, _ := json.Marshal(p.AsMap())
		run.OutputPlan = outputPlan
	}
	run.DurationMs = e.now().Sub(started).Milliseconds()
	run.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.FinishAgentRun(ctx, run); err != nil {
		return RunOutcome{}, err
	}
	if err := e.Repo.UpdateLeadStatus(ctx, nil, lead.ID, domain.LeadFailed, run.UpdatedAt); err != nil {
		return RunOutcome{}, err
	}
	if auditPayload != nil {
		msg := ""
		if len(errs) > 0 {
			msg = errs[0]
		}
		if err := e.Audit.Append(ctx, nil, lead.ID, run.ID, "validate_plan", audit.StatusError, auditPayload, msg); err != nil {
			return RunOutcome{}, err
		}
	}
	return RunOutcome{Run: run, Errors: errs}, nil
}

// DeclineAssignment transitions an assignment to declined and releases the
// lead for a new run by canceling the job.
func (e *Engine) DeclineAssignment(ctx context.Context, assignmentID string) (domain.Assignment, error) {
	a, err := e.Repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if err := domain.EnsureAssignmentTransition(a.Status, domain.AssignmentDeclined); err != nil {
		return domain.Assignment{}, err
	}
	ts := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateAssignmentStatus(ctx, assignmentID, domain.AssignmentDeclined, ts); err != nil {
		return domain.Assignment{}, err
	}
	a.Status = domain.AssignmentDeclined
	a.UpdatedAt = ts

	job, err := e.Repo.GetJob(ctx, a.JobID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if err := e.Audit.Append(ctx, nil, job.LeadID, "", "assignment_declined", audit.StatusOK, audit.Payload{
		"assignment_id":    a.ID,
		"job_id":           a.JobID,
		"subcontractor_id": a.SubcontractorID,
	}, ""); err != nil {
		return domain.Assignment{}, err
	}
	return a, nil
}

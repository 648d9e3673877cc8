package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"arborplan/internal/audit"
	"arborplan/internal/domain"
	"arborplan/internal/plan"
)

const (
	fallbackRecipient   = "unknown@example.com"
	notificationSubject = "Service scheduled"
)

// executionResult carries the four records committed by one execution.
type executionResult struct {
	Quote        domain.Quote
	Job          domain.Job
	Assignment   domain.Assignment
	Notification domain.Notification
}

// executePlan commits the finalized plan as a quote, job, assignment, and
// notification in one transaction, with an audit entry after each step. Any
// failure rolls back all four writes.
func (e *Engine) executePlan(ctx context.Context, lead domain.Lead, run domain.AgentRun, p plan.Plan) (executionResult, error) {
	if p.SubcontractorID == nil {
		return executionResult{}, fmt.Errorf("plan has no subcontractor to assign")
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return executionResult{}, err
	}
	defer tx.Rollback()

	ts := e.now().UTC().Format(time.RFC3339)

	subtotal := 0
	for _, item := range p.Quote.LineItems {
		subtotal += item.TotalCents
	}
	quote := domain.Quote{
		ID:            uuid.New().String(),
		LeadID:        lead.ID,
		AgentRunID:    run.ID,
		SubtotalCents: subtotal,
		TotalCents:    p.Quote.TotalCents,
		Confidence:    p.Confidence,
		CreatedAt:     ts,
	}
	if err := e.Repo.InsertQuoteTx(ctx, tx, quote); err != nil {
		return executionResult{}, fmt.Errorf("create quote: %w", err)
	}
	for _, item := range p.Quote.LineItems {
		li := domain.QuoteLineItem{
			ID:             uuid.New().String(),
			QuoteID:        quote.ID,
			Description:    item.Description,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents,
			CreatedAt:      ts,
		}
		if err := e.Repo.InsertQuoteLineItemTx(ctx, tx, li); err != nil {
			return executionResult{}, fmt.Errorf("create quote line item: %w", err)
		}
		quote.LineItems = append(quote.LineItems, li)
	}
	if err := e.Audit.Append(ctx, tx, lead.ID, run.ID, "create_quote", audit.StatusOK, audit.Payload{
		"quote_id":    quote.ID,
		"total_cents": quote.TotalCents,
	}, ""); err != nil {
		return executionResult{}, err
	}

	job := domain.Job{
		ID:            uuid.New().String(),
		LeadID:        lead.ID,
		QuoteID:       quote.ID,
		ScheduledDate: p.Schedule.Date,
		WindowStart:   p.Schedule.WindowStart,
		WindowEnd:     p.Schedule.WindowEnd,
		Status:        domain.JobScheduled,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	if err := e.Repo.InsertJobTx(ctx, tx, job); err != nil {
		return executionResult{}, fmt.Errorf("create job: %w", err)
	}
	if err := e.Audit.Append(ctx, tx, lead.ID, run.ID, "create_job", audit.StatusOK, audit.Payload{
		"job_id":         job.ID,
		"scheduled_date": job.ScheduledDate,
	}, ""); err != nil {
		return executionResult{}, err
	}

	assignment := domain.Assignment{
		ID:              uuid.New().String(),
		JobID:           job.ID,
		SubcontractorID: *p.SubcontractorID,
		Status:          domain.AssignmentAssigned,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	}
	if err := e.Repo.InsertAssignmentTx(ctx, tx, assignment); err != nil {
		return executionResult{}, fmt.Errorf("assign subcontractor: %w", err)
	}
	if err := e.Audit.Append(ctx, tx, lead.ID, run.ID, "assign_subcontractor", audit.StatusOK, audit.Payload{
		"assignment_id":    assignment.ID,
		"subcontractor_id": assignment.SubcontractorID,
	}, ""); err != nil {
		return executionResult{}, err
	}

	recipient := lead.Email
	if recipient == "" {
		recipient = fallbackRecipient
	}
	jobID := job.ID
	notification := domain.Notification{
		ID:        uuid.New().String(),
		LeadID:    lead.ID,
		JobID:     &jobID,
		Channel:   "email",
		To:        recipient,
		Subject:   notificationSubject,
		Body:      p.CustomerMessage,
		Status:    domain.NotificationStubbed,
		CreatedAt: ts,
	}
	if err := e.Repo.InsertNotificationTx(ctx, tx, notification); err != nil {
		return executionResult{}, fmt.Errorf("send notification: %w", err)
	}
	if err := e.Audit.Append(ctx, tx, lead.ID, run.ID, "send_notification", audit.StatusOK, audit.Payload{
		"notification_id": notification.ID,
		"recipient":       notification.To,
	}, ""); err != nil {
		return executionResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return executionResult{}, err
	}
	return executionResult{Quote: quote, Job: job, Assignment: assignment, Notification: notification}, nil
}

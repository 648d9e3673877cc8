package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"arborplan/internal/domain"
	"arborplan/internal/engine"
	"arborplan/internal/seed"
)

type LeadRequest struct {
	FullName         string `json:"full_name"`
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"`
	AddressLine1     string `json:"address_line1"`
	AddressLine2     string `json:"address_line2,omitempty"`
	City             string `json:"city"`
	State            string `json:"state"`
	PostalCode       string `json:"postal_code"`
	ServiceRequested string `json:"service_requested"`
	Notes            string `json:"notes,omitempty"`
	UrgencyHint      string `json:"urgency_hint,omitempty"`
}

func (r LeadRequest) validate() huma.StatusError {
	required := map[string]string{
		"full_name":         r.FullName,
		"address_line1":     r.AddressLine1,
		"city":              r.City,
		"state":             r.State,
		"postal_code":       r.PostalCode,
		"service_requested": r.ServiceRequested,
	}
	for field, value := range required {
		if value == "" {
			return newAPIError(http.StatusBadRequest, "bad_request", field+" is required", nil)
		}
	}
	return nil
}

func registerLeads(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-leads",
		Method:      http.MethodGet,
		Path:        "/leads",
		Summary:     "List leads",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Lead `json:"body"`
	}, error) {
		leads, err := e.Repo.ListLeads(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Lead `json:"body"`
		}{Body: leads}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-lead",
		Method:        http.MethodPost,
		Path:          "/leads",
		Summary:       "Create lead",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body LeadRequest `json:"body"`
	}) (*struct {
		Body domain.Lead `json:"body"`
	}, error) {
		if err := input.Body.validate(); err != nil {
			return nil, err
		}
		ts := time.Now().UTC().Format(time.RFC3339)
		lead := domain.Lead{
			ID:               uuid.New().String(),
			FullName:         input.Body.FullName,
			Email:            input.Body.Email,
			Phone:            input.Body.Phone,
			AddressLine1:     input.Body.AddressLine1,
			AddressLine2:     input.Body.AddressLine2,
			City:             input.Body.City,
			State:            input.Body.State,
			PostalCode:       input.Body.PostalCode,
			ServiceRequested: input.Body.ServiceRequested,
			Notes:            input.Body.Notes,
			UrgencyHint:      input.Body.UrgencyHint,
			Status:           domain.LeadNew,
			CreatedAt:        ts,
			UpdatedAt:        ts,
		}
		if err := e.Repo.InsertLead(ctx, lead); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Lead `json:"body"`
		}{Body: lead}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-lead",
		Method:      http.MethodGet,
		Path:        "/leads/{lead_id}",
		Summary:     "Get lead",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		LeadID string `path:"lead_id"`
	}) (*struct {
		Body domain.Lead `json:"body"`
	}, error) {
		lead, err := e.Repo.GetLead(ctx, input.LeadID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Lead `json:"body"`
		}{Body: lead}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-lead",
		Method:      http.MethodPatch,
		Path:        "/leads/{lead_id}",
		Summary:     "Update lead",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		LeadID string      `path:"lead_id"`
		Body   LeadRequest `json:"body"`
	}) (*struct {
		Body domain.Lead `json:"body"`
	}, error) {
		lead, err := e.Repo.GetLead(ctx, input.LeadID)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Body.FullName != "" {
			lead.FullName = input.Body.FullName
		}
		if input.Body.Email != "" {
			lead.Email = input.Body.Email
		}
		if input.Body.Phone != "" {
			lead.Phone = input.Body.Phone
		}
		if input.Body.AddressLine1 != "" {
			lead.AddressLine1 = input.Body.AddressLine1
		}
		if input.Body.AddressLine2 != "" {
			lead.AddressLine2 = input.Body.AddressLine2
		}
		if input.Body.City != "" {
			lead.City = input.Body.City
		}
		if input.Body.State != "" {
			lead.State = input.Body.State
		}
		if input.Body.PostalCode != "" {
			lead.PostalCode = input.Body.PostalCode
		}
		if input.Body.ServiceRequested != "" {
			lead.ServiceRequested = input.Body.ServiceRequested
		}
		if input.Body.Notes != "" {
			lead.Notes = input.Body.Notes
		}
		if input.Body.UrgencyHint != "" {
			lead.UrgencyHint = input.Body.UrgencyHint
		}
		lead.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
		if err := e.Repo.UpdateLead(ctx, lead); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Lead `json:"body"`
		}{Body: lead}, nil
	})
}

func registerRuns(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "run-plan",
		Method:        http.MethodPost,
		Path:          "/leads/{lead_id}/agent_runs",
		Summary:       "Run the plan pipeline for a lead",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		LeadID string `path:"lead_id"`
		Mode   string `query:"mode" enum:"plan_only,execute" required:"false"`
	}) (*struct {
		Body engine.RunOutcome `json:"body"`
	}, error) {
		mode, err := engine.ParseRunMode(input.Mode)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		outcome, err := e.RunPlan(ctx, input.LeadID, mode)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.RunOutcome `json:"body"`
		}{Body: outcome}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-agent-runs",
		Method:      http.MethodGet,
		Path:        "/leads/{lead_id}/agent_runs",
		Summary:     "List agent runs for a lead",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		LeadID string `path:"lead_id"`
	}) (*struct {
		Body []domain.AgentRun `json:"body"`
	}, error) {
		if _, err := e.Repo.GetLead(ctx, input.LeadID); err != nil {
			return nil, handleError(err)
		}
		runs, err := e.Repo.ListAgentRunsByLead(ctx, input.LeadID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.AgentRun `json:"body"`
		}{Body: runs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-agent-run",
		Method:      http.MethodGet,
		Path:        "/agent_runs/{run_id}",
		Summary:     "Get agent run",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RunID string `path:"run_id"`
	}) (*struct {
		Body domain.AgentRun `json:"body"`
	}, error) {
		run, err := e.Repo.GetAgentRun(ctx, input.RunID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AgentRun `json:"body"`
		}{Body: run}, nil
	})
}

func registerQuotes(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-quotes",
		Method:      http.MethodGet,
		Path:        "/leads/{lead_id}/quotes",
		Summary:     "List quotes for a lead",
	}, func(ctx context.Context, input *struct {
		LeadID string `path:"lead_id"`
	}) (*struct {
		Body []domain.Quote `json:"body"`
	}, error) {
		quotes, err := e.Repo.ListQuotesByLead(ctx, input.LeadID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Quote `json:"body"`
		}{Body: quotes}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-quote",
		Method:      http.MethodGet,
		Path:        "/quotes/{quote_id}",
		Summary:     "Get quote",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		QuoteID string `path:"quote_id"`
	}) (*struct {
		Body domain.Quote `json:"body"`
	}, error) {
		quote, err := e.Repo.GetQuote(ctx, input.QuoteID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Quote `json:"body"`
		}{Body: quote}, nil
	})
}

func registerJobs(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/leads/{lead_id}/jobs",
		Summary:     "List jobs for a lead",
	}, func(ctx context.Context, input *struct {
		LeadID string `path:"lead_id"`
	}) (*struct {
		Body []domain.Job `json:"body"`
	}, error) {
		jobs, err := e.Repo.ListJobsByLead(ctx, input.LeadID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Job `json:"body"`
		}{Body: jobs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/jobs/{job_id}",
		Summary:     "Get job",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		JobID string `path:"job_id"`
	}) (*struct {
		Body domain.Job `json:"body"`
	}, error) {
		job, err := e.Repo.GetJob(ctx, input.JobID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Job `json:"body"`
		}{Body: job}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-job",
		Method:      http.MethodPatch,
		Path:        "/jobs/{job_id}",
		Summary:     "Update job status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		JobID string `path:"job_id"`
		Body  struct {
			Status        string `json:"status,omitempty" enum:"scheduled,dispatched,completed,canceled" required:"false"`
			ScheduledDate string `json:"scheduled_date,omitempty" required:"false"`
			WindowStart   string `json:"scheduled_window_start,omitempty" required:"false"`
			WindowEnd     string `json:"scheduled_window_end,omitempty" required:"false"`
		} `json:"body"`
	}) (*struct {
		Body domain.Job `json:"body"`
	}, error) {
		job, err := e.Repo.GetJob(ctx, input.JobID)
		if err != nil {
			return nil, handleError(err)
		}
		now := time.Now().UTC().Format(time.RFC3339)
		if input.Body.ScheduledDate != "" || input.Body.WindowStart != "" || input.Body.WindowEnd != "" {
			if input.Body.ScheduledDate != "" {
				job.ScheduledDate = input.Body.ScheduledDate
			}
			if input.Body.WindowStart != "" {
				job.WindowStart = input.Body.WindowStart
			}
			if input.Body.WindowEnd != "" {
				job.WindowEnd = input.Body.WindowEnd
			}
			job.UpdatedAt = now
			if err := e.Repo.UpdateJobSchedule(ctx, job.ID, job.ScheduledDate, job.WindowStart, job.WindowEnd, job.UpdatedAt); err != nil {
				return nil, handleError(err)
			}
		}
		if input.Body.Status != "" {
			next, err := domain.ParseJobStatus(input.Body.Status)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
			}
			if err := domain.EnsureJobTransition(job.Status, next); err != nil {
				return nil, handleError(err)
			}
			job.Status = next
			job.UpdatedAt = now
			if err := e.Repo.UpdateJobStatus(ctx, job.ID, next, job.UpdatedAt); err != nil {
				return nil, handleError(err)
			}
		}
		return &struct {
			Body domain.Job `json:"body"`
		}{Body: job}, nil
	})
}

func registerAssignments(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-assignments",
		Method:      http.MethodGet,
		Path:        "/leads/{lead_id}/assignments",
		Summary:     "List assignments for a lead",
	}, func(ctx context.Context, input *struct {
		LeadID string `path:"lead_id"`
	}) (*struct {
		Body []domain.Assignment `json:"body"`
	}, error) {
		assignments, err := e.Repo.ListAssignmentsByLead(ctx, input.LeadID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Assignment `json:"body"`
		}{Body: assignments}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-assignment",
		Method:      http.MethodGet,
		Path:        "/assignments/{assignment_id}",
		Summary:     "Get assignment",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AssignmentID string `path:"assignment_id"`
	}) (*struct {
		Body domain.Assignment `json:"body"`
	}, error) {
		a, err := e.Repo.GetAssignment(ctx, input.AssignmentID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Assignment `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-assignment",
		Method:      http.MethodPatch,
		Path:        "/assignments/{assignment_id}",
		Summary:     "Update assignment status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		AssignmentID string `path:"assignment_id"`
		Body         struct {
			Status string `json:"status" enum:"confirmed,declined"`
		} `json:"body"`
	}) (*struct {
		Body domain.Assignment `json:"body"`
	}, error) {
		next, err := domain.ParseAssignmentStatus(input.Body.Status)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		if next == domain.AssignmentDeclined {
			a, err := e.DeclineAssignment(ctx, input.AssignmentID)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body domain.Assignment `json:"body"`
			}{Body: a}, nil
		}
		a, err := e.Repo.GetAssignment(ctx, input.AssignmentID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := domain.EnsureAssignmentTransition(a.Status, next); err != nil {
			return nil, handleError(err)
		}
		a.Status = next
		a.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
		if err := e.Repo.UpdateAssignmentStatus(ctx, a.ID, next, a.UpdatedAt); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Assignment `json:"body"`
		}{Body: a}, nil
	})
}

func registerNotifications(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/leads/{lead_id}/notifications",
		Summary:     "List notifications for a lead",
	}, func(ctx context.Context, input *struct {
		LeadID string `path:"lead_id"`
	}) (*struct {
		Body []domain.Notification `json:"body"`
	}, error) {
		notifications, err := e.Repo.ListNotificationsByLead(ctx, input.LeadID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Notification `json:"body"`
		}{Body: notifications}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-notification",
		Method:      http.MethodGet,
		Path:        "/notifications/{notification_id}",
		Summary:     "Get notification",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		NotificationID string `path:"notification_id"`
	}) (*struct {
		Body domain.Notification `json:"body"`
	}, error) {
		nt, err := e.Repo.GetNotification(ctx, input.NotificationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Notification `json:"body"`
		}{Body: nt}, nil
	})
}

func registerReference(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-services",
		Method:      http.MethodGet,
		Path:        "/services",
		Summary:     "List services",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Service `json:"body"`
	}, error) {
		services, err := e.Repo.ListServices(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Service `json:"body"`
		}{Body: services}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-pricing-rules",
		Method:      http.MethodGet,
		Path:        "/pricing_rules",
		Summary:     "List pricing rules",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.PricingRule `json:"body"`
	}, error) {
		rules, err := e.Repo.ListPricingRules(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.PricingRule `json:"body"`
		}{Body: rules}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-subcontractors",
		Method:      http.MethodGet,
		Path:        "/subcontractors",
		Summary:     "List subcontractors with availability",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Subcontractor `json:"body"`
	}, error) {
		subs, err := e.Repo.ListSubcontractors(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Subcontractor `json:"body"`
		}{Body: subs}, nil
	})
}

func registerTimeline(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-action-logs",
		Method:      http.MethodGet,
		Path:        "/leads/{lead_id}/action_logs",
		Summary:     "List action logs for a lead",
	}, func(ctx context.Context, input *struct {
		LeadID string `path:"lead_id"`
	}) (*struct {
		Body []domain.ActionLog `json:"body"`
	}, error) {
		logs, err := e.Repo.ListActionLogsByLead(ctx, input.LeadID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ActionLog `json:"body"`
		}{Body: logs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-timeline",
		Method:      http.MethodGet,
		Path:        "/leads/{lead_id}/timeline",
		Summary:     "Merged audit timeline for a lead",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		LeadID string `path:"lead_id"`
	}) (*struct {
		Body []domain.TimelineEntry `json:"body"`
	}, error) {
		if _, err := e.Repo.GetLead(ctx, input.LeadID); err != nil {
			return nil, handleError(err)
		}
		entries, err := e.Repo.Timeline(ctx, input.LeadID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.TimelineEntry `json:"body"`
		}{Body: entries}, nil
	})
}

func registerDemo(api huma.API, e *engine.Engine, env string) {
	huma.Register(api, huma.Operation{
		OperationID: "demo-populate",
		Method:      http.MethodPost,
		Path:        "/demo/populate",
		Summary:     "Populate demo data",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if err := seed.Populate(ctx, e.Repo, e.Now); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "populated"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "demo-reset",
		Method:      http.MethodPost,
		Path:        "/demo/reset",
		Summary:     "Reset demo data",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if env == "production" {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "demo reset is disabled in production", nil)
		}
		if err := e.Repo.ResetDemoData(ctx); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "reset"}}, nil
	})
}

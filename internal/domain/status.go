package domain

import "fmt"

type LeadStatus string

const (
	LeadNew      LeadStatus = "new"
	LeadPlanned  LeadStatus = "planned"
	LeadExecuted LeadStatus = "executed"
	LeadFailed   LeadStatus = "failed"
)

func ParseLeadStatus(s string) (LeadStatus, error) {
	switch LeadStatus(s) {
	case LeadNew, LeadPlanned, LeadExecuted, LeadFailed:
		return LeadStatus(s), nil
	}
	return "", fmt.Errorf("invalid lead status %q", s)
}

type RunStatus string

const (
	RunStarted    RunStatus = "started"
	RunValidating RunStatus = "validating"
	RunValidated  RunStatus = "validated"
	RunExecuting  RunStatus = "executing"
	RunSucceeded  RunStatus = "succeeded"
	RunFailed     RunStatus = "failed"
)

func ParseRunStatus(s string) (RunStatus, error) {
	switch RunStatus(s) {
	case RunStarted, RunValidating, RunValidated, RunExecuting, RunSucceeded, RunFailed:
		return RunStatus(s), nil
	}
	return "", fmt.Errorf("invalid run status %q", s)
}

// Terminal reports whether a run in this status may never change again.
func (s RunStatus) Terminal() bool {
	return s == RunSucceeded || s == RunFailed
}

// EnsureRunTransition enforces the pipeline state machine:
// started -> validating -> {validated|failed}; validated -> executing ->
// {succeeded|failed}; validated is also terminal in plan-only mode.
func EnsureRunTransition(old, next RunStatus) error {
	switch old {
	case RunStarted:
		if next == RunValidating {
			return nil
		}
	case RunValidating:
		if next == RunValidated || next == RunFailed {
			return nil
		}
	case RunValidated:
		if next == RunExecuting || next == RunFailed {
			return nil
		}
	case RunExecuting:
		if next == RunSucceeded || next == RunFailed {
			return nil
		}
	}
	return fmt.Errorf("invalid run status transition %s -> %s", old, next)
}

type JobStatus string

const (
	JobScheduled  JobStatus = "scheduled"
	JobDispatched JobStatus = "dispatched"
	JobCompleted  JobStatus = "completed"
	JobCanceled   JobStatus = "canceled"
)

func ParseJobStatus(s string) (JobStatus, error) {
	switch JobStatus(s) {
	case JobScheduled, JobDispatched, JobCompleted, JobCanceled:
		return JobStatus(s), nil
	}
	return "", fmt.Errorf("invalid job status %q", s)
}

// EnsureJobTransition allows the dispatch flow plus cancellation from any
// non-terminal status. The pipeline itself only ever creates scheduled jobs.
func EnsureJobTransition(old, next JobStatus) error {
	switch old {
	case JobScheduled:
		if next == JobDispatched || next == JobCanceled {
			return nil
		}
	case JobDispatched:
		if next == JobCompleted || next == JobCanceled {
			return nil
		}
	}
	return fmt.Errorf("invalid job status transition %s -> %s", old, next)
}

type AssignmentStatus string

const (
	AssignmentAssigned  AssignmentStatus = "assigned"
	AssignmentConfirmed AssignmentStatus = "confirmed"
	AssignmentDeclined  AssignmentStatus = "declined"
)

func ParseAssignmentStatus(s string) (AssignmentStatus, error) {
	switch AssignmentStatus(s) {
	case AssignmentAssigned, AssignmentConfirmed, AssignmentDeclined:
		return AssignmentStatus(s), nil
	}
	return "", fmt.Errorf("invalid assignment status %q", s)
}

func EnsureAssignmentTransition(old, next AssignmentStatus) error {
	switch old {
	case AssignmentAssigned:
		if next == AssignmentConfirmed || next == AssignmentDeclined {
			return nil
		}
	case AssignmentConfirmed:
		if next == AssignmentDeclined {
			return nil
		}
	}
	return fmt.Errorf("invalid assignment status transition %s -> %s", old, next)
}

type NotificationStatus string

const (
	NotificationQueued  NotificationStatus = "queued"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
	NotificationStubbed NotificationStatus = "stubbed"
)

func ParseNotificationStatus(s string) (NotificationStatus, error) {
	switch NotificationStatus(s) {
	case NotificationQueued, NotificationSent, NotificationFailed, NotificationStubbed:
		return NotificationStatus(s), nil
	}
	return "", fmt.Errorf("invalid notification status %q", s)
}

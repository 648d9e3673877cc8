package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"arborplan/internal/config"
	"arborplan/internal/db"
	"arborplan/internal/domain"
	"arborplan/internal/engine"
	"arborplan/internal/migrate"
	"arborplan/internal/planner"
	"arborplan/internal/seed"
)

type offlineGenerator struct{}

func (offlineGenerator) Generate(ctx context.Context, payload, schemaRef map[string]any) (planner.Result, error) {
	return planner.Result{}, errors.New("completion endpoint offline")
}

func (offlineGenerator) Repair(ctx context.Context, invalidRaw string, validationErrors []string, payload, schemaRef map[string]any) (planner.Result, error) {
	return planner.Result{}, errors.New("completion endpoint offline")
}

func (offlineGenerator) Model() string { return "test-model" }

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, env string) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Scheduling.Timezone = "UTC"
	e := engine.New(conn, cfg, offlineGenerator{})
	e.Now = func() time.Time { return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC) }
	if err := seed.Populate(context.Background(), e.Repo, e.Now); err != nil {
		t.Fatalf("seed: %v", err)
	}
	handler, err := New(Config{
		Engine: e,
		Auth:   AuthConfig{JWTSecret: "test-secret"},
		Env:    env,
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func login(t *testing.T, srv *testServer) map[string]string {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]any{
		"email":    "admin@example.com",
		"password": "password123",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", res.StatusCode, string(data))
	}
	var body LoginResponse
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	if body.Token == "" {
		t.Fatalf("empty token")
	}
	return map[string]string{"Authorization": "Bearer " + body.Token}
}

func createLead(t *testing.T, srv *testServer, auth map[string]string) domain.Lead {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/leads", map[string]any{
		"full_name":         "Morgan Patel",
		"email":             "morgan.patel@example.com",
		"address_line1":     "789 Pine Dr",
		"city":              "Round Rock",
		"state":             "TX",
		"postal_code":       "78664",
		"service_requested": "Stump grinding",
		"urgency_hint":      "next week",
	}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create lead status %d: %s", res.StatusCode, string(data))
	}
	var lead domain.Lead
	if err := json.Unmarshal(data, &lead); err != nil {
		t.Fatalf("unmarshal lead: %v", err)
	}
	return lead
}

func TestHealthUnauthenticated(t *testing.T) {
	srv, cleanup := newTestServer(t, "test")
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	srv, cleanup := newTestServer(t, "test")
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/leads", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("error code: %q", envelope.Error.Code)
	}
}

func TestLoginBadPassword(t *testing.T) {
	srv, cleanup := newTestServer(t, "test")
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]any{
		"email":    "admin@example.com",
		"password": "wrong",
	}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
}

func TestLeadCreateAndGet(t *testing.T) {
	srv, cleanup := newTestServer(t, "test")
	defer cleanup()
	auth := login(t, srv)

	lead := createLead(t, srv, auth)
	if lead.Status != domain.LeadNew {
		t.Fatalf("lead status: %s", lead.Status)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/leads/"+lead.ID, nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get lead status %d: %s", res.StatusCode, string(data))
	}
	var fetched domain.Lead
	if err := json.Unmarshal(data, &fetched); err != nil {
		t.Fatalf("unmarshal lead: %v", err)
	}
	if fetched.FullName != "Morgan Patel" || fetched.ServiceRequested != "Stump grinding" {
		t.Fatalf("fetched lead: %+v", fetched)
	}
}

func TestLeadCreateMissingField(t *testing.T) {
	srv, cleanup := newTestServer(t, "test")
	defer cleanup()
	auth := login(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/leads", map[string]any{
		"full_name": "No Address",
	}, auth)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(data))
	}
}

func TestRunPlanEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t, "test")
	defer cleanup()
	auth := login(t, srv)
	lead := createLead(t, srv, auth)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/leads/"+lead.ID+"/agent_runs?mode=plan_only", nil, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("plan-only status %d: %s", res.StatusCode, string(data))
	}
	var outcome engine.RunOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		t.Fatalf("unmarshal outcome: %v", err)
	}
	if outcome.Run.Status != domain.RunValidated {
		t.Fatalf("run status: %s", outcome.Run.Status)
	}
	if outcome.Run.Model != planner.FallbackModel {
		t.Fatalf("run model: %q", outcome.Run.Model)
	}
	if outcome.Plan == nil {
		t.Fatalf("expected plan in outcome")
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/leads/"+lead.ID+"/agent_runs?mode=execute", nil, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("execute status %d: %s", res.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, &outcome); err != nil {
		t.Fatalf("unmarshal outcome: %v", err)
	}
	if outcome.Run.Status != domain.RunSucceeded {
		t.Fatalf("run status: %s (errors %v)", outcome.Run.Status, outcome.Errors)
	}
	if outcome.Quote == nil || outcome.Job == nil || outcome.Assignment == nil || outcome.Notification == nil {
		t.Fatalf("incomplete outcome: %s", string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/leads/"+lead.ID+"/agent_runs?mode=execute", nil, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("locked execute status %d: %s", res.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, &outcome); err != nil {
		t.Fatalf("unmarshal outcome: %v", err)
	}
	if outcome.Run.Status != domain.RunFailed {
		t.Fatalf("expected failed run, got %s", outcome.Run.Status)
	}
	if len(outcome.Errors) != 1 || outcome.Errors[0] != "Lead already has an active assignment." {
		t.Fatalf("errors: %v", outcome.Errors)
	}
}

func TestRunPlanUnknownLead(t *testing.T) {
	srv, cleanup := newTestServer(t, "test")
	defer cleanup()
	auth := login(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/leads/nope/agent_runs", nil, auth)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
}

func TestRunPlanInvalidMode(t *testing.T) {
	srv, cleanup := newTestServer(t, "test")
	defer cleanup()
	auth := login(t, srv)
	lead := createLead(t, srv, auth)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/leads/"+lead.ID+"/agent_runs?mode=dry_run", nil, auth)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(data))
	}
}

func TestAssignmentDecline(t *testing.T) {
	srv, cleanup := newTestServer(t, "test")
	defer cleanup()
	auth := login(t, srv)
	lead := createLead(t, srv, auth)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/leads/"+lead.ID+"/agent_runs?mode=execute", nil, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("execute status %d: %s", res.StatusCode, string(data))
	}
	var outcome engine.RunOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		t.Fatalf("unmarshal outcome: %v", err)
	}
	if outcome.Assignment == nil {
		t.Fatalf("missing assignment: %s", string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/api/v1/assignments/"+outcome.Assignment.ID, map[string]any{
		"status": "declined",
	}, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("decline status %d: %s", res.StatusCode, string(data))
	}
	var declined domain.Assignment
	if err := json.Unmarshal(data, &declined); err != nil {
		t.Fatalf("unmarshal assignment: %v", err)
	}
	if declined.Status != domain.AssignmentDeclined {
		t.Fatalf("assignment status: %s", declined.Status)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/api/v1/assignments/"+outcome.Assignment.ID, map[string]any{
		"status": "confirmed",
	}, auth)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", res.StatusCode, string(data))
	}
}

func TestJobUpdate(t *testing.T) {
	srv, cleanup := newTestServer(t, "test")
	defer cleanup()
	auth := login(t, srv)
	lead := createLead(t, srv, auth)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/leads/"+lead.ID+"/agent_runs?mode=execute", nil, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("execute status %d: %s", res.StatusCode, string(data))
	}
	var outcome engine.RunOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		t.Fatalf("unmarshal outcome: %v", err)
	}
	if outcome.Job == nil {
		t.Fatalf("missing job: %s", string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/api/v1/jobs/"+outcome.Job.ID, map[string]any{
		"status":         "dispatched",
		"scheduled_date": "2026-09-08",
	}, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update status %d: %s", res.StatusCode, string(data))
	}
	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		t.Fatalf("unmarshal job: %v", err)
	}
	if job.Status != domain.JobDispatched || job.ScheduledDate != "2026-09-08" {
		t.Fatalf("job after update: %+v", job)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/api/v1/jobs/"+outcome.Job.ID, map[string]any{
		"status": "scheduled",
	}, auth)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", res.StatusCode, string(data))
	}
}

func TestTimelineEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t, "test")
	defer cleanup()
	auth := login(t, srv)
	lead := createLead(t, srv, auth)

	if res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/leads/"+lead.ID+"/agent_runs?mode=plan_only", nil, auth); res.StatusCode != http.StatusCreated {
		t.Fatalf("run status %d: %s", res.StatusCode, string(data))
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/leads/"+lead.ID+"/timeline", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("timeline status %d: %s", res.StatusCode, string(data))
	}
	var entries []domain.TimelineEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("unmarshal timeline: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("empty timeline")
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/leads/nope/timeline", nil, auth)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
}

func TestDemoResetForbiddenInProduction(t *testing.T) {
	srv, cleanup := newTestServer(t, "production")
	defer cleanup()
	auth := login(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/demo/reset", nil, auth)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", res.StatusCode, string(data))
	}
}

func TestDemoReset(t *testing.T) {
	srv, cleanup := newTestServer(t, "test")
	defer cleanup()
	auth := login(t, srv)
	createLead(t, srv, auth)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/demo/reset", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reset status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/leads", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	var leads []domain.Lead
	if err := json.Unmarshal(data, &leads); err != nil {
		t.Fatalf("unmarshal leads: %v", err)
	}
	if len(leads) != 0 {
		t.Fatalf("expected no leads after reset, got %d", len(leads))
	}
}

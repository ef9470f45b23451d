package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sift/internal/api"
	"sift/internal/queue"
)

func TestAPIServerSubmitAndDescribe(t *testing.T) {
	d := newTestDaemon(t)
	path := writeMediaFile(t, "plant-tour.mkv")

	body := strings.NewReader(`{"sourcePath":` + jsonString(path) + `}`)
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", body)
	w := httptest.NewRecorder()
	d.api.handleJobs(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("submit status = %d: %s", w.Code, w.Body.String())
	}
	var created api.JobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	if created.Job.Status != string(queue.StatusPending) {
		t.Fatalf("job status = %q", created.Job.Status)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/1", nil)
	w = httptest.NewRecorder()
	d.api.handleJob(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("describe status = %d", w.Code)
	}
	var fetched api.JobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode describe response: %v", err)
	}
	if fetched.Job.ID != created.Job.ID {
		t.Fatalf("describe returned job %d, want %d", fetched.Job.ID, created.Job.ID)
	}
}

func TestAPIServerSubmitRejectsBadPayload(t *testing.T) {
	d := newTestDaemon(t)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	d.api.handleJobs(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"sourcePath":""}`))
	w = httptest.NewRecorder()
	d.api.handleJobs(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAPIServerControlActions(t *testing.T) {
	d := newTestDaemon(t)
	path := writeMediaFile(t, "line-audit.mp4")
	job, err := d.Submit(context.Background(), path)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	post := func(action string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/jobs/1/"+action, nil)
		w := httptest.NewRecorder()
		d.api.handleJob(w, req)
		return w
	}

	if w := post("pause"); w.Code != http.StatusOK {
		t.Fatalf("pause status = %d: %s", w.Code, w.Body.String())
	}
	reloaded, err := d.store.GetByID(context.Background(), job.ID)
	if err != nil || reloaded == nil || !reloaded.Paused {
		t.Fatalf("pause flag not set: %+v, %v", reloaded, err)
	}

	if w := post("resume"); w.Code != http.StatusOK {
		t.Fatalf("resume status = %d", w.Code)
	}
	if w := post("cancel"); w.Code != http.StatusOK {
		t.Fatalf("cancel status = %d", w.Code)
	}
	if w := post("restart"); w.Code != http.StatusNotFound {
		t.Fatalf("unknown action status = %d", w.Code)
	}
}

func TestAPIServerControlConflictWhenNotEligible(t *testing.T) {
	d := newTestDaemon(t)
	path := writeMediaFile(t, "demo.mp4")
	if _, err := d.Submit(context.Background(), path); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Resuming a job that is not paused applies nothing.
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/1/resume", nil)
	w := httptest.NewRecorder()
	d.api.handleJob(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAPIServerListFiltersByStatus(t *testing.T) {
	d := newTestDaemon(t)
	path := writeMediaFile(t, "intro.mp4")
	if _, err := d.Submit(context.Background(), path); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?status=pending", nil)
	w := httptest.NewRecorder()
	d.api.handleJobs(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp api.JobListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Jobs) != 1 {
		t.Fatalf("jobs = %d", len(resp.Jobs))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/jobs?status=bogus", nil)
	w = httptest.NewRecorder()
	d.api.handleJobs(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown status filter = %d", w.Code)
	}
}

func TestAPIServerStatusAndHealth(t *testing.T) {
	d := newTestDaemon(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	d.api.handleStatus(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if len(status.Workflow.StageHealth) != 6 {
		t.Fatalf("stage health entries = %d", len(status.Workflow.StageHealth))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w = httptest.NewRecorder()
	d.api.handleHealth(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}
	var health api.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if !health.Ready || len(health.Stages) != 6 {
		t.Fatalf("health = %+v", health)
	}
}

func TestAuthMiddleware(t *testing.T) {
	handler := authMiddleware("sekrit", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	w = httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("valid token status = %d", w.Code)
	}

	passthrough := authMiddleware("", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w = httptest.NewRecorder()
	passthrough(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("empty token status = %d", w.Code)
	}
}

func jsonString(value string) string {
	encoded, _ := json.Marshal(value)
	return string(encoded)
}

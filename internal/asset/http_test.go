package asset

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/mesh-forge/internal/jobs"
	"github.com/yourusername/mesh-forge/internal/storage"
)

type stubScheduler struct {
	scheduled []string
	err       error
}

func (s *stubScheduler) Schedule(ctx context.Context, jobID string, params json.RawMessage) error {
	if s.err != nil {
		return s.err
	}
	s.scheduled = append(s.scheduled, jobID)
	return nil
}

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return raw
}

func newTestRouter(t *testing.T, store jobs.Store, scheduler JobScheduler) (*gin.Engine, *storage.Local) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	artifacts, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	router := gin.New()
	api := router.Group("/api")
	api.POST("/generate", GenerateHandler(store, scheduler))
	api.GET("/jobs/:id", StatusHandler(store))
	api.GET("/jobs/:id/download", DownloadHandler(store, artifacts))
	api.DELETE("/jobs/:id", DeleteHandler(store, artifacts))
	api.GET("/queue/status", QueueStatusHandler(store))
	return router, artifacts
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response body %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func completeJob(t *testing.T, store jobs.Store, jobID string, result *jobs.Result) {
	t.Helper()
	ctx := context.Background()
	if _, err := store.Create(ctx, jobID, GenerateParams{Prompt: "a chair"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	processing := jobs.StatusProcessing
	if _, err := store.Update(ctx, jobID, jobs.Update{Status: &processing}); err != nil {
		t.Fatalf("update to processing failed: %v", err)
	}
	completed := jobs.StatusCompleted
	if _, err := store.Update(ctx, jobID, jobs.Update{Status: &completed, Result: result}); err != nil {
		t.Fatalf("update to completed failed: %v", err)
	}
}

func TestGenerateHandlerQueuesJob(t *testing.T) {
	store := jobs.NewMemoryStore()
	scheduler := &stubScheduler{}
	router, _ := newTestRouter(t, store, scheduler)

	recorder := doRequest(router, http.MethodPost, "/api/generate",
		`{"prompt": "a wooden chair", "steps": 32, "guidanceScale": 7.5, "generateLods": true}`)

	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(t, recorder)
	jobID, _ := payload["jobId"].(string)
	if jobID == "" {
		t.Fatalf("jobId missing: %v", payload)
	}
	if payload["status"] != string(jobs.StatusQueued) {
		t.Fatalf("unexpected status: %v", payload["status"])
	}

	if len(scheduler.scheduled) != 1 || scheduler.scheduled[0] != jobID {
		t.Fatalf("job not handed to scheduler: %v", scheduler.scheduled)
	}
	job, err := store.Get(context.Background(), jobID)
	if err != nil || job == nil {
		t.Fatalf("job record missing: %v", err)
	}
}

func TestGenerateHandlerRejectsOutOfRangeSteps(t *testing.T) {
	store := jobs.NewMemoryStore()
	router, _ := newTestRouter(t, store, &stubScheduler{})

	recorder := doRequest(router, http.MethodPost, "/api/generate",
		`{"prompt": "a chair", "steps": 9999}`)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if payload := decodeBody(t, recorder); payload["code"] != "INVALID_INPUT" {
		t.Fatalf("unexpected error code: %v", payload["code"])
	}

	counts, _ := store.Counts(context.Background())
	for status, n := range counts {
		if n != 0 {
			t.Fatalf("job created despite invalid input: %s=%d", status, n)
		}
	}
}

func TestGenerateHandlerRequiresPrompt(t *testing.T) {
	router, _ := newTestRouter(t, jobs.NewMemoryStore(), &stubScheduler{})

	recorder := doRequest(router, http.MethodPost, "/api/generate", `{"steps": 64}`)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestGenerateHandlerRemovesJobOnScheduleFailure(t *testing.T) {
	store := jobs.NewMemoryStore()
	router, _ := newTestRouter(t, store, &stubScheduler{err: errors.New("queue unavailable")})

	recorder := doRequest(router, http.MethodPost, "/api/generate", `{"prompt": "a chair"}`)

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
	counts, _ := store.Counts(context.Background())
	if counts[jobs.StatusQueued] != 0 {
		t.Fatalf("orphan job left after schedule failure: %v", counts)
	}
}

func TestStatusHandlerUnknownJob(t *testing.T) {
	router, _ := newTestRouter(t, jobs.NewMemoryStore(), &stubScheduler{})

	recorder := doRequest(router, http.MethodGet, "/api/jobs/missing", "")

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
	if payload := decodeBody(t, recorder); payload["code"] != "JOB_NOT_FOUND" {
		t.Fatalf("unexpected error code: %v", payload["code"])
	}
}

func TestStatusHandlerCompletedJob(t *testing.T) {
	store := jobs.NewMemoryStore()
	router, _ := newTestRouter(t, store, &stubScheduler{})

	completeJob(t, store, "job-1", &jobs.Result{
		FilePath: "/tmp/job-1.glb",
		Metadata: &Metadata{Prompt: "a chair", Steps: 64},
	})

	recorder := doRequest(router, http.MethodGet, "/api/jobs/job-1", "")

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	payload := decodeBody(t, recorder)
	if payload["status"] != string(jobs.StatusCompleted) {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	if payload["downloadUrl"] != "/api/jobs/job-1/download" {
		t.Fatalf("unexpected downloadUrl: %v", payload["downloadUrl"])
	}
	if payload["metadata"] == nil {
		t.Fatal("metadata missing from completed status")
	}
	if _, ok := payload["startedAt"]; !ok {
		t.Fatal("startedAt missing")
	}
	if _, ok := payload["completedAt"]; !ok {
		t.Fatal("completedAt missing")
	}
}

func TestStatusHandlerFailedJobExposesError(t *testing.T) {
	store := jobs.NewMemoryStore()
	router, _ := newTestRouter(t, store, &stubScheduler{})

	ctx := context.Background()
	if _, err := store.Create(ctx, "job-1", GenerateParams{Prompt: "a chair"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	failed := jobs.StatusFailed
	errMsg := "CUDA out of memory"
	if _, err := store.Update(ctx, "job-1", jobs.Update{Status: &failed, Error: &errMsg}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	recorder := doRequest(router, http.MethodGet, "/api/jobs/job-1", "")

	payload := decodeBody(t, recorder)
	if payload["error"] != errMsg {
		t.Fatalf("error message not exposed verbatim: %v", payload["error"])
	}
}

func TestDownloadHandlerBeforeCompletion(t *testing.T) {
	store := jobs.NewMemoryStore()
	router, _ := newTestRouter(t, store, &stubScheduler{})

	if _, err := store.Create(context.Background(), "job-1", GenerateParams{Prompt: "a chair"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	recorder := doRequest(router, http.MethodGet, "/api/jobs/job-1/download", "")

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if payload := decodeBody(t, recorder); payload["code"] != "JOB_NOT_COMPLETED" {
		t.Fatalf("unexpected error code: %v", payload["code"])
	}
}

func TestDownloadHandlerServesArtifact(t *testing.T) {
	store := jobs.NewMemoryStore()
	router, artifacts := newTestRouter(t, store, &stubScheduler{})

	assetPath := artifacts.AssetPath("job-1")
	if err := os.WriteFile(assetPath, []byte("glTF-binary-bytes"), 0o640); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}
	completeJob(t, store, "job-1", &jobs.Result{FilePath: assetPath})

	recorder := doRequest(router, http.MethodGet, "/api/jobs/job-1/download", "")

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if got := recorder.Header().Get("Content-Type"); got != glbMIME {
		t.Fatalf("unexpected content type: %s", got)
	}
	if got := recorder.Header().Get("Content-Disposition"); !strings.Contains(got, "job-1.glb") {
		t.Fatalf("unexpected content disposition: %s", got)
	}
	if got := recorder.Header().Get("X-Job-Id"); got != "job-1" {
		t.Fatalf("unexpected X-Job-Id: %s", got)
	}
	if recorder.Body.String() != "glTF-binary-bytes" {
		t.Fatalf("artifact bytes mismatch: %q", recorder.Body.String())
	}
}

func TestDownloadHandlerLODVariant(t *testing.T) {
	store := jobs.NewMemoryStore()
	router, artifacts := newTestRouter(t, store, &stubScheduler{})

	assetPath := artifacts.AssetPath("job-1")
	lodPath := artifacts.LODPath("job-1", 1)
	if err := os.WriteFile(assetPath, []byte("full"), 0o640); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}
	if err := os.WriteFile(lodPath, []byte("half"), 0o640); err != nil {
		t.Fatalf("failed to write LOD artifact: %v", err)
	}
	completeJob(t, store, "job-1", &jobs.Result{
		FilePath: assetPath,
		LODPaths: map[string]string{"LOD0": assetPath, "LOD1": lodPath},
	})

	recorder := doRequest(router, http.MethodGet, "/api/jobs/job-1/download?lod=1", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if recorder.Body.String() != "half" {
		t.Fatalf("wrong LOD served: %q", recorder.Body.String())
	}

	recorder = doRequest(router, http.MethodGet, "/api/jobs/job-1/download?lod=2", "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing LOD, got %d", recorder.Code)
	}
	if payload := decodeBody(t, recorder); payload["code"] != "LOD_NOT_FOUND" {
		t.Fatalf("unexpected error code: %v", payload["code"])
	}
}

func TestDeleteHandlerRemovesJobAndArtifacts(t *testing.T) {
	store := jobs.NewMemoryStore()
	router, artifacts := newTestRouter(t, store, &stubScheduler{})

	assetPath := artifacts.AssetPath("job-1")
	if err := os.WriteFile(assetPath, []byte("payload"), 0o640); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}
	completeJob(t, store, "job-1", &jobs.Result{FilePath: assetPath})

	recorder := doRequest(router, http.MethodDelete, "/api/jobs/job-1", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	if _, err := os.Stat(assetPath); !os.IsNotExist(err) {
		t.Fatalf("artifact still present after delete: %v", err)
	}
	recorder = doRequest(router, http.MethodDelete, "/api/jobs/job-1", "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", recorder.Code)
	}
}

func TestQueueStatusHandlerCounts(t *testing.T) {
	store := jobs.NewMemoryStore()
	router, _ := newTestRouter(t, store, &stubScheduler{})

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := store.Create(ctx, id, GenerateParams{Prompt: "a chair"}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	processing := jobs.StatusProcessing
	if _, err := store.Update(ctx, "b", jobs.Update{Status: &processing}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	completeJob(t, store, "d", &jobs.Result{FilePath: "/tmp/d.glb"})

	recorder := doRequest(router, http.MethodGet, "/api/queue/status", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	payload := decodeBody(t, recorder)
	if payload["totalJobs"] != float64(4) {
		t.Fatalf("unexpected totalJobs: %v", payload["totalJobs"])
	}
	if payload["queued"] != float64(2) || payload["processing"] != float64(1) || payload["completed"] != float64(1) {
		t.Fatalf("unexpected counts: %v", payload)
	}
}

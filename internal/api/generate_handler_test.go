package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"pixelCV/internal/api/middleware"
	"pixelCV/internal/database"
	"pixelCV/internal/tasks"
)

type fakeRateCounter struct {
	counts map[string]int64
	ttls   map[string]time.Duration
}

func newFakeRateCounter() *fakeRateCounter {
	return &fakeRateCounter{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRateCounter) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeRateCounter) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

type startBulkResponse struct {
	JobID   string `json:"job_id"`
	Total   int    `json:"total"`
	DelayMS int64  `json:"delay_ms"`
}

func TestGenerateHandler_StartBulkEnqueuesJob(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "owner-1", officeTemplate("Kuwait Office", "kuwait", 1))
	env.seed(t, "owner-1", officeTemplate("Kuwait Annex", "kuwait", 1))
	env.seed(t, "owner-1", officeTemplate("Qatar Office", "qatar", 1))

	w := env.do(t, http.MethodPost, "/v1/generate", "token-1", recordRequest{
		Country: "Kuwait",
		Values:  map[string]any{"fullName": "amina", "work_cooking": true},
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d body=%s", w.Code, w.Body.String())
	}
	resp := decodeJSON[startBulkResponse](t, w)
	if resp.JobID == "" || resp.Total != 2 || resp.DelayMS != 500 {
		t.Fatalf("unexpected response %+v", resp)
	}

	if len(env.queue.tasks) != 1 || env.queue.tasks[0].Type() != tasks.TypeBulkGenerate {
		t.Fatalf("expected one bulk task, got %v", env.queue.types())
	}
	var payload tasks.BulkGeneratePayload
	if err := json.Unmarshal(env.queue.tasks[0].Payload(), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.JobID != resp.JobID || payload.OwnerID != "owner-1" || payload.Country != "kuwait" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if got := payload.Record.Values["fullName"].String(); got != "AMINA" {
		t.Fatalf("form values should be upper-cased on intake, got %q", got)
	}
	if !payload.Record.Values["work_cooking"].Truthy() {
		t.Fatalf("boolean values should pass through")
	}

	job, err := env.jobs.Get(context.Background(), "owner-1", resp.JobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != database.JobQueued || job.Total != 2 {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestGenerateHandler_NoTemplates(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "owner-1", officeTemplate("Qatar Office", "qatar", 1))

	w := env.do(t, http.MethodPost, "/v1/generate", "token-1", recordRequest{Country: "oman"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", w.Code)
	}
	if len(env.queue.tasks) != 0 {
		t.Fatalf("no task should be enqueued")
	}
	var count int64
	env.db.Model(&database.GenerationJob{}).Count(&count)
	if count != 0 {
		t.Fatalf("no job row should be created, got %d", count)
	}
}

func TestGenerateHandler_EnqueueFailureMarksJobFailed(t *testing.T) {
	env := newTestEnv(t)
	env.queue.err = errors.New("redis down")
	env.seed(t, "owner-1", officeTemplate("Kuwait Office", "kuwait", 1))

	w := env.do(t, http.MethodPost, "/v1/generate", "token-1", recordRequest{})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", w.Code)
	}

	var jobs []database.GenerationJob
	if err := env.db.Find(&jobs).Error; err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Status != database.JobFailed || jobs[0].Error == "" {
		t.Fatalf("expected one failed job, got %+v", jobs)
	}
}

func TestGenerateHandler_DailyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	templates := database.NewTemplateRepository(db)
	if _, err := templates.Save(context.Background(), "owner-1", officeTemplate("Kuwait Office", "kuwait", 1)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	counter := newFakeRateCounter()
	queue := &fakeQueue{}

	h := NewGenerateHandler(templates, database.NewJobRepository(db), &fakeStore{}, queue, counter, 1, 0)
	h.now = func() time.Time { return time.Date(2024, 3, 9, 22, 0, 0, 0, time.UTC) }

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.UserIDKey, "owner-1") })
	r.POST("/v1/generate", h.StartBulk)

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(`{"values":{}}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := post(); code != http.StatusAccepted {
		t.Fatalf("first run: expected 202 got %d", code)
	}
	if code := post(); code != http.StatusTooManyRequests {
		t.Fatalf("second run: expected 429 got %d", code)
	}
	if len(queue.tasks) != 1 {
		t.Fatalf("expected one enqueued task, got %d", len(queue.tasks))
	}
	key := "bulk_generate:owner-1:20240309"
	if counter.counts[key] != 2 || counter.ttls[key] != 24*time.Hour {
		t.Fatalf("unexpected counter state %+v %+v", counter.counts, counter.ttls)
	}
}

func TestGenerateHandler_GetJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	job := database.GenerationJob{ID: "job-1", OwnerID: "owner-1", Status: database.JobQueued}
	if err := env.jobs.Create(ctx, &job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := env.jobs.Start(ctx, "job-1", 2); err != nil {
		t.Fatalf("start job: %v", err)
	}
	if err := env.jobs.AppendArtifact(ctx, "job-1", database.JobArtifact{
		Name: "AMINA_Kuwait Office.pdf", TemplateID: "t1", ObjectKey: "generated/owner-1/job-1/001_AMINA_Kuwait_Office.pdf",
	}); err != nil {
		t.Fatalf("append artifact: %v", err)
	}

	w := env.do(t, http.MethodGet, "/v1/generate/job-1", "token-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	resp := decodeJSON[jobResponse](t, w)
	if resp.Status != database.JobRunning || resp.Total != 2 || resp.Delivered != 1 {
		t.Fatalf("unexpected job %+v", resp)
	}
	if len(resp.Artifacts) != 1 || !strings.Contains(resp.Artifacts[0].DownloadURL, "001_AMINA_Kuwait_Office.pdf") {
		t.Fatalf("unexpected artifacts %+v", resp.Artifacts)
	}

	if w := env.do(t, http.MethodGet, "/v1/generate/job-1", "token-2", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for other owner got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/v1/generate/missing", "token-1", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing job got %d", w.Code)
	}
}

func TestGenerateHandler_DeleteJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.jobs.Create(ctx, &database.GenerationJob{ID: "job-1", OwnerID: "owner-1"}); err != nil {
		t.Fatalf("create job: %v", err)
	}

	if w := env.do(t, http.MethodDelete, "/v1/generate/job-1", "token-1", nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for queued job got %d", w.Code)
	}
	if len(env.store.prefixes) != 0 {
		t.Fatalf("artifacts of an active job must be kept, deleted %v", env.store.prefixes)
	}

	if err := env.jobs.Finish(ctx, "job-1", ""); err != nil {
		t.Fatalf("finish job: %v", err)
	}
	if w := env.do(t, http.MethodDelete, "/v1/generate/job-1", "token-2", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for other owner got %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/v1/generate/job-1", "token-1", nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d body=%s", w.Code, w.Body.String())
	}
	if len(env.store.prefixes) != 1 || env.store.prefixes[0] != "generated/owner-1/job-1/" {
		t.Fatalf("unexpected prefix deletes %v", env.store.prefixes)
	}
	if w := env.do(t, http.MethodGet, "/v1/generate/job-1", "token-1", nil); w.Code != http.StatusNotFound {
		t.Fatalf("deleted job should be gone, got %d", w.Code)
	}
}

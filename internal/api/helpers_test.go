package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"pixelCV/internal/auth"
	"pixelCV/internal/compose"
	"pixelCV/internal/config"
	"pixelCV/internal/database"
	"pixelCV/internal/editor"
	"pixelCV/internal/generate"
	"pixelCV/internal/pdf"
	"pixelCV/internal/template"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubVerifier map[string]string

func (s stubVerifier) Verify(token string) (string, *auth.Claims, error) {
	if owner, ok := s[token]; ok {
		return owner, &auth.Claims{}, nil
	}
	return "", nil, auth.ErrInvalidToken
}

type fakeStore struct {
	deleted  []string
	prefixes []string
}

func (s *fakeStore) GenerateDownloadURL(_ context.Context, objectKey, filename string, _ time.Duration) (string, error) {
	return "https://example.invalid/download/" + objectKey + "?name=" + filename, nil
}

func (s *fakeStore) DeleteObject(_ context.Context, objectKey string) error {
	s.deleted = append(s.deleted, objectKey)
	return nil
}

func (s *fakeStore) DeletePrefix(_ context.Context, prefix string) error {
	s.prefixes = append(s.prefixes, prefix)
	return nil
}

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "task-" + task.Type()}, nil
}

func (q *fakeQueue) types() []string {
	out := make([]string, 0, len(q.tasks))
	for _, t := range q.tasks {
		out = append(out, t.Type())
	}
	return out
}

type fakeScanner struct{ err error }

func (s fakeScanner) Scan(r io.Reader) error {
	_, _ = io.Copy(io.Discard, r)
	return s.err
}

var errScannerInfected = fmt.Errorf("%w: FOUND Eicar-Test-Signature", errInfected)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newRenderService() *generate.Service {
	logger := discardLogger()
	renderer := compose.NewRenderer(pdf.NewMeasurer(), compose.DefaultOptions(), logger)
	writer := pdf.NewWriter(pdf.Options{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}, logger)
	return generate.NewService(renderer, writer, generate.WithDelay(500*time.Millisecond), generate.WithLogger(logger))
}

type testEnv struct {
	router    *gin.Engine
	db        *gorm.DB
	templates *database.TemplateRepository
	jobs      *database.JobRepository
	profiles  *database.ProfileRepository
	store     *fakeStore
	queue     *fakeQueue
	sessions  *SessionStore
}

type envOption func(*Dependencies)

func withScanner(s VirusScanner) envOption {
	return func(d *Dependencies) { d.Scanner = s }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newTestDB(t)
	env := &testEnv{
		db:        db,
		templates: database.NewTemplateRepository(db),
		jobs:      database.NewJobRepository(db),
		profiles:  database.NewProfileRepository(db),
		store:     &fakeStore{},
		queue:     &fakeQueue{},
		sessions:  NewSessionStore(time.Hour),
	}

	deps := Dependencies{
		Templates: env.templates,
		Jobs:      env.jobs,
		Profiles:  env.profiles,
		Store:     env.store,
		Queue:     env.queue,
		Renderer:  newRenderService(),
		Verifier:  stubVerifier{"token-1": "owner-1", "token-2": "owner-2"},
		Settings:  editor.DefaultSettings(),
		Sessions:  env.sessions,
		API:       config.APIConfig{MaxUploadBytes: 1 << 20},
		Logger:    discardLogger(),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	env.router = NewRouter(discardLogger())
	RegisterRoutes(env.router, deps)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) upload(t *testing.T, path, token, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := newMultipartUpload(t, filename, content)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func newMultipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func officeTemplate(name, country string, pages int) template.Template {
	tpl := template.Template{Name: name, Country: country, Pages: []string{}}
	for i := 0; i < pages; i++ {
		tpl.Pages = append(tpl.Pages, "data:image/png;base64,AAAA")
	}
	tpl.Fields = []template.Field{}
	if pages > 0 {
		tpl.Fields = append(tpl.Fields, template.Field{
			ID: name + "-name", Key: "fullName", Label: "Full Name",
			X: 10, Y: 10, Width: 50, Height: 6, Page: 1,
			Type: template.TypeText, Category: template.CategoryPersonal, Style: template.DefaultStyle(),
		})
	}
	return tpl
}

func (e *testEnv) seed(t *testing.T, ownerID string, tpl template.Template) template.Template {
	t.Helper()
	saved, err := e.templates.Save(context.Background(), ownerID, tpl)
	if err != nil {
		t.Fatalf("seed template: %v", err)
	}
	return saved
}

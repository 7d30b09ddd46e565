package api

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	"pixelCV/internal/tasks"
	"pixelCV/internal/template"
)

func TestTemplateRoutes_RequireAuth(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/v1/templates", "/v1/generate/x", "/v1/form-schema"} {
		if w := env.do(t, http.MethodGet, path, "", nil); w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", path, w.Code)
		}
	}
	if w := env.do(t, http.MethodGet, "/v1/templates", "forged", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token got %d", w.Code)
	}
}

func TestTemplateHandler_CreateGetListDelete(t *testing.T) {
	env := newTestEnv(t)

	body := officeTemplate("Kuwait Office", "Kuwait", 1)
	body.ID = "client-chosen"
	w := env.do(t, http.MethodPost, "/v1/templates", "token-1", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	created := decodeJSON[template.Template](t, w)
	if created.ID == "" || created.ID == "client-chosen" {
		t.Fatalf("expected server assigned id, got %q", created.ID)
	}
	if created.Country != "kuwait" {
		t.Fatalf("country should be normalised, got %q", created.Country)
	}
	if got := env.queue.types(); len(got) != 1 || got[0] != tasks.TypeTemplatePreview {
		t.Fatalf("expected one preview task, got %v", got)
	}

	w = env.do(t, http.MethodGet, "/v1/templates/"+created.ID, "token-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	got := decodeJSON[template.Template](t, w)
	if got.Name != "Kuwait Office" || len(got.Fields) != 1 || len(got.Pages) != 1 {
		t.Fatalf("unexpected template %+v", got)
	}

	w = env.do(t, http.MethodGet, "/v1/templates", "token-1", nil)
	list := decodeJSON[struct {
		Items []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"items"`
	}](t, w)
	if len(list.Items) != 1 || list.Items[0].ID != created.ID {
		t.Fatalf("unexpected list %+v", list)
	}

	if err := env.templates.SetPreview(context.Background(), created.ID, "https://example.invalid/p.jpg", "thumbnails/template/x/preview.jpg"); err != nil {
		t.Fatalf("set preview: %v", err)
	}
	if w := env.do(t, http.MethodDelete, "/v1/templates/"+created.ID, "token-1", nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", w.Code)
	}
	if len(env.store.deleted) != 1 || env.store.deleted[0] != "thumbnails/template/x/preview.jpg" {
		t.Fatalf("preview object not deleted: %v", env.store.deleted)
	}
	if w := env.do(t, http.MethodGet, "/v1/templates/"+created.ID, "token-1", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete got %d", w.Code)
	}
}

func TestTemplateHandler_UpdateOverwritesWholeTemplate(t *testing.T) {
	env := newTestEnv(t)
	saved := env.seed(t, "owner-1", officeTemplate("Qatar Office", "qatar", 2))

	replacement := officeTemplate("Qatar Office v2", "qatar", 1)
	replacement.Fields = []template.Field{}
	w := env.do(t, http.MethodPut, "/v1/templates/"+saved.ID, "token-1", replacement)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	got, err := env.templates.Get(context.Background(), "owner-1", saved.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Qatar Office v2" || len(got.Pages) != 1 || len(got.Fields) != 0 {
		t.Fatalf("template was merged instead of replaced: %+v", got)
	}
	if !got.CreatedAt.Equal(saved.CreatedAt) {
		t.Fatalf("createdAt changed: %v -> %v", saved.CreatedAt, got.CreatedAt)
	}
}

func TestTemplateHandler_OwnerIsolation(t *testing.T) {
	env := newTestEnv(t)
	saved := env.seed(t, "owner-1", officeTemplate("Oman Office", "oman", 1))

	if w := env.do(t, http.MethodGet, "/v1/templates/"+saved.ID, "token-2", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
	if w := env.do(t, http.MethodPut, "/v1/templates/"+saved.ID, "token-2", officeTemplate("Stolen", "oman", 1)); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/v1/templates/"+saved.ID, "token-2", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/v1/templates/"+saved.ID+"/render", "token-2", recordRequest{}); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
}

func TestTemplateHandler_CreateRejectsInvalidTemplate(t *testing.T) {
	env := newTestEnv(t)

	unnamed := officeTemplate("", "kuwait", 1)
	if w := env.do(t, http.MethodPost, "/v1/templates", "token-1", unnamed); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name got %d", w.Code)
	}

	stamped := officeTemplate("Stamp", "kuwait", 1)
	stamped.Fields[0].Type = "stamp"
	if w := env.do(t, http.MethodPost, "/v1/templates", "token-1", stamped); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field type got %d", w.Code)
	}
	if len(env.queue.tasks) != 0 {
		t.Fatalf("no preview should be enqueued for rejected templates")
	}
}

func TestTemplateHandler_RenderReturnsPDF(t *testing.T) {
	env := newTestEnv(t)
	saved := env.seed(t, "owner-1", officeTemplate("Kuwait Office", "kuwait", 1))

	w := env.do(t, http.MethodPost, "/v1/templates/"+saved.ID+"/render", "token-1", recordRequest{
		Values: map[string]any{"fullName": "amina yusuf"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "AMINA YUSUF_Kuwait Office.pdf") {
		t.Fatalf("content disposition = %q", cd)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("body is not a pdf")
	}

	profile, err := env.profiles.Ensure(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("ensure profile: %v", err)
	}
	if profile.CVGeneratedCount != 1 {
		t.Fatalf("generated count = %d, want 1", profile.CVGeneratedCount)
	}
}

func TestTemplateHandler_RenderWithoutPagesConflicts(t *testing.T) {
	env := newTestEnv(t)
	saved := env.seed(t, "owner-1", officeTemplate("Blank", "kuwait", 0))

	w := env.do(t, http.MethodPost, "/v1/templates/"+saved.ID+"/render", "token-1", recordRequest{})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d body=%s", w.Code, w.Body.String())
	}
	profile, err := env.profiles.Ensure(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("ensure profile: %v", err)
	}
	if profile.CVGeneratedCount != 0 {
		t.Fatalf("failed render must not be counted, got %d", profile.CVGeneratedCount)
	}
}

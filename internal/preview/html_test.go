package preview

import (
	"errors"
	"strings"
	"testing"

	"pixelCV/internal/template"
)

func previewTemplate() template.Template {
	style := template.DefaultStyle()
	return template.Template{
		Name:  "Office <A>",
		Pages: []string{"data:image/png;base64,iVBORw0KGgo=", "data:image/png;base64,AAAA"},
		Fields: []template.Field{
			{ID: "t", Key: "fullName", Label: "Full Name", X: 10, Y: 10, Width: 50, Height: 6, Page: 1, Type: template.TypeText, Style: style},
			{ID: "m", Key: "married", Label: "Married", X: 70, Y: 10, Width: 4, Height: 4, Page: 1, Type: template.TypeCheckmark, Style: style},
			{ID: "i", Key: "photoFace", Label: "Face Photo", X: 70, Y: 20, Width: 20, Height: 25, Page: 1, Type: template.TypeImage, Style: style},
			{ID: "p2", Key: "passportNumber", Label: "Passport Number", X: 10, Y: 10, Width: 30, Height: 6, Page: 2, Type: template.TypeText, Style: style},
		},
	}
}

func TestBuildHTML_FirstPage(t *testing.T) {
	html, err := BuildHTML(previewTemplate(), 1, 0)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if !strings.Contains(html, `src="data:image/png;base64,iVBORw0KGgo="`) {
		t.Fatalf("background not embedded:\n%s", html)
	}
	if !strings.Contains(html, "width: 600px; height: 849px") {
		t.Fatalf("unexpected canvas size:\n%s", html)
	}
	if !strings.Contains(html, "Office &lt;A&gt;") {
		t.Fatalf("template name not escaped:\n%s", html)
	}
	if strings.Contains(html, "Passport Number") {
		t.Fatalf("second page field leaked into page 1")
	}

	image := strings.Index(html, "Face Photo")
	text := strings.Index(html, "Full Name")
	if image < 0 || text < 0 || image > text {
		t.Fatalf("expected image placeholder before text placeholder (image=%d text=%d)", image, text)
	}
	if strings.Contains(html, ">Married<") {
		t.Fatalf("mark fields render as X, not label")
	}
}

func TestBuildHTML_SkipsNonEmbeddedBackground(t *testing.T) {
	tpl := previewTemplate()
	tpl.Pages[0] = "javascript:alert(1)"
	html, err := BuildHTML(tpl, 1, 300)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if strings.Contains(html, "javascript:") || strings.Contains(html, `class="bg"`) {
		t.Fatalf("unsafe background rendered:\n%s", html)
	}
}

func TestBuildHTML_PageOutOfRange(t *testing.T) {
	_, err := BuildHTML(template.Template{Name: "empty"}, 1, 0)
	if !errors.Is(err, template.ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange, got %v", err)
	}
}

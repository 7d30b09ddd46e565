package template

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTemplate(pages int) *Template {
	t := &Template{Name: "Kuwait Office", Country: "kuwait"}
	for i := 0; i < pages; i++ {
		t.AddPage("data:image/png;base64,AAAA")
	}
	return t
}

func TestAddFieldRequiresPages(t *testing.T) {
	tpl := newTemplate(0)
	_, err := tpl.AddField(FieldSpec{Key: "fullName", Type: TypeText}, 1)
	if !errors.Is(err, ErrNoPages) {
		t.Fatalf("AddField() error = %v, want ErrNoPages", err)
	}
	if len(tpl.Fields) != 0 {
		t.Fatalf("fields mutated: %+v", tpl.Fields)
	}
}

func TestAddFieldDefaults(t *testing.T) {
	tests := []struct {
		typ  FieldType
		w, h float64
	}{
		{TypeText, 40, 6},
		{TypeCheckmark, 4, 4},
		{TypeBoolean, 4, 4},
		{TypeImage, 30, 40},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			tpl := newTemplate(2)
			f, err := tpl.AddField(FieldSpec{Key: "k", Type: tt.typ}, 2)
			if err != nil {
				t.Fatalf("AddField() error = %v", err)
			}
			if f.ID == "" || f.Page != 2 || f.X != 20 || f.Y != 20 || f.Width != tt.w || f.Height != tt.h {
				t.Fatalf("unexpected field %+v", f)
			}
			if f.Category != CategoryPersonal || f.FontFamily != FontHelvetica || f.FontSize != 12 || f.Align != AlignLeft {
				t.Fatalf("unexpected style %+v", f)
			}
			if f.Label != "k" {
				t.Fatalf("label should fall back to key, got %q", f.Label)
			}
		})
	}
}

func TestAddFieldRejectsBadInput(t *testing.T) {
	tpl := newTemplate(1)
	if _, err := tpl.AddField(FieldSpec{Key: "x", Type: TypeText}, 2); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange, got %v", err)
	}
	if _, err := tpl.AddField(FieldSpec{Key: "x", Type: "radio"}, 1); !errors.Is(err, ErrInvalidField) {
		t.Fatalf("expected ErrInvalidField, got %v", err)
	}
	if _, err := tpl.AddField(FieldSpec{Key: " ", Type: TypeText}, 1); !errors.Is(err, ErrInvalidField) {
		t.Fatalf("expected ErrInvalidField, got %v", err)
	}
}

func TestMoveAndResizeClamp(t *testing.T) {
	tpl := newTemplate(1)
	f, _ := tpl.AddField(FieldSpec{Key: "fullName", Type: TypeText}, 1)

	moved, err := tpl.MoveField(f.ID, 90, -3)
	if err != nil {
		t.Fatalf("MoveField() error = %v", err)
	}
	if moved.X != 60 || moved.Y != 0 {
		t.Fatalf("MoveField() = (%v,%v), want (60,0)", moved.X, moved.Y)
	}

	resized, err := tpl.ResizeField(f.ID, 70, 120)
	if err != nil {
		t.Fatalf("ResizeField() error = %v", err)
	}
	if resized.Width != 70 || resized.Height != 100 || resized.X != 30 || resized.Y != 0 {
		t.Fatalf("ResizeField() = %+v", resized)
	}
	if !resized.Rect().InBounds(1e-9) {
		t.Fatalf("field out of bounds after resize: %+v", resized)
	}

	if _, err := tpl.MoveField("missing", 1, 1); !errors.Is(err, ErrFieldNotFound) {
		t.Fatalf("expected ErrFieldNotFound, got %v", err)
	}
}

func TestRemoveFieldIsNoOpForUnknownID(t *testing.T) {
	tpl := newTemplate(1)
	f, _ := tpl.AddField(FieldSpec{Key: "a", Type: TypeText}, 1)
	if tpl.RemoveField("nope") {
		t.Fatalf("RemoveField() reported removal of unknown id")
	}
	if !tpl.RemoveField(f.ID) || len(tpl.Fields) != 0 {
		t.Fatalf("RemoveField() did not remove %s", f.ID)
	}
}

func TestSetPageCountDropsOrphanedFields(t *testing.T) {
	tpl := newTemplate(3)
	keep, _ := tpl.AddField(FieldSpec{Key: "a", Type: TypeText}, 1)
	_, _ = tpl.AddField(FieldSpec{Key: "b", Type: TypeText}, 3)

	tpl.SetPageCount(2)
	if tpl.PageCount() != 2 || len(tpl.Fields) != 1 || tpl.Fields[0].ID != keep.ID {
		t.Fatalf("after shrink pages=%d fields=%+v", tpl.PageCount(), tpl.Fields)
	}

	tpl.SetPageCount(4)
	if tpl.PageCount() != 4 || tpl.Pages[3] != "" {
		t.Fatalf("after grow pages=%v", tpl.Pages)
	}
}

func TestUpdateFieldReclampsGeometry(t *testing.T) {
	tpl := newTemplate(1)
	f, _ := tpl.AddField(FieldSpec{Key: "a", Type: TypeText}, 1)
	_, _ = tpl.MoveField(f.ID, 55, 90)

	width := 60.0
	bold := true
	family := FontCourier
	got, err := tpl.UpdateField(f.ID, FieldPatch{Width: &width, Bold: &bold, FontFamily: &family})
	if err != nil {
		t.Fatalf("UpdateField() error = %v", err)
	}
	if got.X != 40 || got.Width != 60 || !got.Bold || got.FontFamily != FontCourier {
		t.Fatalf("UpdateField() = %+v", got)
	}

	bad := FontFamily("Comic Sans")
	if _, err := tpl.UpdateField(f.ID, FieldPatch{FontFamily: &bad}); !errors.Is(err, ErrInvalidField) {
		t.Fatalf("expected ErrInvalidField, got %v", err)
	}
}

func TestFieldJSONShape(t *testing.T) {
	f := Field{
		ID: "f1", Key: "fullName", Label: "Full Name",
		X: 10, Y: 10, Width: 50, Height: 6, Page: 1,
		Type: TypeText, Category: CategoryPersonal,
		Style: Style{FontSize: 12, FontFamily: FontHelvetica, Color: Color{R: 0x12, G: 0xab, B: 0xff}, Bold: true, Align: AlignRight},
	}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["color"] != "#12abff" || raw["fontFamily"] != "Helvetica" || raw["align"] != "right" {
		t.Fatalf("unexpected json %s", data)
	}

	var back Field
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal field: %v", err)
	}
	if diff := cmp.Diff(f, back); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParseColor(t *testing.T) {
	if c, ok := ParseColor("#FF8000"); !ok || c != (Color{R: 255, G: 128}) {
		t.Fatalf("ParseColor() = %+v %v", c, ok)
	}
	if c, ok := ParseColor("red"); ok || c != Black {
		t.Fatalf("ParseColor(red) = %+v %v", c, ok)
	}
}

func TestStyleFontStyle(t *testing.T) {
	cases := map[[2]bool]FontStyle{
		{false, false}: StyleNormal,
		{true, false}:  StyleBold,
		{false, true}:  StyleItalic,
		{true, true}:   StyleBoldItalic,
	}
	for in, want := range cases {
		s := Style{Bold: in[0], Italic: in[1]}
		if got := s.FontStyle(); got != want {
			t.Errorf("FontStyle(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	tpl := newTemplate(1)
	_, _ = tpl.AddField(FieldSpec{Key: "a", Type: TypeText}, 1)
	if err := tpl.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	tpl.Fields = append(tpl.Fields, tpl.Fields[0])
	if err := tpl.Validate(); !errors.Is(err, ErrInvalidTemplate) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
	if err := (&Template{}).Validate(); !errors.Is(err, ErrInvalidTemplate) {
		t.Fatalf("expected missing name error, got %v", err)
	}
}

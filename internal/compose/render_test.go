package compose

import (
	"math"
	"reflect"
	"testing"

	"pixelCV/internal/record"
	"pixelCV/internal/template"
)

// fixedMeasurer 让每个字符宽 perChar*size，便于手算。
type fixedMeasurer struct{ perChar float64 }

func (m fixedMeasurer) TextWidth(text string, _ template.FontFamily, _ template.FontStyle, size float64) float64 {
	return float64(len([]rune(text))) * size * m.perChar
}

const pngURI = "data:image/png;base64,iVBORw0KGgo="

func newTestRenderer() *Renderer {
	return NewRenderer(fixedMeasurer{perChar: 0.2}, DefaultOptions(), nil)
}

func field(id, key string, typ template.FieldType, page int, x, y, w, h float64) template.Field {
	return template.Field{
		ID: id, Key: key, Label: key, Type: typ, Page: page,
		X: x, Y: y, Width: w, Height: h,
		Category: template.CategoryPersonal,
		Style:    template.DefaultStyle(),
	}
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRenderFullNameAtAbsoluteOffset(t *testing.T) {
	tpl := template.Template{
		Name:   "Kuwait",
		Pages:  []string{""},
		Fields: []template.Field{field("f1", "fullName", template.TypeText, 1, 10, 10, 50, 6)},
	}
	rec := record.New()
	rec.Set("fullName", record.Text("JOHN SMITH"))

	doc := newTestRenderer().Render(tpl, rec)
	if doc.Name != "JOHN SMITH_Kuwait.pdf" {
		t.Fatalf("name = %q", doc.Name)
	}
	if len(doc.Pages) != 1 || len(doc.Pages[0].Ops) != 1 {
		t.Fatalf("unexpected document shape: %+v", doc)
	}
	op := doc.Pages[0].Ops[0]
	if op.Kind != OpText || op.Text != "JOHN SMITH" {
		t.Fatalf("op = %+v", op)
	}
	if !almostEqual(op.X, 21) || !almostEqual(op.Y, 29.7) {
		t.Fatalf("anchor = (%v, %v), want (21, 29.7)", op.X, op.Y)
	}
	if !almostEqual(op.Box.Width, 105) || !almostEqual(op.Box.Height, 17.82) {
		t.Fatalf("box = %+v, want 105x17.82", op.Box)
	}
	if op.Size != 12 || op.Font != template.FontHelvetica || op.Align != template.AlignLeft {
		t.Fatalf("typography = %+v", op)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	tpl := template.Template{
		Name:  "Saudi",
		Pages: []string{pngURI, ""},
		Fields: []template.Field{
			field("a", "fullName", template.TypeText, 1, 10, 10, 40, 5),
			field("b", "photoFace", template.TypeImage, 1, 70, 5, 20, 25),
			field("c", "dob", template.TypeText, 2, 10, 20, 30, 5),
			field("d", "isMarried", template.TypeCheckmark, 2, 50, 50, 2, 2),
		},
	}
	rec := record.New()
	rec.Set("fullName", record.Text("AMINA"))
	rec.Set("dob", record.Text("1990-07-01"))
	rec.Set("isMarried", record.Bool(true))
	rec.Photos.Face = pngURI

	r := newTestRenderer()
	first := r.Render(tpl, rec)
	second := r.Render(tpl, rec)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("render not deterministic:\n%+v\n%+v", first, second)
	}
	if first.Pages[0].Background != pngURI || first.Pages[1].Background != "" {
		t.Fatalf("backgrounds not carried through: %+v", first.Pages)
	}
}

func TestRenderImagesBeforeText(t *testing.T) {
	tpl := template.Template{
		Name:  "Jordan",
		Pages: []string{""},
		Fields: []template.Field{
			field("t1", "fullName", template.TypeText, 1, 10, 10, 40, 5),
			field("i1", "photoFace", template.TypeImage, 1, 70, 5, 20, 25),
			field("t2", "passportNumber", template.TypeText, 1, 10, 20, 40, 5),
			field("i2", "photoFull", template.TypeImage, 1, 70, 40, 20, 40),
		},
	}
	rec := record.New()
	rec.Set("fullName", record.Text("AMINA"))
	rec.Set("passportNumber", record.Text("EP1234567"))
	rec.Photos.Face = pngURI
	rec.Photos.Full = pngURI

	ops := newTestRenderer().Render(tpl, rec).Pages[0].Ops
	var got []string
	for _, op := range ops {
		got = append(got, op.FieldID)
	}
	want := []string{"i1", "i2", "t1", "t2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestRenderSkipsFieldsOutsidePages(t *testing.T) {
	tpl := template.Template{
		Name:   "Oman",
		Pages:  []string{""},
		Fields: []template.Field{field("x", "fullName", template.TypeText, 2, 10, 10, 40, 5)},
	}
	rec := record.New()
	rec.Set("fullName", record.Text("AMINA"))

	doc := newTestRenderer().Render(tpl, rec)
	if len(doc.Pages) != 1 || len(doc.Pages[0].Ops) != 0 {
		t.Fatalf("field on a missing page was rendered: %+v", doc.Pages)
	}

	empty := newTestRenderer().Render(template.Template{Name: "Empty"}, rec)
	if len(empty.Pages) != 0 {
		t.Fatalf("template without pages produced %d pages", len(empty.Pages))
	}
}

func TestRenderCheckmarks(t *testing.T) {
	cases := []struct {
		name  string
		value record.Value
		want  bool
	}{
		{"bool true", record.Bool(true), true},
		{"string true", record.Text("true"), true},
		{"YES", record.Text("YES"), true},
		{"X", record.Text("X"), true},
		{"bool false", record.Bool(false), false},
		{"lowercase yes", record.Text("yes"), false},
		{"NO", record.Text("NO"), false},
		{"number", record.Number(1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := field("m", "isSingle", template.TypeCheckmark, 1, 50, 50, 4, 4)
			f.FontSize = 0
			tpl := template.Template{Name: "Qatar", Pages: []string{""}, Fields: []template.Field{f}}
			rec := record.New()
			rec.Set("isSingle", tc.value)

			ops := newTestRenderer().Render(tpl, rec).Pages[0].Ops
			if got := len(ops) == 1; got != tc.want {
				t.Fatalf("drawn = %v, want %v", got, tc.want)
			}
			if !tc.want {
				return
			}
			op := ops[0]
			if op.Kind != OpMark || op.Text != "X" || op.Style != template.StyleBold || op.Size != 12 {
				t.Fatalf("mark op = %+v", op)
			}
			cx, cy := op.Box.Center()
			if op.X != cx || op.Y != cy {
				t.Fatalf("mark not centered: (%v,%v) vs (%v,%v)", op.X, op.Y, cx, cy)
			}
			if op.Color != template.Black {
				t.Fatalf("mark color = %v", op.Color)
			}
		})
	}
}

func TestRenderPhotoKeysAndImageValues(t *testing.T) {
	tpl := template.Template{
		Name:  "UAE",
		Pages: []string{""},
		Fields: []template.Field{
			field("face", "photoFace", template.TypeImage, 1, 0, 0, 20, 20),
			field("full", "photoFull", template.TypeImage, 1, 20, 0, 20, 20),
			field("pass", "photoPassport", template.TypeImage, 1, 40, 0, 20, 20),
			field("url", "signature", template.TypeImage, 1, 60, 0, 20, 20),
		},
	}
	rec := record.New()
	rec.Photos.Face = pngURI
	rec.Photos.Passport = "data:image/jpeg;base64,/9j/4AAQ"
	rec.Set("signature", record.Text("https://example.com/sig.png"))

	ops := newTestRenderer().Render(tpl, rec).Pages[0].Ops
	if len(ops) != 2 {
		t.Fatalf("ops = %+v", ops)
	}
	if ops[0].FieldID != "face" || ops[0].Image != pngURI {
		t.Fatalf("face op = %+v", ops[0])
	}
	if ops[1].FieldID != "pass" || ops[1].Kind != OpImage {
		t.Fatalf("passport op = %+v", ops[1])
	}
}

func TestRenderZeroIsPresentFalsyIsSkipped(t *testing.T) {
	tpl := template.Template{
		Name:  "Bahrain",
		Pages: []string{""},
		Fields: []template.Field{
			field("a", "children", template.TypeText, 1, 0, 0, 20, 5),
			field("b", "religion", template.TypeText, 1, 0, 10, 20, 5),
			field("c", "height", template.TypeText, 1, 0, 20, 20, 5),
		},
	}
	rec := record.New()
	rec.Set("children", record.Number(0))
	rec.Set("religion", record.Text(""))

	ops := newTestRenderer().Render(tpl, rec).Pages[0].Ops
	if len(ops) != 1 || ops[0].Text != "0" {
		t.Fatalf("ops = %+v", ops)
	}
}

func TestRenderTextStyleAndAlignment(t *testing.T) {
	f := field("a", "religion", template.TypeText, 1, 10, 10, 40, 5)
	f.Bold, f.Italic = true, true
	f.FontFamily = template.FontCourier
	f.Color, _ = template.ParseColor("#ff0000")
	f.Align = template.AlignRight
	f.FontSize = 10

	tpl := template.Template{Name: "Kuwait", Pages: []string{""}, Fields: []template.Field{f}}
	rec := record.New()
	rec.Set("religion", record.Text("ISLAM"))

	op := newTestRenderer().Render(tpl, rec).Pages[0].Ops[0]
	if op.Style != template.StyleBoldItalic || op.Font != template.FontCourier {
		t.Fatalf("font = %v %v", op.Font, op.Style)
	}
	if op.Color.String() != "#ff0000" {
		t.Fatalf("color = %v", op.Color)
	}
	// 宽度 84mm，文本宽 5*10*0.2 = 10mm，右对齐起点 21+84-10
	if !almostEqual(op.X, 95) {
		t.Fatalf("right aligned x = %v, want 95", op.X)
	}

	f.Align = template.AlignCenter
	tpl.Fields[0] = f
	op = newTestRenderer().Render(tpl, rec).Pages[0].Ops[0]
	if !almostEqual(op.X, 58) {
		t.Fatalf("centered x = %v, want 58", op.X)
	}
}

func TestRenderFormatsDateFields(t *testing.T) {
	tpl := template.Template{
		Name:  "Saudi",
		Pages: []string{""},
		Fields: []template.Field{
			field("a", "expiryDate", template.TypeText, 1, 0, 0, 40, 5),
			field("b", "dob", template.TypeText, 1, 0, 10, 40, 5),
			field("c", "issueDate", template.TypeText, 1, 0, 20, 40, 5),
		},
	}
	rec := record.New()
	rec.Set("expiryDate", record.Text("2024-03-05"))
	rec.Set("dob", record.Text("1990-12-31"))
	rec.Set("issueDate", record.Text("N/A"))

	ops := newTestRenderer().Render(tpl, rec).Pages[0].Ops
	got := []string{ops[0].Text, ops[1].Text, ops[2].Text}
	want := []string{"05 MAR 2024", "31 DEC 1990", "N/A"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("dates = %v, want %v", got, want)
	}
}

func TestFileNameFallsBackToExport(t *testing.T) {
	tpl := template.Template{Name: "Kuwait"}
	if got := FileName(record.New(), tpl); got != "Export_Kuwait.pdf" {
		t.Fatalf("FileName = %q", got)
	}
}

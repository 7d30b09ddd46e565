// Package preview 生成模板缩略图：第一页背景加字段占位框，经无头 Chrome 截图。
package preview

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"math"

	"pixelCV/internal/imgdata"
	"pixelCV/internal/layout"
	"pixelCV/internal/template"
)

// DefaultWidthPx 是缩略图画布宽度，高度按 A4 比例推算。
const DefaultWidthPx = 600

type fieldBox struct {
	Label  string
	Mark   bool
	Image  bool
	Left   float64
	Top    float64
	Width  float64
	Height float64
	Color  string
	Align  string
}

type pageView struct {
	Name       string
	Width      int
	Height     int
	Background htmltemplate.URL
	Fields     []fieldBox
}

var pageTemplate = htmltemplate.Must(htmltemplate.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Name}}</title>
<style>
  html, body { margin: 0; padding: 0; background: white; }
  #page { position: relative; width: {{.Width}}px; height: {{.Height}}px; overflow: hidden; background: white; }
  #page > img.bg { position: absolute; inset: 0; width: 100%; height: 100%; object-fit: fill; }
  .field { position: absolute; box-sizing: border-box; border: 1px dashed #2563eb; background: rgba(37, 99, 235, 0.08);
           font-family: Helvetica, Arial, sans-serif; font-size: 10px; line-height: 1; overflow: hidden; white-space: nowrap; }
  .field.mark { display: flex; align-items: center; justify-content: center; font-weight: bold; }
  .field.image { border-color: #16a34a; background: rgba(22, 163, 74, 0.10); }
</style>
</head>
<body>
<div id="page">
{{- if .Background}}
  <img class="bg" src="{{.Background}}">
{{- end}}
{{- range .Fields}}
  <div class="field{{if .Mark}} mark{{end}}{{if .Image}} image{{end}}" style="left: {{.Left}}%; top: {{.Top}}%; width: {{.Width}}%; height: {{.Height}}%; color: {{.Color}}; text-align: {{.Align}};">{{if .Mark}}X{{else}}{{.Label}}{{end}}</div>
{{- end}}
</div>
<div id="preview-ready"></div>
</body>
</html>
`))

// BuildHTML 把模板的第 page 页（1 起始）渲染成自包含的 HTML。
// 图片字段在文本之前输出，与最终文档的绘制顺序一致。
func BuildHTML(tpl template.Template, page, widthPx int) (string, error) {
	if !tpl.HasPage(page) {
		return "", fmt.Errorf("%w: %d of %d", template.ErrPageOutOfRange, page, tpl.PageCount())
	}
	if widthPx <= 0 {
		widthPx = DefaultWidthPx
	}
	view := pageView{
		Name:   tpl.Name,
		Width:  widthPx,
		Height: int(math.Round(float64(widthPx) * layout.A4HeightMM / layout.A4WidthMM)),
	}
	if bg := tpl.Pages[page-1]; imgdata.IsEmbedded(bg) {
		view.Background = htmltemplate.URL(bg)
	}

	fields := tpl.FieldsOnPage(page)
	for _, f := range fields {
		if f.Type == template.TypeImage {
			view.Fields = append(view.Fields, box(f))
		}
	}
	for _, f := range fields {
		if f.Type != template.TypeImage {
			view.Fields = append(view.Fields, box(f))
		}
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("execute preview template: %w", err)
	}
	return buf.String(), nil
}

// Size returns the pixel size BuildHTML lays out for widthPx.
func Size(widthPx int) (int, int) {
	if widthPx <= 0 {
		widthPx = DefaultWidthPx
	}
	return widthPx, int(math.Round(float64(widthPx) * layout.A4HeightMM / layout.A4WidthMM))
}

func box(f template.Field) fieldBox {
	r := f.Rect().Clamped()
	return fieldBox{
		Label:  f.Label,
		Mark:   f.Type.IsMark(),
		Image:  f.Type == template.TypeImage,
		Left:   r.X,
		Top:    r.Y,
		Width:  r.Width,
		Height: r.Height,
		Color:  f.Color.String(),
		Align:  string(f.Align),
	}
}

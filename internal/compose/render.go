package compose

import (
	"log/slog"

	"pixelCV/internal/imgdata"
	"pixelCV/internal/layout"
	"pixelCV/internal/record"
	"pixelCV/internal/template"
)

// Options 是渲染器的显式配置。
type Options struct {
	Page            layout.Size
	MinFontSize     float64
	FitStep         float64
	DefaultTextSize float64
	DefaultMarkSize float64
	// FallbackWidth 用于宽度为 0 的文本字段的自适应上限。
	FallbackWidth float64
}

// DefaultOptions 对应 A4 毫米坐标。
func DefaultOptions() Options {
	return Options{
		Page:            layout.A4,
		MinFontSize:     4,
		FitStep:         0.5,
		DefaultTextSize: 10,
		DefaultMarkSize: 12,
		FallbackWidth:   50,
	}
}

// Renderer 是无状态的：相同输入总是得到相同的 Document。
type Renderer struct {
	measure Measurer
	opts    Options
	logger  *slog.Logger
}

// NewRenderer 构造渲染器；logger 为 nil 时使用 slog.Default()。
func NewRenderer(m Measurer, opts Options, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{measure: m, opts: opts, logger: logger}
}

// Render 逐页遍历模板，按记录解析字段值并生成绘制操作。
func (r *Renderer) Render(tpl template.Template, rec record.Record) Document {
	doc := Document{
		Name:  FileName(rec, tpl),
		Size:  r.opts.Page,
		Pages: make([]Page, 0, len(tpl.Pages)),
	}
	for i, bg := range tpl.Pages {
		number := i + 1
		page := Page{Number: number, Background: bg, Ops: make([]Op, 0)}
		for _, f := range ImagesFirst(tpl.FieldsOnPage(number)) {
			op, ok := r.renderField(f, rec)
			if !ok {
				continue
			}
			page.Ops = append(page.Ops, op)
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc
}

// ImagesFirst 做稳定划分：所有图片字段排在其他字段之前，
// 两组内部保持原有顺序，这样后绘制的文本/标记不会被图片遮住。
func ImagesFirst(fields []template.Field) []template.Field {
	out := make([]template.Field, 0, len(fields))
	for _, f := range fields {
		if f.Type == template.TypeImage {
			out = append(out, f)
		}
	}
	for _, f := range fields {
		if f.Type != template.TypeImage {
			out = append(out, f)
		}
	}
	return out
}

func (r *Renderer) renderField(f template.Field, rec record.Record) (Op, bool) {
	val, ok := rec.Lookup(f.Key)
	if !ok {
		return Op{}, false
	}

	box := f.Rect().ToAbsolute(r.opts.Page)
	op := Op{FieldID: f.ID, Key: f.Key, Box: box}

	switch {
	case f.Type == template.TypeImage:
		s, isText := val.TextValue()
		if !isText || !imgdata.IsEmbedded(s) {
			r.logger.Debug("image field value is not an embedded image, skipping",
				slog.String("field_id", f.ID),
				slog.String("key", f.Key),
			)
			return Op{}, false
		}
		op.Kind = OpImage
		op.Image = s
		return op, true

	case f.Type.IsMark():
		if !val.Truthy() {
			return Op{}, false
		}
		size := f.FontSize
		if size <= 0 {
			size = r.opts.DefaultMarkSize
		}
		op.Kind = OpMark
		op.Text = "X"
		op.Font = template.FontHelvetica
		op.Style = template.StyleBold
		op.Size = size
		op.Color = template.Black
		op.Align = template.AlignCenter
		op.X, op.Y = box.Center()
		return op, true

	case f.Type == template.TypeText:
		return r.textOp(f, val, op), true

	default:
		r.logger.Warn("unknown field type, skipping",
			slog.String("field_id", f.ID),
			slog.String("type", string(f.Type)),
		)
		return Op{}, false
	}
}

func (r *Renderer) textOp(f template.Field, val record.Value, op Op) Op {
	text := val.String()
	if IsDateKey(f.Key) {
		text = FormatDate(text)
	}

	family := f.FontFamily
	if !family.Valid() {
		family = template.FontHelvetica
	}
	style := f.Style.FontStyle()
	align := f.Align
	if !align.Valid() {
		align = template.AlignLeft
	}

	maxWidth := op.Box.Width
	if maxWidth <= 0 {
		maxWidth = r.opts.FallbackWidth
	}
	start := f.FontSize
	if start <= 0 {
		start = r.opts.DefaultTextSize
	}
	size := FitFontSize(r.measure, text, family, style, maxWidth, start, r.opts.FitStep, r.opts.MinFontSize)

	x := op.Box.X
	switch align {
	case template.AlignCenter:
		x += (op.Box.Width - r.measure.TextWidth(text, family, style, size)) / 2
	case template.AlignRight:
		x += op.Box.Width - r.measure.TextWidth(text, family, style, size)
	}

	op.Kind = OpText
	op.Text = text
	op.Font = family
	op.Style = style
	op.Size = size
	op.Color = f.Color
	op.Align = align
	op.X = x
	op.Y = op.Box.Y
	return op
}

package template

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"pixelCV/internal/layout"
)

var (
	// ErrNoPages 表示尚未导入任何页面背景，字段无处锚定。
	ErrNoPages         = errors.New("template: import a page background before adding fields")
	ErrPageOutOfRange  = errors.New("template: page out of range")
	ErrFieldNotFound   = errors.New("template: field not found")
	ErrInvalidField    = errors.New("template: invalid field")
	ErrInvalidTemplate = errors.New("template: invalid template")
)

// 新字段的初始原点（百分比）。
const (
	defaultFieldX = 20
	defaultFieldY = 20
)

// FieldSpec 描述要新增的字段，通常来自字段目录。
type FieldSpec struct {
	Key      string    `json:"key" yaml:"key"`
	Label    string    `json:"label" yaml:"label"`
	Type     FieldType `json:"type" yaml:"type"`
	Category Category  `json:"category,omitempty" yaml:"category,omitempty"`
}

// DefaultSize 返回按类型区分的初始尺寸：标记为小方块，图片为大矩形，文本为宽扁矩形。
func DefaultSize(t FieldType) (width, height float64) {
	switch {
	case t.IsMark():
		return 4, 4
	case t == TypeImage:
		return 30, 40
	default:
		return 40, 6
	}
}

// AddField 在 page（1 起始）上新增字段并填充类型默认值。
func (t *Template) AddField(spec FieldSpec, page int) (Field, error) {
	if len(t.Pages) == 0 {
		return Field{}, ErrNoPages
	}
	if !t.HasPage(page) {
		return Field{}, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, page, len(t.Pages))
	}
	if strings.TrimSpace(spec.Key) == "" {
		return Field{}, fmt.Errorf("%w: key is required", ErrInvalidField)
	}
	if !spec.Type.Valid() {
		return Field{}, fmt.Errorf("%w: unknown type %q", ErrInvalidField, spec.Type)
	}

	category := spec.Category
	if !category.Valid() {
		category = CategoryPersonal
	}
	label := spec.Label
	if label == "" {
		label = spec.Key
	}

	w, h := DefaultSize(spec.Type)
	field := Field{
		ID:       uuid.NewString(),
		Key:      spec.Key,
		Label:    label,
		Page:     page,
		Type:     spec.Type,
		Category: category,
		Style:    DefaultStyle(),
	}
	field.SetRect(layout.Rect{X: defaultFieldX, Y: defaultFieldY, Width: w, Height: h})

	t.Fields = append(t.Fields, field)
	return field, nil
}

// MoveField 移动字段原点，结果总是被限制在页面内。
func (t *Template) MoveField(id string, x, y float64) (Field, error) {
	i := t.indexOf(id)
	if i < 0 {
		return Field{}, ErrFieldNotFound
	}
	f := &t.Fields[i]
	f.SetRect(layout.Rect{X: x, Y: y, Width: f.Width, Height: f.Height})
	return *f, nil
}

// ResizeField 修改字段宽高，必要时把原点拉回页面内。
func (t *Template) ResizeField(id string, width, height float64) (Field, error) {
	i := t.indexOf(id)
	if i < 0 {
		return Field{}, ErrFieldNotFound
	}
	f := &t.Fields[i]
	f.SetRect(layout.Rect{X: f.X, Y: f.Y, Width: width, Height: height})
	return *f, nil
}

// RemoveField 按 id 删除字段；id 不存在时什么也不做。
func (t *Template) RemoveField(id string) bool {
	i := t.indexOf(id)
	if i < 0 {
		return false
	}
	t.Fields = append(t.Fields[:i], t.Fields[i+1:]...)
	return true
}

// AddPage 追加一页背景，返回新页的页码（1 起始）。
func (t *Template) AddPage(background string) int {
	t.Pages = append(t.Pages, background)
	return len(t.Pages)
}

// SetPageCount 调整页数。新增的页没有背景；
// 截断时一并删除落在被移除页上的字段，保持 field.page 总是指向已存在的页。
func (t *Template) SetPageCount(n int) {
	if n < 0 {
		n = 0
	}
	switch {
	case n > len(t.Pages):
		for len(t.Pages) < n {
			t.Pages = append(t.Pages, "")
		}
	case n < len(t.Pages):
		t.Pages = t.Pages[:n]
		kept := t.Fields[:0]
		for _, f := range t.Fields {
			if f.Page >= 1 && f.Page <= n {
				kept = append(kept, f)
			}
		}
		t.Fields = kept
	}
}

// FieldPatch 是属性面板的一次直接替换，nil 表示不修改。
type FieldPatch struct {
	Label      *string     `json:"label,omitempty"`
	X          *float64    `json:"x,omitempty"`
	Y          *float64    `json:"y,omitempty"`
	Width      *float64    `json:"width,omitempty"`
	Height     *float64    `json:"height,omitempty"`
	Type       *FieldType  `json:"type,omitempty"`
	Category   *Category   `json:"category,omitempty"`
	FontSize   *float64    `json:"fontSize,omitempty"`
	FontFamily *FontFamily `json:"fontFamily,omitempty"`
	Color      *Color      `json:"color,omitempty"`
	Bold       *bool       `json:"bold,omitempty"`
	Italic     *bool       `json:"italic,omitempty"`
	Align      *Align      `json:"align,omitempty"`
}

func (p FieldPatch) validate() error {
	switch {
	case p.Type != nil && !p.Type.Valid():
		return fmt.Errorf("%w: unknown type %q", ErrInvalidField, *p.Type)
	case p.Category != nil && !p.Category.Valid():
		return fmt.Errorf("%w: unknown category %q", ErrInvalidField, *p.Category)
	case p.FontFamily != nil && !p.FontFamily.Valid():
		return fmt.Errorf("%w: unknown font family %q", ErrInvalidField, *p.FontFamily)
	case p.Align != nil && !p.Align.Valid():
		return fmt.Errorf("%w: unknown alignment %q", ErrInvalidField, *p.Align)
	case p.FontSize != nil && *p.FontSize <= 0:
		return fmt.Errorf("%w: font size must be positive", ErrInvalidField)
	}
	return nil
}

// UpdateField 应用属性修改；影响几何量时重新施加边界约束。
func (t *Template) UpdateField(id string, patch FieldPatch) (Field, error) {
	i := t.indexOf(id)
	if i < 0 {
		return Field{}, ErrFieldNotFound
	}
	if err := patch.validate(); err != nil {
		return Field{}, err
	}

	f := &t.Fields[i]
	r := f.Rect()
	if patch.X != nil {
		r.X = *patch.X
	}
	if patch.Y != nil {
		r.Y = *patch.Y
	}
	if patch.Width != nil {
		r.Width = *patch.Width
	}
	if patch.Height != nil {
		r.Height = *patch.Height
	}
	f.SetRect(r)

	if patch.Label != nil {
		f.Label = *patch.Label
	}
	if patch.Type != nil {
		f.Type = *patch.Type
	}
	if patch.Category != nil {
		f.Category = *patch.Category
	}
	if patch.FontSize != nil {
		f.FontSize = *patch.FontSize
	}
	if patch.FontFamily != nil {
		f.FontFamily = *patch.FontFamily
	}
	if patch.Color != nil {
		f.Color = *patch.Color
	}
	if patch.Bold != nil {
		f.Bold = *patch.Bold
	}
	if patch.Italic != nil {
		f.Italic = *patch.Italic
	}
	if patch.Align != nil {
		f.Align = *patch.Align
	}
	return *f, nil
}

// Normalize 对外部输入（例如 API 提交的整份模板）重新施加几何约束，
// 并为缺失的样式补默认值。
func (t *Template) Normalize() {
	def := DefaultStyle()
	for i := range t.Fields {
		f := &t.Fields[i]
		f.SetRect(f.Rect())
		if !f.Category.Valid() {
			f.Category = CategoryPersonal
		}
		if !f.FontFamily.Valid() {
			f.FontFamily = def.FontFamily
		}
		if !f.Align.Valid() {
			f.Align = def.Align
		}
	}
}

// Validate 检查整份模板在保存前的结构约束。
func (t *Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTemplate)
	}
	seen := make(map[string]struct{}, len(t.Fields))
	for _, f := range t.Fields {
		if f.ID == "" {
			return fmt.Errorf("%w: field %q has no id", ErrInvalidTemplate, f.Key)
		}
		if _, dup := seen[f.ID]; dup {
			return fmt.Errorf("%w: duplicate field id %q", ErrInvalidTemplate, f.ID)
		}
		seen[f.ID] = struct{}{}
		if !f.Type.Valid() {
			return fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidTemplate, f.Key, f.Type)
		}
		if strings.TrimSpace(f.Key) == "" {
			return fmt.Errorf("%w: field %q has no key", ErrInvalidTemplate, f.ID)
		}
	}
	return nil
}

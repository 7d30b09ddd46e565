// Package template 定义模板与字段实体及其不变量。
package template

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pixelCV/internal/layout"
)

// FieldType 是字段的判别标签，渲染器按它做穷举分派。
type FieldType string

const (
	TypeText      FieldType = "text"
	TypeCheckmark FieldType = "checkmark"
	TypeBoolean   FieldType = "boolean"
	TypeImage     FieldType = "image"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case TypeText, TypeCheckmark, TypeBoolean, TypeImage:
		return true
	}
	return false
}

// IsMark 表示该类型渲染为勾选标记。
func (t FieldType) IsMark() bool {
	return t == TypeCheckmark || t == TypeBoolean
}

// Category 仅用于表单分组展示，不影响渲染。
type Category string

const (
	CategoryPersonal   Category = "personal"
	CategoryPassport   Category = "passport"
	CategoryExperience Category = "experience"
	CategorySkills     Category = "skills"
	CategoryContact    Category = "contact"
	CategoryCustom     Category = "custom"
)

// Categories lists the categories in presentation order.
var Categories = []Category{
	CategoryPersonal,
	CategoryPassport,
	CategoryExperience,
	CategorySkills,
	CategoryContact,
	CategoryCustom,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Valid reports whether a is left, center or right.
func (a Align) Valid() bool {
	return a == AlignLeft || a == AlignCenter || a == AlignRight
}

// FontFamily 限定为 PDF 标准字体中的三种。
type FontFamily string

const (
	FontHelvetica FontFamily = "Helvetica"
	FontTimes     FontFamily = "Times"
	FontCourier   FontFamily = "Courier"
)

// Valid reports whether f is one of the enumerated font families.
func (f FontFamily) Valid() bool {
	return f == FontHelvetica || f == FontTimes || f == FontCourier
}

// Color 是 RGB 颜色，JSON 中以 "#rrggbb" 表示。
type Color struct {
	R, G, B uint8
}

var Black = Color{}

// ParseColor 解析 "#rrggbb"（# 可省略）；无法解析时返回黑色与 false。
func ParseColor(s string) (Color, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Black, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Black, false
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, true
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Color) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("color: %w", err)
	}
	// 非法值按黑色处理，与渲染端的回退保持一致
	*c, _ = ParseColor(s)
	return nil
}

// FontStyle 是粗体/斜体的四种组合。
type FontStyle string

const (
	StyleNormal     FontStyle = ""
	StyleBold       FontStyle = "B"
	StyleItalic     FontStyle = "I"
	StyleBoldItalic FontStyle = "BI"
)

// Style 是字段的排版属性。
type Style struct {
	FontSize   float64    `json:"fontSize"`
	FontFamily FontFamily `json:"fontFamily"`
	Color      Color      `json:"color"`
	Bold       bool       `json:"bold"`
	Italic     bool       `json:"italic"`
	Align      Align      `json:"align"`
}

// FontStyle 把 bold/italic 合成为四种字体变体之一。
func (s Style) FontStyle() FontStyle {
	switch {
	case s.Bold && s.Italic:
		return StyleBoldItalic
	case s.Bold:
		return StyleBold
	case s.Italic:
		return StyleItalic
	default:
		return StyleNormal
	}
}

// DefaultStyle 是新字段的排版默认值。
func DefaultStyle() Style {
	return Style{
		FontSize:   12,
		FontFamily: FontHelvetica,
		Color:      Black,
		Align:      AlignLeft,
	}
}

// Field 是绑定到数据记录某个 key 的定位占位符。
// 几何量全部是页面宽/高的百分比，字段之间没有父子关系。
type Field struct {
	ID       string    `json:"id"`
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Width    float64   `json:"width"`
	Height   float64   `json:"height"`
	Page     int       `json:"page"`
	Type     FieldType `json:"type"`
	Category Category  `json:"category"`
	Style
}

// Rect returns the field geometry.
func (f Field) Rect() layout.Rect {
	return layout.Rect{X: f.X, Y: f.Y, Width: f.Width, Height: f.Height}
}

// SetRect 写回几何量并施加页面边界约束。
func (f *Field) SetRect(r layout.Rect) {
	r = r.Clamped()
	f.X, f.Y, f.Width, f.Height = r.X, r.Y, r.Width, r.Height
}

// Template 是一组页面背景与定位字段。
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Country   string    `json:"country"`
	Pages     []string  `json:"pages"`
	Fields    []Field   `json:"fields"`
	CreatedAt time.Time `json:"createdAt"`
}

// PageCount returns the number of pages.
func (t *Template) PageCount() int {
	return len(t.Pages)
}

// HasPage 判断 1 起始的页码是否存在。
func (t *Template) HasPage(page int) bool {
	return page >= 1 && page <= len(t.Pages)
}

// FieldsOnPage 返回 page（1 起始）上的字段，保持存储顺序。
func (t *Template) FieldsOnPage(page int) []Field {
	out := make([]Field, 0)
	for _, f := range t.Fields {
		if f.Page == page {
			out = append(out, f)
		}
	}
	return out
}

// Field 按 id 查找字段。
func (t *Template) Field(id string) (Field, bool) {
	if i := t.indexOf(id); i >= 0 {
		return t.Fields[i], true
	}
	return Field{}, false
}

func (t *Template) indexOf(id string) int {
	for i := range t.Fields {
		if t.Fields[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone 返回深拷贝，编辑器保存与持久化都基于快照。
func (t Template) Clone() Template {
	out := t
	out.Pages = append(make([]string, 0, len(t.Pages)), t.Pages...)
	out.Fields = append(make([]Field, 0, len(t.Fields)), t.Fields...)
	return out
}

// Package compose turns a template plus a data record into typed page drawing
// operations. Rendering is a pure function of its inputs; an output writer
// (see internal/pdf) consumes the resulting Document.
package compose

import (
	"strings"

	"pixelCV/internal/layout"
	"pixelCV/internal/record"
	"pixelCV/internal/template"
)

// OpKind 是绘制操作的判别标签。
type OpKind string

const (
	OpImage OpKind = "image"
	OpText  OpKind = "text"
	OpMark  OpKind = "mark"
)

// Op 是单个字段产生的绘制操作。所有坐标都已换算到输出介质单位。
//
// 对 OpText，(X, Y) 是文本起点与基线；对 OpMark，(X, Y) 是矩形中心。
type Op struct {
	Kind    OpKind     `json:"kind"`
	FieldID string     `json:"fieldId"`
	Key     string     `json:"key"`
	Box     layout.Box `json:"box"`

	Image string `json:"image,omitempty"`

	Text  string              `json:"text,omitempty"`
	Font  template.FontFamily `json:"font,omitempty"`
	Style template.FontStyle  `json:"style,omitempty"`
	Size  float64             `json:"size,omitempty"`
	Color template.Color      `json:"color"`
	Align template.Align      `json:"align,omitempty"`
	X     float64             `json:"x"`
	Y     float64             `json:"y"`
}

// Page 是一页输出：可选的满版背景加有序的绘制操作。
type Page struct {
	Number     int    `json:"number"`
	Background string `json:"background,omitempty"`
	Ops        []Op   `json:"ops"`
}

// Document 是一次渲染的完整结果。
type Document struct {
	Name  string      `json:"name"`
	Size  layout.Size `json:"size"`
	Pages []Page      `json:"pages"`
}

// FileName 由记录显示名与模板名确定性地生成产物文件名。
func FileName(rec record.Record, tpl template.Template) string {
	name := rec.DisplayName() + "_" + tpl.Name + ".pdf"
	return strings.NewReplacer("/", "-", "\\", "-", "\x00", "").Replace(name)
}

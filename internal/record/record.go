// Package record models the runtime data used to fill a template.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"pixelCV/internal/imgdata"
	"pixelCV/internal/template"
)

// Kind 是值的变体标签。
type Kind int

const (
	KindText Kind = iota + 1
	KindBool
	KindNumber
)

// Value 是数据记录中的单个值：文本、布尔或数字。
// 内嵌图片也以文本形式（data URI）出现。
type Value struct {
	kind Kind
	text string
	b    bool
	num  float64
}

func Text(s string) Value    { return Value{kind: KindText, text: s} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

func (v Value) Kind() Kind { return v.kind }

// Present 判断值是否“有内容”：空串、false、NaN 视为缺失，数字 0 视为存在。
func (v Value) Present() bool {
	switch v.kind {
	case KindText:
		return v.text != ""
	case KindBool:
		return v.b
	case KindNumber:
		return !math.IsNaN(v.num)
	default:
		return false
	}
}

// Truthy 实现勾选字段的真值表：true、"true"、"YES"、"X"（区分大小写）。
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindText:
		switch v.text {
		case "true", "YES", "X":
			return true
		}
	}
	return false
}

// String 返回用于绘制的文本。
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

// TextValue 返回原始字符串，ok 表示值确实是文本。
func (v Value) TextValue() (string, bool) {
	return v.text, v.kind == KindText
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return json.Marshal(v.num)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case string:
		*v = Text(x)
	case bool:
		*v = Bool(x)
	case float64:
		*v = Number(x)
	default:
		return fmt.Errorf("record: unsupported value %s", data)
	}
	return nil
}

// Photos 是保留的照片子映射，恰好三个槽位。
type Photos struct {
	Face     string `json:"face,omitempty"`
	Full     string `json:"full,omitempty"`
	Passport string `json:"passport,omitempty"`
}

// Count 返回已上传照片的数量。
func (p Photos) Count() int {
	n := 0
	for _, s := range []string{p.Face, p.Full, p.Passport} {
		if s != "" {
			n++
		}
	}
	return n
}

// photoSlot 把保留 key 映射到照片槽位；集合封闭，不做推断。
func (p Photos) photoSlot(key string) (string, bool) {
	switch key {
	case "photoFace":
		return p.Face, true
	case "photoFull":
		return p.Full, true
	case "photoPassport":
		return p.Passport, true
	}
	return "", false
}

const photosKey = "photos"

// Record 是一份用于填充模板的数据：扁平的 key→value 加照片子映射。
type Record struct {
	Values map[string]Value
	Photos Photos
}

// New returns an empty record.
func New() Record {
	return Record{Values: make(map[string]Value)}
}

// Set stores a value under key.
func (r *Record) Set(key string, v Value) {
	if r.Values == nil {
		r.Values = make(map[string]Value)
	}
	r.Values[key] = v
}

// Lookup 解析字段 key 的值：三个照片 key 走照片子映射，其余走扁平映射。
// 返回的 ok 为 false 或值不 Present 时，调用方应跳过该字段。
func (r Record) Lookup(key string) (Value, bool) {
	if photo, reserved := r.Photos.photoSlot(key); reserved {
		if photo == "" {
			return Value{}, false
		}
		return Text(photo), true
	}
	v, ok := r.Values[key]
	if !ok || !v.Present() {
		return Value{}, false
	}
	return v, true
}

// DisplayName 用于产物命名：fullName，缺省 "Export"。
func (r Record) DisplayName() string {
	if v, ok := r.Values["fullName"]; ok && v.Present() {
		if s := strings.TrimSpace(v.String()); s != "" {
			return s
		}
	}
	return "Export"
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Values)+1)
	for k, v := range r.Values {
		out[k] = v
	}
	out[photosKey] = r.Photos
	return json.Marshal(out)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	out := New()
	for k, msg := range raw {
		if k == photosKey {
			if bytes.Equal(bytes.TrimSpace(msg), []byte("null")) {
				continue
			}
			if err := json.Unmarshal(msg, &out.Photos); err != nil {
				return fmt.Errorf("record: photos: %w", err)
			}
			continue
		}
		var v Value
		if err := json.Unmarshal(msg, &v); err != nil {
			return fmt.Errorf("record: key %q: %w", k, err)
		}
		if v.Kind() == 0 {
			continue
		}
		out.Values[k] = v
	}
	*r = out
	return nil
}

// FromForm 模拟表单录入：字符串统一转大写，布尔原样保留。
// 内嵌图片原样保留；照片槽位不经过这里。
func FromForm(values map[string]any, photos Photos) (Record, error) {
	r := New()
	r.Photos = photos
	for k, raw := range values {
		switch x := raw.(type) {
		case nil:
		case string:
			if imgdata.IsEmbedded(x) {
				r.Set(k, Text(x))
				continue
			}
			r.Set(k, Text(strings.ToUpper(x)))
		case bool:
			r.Set(k, Bool(x))
		case float64:
			r.Set(k, Number(x))
		case int:
			r.Set(k, Number(float64(x)))
		default:
			return Record{}, fmt.Errorf("record: unsupported form value for %q: %T", k, raw)
		}
	}
	return r, nil
}

// Completion 计算表单完成度（百分比，四舍五入）：
// 已填的必填字段数加已上传照片数，除以 len(required)+3。
func Completion(r Record, required []template.Field) int {
	if len(required) == 0 {
		return 0
	}
	filled := 0
	for _, f := range required {
		if v, ok := r.Values[f.Key]; ok && v.Present() {
			filled++
		}
	}
	filled += r.Photos.Count()
	return int(math.Round(float64(filled) / float64(len(required)+3) * 100))
}

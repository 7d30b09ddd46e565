// Package mrz 从护照照片中提取机读区资料，结果直接用于填充数据记录。
package mrz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pixelCV/internal/record"
)

// 识别不到时的默认值。
const (
	DefaultNationality  = "ETHIOPIAN"
	DefaultPlaceOfIssue = "ADDIS ABABA"
)

var (
	ErrDisabled    = errors.New("mrz: passport scanning is not configured")
	ErrNotAnImage  = errors.New("mrz: upload is not a supported image")
	ErrEmptyResult = errors.New("mrz: empty extraction result")
)

// Data 是护照上提取出的字段，key 与表单字段 key 一致。
type Data struct {
	FullName       string `json:"fullName"`
	PassportNumber string `json:"passportNumber"`
	DOB            string `json:"dob"`
	ExpiryDate     string `json:"expiryDate"`
	Nationality    string `json:"nationality"`
	Sex            string `json:"sex"`
	POB            string `json:"pob"`
	PlaceOfIssue   string `json:"placeOfIssue"`
}

// Extractor 把护照图片转换为 Data。
type Extractor interface {
	Extract(ctx context.Context, image []byte) (Data, error)
}

// Parse 解析模型返回的 JSON 文本并做归一化。
// 模型偶尔会用 ``` 代码块包裹输出，这里一并剥掉。
func Parse(text string) (Data, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	if strings.TrimSpace(text) == "" {
		return Data{}, ErrEmptyResult
	}
	var d Data
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return Data{}, fmt.Errorf("decode extraction result: %w", err)
	}
	return d.Normalize(), nil
}

// Normalize 转大写并补默认值；日期保持 YYYY-MM-DD 原样。
func (d Data) Normalize() Data {
	up := func(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
	out := Data{
		FullName:       up(d.FullName),
		PassportNumber: up(d.PassportNumber),
		DOB:            strings.TrimSpace(d.DOB),
		ExpiryDate:     strings.TrimSpace(d.ExpiryDate),
		Nationality:    up(d.Nationality),
		Sex:            up(d.Sex),
		POB:            up(d.POB),
		PlaceOfIssue:   up(d.PlaceOfIssue),
	}
	if out.Nationality == "" {
		out.Nationality = DefaultNationality
	}
	if out.POB == "" {
		out.POB = DefaultPlaceOfIssue
	}
	if out.PlaceOfIssue == "" {
		out.PlaceOfIssue = DefaultPlaceOfIssue
	}
	return out
}

// Apply 把非空字段写入记录，已有值会被覆盖。
func (d Data) Apply(rec *record.Record) {
	for key, v := range d.values() {
		if v != "" {
			rec.Set(key, record.Text(v))
		}
	}
}

func (d Data) values() map[string]string {
	return map[string]string{
		"fullName":       d.FullName,
		"passportNumber": d.PassportNumber,
		"dob":            d.DOB,
		"expiryDate":     d.ExpiryDate,
		"nationality":    d.Nationality,
		"sex":            d.Sex,
		"pob":            d.POB,
		"placeOfIssue":   d.PlaceOfIssue,
	}
}

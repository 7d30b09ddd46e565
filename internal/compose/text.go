package compose

import (
	"strings"
	"time"

	"pixelCV/internal/template"
)

// BirthDateKey 即使不含 "date" 子串也按日期格式化。
const BirthDateKey = "dob"

var months = [12]string{"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}

var dateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// IsDateKey 判断字段 key 是否需要日期格式化。
func IsDateKey(key string) bool {
	return strings.Contains(strings.ToLower(key), "date") || key == BirthDateKey
}

// FormatDate 把类 ISO 日期改写为 "DD MON YYYY"；无法解析时原样返回。
func FormatDate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return raw
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.Format("02") + " " + months[t.Month()-1] + " " + t.Format("2006")
		}
	}
	return raw
}

// Measurer 测量文本在输出介质上的宽度（与页面尺寸同单位）。
type Measurer interface {
	TextWidth(text string, family template.FontFamily, style template.FontStyle, size float64) float64
}

// FitFontSize 返回不超过 start 的最大字号，使文本宽度不超过 maxWidth：
// 每次减 step，最低到 floor。只按宽度收缩，不换行，也不处理高度溢出。
func FitFontSize(m Measurer, text string, family template.FontFamily, style template.FontStyle, maxWidth, start, step, floor float64) float64 {
	size := start
	if step <= 0 {
		return size
	}
	for size > floor && m.TextWidth(text, family, style, size) > maxWidth {
		size -= step
		if size < floor {
			size = floor
		}
	}
	return size
}

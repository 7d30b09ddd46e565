package template

// PhotoKeys 是从照片子映射取值的三个保留 key，集合是封闭的。
var PhotoKeys = map[string]struct{}{
	"photoFace":     {},
	"photoFull":     {},
	"photoPassport": {},
}

// IsPhotoKey reports whether key is one of the reserved photo keys.
func IsPhotoKey(key string) bool {
	_, ok := PhotoKeys[key]
	return ok
}

// UnionFields 汇总多份模板的字段，按 key 去重（先出现者优先），
// 排除照片字段。用于生成数据录入表单。
func UnionFields(templates []Template) []Field {
	seen := make(map[string]struct{})
	out := make([]Field, 0)
	for _, t := range templates {
		for _, f := range t.Fields {
			if IsPhotoKey(f.Key) {
				continue
			}
			if _, ok := seen[f.Key]; ok {
				continue
			}
			seen[f.Key] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}

// GroupByCategory 按展示顺序分组，空分组省略。
func GroupByCategory(fields []Field) map[Category][]Field {
	out := make(map[Category][]Field)
	for _, f := range fields {
		c := f.Category
		if !c.Valid() {
			c = CategoryCustom
		}
		out[c] = append(out[c], f)
	}
	return out
}

// FilterByCountry 返回 country 匹配的模板；country 为空时原样返回。
func FilterByCountry(templates []Template, country string) []Template {
	if country == "" {
		return templates
	}
	out := make([]Template, 0, len(templates))
	for _, t := range templates {
		if t.Country == country {
			out = append(out, t)
		}
	}
	return out
}

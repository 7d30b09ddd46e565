package editor

import "pixelCV/internal/template"

// PaletteEntry 是目录项加上“当前页已使用”标记。
type PaletteEntry struct {
	template.FieldSpec
	Used bool `json:"used"`
}

// PaletteGroup is one titled group of the palette.
type PaletteGroup struct {
	Title    string            `json:"title"`
	Category template.Category `json:"category"`
	Entries  []PaletteEntry    `json:"entries"`
}

// Palette 按搜索词过滤目录，并标记当前页上已存在同 key 字段的条目。
func (e *Editor) Palette(term string) []PaletteGroup {
	e.mu.Lock()
	used := make(map[string]struct{})
	for _, f := range e.tpl.FieldsOnPage(e.page) {
		used[f.Key] = struct{}{}
	}
	e.mu.Unlock()

	groups := e.settings.Catalog.Search(term)
	out := make([]PaletteGroup, 0, len(groups))
	for _, g := range groups {
		pg := PaletteGroup{Title: g.Title, Category: g.Category, Entries: make([]PaletteEntry, 0, len(g.Fields))}
		for _, f := range g.Fields {
			_, isUsed := used[f.Key]
			pg.Entries = append(pg.Entries, PaletteEntry{FieldSpec: f, Used: isUsed})
		}
		out = append(out, pg)
	}
	return out
}

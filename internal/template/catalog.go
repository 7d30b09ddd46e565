package template

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// CatalogGroup 是字段目录中的一个分组。
type CatalogGroup struct {
	Title    string      `json:"title" yaml:"title"`
	Category Category    `json:"category" yaml:"category"`
	Fields   []FieldSpec `json:"fields" yaml:"fields"`
}

// Catalog 是编辑器左侧可选字段的预定义目录。
type Catalog struct {
	Groups []CatalogGroup `json:"groups" yaml:"groups"`
}

// ParseCatalog 解析 YAML 目录；组内字段未声明 category 时继承组的 category。
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	seen := make(map[string]struct{})
	for gi := range c.Groups {
		g := &c.Groups[gi]
		for fi := range g.Fields {
			f := &g.Fields[fi]
			if f.Key == "" || !f.Type.Valid() {
				return nil, fmt.Errorf("parse catalog: group %q has invalid entry %+v", g.Title, *f)
			}
			if _, dup := seen[f.Key]; dup {
				return nil, fmt.Errorf("parse catalog: duplicate key %q", f.Key)
			}
			seen[f.Key] = struct{}{}
			if f.Category == "" {
				f.Category = g.Category
			}
		}
	}
	return &c, nil
}

var (
	defaultCatalogOnce sync.Once
	defaultCatalog     *Catalog
)

// DefaultCatalog 返回内置目录，解析失败直接 panic（内置文件由测试覆盖）。
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		c, err := ParseCatalog(defaultCatalogYAML)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Lookup 按 key 查找目录项。
func (c *Catalog) Lookup(key string) (FieldSpec, bool) {
	for _, g := range c.Groups {
		for _, f := range g.Fields {
			if f.Key == key {
				return f, true
			}
		}
	}
	return FieldSpec{}, false
}

// Search 按 label 或 key 做大小写不敏感的子串过滤，去掉空分组。
func (c *Catalog) Search(term string) []CatalogGroup {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]CatalogGroup, 0, len(c.Groups))
	for _, g := range c.Groups {
		matched := make([]FieldSpec, 0, len(g.Fields))
		for _, f := range g.Fields {
			if term == "" ||
				strings.Contains(strings.ToLower(f.Label), term) ||
				strings.Contains(strings.ToLower(f.Key), term) {
				matched = append(matched, f)
			}
		}
		if len(matched) == 0 {
			continue
		}
		out = append(out, CatalogGroup{Title: g.Title, Category: g.Category, Fields: matched})
	}
	return out
}

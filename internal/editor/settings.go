package editor

import (
	"slices"
	"strings"

	"pixelCV/internal/template"
)

// Countries 是系统已知的布局族（目的国）。
var Countries = []string{"kuwait", "saudi", "jordan", "oman", "uae", "qatar", "bahrain"}

// Settings 是编辑器的显式配置，取代会话级的全局状态。
type Settings struct {
	EnabledCountries []string
	DefaultCountry   string
	DefaultName      string
	Catalog          *template.Catalog
}

// DefaultSettings 启用全部国家，目录使用内置目录。
func DefaultSettings() Settings {
	return Settings{
		EnabledCountries: slices.Clone(Countries),
		DefaultCountry:   "kuwait",
		DefaultName:      "New Office Template",
		Catalog:          template.DefaultCatalog(),
	}
}

// CountryEnabled 判断国家是否可用于新模板（大小写不敏感）。
func (s Settings) CountryEnabled(country string) bool {
	country = strings.ToLower(strings.TrimSpace(country))
	for _, c := range s.EnabledCountries {
		if strings.ToLower(c) == country {
			return true
		}
	}
	return false
}

func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if len(s.EnabledCountries) == 0 {
		s.EnabledCountries = def.EnabledCountries
	}
	if s.DefaultCountry == "" {
		s.DefaultCountry = s.EnabledCountries[0]
	}
	if s.DefaultName == "" {
		s.DefaultName = def.DefaultName
	}
	if s.Catalog == nil {
		s.Catalog = def.Catalog
	}
	return s
}

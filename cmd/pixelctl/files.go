package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pixelCV/internal/compose"
	"pixelCV/internal/generate"
	"pixelCV/internal/pdf"
	"pixelCV/internal/record"
	"pixelCV/internal/template"
)

// recordFile 与 API 的表单提交格式一致，读取时走同样的录入规则。
type recordFile struct {
	Country string         `json:"country"`
	Values  map[string]any `json:"values"`
	Photos  record.Photos  `json:"photos"`
}

func loadRecord(path string) (record.Record, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return record.Record{}, "", fmt.Errorf("read record: %w", err)
	}
	var rf recordFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return record.Record{}, "", fmt.Errorf("decode record %s: %w", path, err)
	}
	rec, err := record.FromForm(rf.Values, rf.Photos)
	if err != nil {
		return record.Record{}, "", err
	}
	return rec, strings.ToLower(strings.TrimSpace(rf.Country)), nil
}

func loadTemplate(path string) (template.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return template.Template{}, fmt.Errorf("read template: %w", err)
	}
	var tpl template.Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		return template.Template{}, fmt.Errorf("decode template %s: %w", path, err)
	}
	tpl.Normalize()
	tpl.Country = strings.ToLower(strings.TrimSpace(tpl.Country))
	if err := tpl.Validate(); err != nil {
		return template.Template{}, fmt.Errorf("template %s: %w", path, err)
	}
	if tpl.ID == "" {
		tpl.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return tpl, nil
}

// loadTemplates 按文件名顺序读取目录下的 *.json 模板，country 非空时只保留匹配的模板。
func loadTemplates(dir, country string) ([]template.Template, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	sort.Strings(paths)

	out := make([]template.Template, 0, len(paths))
	for _, p := range paths {
		tpl, err := loadTemplate(p)
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return template.FilterByCountry(out, strings.ToLower(strings.TrimSpace(country))), nil
}

func newService(logger *slog.Logger, delay time.Duration, compress bool) *generate.Service {
	renderer := compose.NewRenderer(pdf.NewMeasurer(), compose.DefaultOptions(), logger)
	writer := pdf.NewWriter(pdf.Options{Compress: compress, Creator: "pixelctl"}, logger)
	return generate.NewService(renderer, writer, generate.WithDelay(delay), generate.WithLogger(logger))
}

func writeArtifact(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

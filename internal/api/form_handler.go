package api

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"pixelCV/internal/api/middleware"
	"pixelCV/internal/editor"
	"pixelCV/internal/record"
	"pixelCV/internal/template"
)

// recordRequest 是表单提交的数据记录；字符串在录入时统一转大写。
type recordRequest struct {
	Country string         `json:"country"`
	Values  map[string]any `json:"values"`
	Photos  record.Photos  `json:"photos"`
}

func (r recordRequest) toRecord() (record.Record, error) {
	return record.FromForm(r.Values, r.Photos)
}

type formSection struct {
	Category template.Category `json:"category"`
	Fields   []template.Field  `json:"fields"`
}

// FormHandler 提供字段目录、编辑器设置与数据录入表单。
type FormHandler struct {
	templates TemplateStore
	settings  editor.Settings
}

func NewFormHandler(templates TemplateStore, settings editor.Settings) *FormHandler {
	return &FormHandler{templates: templates, settings: settings}
}

// GET /v1/catalog?search=
func (h *FormHandler) GetCatalog(c *gin.Context) {
	groups := h.settings.Catalog.Search(c.Query("search"))
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// GET /v1/editor/settings
func (h *FormHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"enabledCountries": h.settings.EnabledCountries,
		"defaultCountry":   h.settings.DefaultCountry,
		"defaultName":      h.settings.DefaultName,
	})
}

// GET /v1/form-schema?country=
// 汇总 owner 模板的字段（按 key 去重，排除照片），按分类顺序分组。
func (h *FormHandler) GetFormSchema(c *gin.Context) {
	ownerID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	fields, ok := h.requiredFields(c, ownerID, c.Query("country"))
	if !ok {
		return
	}

	grouped := template.GroupByCategory(fields)
	sections := make([]formSection, 0, len(grouped))
	for _, cat := range template.Categories {
		if fs, ok := grouped[cat]; ok {
			sections = append(sections, formSection{Category: cat, Fields: fs})
		}
	}

	photos := make([]string, 0, len(template.PhotoKeys))
	for key := range template.PhotoKeys {
		photos = append(photos, key)
	}
	slices.Sort(photos)

	c.JSON(http.StatusOK, gin.H{
		"sections":  sections,
		"photoKeys": photos,
		"total":     len(fields),
	})
}

// POST /v1/form-schema/completion
func (h *FormHandler) Completion(c *gin.Context) {
	ownerID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	rec, err := req.toRecord()
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	fields, ok := h.requiredFields(c, ownerID, req.Country)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"completion": record.Completion(rec, fields),
		"required":   len(fields),
		"photos":     rec.Photos.Count(),
	})
}

func (h *FormHandler) requiredFields(c *gin.Context, ownerID, country string) ([]template.Field, bool) {
	templates, err := h.templates.List(c.Request.Context(), ownerID, country)
	if err != nil {
		middleware.LoggerFromContext(c).Error("list templates failed", slog.Any("error", err))
		Internal(c, "failed to list templates")
		return nil, false
	}
	return template.UnionFields(templates), true
}

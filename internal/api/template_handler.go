package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"pixelCV/internal/api/middleware"
	"pixelCV/internal/database"
	"pixelCV/internal/pdf"
	"pixelCV/internal/storage"
	"pixelCV/internal/tasks"
	"pixelCV/internal/template"
)

// TemplateHandler 负责模板的增删改查与单份渲染。
type TemplateHandler struct {
	templates TemplateStore
	renderer  DocumentRenderer
	profiles  GenerationCounter
	store     ObjectStore
	queue     TaskEnqueuer
	logger    *slog.Logger
}

func NewTemplateHandler(
	templates TemplateStore,
	renderer DocumentRenderer,
	profiles GenerationCounter,
	store ObjectStore,
	queue TaskEnqueuer,
	logger *slog.Logger,
) *TemplateHandler {
	return &TemplateHandler{
		templates: templates,
		renderer:  renderer,
		profiles:  profiles,
		store:     store,
		queue:     queue,
		logger:    logger,
	}
}

// GET /v1/templates
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	ownerID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	items, err := h.templates.ListSummaries(c.Request.Context(), ownerID)
	if err != nil {
		middleware.LoggerFromContext(c).Error("list templates failed", slog.Any("error", err))
		Internal(c, "failed to list templates")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GET /v1/templates/:id
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	ownerID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	tpl, err := h.templates.Get(c.Request.Context(), ownerID, c.Param("id"))
	if err != nil {
		h.writeStoreError(c, err, "failed to query template")
		return
	}
	c.JSON(http.StatusOK, tpl)
}

// POST /v1/templates
// 新建模板：忽略请求中的 id，由存储层分配。
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	ownerID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var tpl template.Template
	if err := c.ShouldBindJSON(&tpl); err != nil {
		BadRequest(c, err.Error())
		return
	}
	tpl.ID = ""

	saved, err := h.templates.Save(c.Request.Context(), ownerID, tpl)
	if err != nil {
		h.writeStoreError(c, err, "failed to create template")
		return
	}
	enqueuePreview(c, h.queue, saved.ID, ownerID)
	c.JSON(http.StatusCreated, saved)
}

// PUT /v1/templates/:id
// 覆盖整份模板，不做字段级合并。
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	ownerID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var tpl template.Template
	if err := c.ShouldBindJSON(&tpl); err != nil {
		BadRequest(c, err.Error())
		return
	}
	tpl.ID = c.Param("id")

	saved, err := h.templates.Save(c.Request.Context(), ownerID, tpl)
	if err != nil {
		h.writeStoreError(c, err, "failed to save template")
		return
	}
	enqueuePreview(c, h.queue, saved.ID, ownerID)
	c.JSON(http.StatusOK, saved)
}

// DELETE /v1/templates/:id
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	ownerID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	previewKey, err := h.templates.Delete(ctx, ownerID, c.Param("id"))
	if err != nil {
		h.writeStoreError(c, err, "failed to delete template")
		return
	}
	if previewKey != "" {
		if err := h.store.DeleteObject(ctx, previewKey); err != nil {
			middleware.LoggerFromContext(c).Warn("delete template preview failed",
				slog.String("object_key", previewKey), slog.Any("error", err))
		}
	}
	c.Status(http.StatusNoContent)
}

// POST /v1/templates/:id/render
// 用请求中的数据记录渲染单个模板，直接以附件形式返回 PDF。
func (h *TemplateHandler) RenderTemplate(c *gin.Context) {
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

	ctx := c.Request.Context()
	tpl, err := h.templates.Get(ctx, ownerID, c.Param("id"))
	if err != nil {
		h.writeStoreError(c, err, "failed to query template")
		return
	}

	log := middleware.LoggerFromContext(c).With(slog.String("template_id", tpl.ID))
	artifact, err := h.renderer.Render(tpl, rec)
	if err != nil {
		if errors.Is(err, pdf.ErrNoPages) {
			Conflict(c, "template has no pages")
			return
		}
		log.Error("render template failed", slog.Any("error", err))
		Internal(c, "failed to render template")
		return
	}

	if err := h.profiles.IncrementGenerated(ctx, ownerID, 1); err != nil {
		log.Error("increment generated count failed", slog.Any("error", err))
	}

	c.Header("Content-Disposition", storage.ContentDisposition(artifact.Name))
	c.Data(http.StatusOK, "application/pdf", artifact.Data)
}

func (h *TemplateHandler) writeStoreError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, database.ErrTemplateNotFound):
		NotFound(c, "template not found")
	case errors.Is(err, template.ErrInvalidTemplate), errors.Is(err, template.ErrInvalidField):
		BadRequest(c, err.Error())
	default:
		middleware.LoggerFromContext(c).Error(msg, slog.Any("error", err))
		Internal(c, msg)
	}
}

// enqueuePreview 投递缩略图任务。缩略图不影响保存结果，失败只记录日志。
func enqueuePreview(c *gin.Context, queue TaskEnqueuer, templateID, ownerID string) {
	if queue == nil {
		return
	}
	log := middleware.LoggerFromContext(c).With(slog.String("template_id", templateID))
	task, err := tasks.NewTemplatePreviewTask(templateID, ownerID, middleware.GetCorrelationID(c))
	if err != nil {
		log.Warn("build preview task failed", slog.Any("error", err))
		return
	}
	// 请求结束后任务仍应入队
	ctx := context.WithoutCancel(c.Request.Context())
	if _, err := queue.EnqueueContext(ctx, task); err != nil {
		log.Warn("enqueue preview task failed", slog.Any("error", err))
	}
}

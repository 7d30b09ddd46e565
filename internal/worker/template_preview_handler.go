package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"pixelCV/internal/database"
	"pixelCV/internal/errcode"
	"pixelCV/internal/storage"
	"pixelCV/internal/tasks"
	"pixelCV/internal/template"
)

// PreviewLinkTTL 是缩略图链接的有效期。
const PreviewLinkTTL = 7 * 24 * time.Hour

// Thumbnailer 把模板第一页截成 JPEG，由 preview.Shooter 实现。
type Thumbnailer interface {
	Thumbnail(ctx context.Context, tpl template.Template) ([]byte, error)
}

// TemplatePreviewHandler 负责模板缩略图生成任务。
type TemplatePreviewHandler struct {
	templates TemplateSource
	shooter   Thumbnailer
	store     ObjectStore
	notifier  Notifier
	logger    *slog.Logger
}

func NewTemplatePreviewHandler(
	templates TemplateSource,
	shooter Thumbnailer,
	store ObjectStore,
	notifier Notifier,
	logger *slog.Logger,
) *TemplatePreviewHandler {
	return &TemplatePreviewHandler{
		templates: templates,
		shooter:   shooter,
		store:     store,
		notifier:  notifier,
		logger:    logger,
	}
}

func (h *TemplatePreviewHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	var payload tasks.TemplatePreviewPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal template preview payload failed", slog.Any("error", err))
		return err
	}

	log := h.logger.With(
		slog.String("template_id", payload.TemplateID),
		slog.String("correlation_id", payload.CorrelationID),
	)
	log.Info("Starting template preview generation task...")

	defer func() {
		if retErr == nil || !isFinalAsynqAttempt(ctx) {
			return
		}
		msg := NotifyMessage{
			Event:         EventPreview,
			CorrelationID: payload.CorrelationID,
			TemplateID:    payload.TemplateID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := h.notifier.Notify(context.WithoutCancel(ctx), payload.OwnerID, msg); err != nil {
			log.Error("publish preview error notification failed", slog.Any("error", err))
		}
	}()

	tpl, err := h.templates.Get(ctx, payload.OwnerID, payload.TemplateID)
	if err != nil {
		if errors.Is(err, database.ErrTemplateNotFound) {
			log.Warn("template not found, skipping task")
			return nil
		}
		log.Error("query template failed", slog.Any("error", err))
		return err
	}

	if tpl.PageCount() == 0 {
		log.Info("template has no pages, preview skipped")
		msg := NotifyMessage{
			Event:         EventPreview,
			CorrelationID: payload.CorrelationID,
			TemplateID:    tpl.ID,
			TemplateName:  tpl.Name,
			ErrorCode:     errcode.ResourceMissing,
			ErrorMessage:  "template has no page background",
		}
		if err := h.notifier.Notify(ctx, payload.OwnerID, msg); err != nil {
			log.Warn("publish preview notification failed", slog.Any("error", err))
		}
		return nil
	}

	shot, err := h.shooter.Thumbnail(ctx, tpl)
	if err != nil {
		log.Error("capture template screenshot failed", slog.Any("error", err))
		return err
	}

	objectName := storage.PreviewKey(tpl.ID)
	if err := h.store.UploadBytes(ctx, objectName, shot, "image/jpeg"); err != nil {
		log.Error("upload template preview failed", slog.Any("error", err))
		return err
	}

	url, err := h.store.GeneratePresignedURL(ctx, objectName, PreviewLinkTTL)
	if err != nil {
		log.Error("generate template preview url failed", slog.Any("error", err))
		return err
	}

	if err := h.templates.SetPreview(ctx, tpl.ID, url, objectName); err != nil {
		log.Error("update template preview url failed", slog.Any("error", err))
		return fmt.Errorf("store preview url: %w", err)
	}

	msg := NotifyMessage{
		Event:         EventPreview,
		CorrelationID: payload.CorrelationID,
		TemplateID:    tpl.ID,
		TemplateName:  tpl.Name,
		URL:           url,
		ErrorCode:     errcode.OK,
	}
	if err := h.notifier.Notify(ctx, payload.OwnerID, msg); err != nil {
		log.Warn("publish preview notification failed", slog.Any("error", err))
	}

	log.Info("Template preview generation completed.")
	return nil
}

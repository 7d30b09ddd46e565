package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"pixelCV/internal/database"
	"pixelCV/internal/errcode"
	"pixelCV/internal/generate"
	"pixelCV/internal/pdf"
	"pixelCV/internal/storage"
	"pixelCV/internal/tasks"
)

// DownloadLinkTTL 是产物下载链接的有效期。
const DownloadLinkTTL = 24 * time.Hour

var errNoTemplates = errors.New("no templates found")

// BulkGenerateHandler 消费批量生成任务：依次渲染 owner 的模板，
// 每份产物上传后立即通知前端下载。
type BulkGenerateHandler struct {
	service   *generate.Service
	templates TemplateSource
	jobs      JobTracker
	profiles  GenerationCounter
	store     ObjectStore
	notifier  Notifier
	logger    *slog.Logger
}

func NewBulkGenerateHandler(
	service *generate.Service,
	templates TemplateSource,
	jobs JobTracker,
	profiles GenerationCounter,
	store ObjectStore,
	notifier Notifier,
	logger *slog.Logger,
) *BulkGenerateHandler {
	return &BulkGenerateHandler{
		service:   service,
		templates: templates,
		jobs:      jobs,
		profiles:  profiles,
		store:     store,
		notifier:  notifier,
		logger:    logger,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *BulkGenerateHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.BulkGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal bulk generate payload failed", slog.Any("error", err))
		return err
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.String("job_id", payload.JobID),
		slog.String("owner_id", payload.OwnerID),
	)
	log.Info("Starting bulk generation task...", slog.String("country", payload.Country))

	templates, err := h.templates.List(ctx, payload.OwnerID, payload.Country)
	if err != nil {
		h.fail(ctx, log, payload, 0, 0, errcode.SystemError, err)
		return err
	}
	if len(templates) == 0 {
		h.fail(ctx, log, payload, 0, 0, errcode.NoTemplates, errNoTemplates)
		return nil
	}
	total := len(templates)
	if err := h.jobs.Start(ctx, payload.JobID, total); err != nil {
		log.Error("mark job running failed", slog.Any("error", err))
		return err
	}

	index := 0
	deliver := generate.DelivererFunc(func(ctx context.Context, a generate.Artifact) error {
		key := storage.ArtifactKey(payload.OwnerID, payload.JobID, index, a.Name)
		if err := h.store.UploadBytes(ctx, key, a.Data, "application/pdf"); err != nil {
			return err
		}
		if err := h.jobs.AppendArtifact(ctx, payload.JobID, database.JobArtifact{
			Name:       a.Name,
			TemplateID: a.TemplateID,
			ObjectKey:  key,
		}); err != nil {
			return err
		}
		index++

		url, err := h.store.GenerateDownloadURL(ctx, key, a.Name, DownloadLinkTTL)
		if err != nil {
			log.Warn("generate artifact download url failed", slog.String("object_key", key), slog.Any("error", err))
		}
		msg := NotifyMessage{
			Event:         EventArtifact,
			JobID:         payload.JobID,
			CorrelationID: payload.CorrelationID,
			TemplateID:    a.TemplateID,
			TemplateName:  a.TemplateName,
			FileName:      a.Name,
			URL:           url,
			Delivered:     index,
			Total:         total,
		}
		if err := h.notifier.Notify(ctx, payload.OwnerID, msg); err != nil {
			log.Warn("publish artifact notification failed", slog.Any("error", err))
		}
		return nil
	})

	delivered, err := h.service.Bulk(ctx, templates, payload.Record, deliver)
	if err != nil {
		code := errcode.SystemError
		if errors.Is(err, pdf.ErrNoPages) {
			code = errcode.NoPages
		}
		h.fail(ctx, log, payload, delivered, total, code, err)
		return err
	}

	// 只有整批成功才计数
	if err := h.profiles.IncrementGenerated(ctx, payload.OwnerID, delivered); err != nil {
		log.Error("increment generated count failed", slog.Any("error", err))
	}
	if err := h.jobs.Finish(ctx, payload.JobID, ""); err != nil {
		log.Error("mark job completed failed", slog.Any("error", err))
		return err
	}

	done := NotifyMessage{
		Event:         EventCompleted,
		JobID:         payload.JobID,
		CorrelationID: payload.CorrelationID,
		Delivered:     delivered,
		Total:         total,
		ErrorCode:     errcode.OK,
	}
	if err := h.notifier.Notify(ctx, payload.OwnerID, done); err != nil {
		log.Error("publish completion notification failed", slog.Any("error", err))
	}

	log.Info("Bulk generation task completed.", slog.Int("delivered", delivered))
	return nil
}

// fail 记录失败状态并通知前端。任务上下文可能已取消，收尾写入使用独立的上下文。
func (h *BulkGenerateHandler) fail(ctx context.Context, log *slog.Logger, payload tasks.BulkGeneratePayload, delivered, total, code int, cause error) {
	ctx = context.WithoutCancel(ctx)
	message := strings.TrimSpace(cause.Error())
	log.Error("bulk generation failed",
		slog.Int("delivered", delivered),
		slog.Int("error_code", code),
		slog.Any("error", cause),
	)
	if err := h.jobs.Finish(ctx, payload.JobID, message); err != nil {
		log.Error("mark job failed failed", slog.Any("error", err))
	}
	msg := NotifyMessage{
		Event:         EventError,
		JobID:         payload.JobID,
		CorrelationID: payload.CorrelationID,
		Delivered:     delivered,
		Total:         total,
		ErrorCode:     code,
		ErrorMessage:  message,
	}
	var batchErr *generate.BatchError
	if errors.As(cause, &batchErr) {
		msg.TemplateID = batchErr.TemplateID
		msg.TemplateName = batchErr.TemplateName
	}
	if err := h.notifier.Notify(ctx, payload.OwnerID, msg); err != nil {
		log.Error("publish error notification failed", slog.Any("error", err))
	}
}

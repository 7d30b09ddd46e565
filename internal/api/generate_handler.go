package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pixelCV/internal/api/middleware"
	"pixelCV/internal/database"
	"pixelCV/internal/storage"
	"pixelCV/internal/tasks"
)

const downloadLinkTTL = 24 * time.Hour

// GenerateHandler 负责批量生成任务的投递与查询。
type GenerateHandler struct {
	templates  TemplateStore
	jobs       JobStore
	store      ObjectStore
	queue      TaskEnqueuer
	counter    redisRateCounter
	dailyLimit int
	delay      time.Duration
	now        func() time.Time
}

func NewGenerateHandler(
	templates TemplateStore,
	jobs JobStore,
	store ObjectStore,
	queue TaskEnqueuer,
	counter redisRateCounter,
	dailyLimit int,
	delay time.Duration,
) *GenerateHandler {
	return &GenerateHandler{
		templates:  templates,
		jobs:       jobs,
		store:      store,
		queue:      queue,
		counter:    counter,
		dailyLimit: dailyLimit,
		delay:      delay,
		now:        time.Now,
	}
}

type jobArtifactResponse struct {
	Name        string `json:"name"`
	TemplateID  string `json:"templateId"`
	DownloadURL string `json:"downloadUrl,omitempty"`
}

type jobResponse struct {
	ID        string                `json:"id"`
	Status    string                `json:"status"`
	Country   string                `json:"country,omitempty"`
	Total     int                   `json:"total"`
	Delivered int                   `json:"delivered"`
	Error     string                `json:"error,omitempty"`
	Artifacts []jobArtifactResponse `json:"artifacts"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// POST /v1/generate
// 同一份数据记录套用 owner 的全部模板（可按国家过滤），由 worker 依次生成。
func (h *GenerateHandler) StartBulk(c *gin.Context) {
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
	country := strings.ToLower(strings.TrimSpace(req.Country))

	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c)

	templates, err := h.templates.List(ctx, ownerID, country)
	if err != nil {
		log.Error("list templates failed", slog.Any("error", err))
		Internal(c, "failed to list templates")
		return
	}
	if len(templates) == 0 {
		Conflict(c, "no templates found")
		return
	}

	allowed, err := allowBulk(ctx, h.counter, ownerID, h.now(), h.dailyLimit)
	if err != nil {
		log.Error("bulk rate counter failed", slog.Any("error", err))
		Internal(c, "failed to check generation limit")
		return
	}
	if !allowed {
		TooManyRequests(c, "daily generation limit reached")
		return
	}

	job := database.GenerationJob{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		CorrelationID: middleware.GetCorrelationID(c),
		Country:       country,
		Status:        database.JobQueued,
		Total:         len(templates),
	}
	if err := h.jobs.Create(ctx, &job); err != nil {
		log.Error("create generation job failed", slog.Any("error", err))
		Internal(c, "failed to create generation job")
		return
	}
	log = log.With(slog.String("job_id", job.ID))

	task, err := tasks.NewBulkGenerateTask(tasks.BulkGeneratePayload{
		JobID:         job.ID,
		OwnerID:       ownerID,
		Country:       country,
		Record:        rec,
		CorrelationID: job.CorrelationID,
	})
	if err == nil {
		_, err = h.queue.EnqueueContext(ctx, task)
	}
	if err != nil {
		log.Error("enqueue bulk generation failed", slog.Any("error", err))
		if ferr := h.jobs.Finish(ctx, job.ID, "enqueue failed"); ferr != nil {
			log.Error("mark job failed", slog.Any("error", ferr))
		}
		Internal(c, "failed to enqueue generation")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":   job.ID,
		"total":    job.Total,
		"delay_ms": h.delay.Milliseconds(),
	})
}

// GET /v1/generate/:id
func (h *GenerateHandler) GetJob(c *gin.Context) {
	ownerID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	job, err := h.jobs.Get(ctx, ownerID, c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrJobNotFound) {
			NotFound(c, "job not found")
			return
		}
		middleware.LoggerFromContext(c).Error("query job failed", slog.Any("error", err))
		Internal(c, "failed to query job")
		return
	}

	artifacts, err := job.ArtifactList()
	if err != nil {
		middleware.LoggerFromContext(c).Error("decode job artifacts failed", slog.Any("error", err))
		Internal(c, "failed to read job artifacts")
		return
	}

	resp := jobResponse{
		ID:        job.ID,
		Status:    job.Status,
		Country:   job.Country,
		Total:     job.Total,
		Delivered: job.Delivered,
		Error:     job.Error,
		Artifacts: make([]jobArtifactResponse, 0, len(artifacts)),
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	for _, a := range artifacts {
		url, err := h.store.GenerateDownloadURL(ctx, a.ObjectKey, a.Name, downloadLinkTTL)
		if err != nil {
			middleware.LoggerFromContext(c).Warn("generate download url failed",
				slog.String("object_key", a.ObjectKey), slog.Any("error", err))
		}
		resp.Artifacts = append(resp.Artifacts, jobArtifactResponse{
			Name:        a.Name,
			TemplateID:  a.TemplateID,
			DownloadURL: url,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// DELETE /v1/generate/:id
func (h *GenerateHandler) DeleteJob(c *gin.Context) {
	ownerID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	jobID := c.Param("id")
	job, err := h.jobs.Get(ctx, ownerID, jobID)
	if err != nil {
		if errors.Is(err, database.ErrJobNotFound) {
			NotFound(c, "job not found")
			return
		}
		middleware.LoggerFromContext(c).Error("query job failed", slog.Any("error", err))
		Internal(c, "failed to query job")
		return
	}
	if job.Status == database.JobQueued || job.Status == database.JobRunning {
		Conflict(c, "job is still running")
		return
	}

	if err := h.store.DeletePrefix(ctx, storage.JobPrefix(ownerID, job.ID)); err != nil {
		middleware.LoggerFromContext(c).Error("delete job artifacts failed",
			slog.String("job_id", job.ID), slog.Any("error", err))
		Internal(c, "failed to delete job artifacts")
		return
	}
	if err := h.jobs.Delete(ctx, ownerID, job.ID); err != nil {
		switch {
		case errors.Is(err, database.ErrJobNotFound):
			NotFound(c, "job not found")
		case errors.Is(err, database.ErrJobActive):
			Conflict(c, "job is still running")
		default:
			middleware.LoggerFromContext(c).Error("delete job failed", slog.Any("error", err))
			Internal(c, "failed to delete job")
		}
		return
	}
	c.Status(http.StatusNoContent)
}

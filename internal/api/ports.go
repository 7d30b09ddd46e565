package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"pixelCV/internal/api/middleware"
	"pixelCV/internal/database"
	"pixelCV/internal/generate"
	"pixelCV/internal/record"
	"pixelCV/internal/template"
)

// TemplateStore 是模板持久化接口，由 database.TemplateRepository 实现。
type TemplateStore interface {
	Save(ctx context.Context, ownerID string, tpl template.Template) (template.Template, error)
	Get(ctx context.Context, ownerID, id string) (template.Template, error)
	List(ctx context.Context, ownerID, country string) ([]template.Template, error)
	ListSummaries(ctx context.Context, ownerID string) ([]database.Summary, error)
	Delete(ctx context.Context, ownerID, id string) (string, error)
}

// JobStore 记录批量生成任务，由 database.JobRepository 实现。
type JobStore interface {
	Create(ctx context.Context, job *database.GenerationJob) error
	Get(ctx context.Context, ownerID, id string) (database.GenerationJob, error)
	Finish(ctx context.Context, id string, errMsg string) error
	Delete(ctx context.Context, ownerID, id string) error
}

// GenerationCounter 累加账号的已生成文档数，由 database.ProfileRepository 实现。
type GenerationCounter interface {
	IncrementGenerated(ctx context.Context, id string, n int) error
}

// ObjectStore 是 API 层需要的对象存储子集，由 storage.Client 实现。
type ObjectStore interface {
	GenerateDownloadURL(ctx context.Context, objectKey, filename string, duration time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// TaskEnqueuer 投递后台任务，由 asynq.Client 实现。
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// DocumentRenderer 生成单份文档，由 generate.Service 实现。
type DocumentRenderer interface {
	Render(tpl template.Template, rec record.Record) (generate.Artifact, error)
	Delay() time.Duration
}

func userIDFromContext(c *gin.Context) (string, bool) {
	return middleware.GetUserID(c)
}

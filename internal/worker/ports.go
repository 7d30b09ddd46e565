package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"pixelCV/internal/database"
	"pixelCV/internal/template"
)

// TemplateSource 读取 owner 的模板，由 database.TemplateRepository 实现。
type TemplateSource interface {
	List(ctx context.Context, ownerID, country string) ([]template.Template, error)
	Get(ctx context.Context, ownerID, id string) (template.Template, error)
	SetPreview(ctx context.Context, id, url, objectKey string) error
}

// JobTracker 维护批量任务进度，由 database.JobRepository 实现。
type JobTracker interface {
	Start(ctx context.Context, id string, total int) error
	AppendArtifact(ctx context.Context, id string, a database.JobArtifact) error
	Finish(ctx context.Context, id string, errMsg string) error
}

// GenerationCounter 累加账号的已生成文档数。
type GenerationCounter interface {
	IncrementGenerated(ctx context.Context, id string, n int) error
}

// ObjectStore 是 worker 需要的对象存储子集，由 storage.Client 实现。
type ObjectStore interface {
	UploadBytes(ctx context.Context, objectName string, data []byte, contentType string) error
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	GenerateDownloadURL(ctx context.Context, objectKey, filename string, duration time.Duration) (string, error)
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}

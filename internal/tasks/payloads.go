package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"pixelCV/internal/record"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeBulkGenerate    = "document:bulk_generate"
	TypeTemplatePreview = "template:preview"
)

// BulkGeneratePayload 描述一次批量生成：同一份数据记录套用 owner 的全部模板。
type BulkGeneratePayload struct {
	JobID         string        `json:"job_id"`
	OwnerID       string        `json:"owner_id"`
	Country       string        `json:"country,omitempty"`
	Record        record.Record `json:"record"`
	CorrelationID string        `json:"correlation_id"`
}

// NewBulkGenerateTask 构造批量生成任务。批量任务失败即整体中止，不做重试。
func NewBulkGenerateTask(p BulkGeneratePayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal bulk generate payload: %w", err)
	}
	return asynq.NewTask(TypeBulkGenerate, payload, asynq.MaxRetry(0)), nil
}

// TemplatePreviewPayload 描述模板缩略图任务。
type TemplatePreviewPayload struct {
	TemplateID    string `json:"template_id"`
	OwnerID       string `json:"owner_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewTemplatePreviewTask 构造缩略图任务。
func NewTemplatePreviewTask(templateID, ownerID, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(TemplatePreviewPayload{
		TemplateID:    templateID,
		OwnerID:       ownerID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeTemplatePreview, payload, asynq.MaxRetry(3)), nil
}

// NotifyChannel 是某个 owner 的 Redis Pub/Sub 通知频道，worker 发布、WebSocket 订阅。
func NotifyChannel(ownerID string) string {
	return "user_notify:" + ownerID
}

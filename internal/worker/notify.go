package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"pixelCV/internal/tasks"
)

// 通知事件类型。
const (
	EventArtifact  = "artifact"
	EventCompleted = "completed"
	EventError     = "error"
	EventPreview   = "preview"
)

// NotifyMessage 是通过 Redis Pub/Sub 转发给 WebSocket 客户端的统一消息。
// 字段名与前端解析保持一致。
type NotifyMessage struct {
	Event         string `json:"event"`
	JobID         string `json:"job_id,omitempty"`
	CorrelationID string `json:"correlation_id"`
	TemplateID    string `json:"template_id,omitempty"`
	TemplateName  string `json:"template_name,omitempty"`
	FileName      string `json:"file_name,omitempty"`
	URL           string `json:"url,omitempty"`
	Delivered     int    `json:"delivered"`
	Total         int    `json:"total"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// Notifier 把消息推送给某个 owner。
type Notifier interface {
	Notify(ctx context.Context, ownerID string, msg NotifyMessage) error
}

// RedisNotifier 发布到 user_notify:<owner>。
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Notify(ctx context.Context, ownerID string, msg NotifyMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := tasks.NotifyChannel(ownerID)
	if err := n.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

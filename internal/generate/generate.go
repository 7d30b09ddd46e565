// Package generate 把渲染器与输出端串起来：单模板生成与按顺序的批量生成。
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pixelCV/internal/compose"
	"pixelCV/internal/metrics"
	"pixelCV/internal/record"
	"pixelCV/internal/template"
)

// DefaultDelay 是批量生成时两次交付之间的停顿。
const DefaultDelay = 500 * time.Millisecond

// Artifact 是一份生成好的文档。
type Artifact struct {
	Name         string
	TemplateID   string
	TemplateName string
	Data         []byte
}

// Writer 把合成结果写成字节，pdf.Writer 实现了它。
type Writer interface {
	Write(doc compose.Document) ([]byte, error)
}

// Deliverer 接收批量生成中的每一份产物。
type Deliverer interface {
	Deliver(ctx context.Context, a Artifact) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, a Artifact) error

func (f DelivererFunc) Deliver(ctx context.Context, a Artifact) error { return f(ctx, a) }

// Sleeper 在两次交付之间等待。
type Sleeper func(ctx context.Context, d time.Duration) error

// Service 组合渲染器与输出端。
type Service struct {
	renderer *compose.Renderer
	writer   Writer
	delay    time.Duration
	sleep    Sleeper
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithDelay 设置批量交付之间的停顿；负值按 0 处理。
func WithDelay(d time.Duration) Option {
	return func(s *Service) {
		if d < 0 {
			d = 0
		}
		s.delay = d
	}
}

// WithSleeper 替换等待实现，测试里用它记录停顿而不真正睡眠。
func WithSleeper(fn Sleeper) Option {
	return func(s *Service) { s.sleep = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a Service.
func NewService(renderer *compose.Renderer, writer Writer, opts ...Option) *Service {
	s := &Service{
		renderer: renderer,
		writer:   writer,
		delay:    DefaultDelay,
		sleep:    sleepContext,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Delay returns the configured inter-delivery pause.
func (s *Service) Delay() time.Duration { return s.delay }

// Render 生成单份文档。
func (s *Service) Render(tpl template.Template, rec record.Record) (Artifact, error) {
	start := time.Now()
	doc := s.renderer.Render(tpl, rec)
	data, err := s.writer.Write(doc)
	metrics.ObserveRender(start, err)
	if err != nil {
		return Artifact{}, fmt.Errorf("render template %q: %w", tpl.Name, err)
	}
	return Artifact{
		Name:         doc.Name,
		TemplateID:   tpl.ID,
		TemplateName: tpl.Name,
		Data:         data,
	}, nil
}

// Bulk 对每个模板依次生成并交付，交付之间插入固定停顿。
// 任何一个模板失败都会中止整批，并以单个 *BatchError 返回；
// 已交付的产物不会撤回。返回值为成功交付的数量。
func (s *Service) Bulk(ctx context.Context, templates []template.Template, rec record.Record, d Deliverer) (int, error) {
	delivered := 0
	for i, tpl := range templates {
		if i > 0 && s.delay > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				return delivered, s.abort(i, len(templates), tpl, delivered, err)
			}
		}

		artifact, err := s.Render(tpl, rec)
		if err == nil {
			err = d.Deliver(ctx, artifact)
		}
		metrics.BulkDelivery(err)
		if err != nil {
			return delivered, s.abort(i, len(templates), tpl, delivered, err)
		}
		delivered++
		s.logger.Debug("bulk artifact delivered",
			slog.String("template_id", tpl.ID),
			slog.String("artifact", artifact.Name),
			slog.Int("index", i),
		)
	}
	return delivered, nil
}

func (s *Service) abort(i, total int, tpl template.Template, delivered int, err error) error {
	berr := &BatchError{
		Index:        i,
		Total:        total,
		TemplateID:   tpl.ID,
		TemplateName: tpl.Name,
		Delivered:    delivered,
		Err:          err,
	}
	s.logger.Error("bulk generation aborted",
		slog.String("template_id", tpl.ID),
		slog.Int("index", i),
		slog.Int("delivered", delivered),
		slog.Any("err", err),
	)
	return berr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

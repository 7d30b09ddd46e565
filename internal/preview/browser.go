package preview

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"pixelCV/internal/template"
)

// DefaultQuality 是 JPEG 缩略图质量。
const DefaultQuality = 80

// Shooter 用 go-rod 启动无头 Chromium，把 HTML 截成 JPEG。
type Shooter struct {
	logger  *slog.Logger
	timeout time.Duration
	bin     string
}

// NewShooter 创建截图器；timeout 为 0 时使用 30 秒。
func NewShooter(logger *slog.Logger, timeout time.Duration) *Shooter {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &Shooter{logger: logger, timeout: timeout}
	if path, ok := launcher.LookPath(); ok {
		s.bin = path
	}
	return s
}

// Screenshot 渲染 html 并截取 #page 元素。
func (s *Shooter) Screenshot(ctx context.Context, html string, widthPx, quality int) ([]byte, error) {
	width, height := Size(widthPx)
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	launch := launcher.New().
		Headless(true).
		NoSandbox(true)
	if s.bin != "" {
		launch = launch.Bin(s.bin)
	}
	defer launch.Cleanup()

	browserURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	browser := rod.New().ControlURL(browserURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		_ = browser.Close()
	}()

	page, err := browser.Timeout(s.timeout).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	page = page.Timeout(s.timeout)

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}
	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("set document content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}
	if _, err := page.Element("#preview-ready"); err != nil {
		return nil, fmt.Errorf("wait preview ready: %w", err)
	}

	if el, elErr := page.Element("#page"); elErr == nil {
		data, shotErr := el.Screenshot(proto.PageCaptureScreenshotFormatJpeg, quality)
		if shotErr == nil {
			return data, nil
		}
		s.logger.Warn("element screenshot failed, falling back to viewport", slog.Any("error", shotErr))
	}

	data, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: &quality,
	})
	if err != nil {
		return nil, fmt.Errorf("page screenshot: %w", err)
	}
	return data, nil
}

// Thumbnail 截取模板第一页的缩略图。
func (s *Shooter) Thumbnail(ctx context.Context, tpl template.Template) ([]byte, error) {
	html, err := BuildHTML(tpl, 1, DefaultWidthPx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	data, err := s.Screenshot(ctx, html, DefaultWidthPx, DefaultQuality)
	s.logger.Info("preview screenshot finished",
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("bytes", len(data)),
		slog.Bool("ok", err == nil),
	)
	return data, err
}

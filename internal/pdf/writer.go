// Package pdf 把 compose.Document 写成 PDF 字节。
package pdf

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-pdf/fpdf"

	"pixelCV/internal/compose"
	"pixelCV/internal/imgdata"
	"pixelCV/internal/layout"
	"pixelCV/internal/metrics"
)

// ErrNoPages 表示文档没有任何页面，无法写出。
var ErrNoPages = errors.New("pdf: document has no pages")

// Options 控制输出细节。
type Options struct {
	Compress bool
	// Timestamp 写入文档元数据；为零值时使用当前时间。
	Timestamp time.Time
	Creator   string
}

// Writer 是 compose.Document 的 PDF 输出端。单个 Writer 可并发使用。
type Writer struct {
	opts   Options
	logger *slog.Logger
}

// NewWriter 创建 Writer。
func NewWriter(opts Options, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{opts: opts, logger: logger}
}

// Write 按页输出背景与绘制操作。图片或背景无法解码时记录日志并跳过，
// 不会中断其余字段和页面。
func (w *Writer) Write(doc compose.Document) ([]byte, error) {
	if len(doc.Pages) == 0 {
		return nil, ErrNoPages
	}

	size := doc.Size
	if size.Width <= 0 || size.Height <= 0 {
		size = layout.A4
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: size.Width, Ht: size.Height},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetCellMargin(0)
	pdf.SetCompression(w.opts.Compress)
	pdf.SetCatalogSort(true)

	ts := w.opts.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	pdf.SetCreationDate(ts)
	pdf.SetModificationDate(ts)
	pdf.SetTitle(doc.Name, true)
	if w.opts.Creator != "" {
		pdf.SetCreator(w.opts.Creator, true)
	}

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	full := layout.Box{Width: size.Width, Height: size.Height}

	for _, page := range doc.Pages {
		pdf.AddPage()
		if page.Background != "" {
			if err := w.drawImage(pdf, page.Background, full); err != nil {
				metrics.AssetSkipped("background")
				w.logger.Warn("page background skipped",
					slog.String("document", doc.Name),
					slog.Int("page", page.Number),
					slog.Any("err", err),
				)
			}
		}
		for _, op := range page.Ops {
			w.drawOp(pdf, tr, doc.Name, page.Number, op)
		}
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("render page %d: %w", page.Number, err)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("output pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *Writer) drawOp(pdf *fpdf.Fpdf, tr func(string) string, docName string, page int, op compose.Op) {
	switch op.Kind {
	case compose.OpImage:
		if err := w.drawImage(pdf, op.Image, op.Box); err != nil {
			metrics.AssetSkipped("image")
			w.logger.Warn("field image skipped",
				slog.String("document", docName),
				slog.Int("page", page),
				slog.String("field_id", op.FieldID),
				slog.String("key", op.Key),
				slog.Any("err", err),
			)
			return
		}

	case compose.OpText:
		pdf.SetFont(string(op.Font), string(op.Style), op.Size)
		pdf.SetTextColor(int(op.Color.R), int(op.Color.G), int(op.Color.B))
		pdf.Text(op.X, op.Y, tr(op.Text))

	case compose.OpMark:
		pdf.SetFont(string(op.Font), string(op.Style), op.Size)
		pdf.SetTextColor(int(op.Color.R), int(op.Color.G), int(op.Color.B))
		pdf.SetXY(op.Box.X, op.Box.Y)
		pdf.CellFormat(op.Box.Width, op.Box.Height, tr(op.Text), "", 0, "CM", false, 0, "")

	default:
		return
	}
	metrics.FieldDrawn(string(op.Kind))
}

// drawImage 注册并绘制 data URI 图片。同一负载只注册一次。
func (w *Writer) drawImage(pdf *fpdf.Fpdf, uri string, box layout.Box) error {
	img, err := imgdata.Load(uri)
	if err != nil {
		return err
	}

	sum := sha256.Sum256([]byte(uri))
	name := "img-" + hex.EncodeToString(sum[:12])

	if err := register(pdf, name, img); err != nil {
		// 16 位或隔行 PNG 等变体先拍平再试一次
		flat, ferr := imgdata.Flatten(img)
		if ferr != nil {
			return err
		}
		if err := register(pdf, name, flat); err != nil {
			return err
		}
	}

	pdf.ImageOptions(name, box.X, box.Y, box.Width, box.Height, false, fpdf.ImageOptions{}, 0, "")
	if err := pdf.Error(); err != nil {
		pdf.ClearError()
		return err
	}
	return nil
}

func register(pdf *fpdf.Fpdf, name string, img imgdata.Image) error {
	imageType := "PNG"
	if img.Format == imgdata.JPEG {
		imageType = "JPG"
	}
	pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: imageType}, bytes.NewReader(img.Data))
	if err := pdf.Error(); err != nil {
		pdf.ClearError()
		return fmt.Errorf("register %s image: %w", imageType, err)
	}
	return nil
}

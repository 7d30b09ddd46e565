package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"

	"pixelCV/internal/api/middleware"
	"pixelCV/internal/imgdata"
)

var (
	errMissingUpload  = errors.New("missing file")
	errUploadTooLarge = errors.New("file too large")
	errNotImage       = errors.New("only PNG, JPEG and WEBP images are supported")
	errInfected       = errors.New("malicious file detected")
)

// VirusScanner 扫描上传内容，发现威胁时返回包装了 errInfected 的错误。
type VirusScanner interface {
	Scan(r io.Reader) error
}

// ClamdScanner 通过 clamd 的 INSTREAM 命令扫描。
type ClamdScanner struct {
	addr string
}

func NewClamdScanner(addr string) *ClamdScanner {
	return &ClamdScanner{addr: addr}
}

func (s *ClamdScanner) Scan(r io.Reader) error {
	client := clamd.NewClamd(s.addr)
	abort := make(chan bool)
	defer close(abort)

	results, err := client.ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}
	for result := range results {
		if result.Status != clamd.RES_OK {
			return fmt.Errorf("%w: %s %s", errInfected, result.Status, result.Description)
		}
	}
	return nil
}

type imageUpload struct {
	Data   []byte
	Format imgdata.Format
	Name   string
}

// DataURI 把上传内容编码为内嵌图片，页面背景与照片都以这种形式保存在模板里。
func (u imageUpload) DataURI() string {
	return imgdata.Encode(u.Format.MIME(), u.Data)
}

// readImageUpload 读取 multipart 字段，校验大小与魔数，并在可用时做病毒扫描。
func readImageUpload(c *gin.Context, field string, maxBytes int64, scanner VirusScanner) (imageUpload, error) {
	file, err := c.FormFile(field)
	if err != nil {
		return imageUpload{}, errMissingUpload
	}
	if maxBytes > 0 && file.Size > maxBytes {
		return imageUpload{}, errUploadTooLarge
	}

	reader, err := file.Open()
	if err != nil {
		return imageUpload{}, fmt.Errorf("open upload: %w", err)
	}
	defer reader.Close()

	src := io.Reader(reader)
	if maxBytes > 0 {
		src = io.LimitReader(reader, maxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return imageUpload{}, fmt.Errorf("read upload: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return imageUpload{}, errUploadTooLarge
	}

	format, ok := imgdata.SniffBytes(data)
	if !ok {
		return imageUpload{}, errNotImage
	}

	if scanner != nil {
		if err := scanner.Scan(bytes.NewReader(data)); err != nil {
			return imageUpload{}, err
		}
	}
	return imageUpload{Data: data, Format: format, Name: file.Filename}, nil
}

func writeUploadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errMissingUpload):
		BadRequest(c, err.Error())
	case errors.Is(err, errUploadTooLarge):
		TooLarge(c, err.Error())
	case errors.Is(err, errNotImage):
		Unsupported(c, err.Error())
	case errors.Is(err, errInfected):
		middleware.LoggerFromContext(c).Warn("upload rejected by scanner", slog.Any("error", err))
		BadRequest(c, errInfected.Error())
	default:
		middleware.LoggerFromContext(c).Error("process upload failed", slog.Any("error", err))
		Internal(c, "failed to process upload")
	}
}

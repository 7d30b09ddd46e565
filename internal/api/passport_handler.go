package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"pixelCV/internal/api/middleware"
	"pixelCV/internal/mrz"
)

// PassportHandler 从护照照片中提取表单字段。extractor 为 nil 时接口返回 503。
type PassportHandler struct {
	extractor mrz.Extractor
	scanner   VirusScanner
	maxUpload int64
}

func NewPassportHandler(extractor mrz.Extractor, scanner VirusScanner, maxUpload int64) *PassportHandler {
	return &PassportHandler{extractor: extractor, scanner: scanner, maxUpload: maxUpload}
}

// POST /v1/passport/scan
// 返回提取结果，以及可直接填入 photos.passport 的内嵌图片。
func (h *PassportHandler) Scan(c *gin.Context) {
	if _, ok := userIDFromContext(c); !ok {
		AbortUnauthorized(c)
		return
	}
	if h.extractor == nil {
		ServiceUnavailable(c, "passport scanning is not configured")
		return
	}

	upload, err := readImageUpload(c, "file", h.maxUpload, h.scanner)
	if err != nil {
		writeUploadError(c, err)
		return
	}

	data, err := h.extractor.Extract(c.Request.Context(), upload.Data)
	if err != nil {
		switch {
		case errors.Is(err, mrz.ErrNotAnImage):
			Unsupported(c, err.Error())
		case errors.Is(err, mrz.ErrEmptyResult):
			Error(c, http.StatusUnprocessableEntity, "no passport data found")
		case errors.Is(err, mrz.ErrDisabled):
			ServiceUnavailable(c, "passport scanning is not configured")
		default:
			middleware.LoggerFromContext(c).Error("passport extraction failed", slog.Any("error", err))
			Error(c, http.StatusBadGateway, "passport extraction failed")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":          data,
		"passportPhoto": upload.DataURI(),
	})
}

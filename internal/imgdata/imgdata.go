// Package imgdata handles self-describing embedded image payloads
// (data URIs such as "data:image/png;base64,...").
package imgdata

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	// 注册解码器，供 image.DecodeConfig 使用。
	_ "image/jpeg"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// Format 是由前缀嗅探得到的图片格式。
type Format string

const (
	PNG  Format = "PNG"
	WEBP Format = "WEBP"
	JPEG Format = "JPEG"
)

const embeddedPrefix = "data:image"

var (
	ErrNotEmbedded = errors.New("imgdata: value is not an embedded image")
	ErrMalformed   = errors.New("imgdata: malformed data uri")
	ErrUnsupported = errors.New("imgdata: unsupported image data")
)

// IsEmbedded 判断字符串是否为内嵌图片负载。
func IsEmbedded(s string) bool {
	return strings.HasPrefix(s, embeddedPrefix)
}

// Sniff 只看前缀：PNG、WEBP，其余一律按 JPEG 处理。
func Sniff(s string) Format {
	switch {
	case strings.HasPrefix(s, "data:image/png"):
		return PNG
	case strings.HasPrefix(s, "data:image/webp"):
		return WEBP
	default:
		return JPEG
	}
}

// Decode 取出 data URI 中的原始字节。
func Decode(s string) ([]byte, error) {
	if !IsEmbedded(s) {
		return nil, ErrNotEmbedded
	}
	header, payload, ok := strings.Cut(s, ",")
	if !ok {
		return nil, ErrMalformed
	}
	if !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("%w: only base64 payloads are supported", ErrMalformed)
	}
	payload = strings.TrimSpace(payload)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// 部分客户端会省略填充
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	return data, nil
}

// Encode 构造 data URI。
func Encode(mime string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}

// MIME 返回格式对应的 content type。
func (f Format) MIME() string {
	switch f {
	case PNG:
		return "image/png"
	case WEBP:
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// Image 是解码后可直接交给 PDF writer 的图片。
type Image struct {
	Format Format
	Data   []byte
	Width  int
	Height int
}

// Load 解码 data URI 并校验图片头。WEBP 会被转码为 PNG，
// 因为 PDF writer 只接受 PNG/JPEG。
func Load(s string) (Image, error) {
	format := Sniff(s)
	data, err := Decode(s)
	if err != nil {
		return Image{}, err
	}

	if format == WEBP {
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return Image{}, fmt.Errorf("%w: decode webp: %v", ErrUnsupported, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return Image{}, fmt.Errorf("transcode webp: %w", err)
		}
		b := img.Bounds()
		return Image{Format: PNG, Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
	}

	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if !strings.EqualFold(name, string(format)) {
		return Image{}, fmt.Errorf("%w: declared %s but found %s", ErrUnsupported, format, name)
	}
	return Image{Format: format, Data: data, Width: cfg.Width, Height: cfg.Height}, nil
}

// SniffBytes 通过魔数识别上传文件的格式，ok 为 false 表示不是支持的图片。
func SniffBytes(data []byte) (Format, bool) {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return PNG, true
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return WEBP, true
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return JPEG, true
	default:
		return "", false
	}
}

// Flatten 完整解码图片并重新编码为 8 位非隔行 PNG，
// 用于 PDF writer 拒收的 16 位或隔行 PNG 等变体。
func Flatten(img Image) (Image, error) {
	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return Image{}, fmt.Errorf("encode png: %w", err)
	}
	return Image{Format: PNG, Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}

package storage

import (
	"fmt"
	"mime"
	"path"
	"strings"
)

// ArtifactKey 是批量生成产物的对象 key：generated/<owner>/<job>/<index>_<name>。
// 序号前缀保证同名模板不会互相覆盖。
func ArtifactKey(ownerID, jobID string, index int, name string) string {
	return fmt.Sprintf("generated/%s/%s/%s", ownerID, jobID, ArtifactName(index, name))
}

// ArtifactName 是带序号前缀的产物文件名，index 从 0 开始。
func ArtifactName(index int, name string) string {
	return fmt.Sprintf("%03d_%s", index+1, sanitizeName(name))
}

// JobPrefix 返回某次批量生成全部产物的前缀。
func JobPrefix(ownerID, jobID string) string {
	return fmt.Sprintf("generated/%s/%s/", ownerID, jobID)
}

// PreviewKey 是模板缩略图的对象 key。
func PreviewKey(templateID string) string {
	return fmt.Sprintf("thumbnails/template/%s/preview.jpg", templateID)
}

// ContentDisposition 构造 attachment 头，非 ASCII 文件名按 RFC 6266 编码。
func ContentDisposition(filename string) string {
	filename = path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer("/", "_", "\\", "_", "\x00", "").Replace(name)
	if name == "" {
		return "document.pdf"
	}
	return name
}

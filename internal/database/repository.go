package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"pixelCV/internal/template"
)

var (
	ErrTemplateNotFound = errors.New("database: template not found")
	ErrJobNotFound      = errors.New("database: generation job not found")
	ErrJobActive        = errors.New("database: generation job still active")
)

type templateContent struct {
	Pages  []string         `json:"pages"`
	Fields []template.Field `json:"fields"`
}

// TemplateRepository 是模板的持久化边界：save / delete / list，均按 owner 隔离。
type TemplateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Save 新建或覆盖模板。id 为空时分配新 id；id 属于其他 owner 时视为不存在。
func (r *TemplateRepository) Save(ctx context.Context, ownerID string, tpl template.Template) (template.Template, error) {
	tpl = tpl.Clone()
	tpl.Normalize()
	if err := tpl.Validate(); err != nil {
		return template.Template{}, err
	}
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = time.Now().UTC()
	}
	tpl.Country = strings.ToLower(strings.TrimSpace(tpl.Country))

	content, err := json.Marshal(templateContent{Pages: tpl.Pages, Fields: tpl.Fields})
	if err != nil {
		return template.Template{}, fmt.Errorf("encode template content: %w", err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Template
		err := tx.Where("id = ?", tpl.ID).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&Template{
				ID:        tpl.ID,
				OwnerID:   ownerID,
				Name:      tpl.Name,
				Country:   tpl.Country,
				Content:   content,
				CreatedAt: tpl.CreatedAt,
			}).Error
		case err != nil:
			return err
		case existing.OwnerID != ownerID:
			return ErrTemplateNotFound
		}
		tpl.CreatedAt = existing.CreatedAt
		return tx.Model(&existing).Updates(map[string]any{
			"name":    tpl.Name,
			"country": tpl.Country,
			"content": datatypes.JSON(content),
		}).Error
	})
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			return template.Template{}, err
		}
		return template.Template{}, fmt.Errorf("save template %q: %w", tpl.ID, err)
	}
	return tpl, nil
}

// Get 读取 owner 名下的单个模板。
func (r *TemplateRepository) Get(ctx context.Context, ownerID, id string) (template.Template, error) {
	var row Template
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return template.Template{}, ErrTemplateNotFound
	}
	if err != nil {
		return template.Template{}, fmt.Errorf("query template %q: %w", id, err)
	}
	return row.toDomain()
}

// List 返回 owner 的全部模板，按创建顺序；country 非空时只返回该国家的模板。
func (r *TemplateRepository) List(ctx context.Context, ownerID, country string) ([]template.Template, error) {
	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if country = strings.ToLower(strings.TrimSpace(country)); country != "" {
		q = q.Where("country = ?", country)
	}
	var rows []Template
	if err := q.Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	out := make([]template.Template, 0, len(rows))
	for _, row := range rows {
		tpl, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, nil
}

// Summary 是列表页使用的轻量视图，不含页面背景。
type Summary struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Country         string    `json:"country"`
	PreviewImageURL string    `json:"previewImageUrl,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ListSummaries 只查询列表需要的列。
func (r *TemplateRepository) ListSummaries(ctx context.Context, ownerID string) ([]Summary, error) {
	var rows []Template
	if err := r.db.WithContext(ctx).
		Select("id", "name", "country", "preview_image_url", "created_at").
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list template summaries: %w", err)
	}
	out := make([]Summary, 0, len(rows))
	for _, row := range rows {
		out = append(out, Summary{
			ID:              row.ID,
			Name:            row.Name,
			Country:         row.Country,
			PreviewImageURL: row.PreviewImageURL,
			CreatedAt:       row.CreatedAt,
		})
	}
	return out, nil
}

// Delete 删除 owner 名下的模板，返回其缩略图对象 key 以便清理。
func (r *TemplateRepository) Delete(ctx context.Context, ownerID, id string) (string, error) {
	var row Template
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrTemplateNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query template %q: %w", id, err)
	}
	if err := r.db.WithContext(ctx).Delete(&row).Error; err != nil {
		return "", fmt.Errorf("delete template %q: %w", id, err)
	}
	return row.PreviewObjectKey, nil
}

// SetPreview 记录缩略图地址。模板已被删除时静默忽略。
func (r *TemplateRepository) SetPreview(ctx context.Context, id, url, objectKey string) error {
	err := r.db.WithContext(ctx).
		Model(&Template{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"preview_image_url":  url,
			"preview_object_key": objectKey,
		}).Error
	if err != nil {
		return fmt.Errorf("update template preview %q: %w", id, err)
	}
	return nil
}

func (t Template) toDomain() (template.Template, error) {
	var content templateContent
	if len(t.Content) > 0 {
		if err := json.Unmarshal(t.Content, &content); err != nil {
			return template.Template{}, fmt.Errorf("decode template %q content: %w", t.ID, err)
		}
	}
	if content.Pages == nil {
		content.Pages = []string{}
	}
	if content.Fields == nil {
		content.Fields = []template.Field{}
	}
	return template.Template{
		ID:        t.ID,
		Name:      t.Name,
		Country:   t.Country,
		Pages:     content.Pages,
		Fields:    content.Fields,
		CreatedAt: t.CreatedAt,
	}, nil
}

package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// ProfileRepository 维护账号级计数。
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Ensure 读取 profile，不存在则创建。
func (r *ProfileRepository) Ensure(ctx context.Context, id string) (Profile, error) {
	var p Profile
	if err := r.db.WithContext(ctx).Where(Profile{ID: id}).FirstOrCreate(&p).Error; err != nil {
		return Profile{}, fmt.Errorf("ensure profile %q: %w", id, err)
	}
	return p, nil
}

// IncrementGenerated 累加已生成文档数。
func (r *ProfileRepository) IncrementGenerated(ctx context.Context, id string, n int) error {
	if n <= 0 {
		return nil
	}
	if _, err := r.Ensure(ctx, id); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).
		Model(&Profile{}).
		Where("id = ?", id).
		UpdateColumn("cv_generated_count", gorm.Expr("cv_generated_count + ?", n)).Error
	if err != nil {
		return fmt.Errorf("increment generated count for %q: %w", id, err)
	}
	return nil
}

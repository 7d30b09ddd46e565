package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobArtifact 是批量任务中一份已上传的产物。
type JobArtifact struct {
	Name       string `json:"name"`
	TemplateID string `json:"templateId"`
	ObjectKey  string `json:"objectKey"`
}

// JobRepository 维护批量生成任务记录。
type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a queued job.
func (r *JobRepository) Create(ctx context.Context, job *GenerationJob) error {
	if job.Status == "" {
		job.Status = JobQueued
	}
	if len(job.Artifacts) == 0 {
		job.Artifacts = []byte("[]")
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("create generation job: %w", err)
	}
	return nil
}

// Get 读取任务；ownerID 非空时校验归属。
func (r *JobRepository) Get(ctx context.Context, ownerID, id string) (GenerationJob, error) {
	q := r.db.WithContext(ctx).Where("id = ?", id)
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	var job GenerationJob
	err := q.Take(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return GenerationJob{}, ErrJobNotFound
	}
	if err != nil {
		return GenerationJob{}, fmt.Errorf("query generation job %q: %w", id, err)
	}
	return job, nil
}

// Start 标记任务开始并记录模板数量。
func (r *JobRepository) Start(ctx context.Context, id string, total int) error {
	return r.update(ctx, id, map[string]any{"status": JobRunning, "total": total})
}

// AppendArtifact 追加一份产物并递增 delivered。
func (r *JobRepository) AppendArtifact(ctx context.Context, id string, a JobArtifact) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job GenerationJob
		if err := tx.Where("id = ?", id).Take(&job).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrJobNotFound
			}
			return fmt.Errorf("query generation job %q: %w", id, err)
		}
		artifacts, err := job.ArtifactList()
		if err != nil {
			return err
		}
		artifacts = append(artifacts, a)
		data, err := json.Marshal(artifacts)
		if err != nil {
			return fmt.Errorf("encode artifacts: %w", err)
		}
		return tx.Model(&job).Updates(map[string]any{
			"artifacts": datatypes.JSON(data),
			"delivered": len(artifacts),
		}).Error
	})
}

// Finish 写入最终状态；errMsg 为空表示成功。
func (r *JobRepository) Finish(ctx context.Context, id string, errMsg string) error {
	status := JobCompleted
	if errMsg != "" {
		status = JobFailed
	}
	return r.update(ctx, id, map[string]any{"status": status, "error": errMsg})
}

// Delete 删除已结束的任务记录；排队或运行中的任务返回 ErrJobActive。
func (r *JobRepository) Delete(ctx context.Context, ownerID, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Where("status NOT IN ?", []string{JobQueued, JobRunning}).
		Delete(&GenerationJob{})
	if res.Error != nil {
		return fmt.Errorf("delete generation job %q: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if _, err := r.Get(ctx, ownerID, id); err != nil {
		return err
	}
	return ErrJobActive
}

func (r *JobRepository) update(ctx context.Context, id string, values map[string]any) error {
	res := r.db.WithContext(ctx).Model(&GenerationJob{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("update generation job %q: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// ArtifactList decodes the stored artifacts.
func (j GenerationJob) ArtifactList() ([]JobArtifact, error) {
	out := make([]JobArtifact, 0)
	if len(j.Artifacts) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(j.Artifacts, &out); err != nil {
		return nil, fmt.Errorf("decode job %q artifacts: %w", j.ID, err)
	}
	return out, nil
}

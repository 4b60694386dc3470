package repository

import (
	"context"
	"fmt"

	"github-lead-miner/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PostgresRepo 实现了 port.Repository 接口
type PostgresRepo struct {
	db *gorm.DB
}

// NewPostgresRepo 初始化数据库连接并自动迁移表结构
func NewPostgresRepo(dsn string) (*PostgresRepo, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	// AutoMigrate 会自动建表，字段变了也会自动更新
	if err := db.AutoMigrate(&domain.PipelineRun{}, &domain.Evaluation{}); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	return &PostgresRepo{db: db}, nil
}

// SaveRun 保存一次完整的 run，评估结果通过外键级联写入
func (r *PostgresRepo) SaveRun(ctx context.Context, run *domain.PipelineRun) error {
	result := r.db.WithContext(ctx).Save(run)
	return result.Error
}

// SearchEvaluations 关键词查询
// MVP 简单粗暴：LIKE 模糊匹配公司名和润色文案，高分在前
func (r *PostgresRepo) SearchEvaluations(ctx context.Context, query string) ([]*domain.Evaluation, error) {
	var evals []*domain.Evaluation
	likeQuery := "%" + query + "%"
	err := r.db.WithContext(ctx).
		Where("company_name LIKE ? OR canonical_name LIKE ? OR rationale LIKE ?", likeQuery, likeQuery, likeQuery).
		Order("score DESC").
		Limit(10).
		Find(&evals).Error

	return evals, err
}

// RecentEvaluations 取最近入库的评估结果，供语义搜索当上下文
// 上限 100 条，防止 Token 爆炸
func (r *PostgresRepo) RecentEvaluations(ctx context.Context, limit int) ([]*domain.Evaluation, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var evals []*domain.Evaluation
	err := r.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&evals).Error
	return evals, err
}

// GetUnnotified 获取还没推送过的 High Priority 线索
func (r *PostgresRepo) GetUnnotified(ctx context.Context) ([]*domain.Evaluation, error) {
	var evals []*domain.Evaluation
	err := r.db.WithContext(ctx).
		Where("notified = ? AND tier = ?", false, string(domain.TierHigh)).
		Order("score DESC").
		Find(&evals).Error
	return evals, err
}

// MarkAsNotified 标记评估结果为已推送
func (r *PostgresRepo) MarkAsNotified(ctx context.Context, evalID uint) error {
	result := r.db.WithContext(ctx).Model(&domain.Evaluation{}).
		Where("id = ?", evalID).
		Update("notified", true)
	return result.Error
}

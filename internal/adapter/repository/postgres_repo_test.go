package repository

import (
	"context"
	"regexp"
	"testing"

	"github-lead-miner/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupMockDB 创建一个模拟的数据库连接
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	// 禁用 GORM 日志以减少输出
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open gorm db: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return gormDB, mock, cleanup
}

// evaluationColumns 评估结果表的列子集，够 GORM 扫描即可
func evaluationColumns() []string {
	return []string{"id", "run_id", "canonical_name", "company_name", "score", "tier", "rationale", "notified"}
}

func TestPostgresRepo_SearchEvaluations(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		setupMock   func(sqlmock.Sqlmock)
		expectError bool
		verify      func(*testing.T, []*domain.Evaluation)
	}{
		{
			name:  "成功搜索评估结果",
			query: "acme",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(evaluationColumns()).
					AddRow(1, "run-1", "acme inc", "Acme Inc.", 85, string(domain.TierHigh), "值得跟进", false).
					AddRow(2, "run-1", "acme labs", "Acme Labs", 55, string(domain.TierMedium), "", false)

				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "evaluations"`)).
					WillReturnRows(rows)
			},
			expectError: false,
			verify: func(t *testing.T, evals []*domain.Evaluation) {
				assert.Equal(t, 2, len(evals))
				if len(evals) >= 2 {
					assert.Equal(t, "acme inc", evals[0].CanonicalName)
					assert.Equal(t, 85, evals[0].Score)
					assert.Equal(t, domain.TierHigh, evals[0].Tier)
					assert.Equal(t, "Acme Labs", evals[1].CompanyName)
				}
			},
		},
		{
			name:  "搜索无结果",
			query: "nonexistent",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "evaluations"`)).
					WillReturnRows(sqlmock.NewRows(evaluationColumns()))
			},
			expectError: false,
			verify: func(t *testing.T, evals []*domain.Evaluation) {
				assert.Equal(t, 0, len(evals))
			},
		},
		{
			name:  "数据库错误",
			query: "error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "evaluations"`)).
					WillReturnError(gorm.ErrInvalidDB)
			},
			expectError: true,
			verify: func(t *testing.T, evals []*domain.Evaluation) {
				assert.Nil(t, evals)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock, cleanup := setupMockDB(t)
			defer cleanup()

			if tt.setupMock != nil {
				tt.setupMock(mock)
			}

			repo := &PostgresRepo{db: gormDB}
			evals, err := repo.SearchEvaluations(context.Background(), tt.query)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			tt.verify(t, evals)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepo_RecentEvaluations(t *testing.T) {
	tests := []struct {
		name        string
		limit       int
		setupMock   func(sqlmock.Sqlmock)
		expectError bool
		expectCount int
	}{
		{
			name:  "按时间倒序取最近的结果",
			limit: 5,
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(evaluationColumns()).
					AddRow(2, "run-2", "beta co", "Beta Co", 60, string(domain.TierMedium), "", false).
					AddRow(1, "run-1", "acme inc", "Acme Inc.", 85, string(domain.TierHigh), "", true)

				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "evaluations"`)).
					WillReturnRows(rows)
			},
			expectError: false,
			expectCount: 2,
		},
		{
			name:  "非法 limit 回落到上限",
			limit: -1,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "evaluations"`)).
					WillReturnRows(sqlmock.NewRows(evaluationColumns()))
			},
			expectError: false,
			expectCount: 0,
		},
		{
			name:  "数据库错误",
			limit: 10,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "evaluations"`)).
					WillReturnError(gorm.ErrInvalidDB)
			},
			expectError: true,
			expectCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock, cleanup := setupMockDB(t)
			defer cleanup()

			if tt.setupMock != nil {
				tt.setupMock(mock)
			}

			repo := &PostgresRepo{db: gormDB}
			evals, err := repo.RecentEvaluations(context.Background(), tt.limit)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectCount, len(evals))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepo_GetUnnotified(t *testing.T) {
	tests := []struct {
		name        string
		setupMock   func(sqlmock.Sqlmock)
		expectError bool
		verify      func(*testing.T, []*domain.Evaluation)
	}{
		{
			name: "成功获取待推送线索",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(evaluationColumns()).
					AddRow(1, "run-1", "acme inc", "Acme Inc.", 90, string(domain.TierHigh), "", false).
					AddRow(2, "run-1", "beta co", "Beta Co", 75, string(domain.TierHigh), "", false)

				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "evaluations"`)).
					WillReturnRows(rows)
			},
			expectError: false,
			verify: func(t *testing.T, evals []*domain.Evaluation) {
				assert.Equal(t, 2, len(evals))
				if len(evals) >= 2 {
					assert.Equal(t, 90, evals[0].Score)
					assert.False(t, evals[0].Notified)
					assert.Equal(t, domain.TierHigh, evals[1].Tier)
				}
			},
		},
		{
			name: "没有待推送的线索",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "evaluations"`)).
					WillReturnRows(sqlmock.NewRows(evaluationColumns()))
			},
			expectError: false,
			verify: func(t *testing.T, evals []*domain.Evaluation) {
				assert.Equal(t, 0, len(evals))
			},
		},
		{
			name: "数据库错误",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "evaluations"`)).
					WillReturnError(gorm.ErrInvalidDB)
			},
			expectError: true,
			verify: func(t *testing.T, evals []*domain.Evaluation) {
				assert.Nil(t, evals)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock, cleanup := setupMockDB(t)
			defer cleanup()

			if tt.setupMock != nil {
				tt.setupMock(mock)
			}

			repo := &PostgresRepo{db: gormDB}
			evals, err := repo.GetUnnotified(context.Background())

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			tt.verify(t, evals)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepo_MarkAsNotified(t *testing.T) {
	tests := []struct {
		name        string
		evalID      uint
		setupMock   func(sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name:   "成功标记为已推送",
			evalID: 7,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "evaluations"`)).
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectCommit()
			},
			expectError: false,
		},
		{
			name:   "更新不存在的记录不算错误",
			evalID: 999,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "evaluations"`)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
			expectError: false,
		},
		{
			name:   "数据库错误",
			evalID: 1,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "evaluations"`)).
					WillReturnError(gorm.ErrInvalidDB)
				mock.ExpectRollback()
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock, cleanup := setupMockDB(t)
			defer cleanup()

			if tt.setupMock != nil {
				tt.setupMock(mock)
			}

			repo := &PostgresRepo{db: gormDB}
			err := repo.MarkAsNotified(context.Background(), tt.evalID)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestNewPostgresRepo_ConnectionError(t *testing.T) {
	repo, err := NewPostgresRepo("invalid-connection-string")

	assert.Error(t, err)
	assert.Nil(t, repo)
	assert.Contains(t, err.Error(), "连接数据库失败")
}

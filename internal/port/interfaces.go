package port

import (
	"context"
	"github-lead-miner/internal/domain"
)

// CollectOptions 采集阶段的成本控制参数
type CollectOptions struct {
	PageSize      int // 每页条数，GitHub 上限 100
	MaxStargazers int // 最多翻多少个 stargazer，0 表示不设上限
	MaxIdentities int // 预筛选后保留多少个用户去拉详细资料
	Concurrency   int // 拉取用户资料的并发数
}

// CollectResult 采集阶段的产出：身份记录 + item 级错误，二者并存
type CollectResult struct {
	Identities []*domain.Identity
	Errors     []domain.StageError
	Truncated  bool // 重试预算耗尽后在最后一个成功页截断
}

// Collector (星探): 负责翻仓库的 stargazer 列表并补全用户资料
// 分页是严格顺序的，资料补全可以并发，但都要走限流
type Collector interface {
	// 返回 error 表示致命错误 (仓库不存在、第一页都拿不到)，run 直接 Failed
	Collect(ctx context.Context, owner, repo string, opts CollectOptions) (*CollectResult, error)
}

// Screen (预筛选): 在花钱拉用户资料之前把机器人账号挡掉，
// 并在拉完资料后按公司线索强弱排序
type Screen interface {
	LikelyBot(handle string) bool
	Prioritize(identities []*domain.Identity) []*domain.Identity
}

// ResolveResult 归并结果 + 无法归属公司的用户数 (可观测性，不是错误)
type ResolveResult struct {
	Candidates []*domain.CompanyCandidate
	Unmatched  int
}

// Resolver (归并员): 把身份记录归并成去重后的公司候选
// 纯内存折叠，不发起外部调用
type Resolver interface {
	Resolve(identities []*domain.Identity) *ResolveResult
}

// Enricher (情报员): 负责抓取一家公司的公开情报并解析成结构化档案
// 返回 error 属于 item 级失败，调用方降级为 Failed 档案继续往下走
type Enricher interface {
	Enrich(ctx context.Context, candidate *domain.CompanyCandidate) (*domain.CompanyProfile, error)
}

// Evaluator (评分员): 对公司档案做确定性打分
// 纯函数：同样的档案永远得到同样的分数和档位
type Evaluator interface {
	Evaluate(profile *domain.CompanyProfile) *domain.Evaluation
}

// Refiner (润色师): 调用 LLM 把因子明细润色成一段人话
// 失败或超时只会让 Rationale 留空，绝不影响分数和档位
type Refiner interface {
	Refine(ctx context.Context, eval *domain.Evaluation, profile *domain.CompanyProfile) (string, error)

	// SemanticSearch 对应自然语言查询功能：把存量评估结果喂给 LLM 做语义匹配
	SemanticSearch(ctx context.Context, evals []*domain.Evaluation, userQuery string) (string, error)
}

// Repository (仓库管理员): 负责 run 和评估结果的存储与查询
type Repository interface {
	// 保存整个 run (含评估结果)
	SaveRun(ctx context.Context, run *domain.PipelineRun) error

	// Search 关键词查询，MVP 阶段是 SQL 的 LIKE 查询
	SearchEvaluations(ctx context.Context, query string) ([]*domain.Evaluation, error)

	// 取最近的评估结果，供语义搜索当上下文
	RecentEvaluations(ctx context.Context, limit int) ([]*domain.Evaluation, error)

	// 推送去重
	GetUnnotified(ctx context.Context) ([]*domain.Evaluation, error)
	MarkAsNotified(ctx context.Context, evalID uint) error
}

// Notifier (信使): 把 High Priority 的线索推送到通知通道 (飞书)
type Notifier interface {
	Notify(ctx context.Context, eval *domain.Evaluation) error
}

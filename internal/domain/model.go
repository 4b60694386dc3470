package domain

import "time"

// Identity 代表一个给目标仓库点了 Star 的 GitHub 用户
type Identity struct {
	Handle        string   `json:"handle"` // 唯一键，GitHub login
	DisplayName   string   `json:"display_name,omitempty"`
	RawCompany    string   `json:"raw_company,omitempty"` // 用户资料里的公司自由文本，可能带 @ 前缀
	Organizations []string `json:"organizations,omitempty"`

	// 辅助信号 (来自用户资料，供预筛选打分用)
	Bio      string `json:"bio,omitempty"`
	Blog     string `json:"blog,omitempty"`
	Location string `json:"location,omitempty"`
}

// HasCompanySignal 判断该用户是否携带任何可用的公司线索
func (i *Identity) HasCompanySignal() bool {
	return i.RawCompany != "" || len(i.Organizations) > 0
}

// CompanyCandidate 一家从一个或多个 Identity 推断出来的公司
// CanonicalName 在一次 run 内唯一 (大小写、标点不敏感)
type CompanyCandidate struct {
	CanonicalName string   `json:"canonical_name"` // 归一化后的键
	DisplayName   string   `json:"display_name"`   // 首次出现时的原始写法，用于展示
	Contributors  []string `json:"contributors"`   // 贡献线索的用户 handle，≥1
	Confidence    float64  `json:"confidence"`     // 1 - 1/(1+n)，随人数递增但边际递减
}

// EnrichmentStatus 情报抓取结果的完整度
type EnrichmentStatus string

const (
	EnrichComplete EnrichmentStatus = "Complete"
	EnrichPartial  EnrichmentStatus = "Partial"
	EnrichFailed   EnrichmentStatus = "Failed" // Failed 时其余内容字段必须为空
)

// CompanyProfile 一家公司的情报抓取结果，创建后不再修改 (重试产生替换而非原地改)
type CompanyProfile struct {
	CanonicalName string           `json:"canonical_name"`
	DisplayName   string           `json:"display_name,omitempty"`
	Description   string           `json:"description,omitempty"`
	Technologies  []string         `json:"technologies,omitempty"`
	Industry      string           `json:"industry,omitempty"`
	EmployeeCount int              `json:"employee_count,omitempty"` // 0 表示未知
	DataNeed      bool             `json:"data_need,omitempty"`      // 明确的数据采集需求信号
	Status        EnrichmentStatus `json:"status"`
	Confidence    float64          `json:"confidence,omitempty"` // 继承自 CompanyCandidate
}

// Tier 推荐档位，由分数查表得出，固定不重叠区间
type Tier string

const (
	TierHigh   Tier = "High Priority"   // [70,100]
	TierMedium Tier = "Medium Priority" // [50,69]
	TierLow    Tier = "Low Priority"    // [30,49]
	TierNotRec Tier = "Not Recommended" // [0,29]
)

// TierForScore 分数 → 档位的唯一换算入口，别处不得重新推导
func TierForScore(score int) Tier {
	switch {
	case score >= 70:
		return TierHigh
	case score >= 50:
		return TierMedium
	case score >= 30:
		return TierLow
	default:
		return TierNotRec
	}
}

// FactorBreakdown 各评分因子的贡献，各项之和等于最终分数
type FactorBreakdown map[string]int

// Total 各因子贡献求和
func (f FactorBreakdown) Total() int {
	sum := 0
	for _, v := range f {
		sum += v
	}
	return sum
}

// Evaluation 一家公司的最终评估结果
type Evaluation struct {
	CanonicalName string          `json:"canonical_name" gorm:"index"`
	CompanyName   string          `json:"company_name"`
	Score         int             `json:"score"` // [0,100]，恒等于 Factors.Total()
	Factors       FactorBreakdown `json:"factors" gorm:"serializer:json"`
	Tier          Tier            `json:"tier"`
	Rationale     string          `json:"rationale,omitempty" gorm:"type:text"` // 可选，LLM 润色，失败时留空

	// 持久化字段
	ID        uint      `json:"-" gorm:"primaryKey;autoIncrement"`
	RunID     string    `json:"-" gorm:"index"`
	Notified  bool      `json:"-"` // 是否已推送过
	CreatedAt time.Time `json:"-"`
}

// RunStatus 整个 pipeline run 的最终状态
type RunStatus string

const (
	RunSuccess        RunStatus = "Success"        // 没有任何 item 级错误
	RunPartialSuccess RunStatus = "PartialSuccess" // 有 item 级错误或被取消，但有产出
	RunFailed         RunStatus = "Failed"         // 致命错误，产出为空
)

// Stage pipeline 阶段标识
type Stage string

const (
	StageCollecting Stage = "Collecting"
	StageResolving  Stage = "Resolving"
	StageEnriching  Stage = "Enriching"
	StageEvaluating Stage = "Evaluating"
	StageRanking    Stage = "Ranking"
	StageDone       Stage = "Done"
	StageFailed     Stage = "Failed"
)

// StageError 单个 item 的阶段级错误，不会中断 run
type StageError struct {
	Stage  Stage  `json:"stage"`
	Item   string `json:"item"` // handle 或公司名
	Reason string `json:"reason"`
}

// PipelineRun 一次端到端执行的聚合结果，由 Orchestrator 独占填写，交给调用方后只读
type PipelineRun struct {
	ID          string        `json:"id" gorm:"primaryKey"`
	Repo        string        `json:"repo"`
	Status      RunStatus     `json:"status"`
	FatalReason string        `json:"fatal_reason,omitempty"` // 仅 Failed 时非空
	Evaluations []*Evaluation `json:"evaluations" gorm:"foreignKey:RunID"`
	Errors      []StageError  `json:"errors,omitempty" gorm:"serializer:json"`

	// 运行统计 (可观测性，不是错误)
	StargazersFetched int `json:"stargazers_fetched"`
	CompaniesResolved int `json:"companies_resolved"`
	UnmatchedCount    int `json:"unmatched_count"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// TopTier 返回 High Priority 的评估结果，用于推送和日志
func (r *PipelineRun) TopTier() []*Evaluation {
	var top []*Evaluation
	for _, e := range r.Evaluations {
		if e.Tier == TierHigh {
			top = append(top, e)
		}
	}
	return top
}

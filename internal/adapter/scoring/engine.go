package scoring

import (
	"regexp"
	"strings"

	"github-lead-miner/internal/domain"
)

// 因子名常量，明细里的键
const (
	FactorTechnology   = "technology"
	FactorIndustry     = "industry"
	FactorCompanySize  = "company_size"
	FactorDataNeed     = "data_need"
	FactorCompleteness = "completeness"
)

// Engine 实现了 port.Evaluator 接口
// 纯函数打分：没有隐藏状态，同样的档案永远得到同样的分数
type Engine struct {
	rubric *Rubric
}

// NewEngine 创建新的评分引擎实例
func NewEngine(rubric *Rubric) *Engine {
	if rubric == nil {
		rubric = DefaultRubric()
	}
	return &Engine{rubric: rubric}
}

// Evaluate 按规则表对公司档案打分
// 分数恒等于因子明细之和，档位由 domain.TierForScore 查表得出
func (e *Engine) Evaluate(profile *domain.CompanyProfile) *domain.Evaluation {
	r := e.rubric
	corpus := buildCorpus(profile)

	factors := domain.FactorBreakdown{
		FactorTechnology:  keywordScore(corpus, profile.Technologies, r.TechKeywords, r.TechCap),
		FactorIndustry:    keywordScore(corpus, nil, r.IndustryKeywords, r.IndustryCap),
		FactorCompanySize: e.sizeScore(profile.EmployeeCount),
	}
	if profile.DataNeed {
		factors[FactorDataNeed] = r.DataNeedBonus
	} else {
		factors[FactorDataNeed] = 0
	}

	total := factors.Total()

	// 完整度修正：情报不全扣一点，全失败封死天花板
	penalty := 0
	switch profile.Status {
	case domain.EnrichPartial:
		penalty = r.PartialPenalty
		// 信号强的公司不该仅因抓取不全就跌出"值得一看"的范围
		if total >= r.PartialFloor && total-penalty < r.PartialFloor {
			penalty = total - r.PartialFloor
		}
		if penalty > total {
			penalty = total
		}
	case domain.EnrichFailed:
		if total > r.FailedCeiling {
			penalty = total - r.FailedCeiling
		}
	}
	factors[FactorCompleteness] = -penalty
	total -= penalty

	// 自定义规则表可能把上限拉爆，超出部分也记在完整度项里，
	// 保证明细之和恒等于最终分数
	if total > 100 {
		factors[FactorCompleteness] -= total - 100
		total = 100
	}
	if total < 0 {
		factors[FactorCompleteness] -= total
		total = 0
	}

	return &domain.Evaluation{
		CanonicalName: profile.CanonicalName,
		CompanyName:   displayName(profile),
		Score:         total,
		Factors:       factors,
		Tier:          domain.TierForScore(total),
	}
}

func displayName(profile *domain.CompanyProfile) string {
	if profile.DisplayName != "" {
		return profile.DisplayName
	}
	return profile.CanonicalName
}

// buildCorpus 把档案里所有文本拼成检索语料
func buildCorpus(profile *domain.CompanyProfile) string {
	parts := []string{profile.Description, profile.Industry}
	parts = append(parts, profile.Technologies...)
	return strings.ToLower(strings.Join(parts, " "))
}

// keywordScore 命中的关键词权重求和后封顶
// 加法满足交换律，和 map 的遍历顺序无关，结果是确定的
func keywordScore(corpus string, tags []string, keywords map[string]int, limit int) int {
	score := 0
	for kw, points := range keywords {
		if matchKeyword(corpus, tags, kw) {
			score += points
		}
	}
	if score > limit {
		score = limit
	}
	return score
}

// matchKeyword 标签精确匹配；语料里短词按整词匹配，防止 "ai" 命中 "maintain"
func matchKeyword(corpus string, tags []string, kw string) bool {
	for _, tag := range tags {
		if strings.EqualFold(strings.TrimSpace(tag), kw) {
			return true
		}
	}
	if corpus == "" {
		return false
	}
	if len(kw) <= 3 {
		pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
		return pattern.MatchString(corpus)
	}
	return strings.Contains(corpus, kw)
}

// sizeScore 规模越大分越高；未知规模给中间值而不是零分
func (e *Engine) sizeScore(employees int) int {
	if employees <= 0 {
		return e.rubric.SizeUnknown
	}
	for _, band := range e.rubric.SizeBands {
		if employees >= band.Min {
			return band.Points
		}
	}
	return 0
}

package filter

import (
	"regexp"
	"sort"
	"strings"

	"github-lead-miner/internal/domain"
)

// IdentityScreen 实现了 port.Screen 接口
// 纯内存启发式，不发起任何外部调用
type IdentityScreen struct{}

// NewIdentityScreen 创建新的预筛选器实例
func NewIdentityScreen() *IdentityScreen {
	return &IdentityScreen{}
}

// 机器人/测试账号的 handle 特征
var botPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[bot\]$`),
	regexp.MustCompile(`(?i)-bot$`),
	regexp.MustCompile(`^\d+$`), // 纯数字
	regexp.MustCompile(`(?i)^test`),
	regexp.MustCompile(`(?i)^demo`),
}

// LikelyBot 判断 handle 是否疑似机器人或测试账号
// 这种账号拉资料纯属浪费 API 配额
func (s *IdentityScreen) LikelyBot(handle string) bool {
	for _, p := range botPatterns {
		if p.MatchString(handle) {
			return true
		}
	}
	return false
}

// bio 里出现这些词说明是职业开发者，公司线索更可信
var professionalKeywords = []string{
	"engineer", "developer", "founder", "cto", "ceo",
	"lead", "manager", "architect", "data", "ml", "ai",
}

// 科技公司聚集的城市，所在地命中时加一点分
var techHubs = []string{
	"san francisco", "new york", "london", "berlin", "tokyo",
	"seattle", "austin", "boston", "paris", "singapore",
}

// PriorityScore 估算一个用户背后有价值公司的可能性，分数越高越优先
func (s *IdentityScreen) PriorityScore(identity *domain.Identity) int {
	score := 0

	// 1. 明确填了公司 (+50)
	if identity.RawCompany != "" {
		score += 50
	}

	// 2. 组织成员 (+30/个，封顶 60)
	orgScore := len(identity.Organizations) * 30
	if orgScore > 60 {
		orgScore = 60
	}
	score += orgScore

	// 3. 职业相关的 bio (+20)
	bio := strings.ToLower(identity.Bio)
	for _, kw := range professionalKeywords {
		if strings.Contains(bio, kw) {
			score += 20
			break
		}
	}

	// 4. 有个人主页/博客 (+15)
	if identity.Blog != "" {
		score += 15
	}

	// 5. 所在地是科技中心 (+10)
	location := strings.ToLower(identity.Location)
	for _, hub := range techHubs {
		if strings.Contains(location, hub) {
			score += 10
			break
		}
	}

	return score
}

// Prioritize 按优先级分数降序排列，分数相同时保持原有顺序 (稳定排序)
func (s *IdentityScreen) Prioritize(identities []*domain.Identity) []*domain.Identity {
	ranked := make([]*domain.Identity, len(identities))
	copy(ranked, identities)

	sort.SliceStable(ranked, func(i, j int) bool {
		return s.PriorityScore(ranked[i]) > s.PriorityScore(ranked[j])
	})

	return ranked
}

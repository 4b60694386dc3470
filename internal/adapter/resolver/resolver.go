package resolver

import (
	"sort"
	"strings"
	"unicode"

	"github-lead-miner/internal/domain"
	"github-lead-miner/internal/port"
)

// CompanyResolver 实现了 port.Resolver 接口
// 单遍内存折叠：身份记录 → 去重后的公司候选
type CompanyResolver struct{}

// NewCompanyResolver 创建新的归并器实例
func NewCompanyResolver() *CompanyResolver {
	return &CompanyResolver{}
}

// Resolve 把每个身份记录归并到零或多个公司候选
// 两个原始名字归一化后相同就是同一家公司，仅做精确匹配——
// 模糊合并会把不同公司悄悄混在一起，宁可分开也不能错合
func (r *CompanyResolver) Resolve(identities []*domain.Identity) *port.ResolveResult {
	result := &port.ResolveResult{}
	byKey := make(map[string]*domain.CompanyCandidate)
	// 记录 handle → 已贡献过的公司键，同一个人不能给同一家公司投两票
	seen := make(map[string]map[string]bool)

	for _, identity := range identities {
		// 是否至少给一家候选公司贡献过线索；
		// 纯标点的公司名 ("---") 归一化后是空键，等同于没有线索
		contributed := false

		for _, raw := range rawCompanyNames(identity) {
			display := displayForm(raw)
			key := CanonicalKey(display)
			if key == "" {
				continue
			}
			contributed = true

			cand, ok := byKey[key]
			if !ok {
				cand = &domain.CompanyCandidate{
					CanonicalName: key,
					DisplayName:   display, // 首次出现的写法当展示名
				}
				byKey[key] = cand
			}

			if seen[identity.Handle] == nil {
				seen[identity.Handle] = make(map[string]bool)
			}
			if !seen[identity.Handle][key] {
				seen[identity.Handle][key] = true
				cand.Contributors = append(cand.Contributors, identity.Handle)
			}
		}

		if !contributed {
			// 没有任何可用线索，计入 unmatched (可观测性，不是错误)
			result.Unmatched++
		}
	}

	for _, cand := range byKey {
		cand.Confidence = ConfidenceFor(len(cand.Contributors))
		result.Candidates = append(result.Candidates, cand)
	}

	// 按归一化键排序，保证同样的输入得到同样的输出顺序
	sort.Slice(result.Candidates, func(i, j int) bool {
		return result.Candidates[i].CanonicalName < result.Candidates[j].CanonicalName
	})

	return result
}

// rawCompanyNames 从公司自由文本和组织成员关系里提取原始名字
func rawCompanyNames(identity *domain.Identity) []string {
	var names []string

	if display := displayForm(identity.RawCompany); display != "" {
		names = append(names, display)
	}
	for _, org := range identity.Organizations {
		if display := displayForm(org); display != "" {
			names = append(names, display)
		}
	}

	return names
}

// displayForm 去掉开头的 @ 归属标记，压缩空白，保留原始大小写
func displayForm(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "@")
	s = strings.Join(strings.Fields(s), " ")
	return s
}

// CanonicalKey 归一化成比较用的键：小写 + 去标点 + 压缩空白
// "Acme Inc." 和 "  acme inc  " 都会变成 "acme inc"
func CanonicalKey(display string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(display) {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ConfidenceFor 候选公司的置信度：1 - 1/(1+n)
// 人数越多越可信，但边际递减，防止人多的公司光靠数量霸榜
func ConfidenceFor(contributors int) float64 {
	if contributors <= 0 {
		return 0
	}
	return 1 - 1/float64(1+contributors)
}

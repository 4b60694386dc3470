package filter

import (
	"testing"

	"github-lead-miner/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestLikelyBot(t *testing.T) {
	screen := NewIdentityScreen()

	tests := []struct {
		handle string
		want   bool
	}{
		{"dependabot[bot]", true},
		{"renovate-bot", true},
		{"12345", true},
		{"test-account", true},
		{"demouser", true},
		{"octocat", false},
		{"jane-doe", false},
		{"botanist", false}, // bot 在开头不算后缀
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, screen.LikelyBot(tt.handle), "handle=%s", tt.handle)
	}
}

func TestPriorityScore(t *testing.T) {
	screen := NewIdentityScreen()

	// 公司 + 2 个组织 + 职业 bio + 博客 + 科技中心 = 50+60+20+15+10
	full := &domain.Identity{
		Handle:        "full",
		RawCompany:    "@acme",
		Organizations: []string{"acme", "acme-labs"},
		Bio:           "Staff Engineer working on ML infra",
		Blog:          "https://example.com",
		Location:      "San Francisco, CA",
	}
	assert.Equal(t, 155, screen.PriorityScore(full))

	empty := &domain.Identity{Handle: "empty"}
	assert.Equal(t, 0, screen.PriorityScore(empty))

	// 组织分封顶 60
	manyOrgs := &domain.Identity{
		Handle:        "orgs",
		Organizations: []string{"a", "b", "c", "d", "e"},
	}
	assert.Equal(t, 60, screen.PriorityScore(manyOrgs))
}

func TestPrioritize(t *testing.T) {
	screen := NewIdentityScreen()

	weak := &domain.Identity{Handle: "weak"}
	strong := &domain.Identity{Handle: "strong", RawCompany: "Acme"}
	medium := &domain.Identity{Handle: "medium", Organizations: []string{"acme"}}

	ranked := screen.Prioritize([]*domain.Identity{weak, medium, strong})

	assert.Equal(t, []string{"strong", "medium", "weak"},
		[]string{ranked[0].Handle, ranked[1].Handle, ranked[2].Handle})

	// 原切片不被改动
	assert.Equal(t, "weak", weak.Handle)
}

// 分数相同时保持输入顺序 (稳定排序)，保证输出确定
func TestPrioritize_StableForTies(t *testing.T) {
	screen := NewIdentityScreen()

	a := &domain.Identity{Handle: "a", RawCompany: "X"}
	b := &domain.Identity{Handle: "b", RawCompany: "Y"}

	ranked := screen.Prioritize([]*domain.Identity{a, b})
	assert.Equal(t, "a", ranked[0].Handle)
	assert.Equal(t, "b", ranked[1].Handle)
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github-lead-miner/internal/adapter/enrich"
	"github-lead-miner/internal/adapter/resolver"
	"github-lead-miner/internal/adapter/scoring"
	"github-lead-miner/internal/common"
	"github-lead-miner/internal/domain"

	"github.com/joho/godotenv"
)

// 调试入口: 对单个公司名跑一遍 情报抓取 → 评分，不走完整 pipeline
func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println("用法: debug <公司名>")
		return
	}
	companyName := os.Args[1]

	ctx := context.Background()

	gov := common.NewGovernor(0.5, 1)
	enricher, err := enrich.NewEnricher(os.Getenv("SGAI_API_KEY"), os.Getenv("SGAI_API_URL"), gov)
	if err != nil {
		log.Fatalf("❌ 情报抓取器初始化失败: %v", err)
	}
	engine := scoring.NewEngine(scoring.DefaultRubric())

	candidate := &domain.CompanyCandidate{
		CanonicalName: resolver.CanonicalKey(companyName),
		DisplayName:   companyName,
		Contributors:  []string{"debug"},
		Confidence:    resolver.ConfidenceFor(1),
	}

	fmt.Printf("🔍 调试模式：抓取并评估 %s\n", companyName)

	profile, err := enricher.Enrich(ctx, candidate)
	if err != nil {
		log.Printf("❌ 情报抓取失败: %v，按空档案评分", err)
		profile = &domain.CompanyProfile{
			CanonicalName: candidate.CanonicalName,
			DisplayName:   candidate.DisplayName,
			Confidence:    candidate.Confidence,
			Status:        domain.EnrichFailed,
		}
	}

	fmt.Printf("  抓取状态: %s\n", profile.Status)
	fmt.Printf("  行业: %s\n", profile.Industry)
	fmt.Printf("  技术标签: %v\n", profile.Technologies)
	fmt.Printf("  员工数: %d\n", profile.EmployeeCount)
	fmt.Printf("  数据需求信号: %v\n", profile.DataNeed)

	eval := engine.Evaluate(profile)
	fmt.Println()
	fmt.Printf("  评分: %d/100\n", eval.Score)
	fmt.Printf("  档位: %s\n", eval.Tier)
	fmt.Println("  因子明细:")
	for name, points := range eval.Factors {
		fmt.Printf("    %s: %+d\n", name, points)
	}
}

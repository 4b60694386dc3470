package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github-lead-miner/internal/adapter/enrich"
	"github-lead-miner/internal/adapter/export"
	"github-lead-miner/internal/adapter/feishu"
	"github-lead-miner/internal/adapter/filter"
	"github-lead-miner/internal/adapter/gemini"
	"github-lead-miner/internal/adapter/github"
	"github-lead-miner/internal/adapter/repository"
	"github-lead-miner/internal/adapter/resolver"
	"github-lead-miner/internal/adapter/scoring"
	"github-lead-miner/internal/common"
	"github-lead-miner/internal/domain"
	"github-lead-miner/internal/port"
	"github-lead-miner/internal/service"

	"github.com/joho/godotenv"
)

func main() {
	// 1. 定义命令行参数
	mode := flag.String("mode", "mine", "运行模式: mine (找线索) 或 search (查询存量线索)")
	repo := flag.String("repo", "", "目标仓库，owner/name 格式 (仅在 mine 模式下有效)")
	query := flag.String("q", "", "搜索关键词或自然语言问题 (仅在 search 模式下有效)")
	maxStars := flag.Int("max-stars", 1000, "最多检查多少个 stargazer")
	maxUsers := flag.Int("max-users", 100, "最多给多少个用户拉详细资料")
	minScore := flag.Int("min-score", 0, "低于这个分数不进榜单")
	maxCompanies := flag.Int("max-companies", 0, "榜单最多留多少家，0表示不裁")
	concurrency := flag.Int("concurrency", 3, "情报抓取/评分并发数")
	hydrateConcurrency := flag.Int("hydrate-concurrency", 0, "采集阶段拉用户资料的并发数，0 沿用 -concurrency")
	timeout := flag.Int("timeout", 10, "单次 run 的超时时间（分钟）")
	collectTimeout := flag.Int("collect-timeout", 0, "采集阶段的超时（分钟），0 表示只受 -timeout 约束")
	enrichTimeout := flag.Int("enrich-timeout", 0, "情报抓取/评分阶段的超时（分钟），0 表示只受 -timeout 约束")
	rubricPath := flag.String("rubric", "", "评分规则表 YAML 路径，留空用默认权重")
	exportPath := flag.String("export", "", "把最终榜单导出成 CSV 的路径")
	flag.Parse()

	// 2. 加载环境变量
	_ = godotenv.Load()

	// 3. 初始化公共依赖 (数据库可选)
	var repoStore port.Repository
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		store, err := repository.NewPostgresRepo(dsn)
		if err != nil {
			log.Fatalf("❌ DB 初始化失败: %v", err)
		}
		repoStore = store
	} else {
		fmt.Println("ℹ️ 未配置 DATABASE_DSN，结果不落库")
	}

	// 4. 初始化 AI 依赖 (可选，没有 Key 就跳过润色)
	ctx := context.Background()
	var refiner port.Refiner
	if geminiKey := os.Getenv("GEMINI_API_KEY"); geminiKey != "" {
		r, err := gemini.NewGeminiRefiner(ctx, geminiKey)
		if err != nil {
			log.Fatalf("❌ AI 初始化失败: %v", err)
		}
		refiner = r
	} else {
		fmt.Println("ℹ️ 未配置 GEMINI_API_KEY，跳过润色和语义搜索")
	}

	// 5. 根据模式分流
	switch *mode {
	case "mine":
		if *repo == "" {
			fmt.Println("⚠️ 请用 -repo owner/name 指定目标仓库")
			fmt.Println("例如: -repo ScrapeGraphAI/Scrapegraph-ai")
			return
		}
		runMine(repoStore, refiner, *repo, *rubricPath, *exportPath, service.PipelineOptions{
			MaxStargazers:      *maxStars,
			MaxIdentities:      *maxUsers,
			Concurrency:        *concurrency,
			HydrateConcurrency: *hydrateConcurrency,
			CollectTimeout:     time.Duration(*collectTimeout) * time.Minute,
			EnrichTimeout:      time.Duration(*enrichTimeout) * time.Minute,
			MinScore:           *minScore,
			MaxCompanies:       *maxCompanies,
		}, time.Duration(*timeout)*time.Minute)
	case "search":
		runSearch(repoStore, refiner, *query)
	default:
		fmt.Println("❌ 未知模式，请使用 -mode=mine 或 -mode=search")
	}
}

// runMine 跑一次完整的找线索周期
func runMine(repoStore port.Repository, refiner port.Refiner, repo, rubricPath, exportPath string, opts service.PipelineOptions, timeout time.Duration) {
	// 整个 run 一个超时 + 信号取消：取消后不再发起新调用，已完成的照常收录
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n👋 收到停止信号，完成在途调用后收尾...")
		cancel()
	}()

	rubric, err := scoring.LoadRubric(rubricPath)
	if err != nil {
		log.Fatalf("❌ 规则表加载失败: %v", err)
	}

	// GitHub 元数据相对便宜，情报抓取又贵又慢，各走各的限流
	githubGov := common.NewGovernor(2, 5)
	enrichGov := common.NewGovernor(0.5, int64(workerCap(opts.Concurrency)))

	collector := github.NewCollector(os.Getenv("GITHUB_TOKEN"), githubGov, filter.NewIdentityScreen())
	enricher, err := enrich.NewEnricher(os.Getenv("SGAI_API_KEY"), os.Getenv("SGAI_API_URL"), enrichGov)
	if err != nil {
		log.Fatalf("❌ 情报抓取器初始化失败: %v", err)
	}

	var notifier port.Notifier
	if webhook := os.Getenv("FEISHU_WEBHOOK"); webhook != "" {
		notifier = feishu.NewNotifier(webhook)
	}

	leadService := service.NewLeadService(
		collector,
		resolver.NewCompanyResolver(),
		enricher,
		scoring.NewEngine(rubric),
		refiner,
		repoStore,
		notifier,
	)

	run := leadService.ExecuteScoutCycle(ctx, repo, opts)
	printRun(run)

	if exportPath != "" && len(run.Evaluations) > 0 {
		if err := export.WriteCSVFile(exportPath, run.Evaluations); err != nil {
			log.Printf("❌ CSV 导出失败: %v", err)
		} else {
			fmt.Printf("📄 榜单已导出到 %s\n", exportPath)
		}
	}
}

// printRun 打印最终榜单和 run 级别的结果信封
func printRun(run *domain.PipelineRun) {
	fmt.Println("\n================ [ 评估结果 ] ================")
	fmt.Printf("仓库: %s | 状态: %s\n", run.Repo, run.Status)
	fmt.Printf("检查了 %d 个用户，归并出 %d 家公司 (%d 个用户无公司线索)\n",
		run.StargazersFetched, run.CompaniesResolved, run.UnmatchedCount)

	if run.Status == domain.RunFailed {
		fmt.Printf("❌ 失败原因: %s\n", run.FatalReason)
		return
	}

	for i, e := range run.Evaluations {
		fmt.Printf("%2d. %s %-30s %3d/100  %s\n", i+1, tierEmoji(e.Tier), e.CompanyName, e.Score, e.Tier)
		if e.Rationale != "" {
			fmt.Printf("      💬 %s\n", e.Rationale)
		}
	}

	if len(run.Errors) > 0 {
		fmt.Printf("\n⚠️ 共 %d 个 item 级错误:\n", len(run.Errors))
		for _, se := range run.Errors {
			fmt.Printf("   [%s] %s: %s\n", se.Stage, se.Item, se.Reason)
		}
	}
	fmt.Println("==============================================")
}

func tierEmoji(tier domain.Tier) string {
	switch tier {
	case domain.TierHigh:
		return "🟢"
	case domain.TierMedium:
		return "🟡"
	case domain.TierLow:
		return "🟠"
	default:
		return "⚪"
	}
}

// --- 搜索模式逻辑 ---
func runSearch(repoStore port.Repository, refiner port.Refiner, query string) {
	if query == "" {
		fmt.Println("⚠️ 请输入你的需求，用大白话就行。")
		fmt.Println("例如: -q '做电商数据分析的公司' 或 -q 'fintech'")
		return
	}
	if repoStore == nil {
		fmt.Println("📭 未配置 DATABASE_DSN，没有存量线索可查。请先配置数据库并运行 -mode=mine")
		return
	}

	ctx := context.Background()

	// 有 AI 就做语义匹配，没有就退化成关键词查询
	if refiner != nil {
		fmt.Println("🤖 正在读取线索库，并进行 AI 语义分析...")
		evals, err := repoStore.RecentEvaluations(ctx, 100)
		if err != nil {
			log.Fatalf("读取线索库失败: %v", err)
		}
		if len(evals) == 0 {
			fmt.Println("📭 线索库是空的。请先运行 -mode=mine 挖一些线索！")
			return
		}

		fmt.Printf("📚 已加载 %d 条线索作为上下文，AI 正在匹配你的需求: [%s] ...\n", len(evals), query)
		answer, err := refiner.SemanticSearch(ctx, evals, query)
		if err != nil {
			log.Printf("❌ AI 分析失败: %v", err)
			return
		}

		fmt.Println("\n================ [ 智能搜索结果 ] ================")
		fmt.Println(answer)
		fmt.Println("==================================================")
		return
	}

	evals, err := repoStore.SearchEvaluations(ctx, query)
	if err != nil {
		log.Fatalf("查询线索库失败: %v", err)
	}
	if len(evals) == 0 {
		fmt.Println("📭 没有匹配的线索")
		return
	}
	for i, e := range evals {
		fmt.Printf("%2d. %s %-30s %3d/100  %s\n", i+1, tierEmoji(e.Tier), e.CompanyName, e.Score, e.Tier)
	}
}

func workerCap(concurrency int) int {
	if concurrency <= 0 {
		return 3
	}
	return concurrency
}

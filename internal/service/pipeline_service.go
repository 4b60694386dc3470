package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github-lead-miner/internal/domain"
	"github-lead-miner/internal/port"

	"github.com/rs/xid"
)

// PipelineOptions 一次 run 的成本控制和输出裁剪参数
type PipelineOptions struct {
	PageSize      int // stargazer 列表每页条数
	MaxStargazers int // 最多检查多少个 stargazer
	MaxIdentities int // 最多给多少个用户拉详细资料

	// 每个阶段有自己的并发上限和超时，贵的阶段管得严一点
	Concurrency        int           // 情报抓取/评分阶段的并发数
	HydrateConcurrency int           // 采集阶段拉用户资料的并发数，0 时沿用 Concurrency
	CollectTimeout     time.Duration // 采集阶段的超时，0 表示只受 run 级超时约束
	EnrichTimeout      time.Duration // 情报抓取/评分阶段的超时，0 同上

	MinScore     int // 低于这个分数不进最终榜单
	MaxCompanies int // 榜单最多留多少家，0 表示不裁
}

// hydrateWorkers 采集阶段没单独配并发数就沿用情报阶段的
func (o PipelineOptions) hydrateWorkers() int {
	if o.HydrateConcurrency > 0 {
		return o.HydrateConcurrency
	}
	return o.Concurrency
}

// LeadService 处理找线索的端到端流程
// 它独占 PipelineRun 的写权限，交出去之后就是只读结果
type LeadService struct {
	collector port.Collector
	resolver  port.Resolver
	enricher  port.Enricher
	evaluator port.Evaluator
	refiner   port.Refiner    // 可选，nil 时跳过润色
	repoStore port.Repository // 可选，nil 时不落库
	notifier  port.Notifier   // 可选，nil 时不推送
}

// NewLeadService 创建新的线索服务
func NewLeadService(
	collector port.Collector,
	resolver port.Resolver,
	enricher port.Enricher,
	evaluator port.Evaluator,
	refiner port.Refiner,
	repoStore port.Repository,
	notifier port.Notifier,
) *LeadService {
	return &LeadService{
		collector: collector,
		resolver:  resolver,
		enricher:  enricher,
		evaluator: evaluator,
		refiner:   refiner,
		repoStore: repoStore,
		notifier:  notifier,
	}
}

// Run 执行一次完整的 pipeline:
// Collecting → Resolving → Enriching → Evaluating → Ranking → Done
// 每个阶段把整批输入处理完才进入下一个阶段；item 级失败只记录不中断，
// 只有采集阶段的致命错误会让整个 run 进入 Failed
func (s *LeadService) Run(ctx context.Context, repo string, opts PipelineOptions) *domain.PipelineRun {
	run := &domain.PipelineRun{
		ID:        xid.New().String(),
		Repo:      repo,
		StartedAt: time.Now(),
	}

	owner, name, ok := splitRepo(repo)
	if !ok {
		return s.fail(run, fmt.Sprintf("非法的仓库标识: %q，应为 owner/name 格式", repo))
	}

	// --- Collecting ---
	fmt.Printf("🔭 [%s] 正在收集 %s 的 stargazers...\n", domain.StageCollecting, repo)
	collectCtx, cancelCollect := stageContext(ctx, opts.CollectTimeout)
	collected, err := s.collector.Collect(collectCtx, owner, name, port.CollectOptions{
		PageSize:      opts.PageSize,
		MaxStargazers: opts.MaxStargazers,
		MaxIdentities: opts.MaxIdentities,
		Concurrency:   opts.hydrateWorkers(),
	})
	cancelCollect()
	if err != nil {
		// run 级取消不是致命错误：按取消语义收尾，带着已有的 (空) 产出
		if ctx.Err() != nil {
			fmt.Println("⏰ run 被取消，采集阶段未完成")
			run.Errors = append(run.Errors, domain.StageError{
				Stage:  domain.StageCollecting,
				Item:   "-",
				Reason: "run 被取消，采集未完成",
			})
			run.Status = domain.RunPartialSuccess
			run.FinishedAt = time.Now()
			return run
		}
		return s.fail(run, err.Error())
	}
	run.Errors = append(run.Errors, collected.Errors...)
	run.StargazersFetched = len(collected.Identities)
	if collected.Truncated {
		fmt.Println("⚠️ 采集被截断，继续处理已拿到的部分")
	}
	fmt.Printf("✅ 收集到 %d 个身份记录\n", len(collected.Identities))

	// --- Resolving ---
	fmt.Printf("🧮 [%s] 正在归并公司...\n", domain.StageResolving)
	resolved := s.resolver.Resolve(collected.Identities)
	run.CompaniesResolved = len(resolved.Candidates)
	run.UnmatchedCount = resolved.Unmatched
	fmt.Printf("✅ 归并出 %d 家公司候选 (%d 个用户没有公司线索)\n",
		len(resolved.Candidates), resolved.Unmatched)

	// --- Enriching + Evaluating ---
	fmt.Printf("🕵️ [%s] 开始抓情报并评分，共 %d 家，最大并发数: %d\n",
		domain.StageEnriching, len(resolved.Candidates), workerCount(opts.Concurrency))
	enrichCtx, cancelEnrich := stageContext(ctx, opts.EnrichTimeout)
	evals, itemErrs, cancelled := s.enrichAndEvaluate(enrichCtx, resolved.Candidates, opts)
	cancelEnrich()
	run.Errors = append(run.Errors, itemErrs...)

	// --- Ranking ---
	fmt.Printf("🏅 [%s] 正在排序...\n", domain.StageRanking)
	run.Evaluations = rankEvaluations(evals, opts.MinScore, opts.MaxCompanies)

	run.FinishedAt = time.Now()
	switch {
	case cancelled || len(run.Errors) > 0:
		run.Status = domain.RunPartialSuccess
	default:
		run.Status = domain.RunSuccess
	}

	fmt.Printf("🎉 [%s] run %s 完成: %s，产出 %d 家公司\n",
		domain.StageDone, run.ID, run.Status, len(run.Evaluations))
	return run
}

// enrichAndEvaluate 工作池并发处理每家候选公司
// 取消信号到达后不再发起新的外部调用，已完成的评估照常收录；
// 情报抓取失败的公司走最低置信度路径 (Failed 档案) 继续评分
func (s *LeadService) enrichAndEvaluate(ctx context.Context, candidates []*domain.CompanyCandidate, opts PipelineOptions) ([]*domain.Evaluation, []domain.StageError, bool) {
	evals := make([]*domain.Evaluation, len(candidates))
	var mu sync.Mutex
	var itemErrs []domain.StageError
	cancelled := false

	jobs := make(chan int, len(candidates))
	var wg sync.WaitGroup

	for w := 0; w < workerCount(opts.Concurrency); w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobs {
				cand := candidates[idx]

				// 取消后不再开新的外部调用
				if ctx.Err() != nil {
					mu.Lock()
					cancelled = true
					mu.Unlock()
					continue
				}

				fmt.Printf("   [Worker-%d] 正在处理 %s...\n", workerID, cand.DisplayName)

				profile, err := s.enricher.Enrich(ctx, cand)
				if err != nil {
					fmt.Printf("   [Worker-%d] ❌ %s 情报抓取失败: %v\n", workerID, cand.DisplayName, err)
					mu.Lock()
					itemErrs = append(itemErrs, domain.StageError{
						Stage:  domain.StageEnriching,
						Item:   cand.DisplayName,
						Reason: err.Error(),
					})
					mu.Unlock()
					// 降级：空档案照样评分，别让一家公司拖垮整个 run
					profile = &domain.CompanyProfile{
						CanonicalName: cand.CanonicalName,
						DisplayName:   cand.DisplayName,
						Confidence:    cand.Confidence,
						Status:        domain.EnrichFailed,
					}
				}

				eval := s.evaluator.Evaluate(profile)

				// 润色是可选步骤，失败只会让 Rationale 留空
				if s.refiner != nil && ctx.Err() == nil {
					if rationale, rerr := s.refiner.Refine(ctx, eval, profile); rerr != nil {
						log.Printf("⚠️ %s 的润色失败 (不影响分数): %v", cand.DisplayName, rerr)
					} else {
						eval.Rationale = rationale
					}
				}

				fmt.Printf("   [Worker-%d] ✅ %s 评分完成 (评分: %d, 档位: %s)\n",
					workerID, cand.DisplayName, eval.Score, eval.Tier)
				evals[idx] = eval
			}
		}(w + 1)
	}

	for i := range candidates {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if cancelled {
		fmt.Println("⏰ run 被取消，收录已完成的部分")
		itemErrs = append(itemErrs, domain.StageError{
			Stage:  domain.StageEnriching,
			Item:   "-",
			Reason: "run 被取消，剩余公司未处理",
		})
	}

	// 去掉被取消跳过的空位
	var done []*domain.Evaluation
	for _, e := range evals {
		if e != nil {
			done = append(done, e)
		}
	}
	return done, itemErrs, cancelled
}

// rankEvaluations 排序规则是最终输出顺序的唯一来源：
// 分数降序，同分按归一化名升序——和任务完成的先后顺序无关
func rankEvaluations(evals []*domain.Evaluation, minScore, maxCompanies int) []*domain.Evaluation {
	sort.Slice(evals, func(i, j int) bool {
		if evals[i].Score != evals[j].Score {
			return evals[i].Score > evals[j].Score
		}
		return evals[i].CanonicalName < evals[j].CanonicalName
	})

	var ranked []*domain.Evaluation
	for _, e := range evals {
		if e.Score < minScore {
			continue
		}
		ranked = append(ranked, e)
		if maxCompanies > 0 && len(ranked) >= maxCompanies {
			break
		}
	}
	return ranked
}

// ExecuteScoutCycle 跑一次完整周期: pipeline + 落库 + 推送
// 落库和推送失败只记日志，不改变 run 的状态
func (s *LeadService) ExecuteScoutCycle(ctx context.Context, repo string, opts PipelineOptions) *domain.PipelineRun {
	run := s.Run(ctx, repo, opts)

	if s.repoStore == nil {
		return run
	}

	if err := s.repoStore.SaveRun(ctx, run); err != nil {
		log.Printf("❌ 保存 run %s 失败: %v", run.ID, err)
		return run
	}
	fmt.Printf("💾 run %s 已落库\n", run.ID)

	if s.notifier == nil {
		return run
	}

	// 推送还没通知过的 High Priority 线索
	unnotified, err := s.repoStore.GetUnnotified(ctx)
	if err != nil {
		log.Printf("❌ 查询待推送线索失败: %v", err)
		return run
	}
	for _, eval := range unnotified {
		if err := s.notifier.Notify(ctx, eval); err != nil {
			log.Printf("❌ 推送线索 %s 失败: %v", eval.CompanyName, err)
			continue
		}
		if err := s.repoStore.MarkAsNotified(ctx, eval.ID); err != nil {
			log.Printf("⚠️ 标记线索 %s 为已推送失败: %v", eval.CompanyName, err)
			continue
		}
		fmt.Printf("📲 已推送线索 %s\n", eval.CompanyName)
	}

	return run
}

// fail 填好致命失败的终态：产出为空，原因必填
func (s *LeadService) fail(run *domain.PipelineRun, reason string) *domain.PipelineRun {
	log.Printf("❌ [%s] run 失败: %s", domain.StageFailed, reason)
	run.Status = domain.RunFailed
	run.FatalReason = reason
	run.Evaluations = nil
	run.FinishedAt = time.Now()
	return run
}

func splitRepo(repo string) (owner, name string, ok bool) {
	parts := strings.Split(strings.TrimSpace(repo), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// stageContext 给单个阶段套超时；0 表示只受 run 级 ctx 约束
func stageContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func workerCount(concurrency int) int {
	if concurrency <= 0 {
		return 3 // 默认并发数
	}
	return concurrency
}

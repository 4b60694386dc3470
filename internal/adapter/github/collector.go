package github

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github-lead-miner/internal/common"
	"github-lead-miner/internal/domain"
	"github-lead-miner/internal/port"

	"github.com/google/go-github/v53/github"
	"golang.org/x/oauth2"
)

// Collector 实现了 port.Collector 接口
type Collector struct {
	client *github.Client
	gov    *common.Governor
	screen port.Screen
}

// NewCollector 初始化 GitHub 客户端
// token: GitHub Personal Access Token (空字符串就是匿名访问，限制 60次/小时)
func NewCollector(token string, gov *common.Governor, screen port.Screen) *Collector {
	var client *github.Client

	if token == "" {
		client = github.NewClient(nil)
	} else {
		ctx := context.Background()
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		tc := oauth2.NewClient(ctx, ts)
		client = github.NewClient(tc)
	}

	return &Collector{client: client, gov: gov, screen: screen}
}

// Collect 顺序翻页拉取 stargazer 列表，然后并发补全用户资料
// 第一页就拿不到数据属于致命错误；后续页重试耗尽则在最后一个成功页截断
func (c *Collector) Collect(ctx context.Context, owner, repo string, opts port.CollectOptions) (*port.CollectResult, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100 // GitHub API 的单页上限
	}
	maxIdentities := opts.MaxIdentities
	if maxIdentities <= 0 {
		maxIdentities = 100
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 3
	}

	result := &port.CollectResult{}

	// 1. 顺序翻页收集 handle
	handles, truncated, pageErrs, err := c.listStargazerHandles(ctx, owner, repo, pageSize, opts.MaxStargazers)
	if err != nil {
		return nil, err
	}
	result.Truncated = truncated
	result.Errors = append(result.Errors, pageErrs...)

	// 2. 预筛选：机器人账号不值得花 API 配额
	if c.screen != nil {
		kept := handles[:0]
		for _, h := range handles {
			if !c.screen.LikelyBot(h) {
				kept = append(kept, h)
			}
		}
		handles = kept
	}

	// 3. 成本控制：只给前 N 个用户拉详细资料
	if len(handles) > maxIdentities {
		handles = handles[:maxIdentities]
	}

	// 4. 并发补全用户资料，按下标回填保证输出顺序稳定
	identities, hydrateErrs := c.hydrateIdentities(ctx, handles, concurrency)
	result.Errors = append(result.Errors, hydrateErrs...)

	// 5. 按公司线索强弱排序
	if c.screen != nil {
		identities = c.screen.Prioritize(identities)
	}
	result.Identities = identities

	return result, nil
}

// listStargazerHandles 顺序翻页，直到数量到顶或某页不满 (数据耗尽)
func (c *Collector) listStargazerHandles(ctx context.Context, owner, repo string, pageSize, maxStargazers int) ([]string, bool, []domain.StageError, error) {
	var handles []string
	var stageErrs []domain.StageError
	truncated := false

	for page := 1; ; page++ {
		var stars []*github.Stargazer
		err := common.Do(ctx, func() error {
			if aerr := c.gov.Acquire(ctx); aerr != nil {
				return aerr
			}
			defer c.gov.Release()

			var resp *github.Response
			var apiErr error
			stars, resp, apiErr = c.client.Activity.ListStargazers(ctx, owner, repo, &github.ListOptions{
				Page:    page,
				PerPage: pageSize,
			})
			if resp != nil {
				// 把配额信号喂回限流器
				c.gov.ObserveQuota(resp.Rate.Remaining, resp.Rate.Reset.Time)
			}
			return apiErr
		},
			common.WithMaxRetries(3),
			common.WithInitialDelay(time.Second),
			common.WithRetryIf(isRetryable),
		)
		if err != nil {
			if page == 1 {
				// 一条数据都没拿到，整个 run 没法继续
				return nil, false, nil, common.WrapError(common.ErrCodeGitHubAPI,
					fmt.Sprintf("无法获取 %s/%s 的 stargazers", owner, repo), err)
			}
			// 已有部分数据：截断而不是整体失败
			stageErrs = append(stageErrs, domain.StageError{
				Stage:  domain.StageCollecting,
				Item:   fmt.Sprintf("page %d", page),
				Reason: err.Error(),
			})
			truncated = true
			break
		}

		for _, s := range stars {
			if login := s.GetUser().GetLogin(); login != "" {
				handles = append(handles, login)
			}
		}

		if maxStargazers > 0 && len(handles) >= maxStargazers {
			handles = handles[:maxStargazers]
			break
		}
		if len(stars) < pageSize {
			// 不满一页说明数据到头了
			break
		}
	}

	return handles, truncated, stageErrs, nil
}

// hydrateIdentities 工作池并发拉取用户资料
// 单个用户失败降级为只有 handle 的身份记录 (归并阶段会计入 unmatched)
func (c *Collector) hydrateIdentities(ctx context.Context, handles []string, concurrency int) ([]*domain.Identity, []domain.StageError) {
	identities := make([]*domain.Identity, len(handles))
	var mu sync.Mutex
	var stageErrs []domain.StageError

	jobs := make(chan int, len(handles))
	var wg sync.WaitGroup

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				handle := handles[idx]
				identity, err := c.fetchProfile(ctx, handle)
				if err != nil {
					mu.Lock()
					stageErrs = append(stageErrs, domain.StageError{
						Stage:  domain.StageCollecting,
						Item:   handle,
						Reason: err.Error(),
					})
					mu.Unlock()
					// 降级：只保留 handle，不阻塞主流程
					identity = &domain.Identity{Handle: handle}
				}
				identities[idx] = identity
			}
		}()
	}

	for i := range handles {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return identities, stageErrs
}

// fetchProfile 拉取单个用户的资料和组织成员关系
func (c *Collector) fetchProfile(ctx context.Context, handle string) (*domain.Identity, error) {
	var user *github.User
	err := common.Do(ctx, func() error {
		if aerr := c.gov.Acquire(ctx); aerr != nil {
			return aerr
		}
		defer c.gov.Release()

		var resp *github.Response
		var apiErr error
		user, resp, apiErr = c.client.Users.Get(ctx, handle)
		if resp != nil {
			c.gov.ObserveQuota(resp.Rate.Remaining, resp.Rate.Reset.Time)
		}
		return apiErr
	},
		common.WithMaxRetries(1),
		common.WithInitialDelay(500*time.Millisecond),
		common.WithRetryIf(isRetryable),
	)
	if err != nil {
		return nil, fmt.Errorf("获取用户资料失败: %w", err)
	}

	identity := &domain.Identity{
		Handle:      handle,
		DisplayName: user.GetName(),
		RawCompany:  user.GetCompany(),
		Bio:         user.GetBio(),
		Blog:        user.GetBlog(),
		Location:    user.GetLocation(),
	}

	// 组织列表拿不到就算了，公司自由文本已经是主信号
	orgs, resp, orgErr := c.listOrgs(ctx, handle)
	if resp != nil {
		c.gov.ObserveQuota(resp.Rate.Remaining, resp.Rate.Reset.Time)
	}
	if orgErr == nil {
		identity.Organizations = orgs
	}

	return identity, nil
}

func (c *Collector) listOrgs(ctx context.Context, handle string) ([]string, *github.Response, error) {
	if aerr := c.gov.Acquire(ctx); aerr != nil {
		return nil, nil, aerr
	}
	defer c.gov.Release()

	orgs, resp, err := c.client.Organizations.List(ctx, handle, nil)
	if err != nil {
		return nil, resp, err
	}
	var logins []string
	for _, o := range orgs {
		if login := o.GetLogin(); login != "" {
			logins = append(logins, login)
		}
	}
	return logins, resp, nil
}

// isRetryable 区分瞬时错误和致命错误
// 404/422 重试多少次都是那个结果，直接放弃；限流和网络抖动值得再试
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return true
	}

	var apiErr *github.ErrorResponse
	if errors.As(err, &apiErr) && apiErr.Response != nil {
		code := apiErr.Response.StatusCode
		// 4xx (除了 429) 属于请求本身的问题
		if code >= 400 && code < 500 && code != 429 {
			return false
		}
	}
	return true
}

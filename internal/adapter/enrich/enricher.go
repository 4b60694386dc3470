package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github-lead-miner/internal/common"
	"github-lead-miner/internal/domain"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Enricher 实现了 port.Enricher 接口
// 调用 ScrapeGraph 风格的 searchscraper API 抓取公司公开情报
type Enricher struct {
	apiKey  string
	baseURL string
	client  *http.Client
	gov     *common.Governor

	// 进程生命周期的缓存：同一家公司跨 run 出现时不用再花钱抓一次
	cache *lru.Cache[string, *domain.CompanyProfile]
}

// DefaultBaseURL searchscraper 服务的默认地址
const DefaultBaseURL = "https://api.scrapegraphai.com"

// NewEnricher 创建新的情报抓取器实例
func NewEnricher(apiKey, baseURL string, gov *common.Governor) (*Enricher, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cache, err := lru.New[string, *domain.CompanyProfile](512)
	if err != nil {
		return nil, err
	}
	return &Enricher{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
		gov:     gov,
		cache:   cache,
	}, nil
}

// searchRequest searchscraper 端点的请求体
type searchRequest struct {
	UserPrompt string `json:"user_prompt"`
}

// searchResponse 服务端返回的外层结构，result 的形态不可信，延迟解析
type searchResponse struct {
	Result        json.RawMessage `json:"result"`
	ReferenceURLs []string        `json:"reference_urls"`
}

// resultPayload 理想情况下 result 里的结构化字段
type resultPayload struct {
	Description   string          `json:"description"`
	Industry      string          `json:"industry"`
	Technologies  []string        `json:"technologies"`
	CompanySize   json.RawMessage `json:"company_size"`
	EmployeeCount json.RawMessage `json:"employee_count"`
	DataNeeds     json.RawMessage `json:"data_needs"`
}

// Enrich 对一家候选公司发起恰好一次情报请求 (瞬时错误最多重试一次)
// HTTP 层失败返回 error，由调用方降级处理；内容解析失败只会降级状态，
// Complete → Partial → Failed，绝不把整个档案丢掉
func (e *Enricher) Enrich(ctx context.Context, candidate *domain.CompanyCandidate) (*domain.CompanyProfile, error) {
	if candidate == nil || candidate.CanonicalName == "" {
		return nil, common.NewError(common.ErrCodeInvalidInput, "候选公司为空")
	}

	if cached, ok := e.cache.Get(candidate.CanonicalName); ok {
		return cached, nil
	}

	if e.apiKey == "" {
		return nil, common.NewError(common.ErrCodeEnrichment, "未配置情报服务 API Key")
	}

	prompt := buildSearchPrompt(candidate.DisplayName)
	reqBody, _ := json.Marshal(searchRequest{UserPrompt: prompt})

	var body []byte
	err := common.Do(ctx, func() error {
		if aerr := e.gov.Acquire(ctx); aerr != nil {
			return aerr
		}
		defer e.gov.Release()

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost,
			e.baseURL+"/v1/searchscraper", bytes.NewReader(reqBody))
		if reqErr != nil {
			return reqErr
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("SGAI-APIKEY", e.apiKey)

		resp, postErr := e.client.Do(req)
		if postErr != nil {
			return postErr
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("情报服务报错: 状态码 %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			// 4xx 重试也不会变好
			return &permanentError{fmt.Errorf("情报服务拒绝请求: 状态码 %d", resp.StatusCode)}
		}

		var readErr error
		body, readErr = io.ReadAll(resp.Body)
		return readErr
	},
		// 情报抓取比元数据贵，最多补一枪，不搞重试风暴
		common.WithMaxRetries(1),
		common.WithInitialDelay(2*time.Second),
		common.WithRetryIf(isTransient),
	)
	if err != nil {
		return nil, common.WrapError(common.ErrCodeEnrichment,
			fmt.Sprintf("抓取 %s 的情报失败", candidate.DisplayName), err)
	}

	profile := parseProfile(candidate, body)
	e.cache.Add(candidate.CanonicalName, profile)
	return profile, nil
}

// buildSearchPrompt 拼搜索指令，让服务端聚焦在我们打分需要的字段上
func buildSearchPrompt(companyName string) string {
	return fmt.Sprintf(`Find information about the company %q:
- Business description and main products or services
- Industry and sector
- Technology stack, especially AI, machine learning, data analytics, scraping
- Company size (number of employees)
- Whether they have explicit data collection or data analytics needs`, companyName)
}

// parseProfile 防御性解析：结构化字段能拿多少算多少
// 全须全尾 → Complete；缺胳膊少腿 → Partial；啥都没有 → Failed
func parseProfile(candidate *domain.CompanyCandidate, body []byte) *domain.CompanyProfile {
	profile := &domain.CompanyProfile{
		CanonicalName: candidate.CanonicalName,
		DisplayName:   candidate.DisplayName,
		Confidence:    candidate.Confidence,
		Status:        domain.EnrichFailed,
	}

	var outer searchResponse
	if err := json.Unmarshal(body, &outer); err != nil || len(outer.Result) == 0 {
		return profile
	}

	var payload resultPayload
	if err := json.Unmarshal(outer.Result, &payload); err != nil {
		// result 不是对象，试试当纯文本处理
		var text string
		if json.Unmarshal(outer.Result, &text) == nil && strings.TrimSpace(text) != "" {
			profile.Description = strings.TrimSpace(text)
			profile.Status = domain.EnrichPartial
		}
		return profile
	}

	populated := 0
	if desc := strings.TrimSpace(payload.Description); desc != "" {
		profile.Description = desc
		populated++
	}
	if ind := strings.TrimSpace(payload.Industry); ind != "" {
		profile.Industry = ind
		populated++
	}
	if tags := cleanTags(payload.Technologies); len(tags) > 0 {
		profile.Technologies = tags
		populated++
	}
	if count := parseEmployeeCount(payload.CompanySize, payload.EmployeeCount); count > 0 {
		profile.EmployeeCount = count
		populated++
	}
	profile.DataNeed = parseDataNeed(payload.DataNeeds)

	switch {
	case populated >= 4:
		profile.Status = domain.EnrichComplete
	case populated >= 1 || profile.DataNeed:
		// 数据需求信号本身也是可用内容: 哪怕只有它也算 Partial
		profile.Status = domain.EnrichPartial
	default:
		profile.Status = domain.EnrichFailed
	}
	return profile
}

func cleanTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

var digitsPattern = regexp.MustCompile(`\d[\d,]*`)

// parseEmployeeCount 员工数可能是数字、带逗号的字符串，甚至 "500+ employees"
func parseEmployeeCount(raws ...json.RawMessage) int {
	for _, raw := range raws {
		if len(raw) == 0 {
			continue
		}
		var n int
		if json.Unmarshal(raw, &n) == nil && n > 0 {
			return n
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			if m := digitsPattern.FindString(s); m != "" {
				if n, err := strconv.Atoi(strings.ReplaceAll(m, ",", "")); err == nil && n > 0 {
					return n
				}
			}
		}
	}
	return 0
}

// parseDataNeed 布尔或非空文本都算有明确的数据需求信号
func parseDataNeed(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return b
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		s = strings.ToLower(strings.TrimSpace(s))
		return s != "" && s != "no" && s != "none" && s != "unknown" && s != "n/a"
	}
	return false
}

// permanentError 标记不值得重试的 HTTP 响应
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// isTransient 网络错误和 5xx 可以再试，4xx 和取消不行
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var perm *permanentError
	return !errors.As(err, &perm)
}

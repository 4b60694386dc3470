package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github-lead-miner/internal/domain"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiRefiner 实现了 port.Refiner 接口
// 只负责把确定性的评分结果翻译成人话，分数和档位它一个字也碰不到
type GeminiRefiner struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

func NewGeminiRefiner(ctx context.Context, apiKey string) (*GeminiRefiner, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	model := client.GenerativeModel("gemini-2.5-flash-lite")

	return &GeminiRefiner{
		client:  client,
		model:   model,
		timeout: 15 * time.Second,
	}, nil
}

// Refine 把因子明细润色成一段销售能看懂的理由
// 这一步是可选的：失败或超时由调用方兜底 (Rationale 留空)
func (g *GeminiRefiner) Refine(ctx context.Context, eval *domain.Evaluation, profile *domain.CompanyProfile) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := fmt.Sprintf(`你是一个 AI 数据采集基础设施公司的销售顾问。下面是对一家潜在客户的机器评分结果，
请用一段话 (不超过 80 个字) 解释为什么这家公司值得 (或不值得) 跟进。直接给结论，不要复述数字。

公司: %s
总分: %d/100 (%s)
因子明细: %s
公司描述: %s
行业: %s
技术标签: %s`,
		eval.CompanyName,
		eval.Score, eval.Tier,
		formatFactors(eval.Factors),
		profile.Description,
		profile.Industry,
		strings.Join(profile.Technologies, ", "))

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("AI 调用失败: %w", err)
	}

	text, err := extractText(resp)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// SemanticSearch 把存量评估结果当上下文，回答自然语言查询
func (g *GeminiRefiner) SemanticSearch(ctx context.Context, evals []*domain.Evaluation, userQuery string) (string, error) {
	// 控制上下文大小，防止 Token 爆炸
	if len(evals) > 100 {
		evals = evals[:100]
	}

	catalog, err := json.Marshal(evals)
	if err != nil {
		return "", fmt.Errorf("序列化候选列表失败: %w", err)
	}

	prompt := fmt.Sprintf(`你是一个销售线索库的查询助手。下面是 JSON 格式的公司评估列表：

%s

用户的问题是: %s

请从列表里挑出最匹配的公司 (最多 5 家)，按优先级排列，每家用一两句话说明推荐理由。
如果没有匹配的就直说，不要编造。`, string(catalog), userQuery)

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("AI 调用失败: %w", err)
	}

	text, err := extractText(resp)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// formatFactors 因子按名字排序后拼成稳定的字符串，方便 AI 读也方便测试断言
func formatFactors(factors domain.FactorBreakdown) string {
	names := make([]string, 0, len(factors))
	for name := range factors {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, factors[name]))
	}
	return strings.Join(parts, ", ")
}

// extractText 从响应里取第一段文本
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("AI 返回内容为空")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("AI 返回格式错误")
	}
	return string(text), nil
}

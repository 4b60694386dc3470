package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github-lead-miner/internal/common"
	"github-lead-miner/internal/domain"
)

type Notifier struct {
	webhookURL string
}

func NewNotifier(webhook string) *Notifier {
	if webhook == "" {
		log.Println("⚠️ 警告: 飞书 Webhook 为空，推送功能将无法工作！")
	}
	return &Notifier{webhookURL: webhook}
}

// Notify 发送飞书卡片消息 (Schema 2.0)，推送一条 High Priority 线索
func (n *Notifier) Notify(ctx context.Context, eval *domain.Evaluation) error {
	if n.webhookURL == "" {
		return fmt.Errorf("Webhook URL 为空")
	}

	// 1. 准备标题
	title := fmt.Sprintf("🎯 发现高优先级销售线索: %s", eval.CompanyName)

	// 2. 构造 Markdown 内容
	mdContent := fmt.Sprintf(`**🏆 评分:** %d/100  |  **档位:** %s

**📊 因子明细:**
%s

**🤖 推荐理由:**
%s
`,
		eval.Score, eval.Tier,
		formatFactorLines(eval.Factors),
		rationaleOrDefault(eval.Rationale))

	// 3. 构造 Schema 2.0 JSON 结构
	payload := map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"schema": "2.0",
			"config": map[string]interface{}{
				"update_multi": true,
			},
			"header": map[string]interface{}{
				"title": map[string]interface{}{
					"tag":     "plain_text",
					"content": title,
				},
				"template": "green",
			},
			"body": map[string]interface{}{
				"direction": "vertical",
				"elements": []map[string]interface{}{
					{
						"tag":       "markdown",
						"content":   mdContent,
						"text_size": "normal",
					},
				},
			},
		},
	}

	// 4. 发送请求 (带重试机制)
	body, _ := json.Marshal(payload)
	err := common.Do(ctx, func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewBuffer(body))
		if reqErr != nil {
			return reqErr
		}
		req.Header.Set("Content-Type", "application/json")

		resp, postErr := http.DefaultClient.Do(req)
		if postErr != nil {
			return postErr
		}
		defer resp.Body.Close()

		if resp.StatusCode != 200 {
			return fmt.Errorf("飞书 API 报错: 状态码 %d", resp.StatusCode)
		}
		return nil
	},
		common.WithMaxRetries(3),
		common.WithInitialDelay(500*time.Millisecond),
	)
	if err != nil {
		return common.WrapError(common.ErrCodeNotification, "发送请求失败", err)
	}

	return nil
}

// formatFactorLines 因子按名字排序，输出稳定
func formatFactorLines(factors domain.FactorBreakdown) string {
	names := make([]string, 0, len(factors))
	for name := range factors {
		names = append(names, name)
	}
	sort.Strings(names)

	var lines []string
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("- %s: %+d", name, factors[name]))
	}
	return strings.Join(lines, "\n")
}

func rationaleOrDefault(rationale string) string {
	if rationale == "" {
		return "(未生成)"
	}
	return rationale
}

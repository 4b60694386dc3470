package gemini

import (
	"testing"

	"github-lead-miner/internal/domain"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
)

func TestFormatFactors(t *testing.T) {
	factors := domain.FactorBreakdown{
		"technology":   40,
		"completeness": -10,
		"industry":     20,
	}

	// 按名字排序，连跑多次输出也不变
	want := "completeness=-10, industry=20, technology=40"
	for i := 0; i < 10; i++ {
		assert.Equal(t, want, formatFactors(factors))
	}
}

func TestFormatFactors_Empty(t *testing.T) {
	assert.Equal(t, "", formatFactors(nil))
	assert.Equal(t, "", formatFactors(domain.FactorBreakdown{}))
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name        string
		resp        *genai.GenerateContentResponse
		want        string
		expectError bool
	}{
		{
			name: "正常取第一段文本",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{
					{
						Content: &genai.Content{
							Parts: []genai.Part{genai.Text("这家公司值得跟进")},
						},
					},
				},
			},
			want: "这家公司值得跟进",
		},
		{
			name:        "没有候选",
			resp:        &genai.GenerateContentResponse{},
			expectError: true,
		},
		{
			name: "候选没有内容",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{Content: nil}},
			},
			expectError: true,
		},
		{
			name: "内容为空",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{
					{Content: &genai.Content{Parts: []genai.Part{}}},
				},
			},
			expectError: true,
		},
		{
			name: "第一段不是文本",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{
					{Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}}},
				},
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractText(tt.resp)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

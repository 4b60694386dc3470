package main

import (
	"testing"

	"github-lead-miner/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestTierEmoji(t *testing.T) {
	tests := []struct {
		tier domain.Tier
		want string
	}{
		{domain.TierHigh, "🟢"},
		{domain.TierMedium, "🟡"},
		{domain.TierLow, "🟠"},
		{domain.TierNotRec, "⚪"},
		{domain.Tier("未知档位"), "⚪"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tierEmoji(tt.tier))
	}
}

func TestWorkerCap(t *testing.T) {
	assert.Equal(t, 3, workerCap(0), "没给并发数就用默认值")
	assert.Equal(t, 3, workerCap(-1))
	assert.Equal(t, 8, workerCap(8))
}

package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github-lead-miner/internal/domain"
)

// WriteCSV 把排好序的评估列表原样序列化成 CSV
// 纯 I/O，不做任何筛选或重新排序的决策
func WriteCSV(w io.Writer, evals []*domain.Evaluation) error {
	cw := csv.NewWriter(w)

	header := []string{"company", "score", "recommendation", "factors", "rationale"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, e := range evals {
		record := []string{
			e.CompanyName,
			strconv.Itoa(e.Score),
			string(e.Tier),
			formatFactors(e.Factors),
			e.Rationale,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile 导出到文件
func WriteCSVFile(path string, evals []*domain.Evaluation) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建导出文件失败: %w", err)
	}
	defer f.Close()

	return WriteCSV(f, evals)
}

// formatFactors 因子按名字排序拼接，保证同样的输入导出同样的文件
func formatFactors(factors domain.FactorBreakdown) string {
	names := make([]string, 0, len(factors))
	for name := range factors {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s:%d", name, factors[name]))
	}
	return strings.Join(parts, "; ")
}

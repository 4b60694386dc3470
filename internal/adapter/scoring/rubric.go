package scoring

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SizeBand 员工数 ≥ Min 时给 Points 分，按 Min 降序排列
type SizeBand struct {
	Min    int `yaml:"min"`
	Points int `yaml:"points"`
}

// Rubric 评分规则表
// 档位分界 (70/50/30) 是产品定死的，不在这里；各因子的权重大小
// 是可调的产品决策，所以允许用 YAML 覆盖默认值
type Rubric struct {
	TechKeywords map[string]int `yaml:"tech_keywords"`
	TechCap      int            `yaml:"tech_cap"`

	IndustryKeywords map[string]int `yaml:"industry_keywords"`
	IndustryCap      int            `yaml:"industry_cap"`

	SizeBands   []SizeBand `yaml:"size_bands"`
	SizeUnknown int        `yaml:"size_unknown"` // 未知规模给中间值，缺数据不该罚得比实际更狠

	DataNeedBonus int `yaml:"data_need_bonus"`

	PartialPenalty int `yaml:"partial_penalty"` // Partial 档案的扣分
	PartialFloor   int `yaml:"partial_floor"`   // 信号强的公司不会仅因情报不全跌破这条线
	FailedCeiling  int `yaml:"failed_ceiling"`  // Failed 档案的分数天花板，进不了前两档
}

// DefaultRubric 默认权重，和线上验证过的版本保持一致
func DefaultRubric() *Rubric {
	return &Rubric{
		TechKeywords: map[string]int{
			"ai": 10, "artificial intelligence": 10, "machine learning": 10, "ml": 8,
			"data science": 10, "data analytics": 8, "big data": 8,
			"scraping": 15, "web scraping": 15, "data extraction": 12,
			"automation": 8, "rpa": 10, "robotic process": 10,
			"api": 5, "integration": 5, "etl": 8, "data pipeline": 10,
		},
		TechCap: 40,
		IndustryKeywords: map[string]int{
			"e-commerce": 15, "retail": 12, "marketplace": 12,
			"fintech": 10, "finance": 8, "banking": 8,
			"saas": 10, "software": 8, "technology": 5,
			"analytics": 10, "intelligence": 8, "insights": 8,
			"marketing": 8, "advertising": 8, "media": 6,
		},
		IndustryCap: 30,
		SizeBands: []SizeBand{
			{Min: 1000, Points: 20},
			{Min: 200, Points: 15},
			{Min: 50, Points: 10},
			{Min: 10, Points: 5},
		},
		SizeUnknown:    10,
		DataNeedBonus:  10,
		PartialPenalty: 10,
		PartialFloor:   30,
		FailedCeiling:  49,
	}
}

// rubricFile YAML 文件的影子结构
// 标量用指针区分 "没写" 和 "写了零值"；直接往默认值上反序列化
// 会让 yaml 把关键词表做 merge，运营就永远删不掉默认词条了
type rubricFile struct {
	TechKeywords map[string]int `yaml:"tech_keywords"`
	TechCap      *int           `yaml:"tech_cap"`

	IndustryKeywords map[string]int `yaml:"industry_keywords"`
	IndustryCap      *int           `yaml:"industry_cap"`

	SizeBands   []SizeBand `yaml:"size_bands"`
	SizeUnknown *int       `yaml:"size_unknown"`

	DataNeedBonus *int `yaml:"data_need_bonus"`

	PartialPenalty *int `yaml:"partial_penalty"`
	PartialFloor   *int `yaml:"partial_floor"`
	FailedCeiling  *int `yaml:"failed_ceiling"`
}

// LoadRubric 读取 YAML 规则表，空路径返回默认值
// 文件里没写的字段沿用默认值，写了的整体覆盖 (关键词表也是整表替换，不做合并)
func LoadRubric(path string) (*Rubric, error) {
	rubric := DefaultRubric()
	if path == "" {
		return rubric, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取规则表失败: %w", err)
	}
	var file rubricFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("解析规则表失败: %w", err)
	}

	if file.TechKeywords != nil {
		rubric.TechKeywords = file.TechKeywords
	}
	if file.TechCap != nil {
		rubric.TechCap = *file.TechCap
	}
	if file.IndustryKeywords != nil {
		rubric.IndustryKeywords = file.IndustryKeywords
	}
	if file.IndustryCap != nil {
		rubric.IndustryCap = *file.IndustryCap
	}
	if file.SizeBands != nil {
		rubric.SizeBands = file.SizeBands
	}
	if file.SizeUnknown != nil {
		rubric.SizeUnknown = *file.SizeUnknown
	}
	if file.DataNeedBonus != nil {
		rubric.DataNeedBonus = *file.DataNeedBonus
	}
	if file.PartialPenalty != nil {
		rubric.PartialPenalty = *file.PartialPenalty
	}
	if file.PartialFloor != nil {
		rubric.PartialFloor = *file.PartialFloor
	}
	if file.FailedCeiling != nil {
		rubric.FailedCeiling = *file.FailedCeiling
	}

	if err := rubric.validate(); err != nil {
		return nil, err
	}
	return rubric, nil
}

func (r *Rubric) validate() error {
	if r.TechCap <= 0 || r.IndustryCap <= 0 {
		return fmt.Errorf("规则表非法: 因子上限必须为正数")
	}
	if r.PartialFloor < 0 || r.FailedCeiling < 0 {
		return fmt.Errorf("规则表非法: 下限/上限不能为负")
	}
	for i := 1; i < len(r.SizeBands); i++ {
		if r.SizeBands[i].Min >= r.SizeBands[i-1].Min {
			return fmt.Errorf("规则表非法: size_bands 必须按 min 降序排列")
		}
	}
	return nil
}

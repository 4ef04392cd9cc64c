package classify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"OddsSync/internal/model"
)

// OutcomePair 单个选项的原始标签与规范化token
type OutcomePair struct {
	Original   string `json:"original"`
	Normalized string `json:"normalized"`
}

// Classification 分类器输出：市场注册表创建/更新的全部输入
type Classification struct {
	Key        string
	Category   model.MarketCategory
	Priority   int
	Parameters model.MarketParameters
	Outcomes   []OutcomePair
}

// categoryRule 分类规则：tag + 一组大小写不敏感正则
// 规则表自上而下扫描，首个命中即定类；顺序是显式契约，不依赖map遍历
type categoryRule struct {
	category model.MarketCategory
	patterns []*regexp.Regexp
}

var categoryRules = []categoryRule{
	{model.CategoryMatchResult, compileAll(
		`match winner`, `\b1x2\b`, `full.?time result`, `^winner$`, `double chance`, `draw no bet`, `to win the match`,
	)},
	{model.CategoryGoals, compileAll(
		`over\s*/?\s*under`, `total goals`, `goals? (over|under)`, `both teams (to )?score`, `\bbtts\b`, `number of goals`, `exact goals`,
	)},
	{model.CategoryHalftime, compileAll(
		`first half`, `1st half`, `half.?time`,
	)},
	{model.CategorySecondHalf, compileAll(
		`second half`, `2nd half`,
	)},
	{model.CategoryCorners, compileAll(
		`corner`,
	)},
	{model.CategoryCards, compileAll(
		`card`, `booking`,
	)},
	{model.CategoryExactScore, compileAll(
		`correct score`, `exact score`,
	)},
	{model.CategoryHandicap, compileAll(
		`handicap`, `asian`,
	)},
	{model.CategorySpecials, compileAll(
		`penalty`, `own goal`, `to qualify`, `method of victory`, `clean sheet`, `win to nil`,
	)},
	{model.CategoryPlayerProps, compileAll(
		`scorer`, `player`, `to score`, `assist`, `shots on target`,
	)},
	{model.CategoryCombined, compileAll(
		`result\s*(&|and|/)`, `(&|and)\s*(both teams|total|over|under)`, `combo`,
	)},
	{model.CategoryTimeSpecific, compileAll(
		`\d+\s*-\s*\d+\s*min`, `minutes? \d+`, `in \d+ minutes`,
	)},
}

// priorityRule 优先级规则：名称命中正则 -> 固定分值；未命中时退到分类兜底分
type priorityRule struct {
	pattern *regexp.Regexp
	score   int
}

var priorityRules = []priorityRule{
	{compileOne(`match winner|\b1x2\b`), 100},
	{compileOne(`over\s*/?\s*under 2\.5`), 95},
	{compileOne(`both teams (to )?score`), 90},
	{compileOne(`double chance`), 85},
	{compileOne(`over\s*/?\s*under`), 80},
	{compileOne(`correct score`), 75},
	{compileOne(`draw no bet`), 70},
	{compileOne(`half.?time`), 65},
	{compileOne(`handicap`), 60},
}

// 各分类兜底分（名称规则未命中时使用），范围[10,100]
var categoryFallbackPriority = map[model.MarketCategory]int{
	model.CategoryMatchResult:  90,
	model.CategoryGoals:        78,
	model.CategoryExactScore:   62,
	model.CategoryHalftime:     58,
	model.CategorySecondHalf:   55,
	model.CategoryHandicap:     52,
	model.CategoryCorners:      42,
	model.CategoryCards:        40,
	model.CategoryPlayerProps:  35,
	model.CategorySpecials:     30,
	model.CategoryCombined:     25,
	model.CategoryTimeSpecific: 20,
	model.CategoryOther:        10,
}

// 参数抽取用正则
var (
	lineInNamePattern = regexp.MustCompile(`\d+\.\d+`)
	timeframePattern  = regexp.MustCompile(`(?i)(\d+)\s*min`)
	homeTeamPattern   = regexp.MustCompile(`(?i)\bhome\b`)
	awayTeamPattern   = regexp.MustCompile(`(?i)\baway\b`)
	firstHalfPattern  = regexp.MustCompile(`(?i)first half|1st half|half.?time`)
	secondHalfPattern = regexp.MustCompile(`(?i)second half|2nd half`)
	containsDigit     = regexp.MustCompile(`\d`)
)

// Classify 原始市场 -> 规范化描述。永不panic：内部任何异常均退化为OTHER兜底结果
func Classify(providerMarketID int64, marketName string, rawOutcomes []string) (result Classification) {
	defer func() {
		if r := recover(); r != nil {
			result = fallbackClassification(providerMarketID, rawOutcomes)
		}
	}()

	// 1. 生成规范化key（仅创建时使用，后续同步不改名）
	key := buildMarketKey(providerMarketID, marketName)

	// 2. 定类：规则表顺序扫描，首个命中即停，无命中归OTHER
	category := detectCategory(marketName)

	// 3. 优先级：名称规则优先，未命中退分类兜底分
	priority := detectPriority(marketName, category)

	// 4. 结构化参数
	params := extractParameters(marketName, rawOutcomes)

	// 5. 选项规范化
	outcomes := make([]OutcomePair, 0, len(rawOutcomes))
	for _, raw := range rawOutcomes {
		outcomes = append(outcomes, OutcomePair{
			Original:   raw,
			Normalized: Normalize(raw),
		})
	}

	return Classification{
		Key:        key,
		Category:   category,
		Priority:   priority,
		Parameters: params,
		Outcomes:   outcomes,
	}
}

// buildMarketKey 名称slug（50字符上限）；过短追加provider id降低撞key概率；
// 空名称直接MARKET_<id>。不同provider id撞key是已接受的权衡，真身份始终是provider id
func buildMarketKey(providerMarketID int64, marketName string) string {
	upper := strings.ToUpper(strings.TrimSpace(marketName))
	slug := nonAlphaNumRun.ReplaceAllString(upper, "_")
	slug = strings.Trim(slug, "_")
	if len(slug) > 50 {
		slug = strings.Trim(slug[:50], "_")
	}
	if slug == "" {
		return fmt.Sprintf("MARKET_%d", providerMarketID)
	}
	if len(slug) < 10 {
		slug = fmt.Sprintf("%s_%d", slug, providerMarketID)
	}
	return slug
}

func detectCategory(marketName string) model.MarketCategory {
	for _, rule := range categoryRules {
		for _, p := range rule.patterns {
			if p.MatchString(marketName) {
				return rule.category
			}
		}
	}
	return model.CategoryOther
}

func detectPriority(marketName string, category model.MarketCategory) int {
	for _, rule := range priorityRules {
		if rule.pattern.MatchString(marketName) {
			return rule.score
		}
	}
	if score, ok := categoryFallbackPriority[category]; ok {
		return score
	}
	return 10
}

// extractParameters 从市场名与选项标签中抽取结构化参数
func extractParameters(marketName string, rawOutcomes []string) model.MarketParameters {
	params := model.MarketParameters{
		OutcomeCount: len(rawOutcomes),
	}

	if m := lineInNamePattern.FindString(marketName); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			params.Line = &v
		}
	}
	if m := timeframePattern.FindStringSubmatch(marketName); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			params.Timeframe = &v
		}
	}
	switch {
	case homeTeamPattern.MatchString(marketName):
		params.Team = "home"
	case awayTeamPattern.MatchString(marketName):
		params.Team = "away"
	}
	switch {
	case firstHalfPattern.MatchString(marketName):
		params.Period = "first_half"
	case secondHalfPattern.MatchString(marketName):
		params.Period = "second_half"
	}
	for _, raw := range rawOutcomes {
		if containsDigit.MatchString(raw) {
			params.HasNumericOutcome = true
			break
		}
	}
	return params
}

// fallbackClassification 分类失败兜底：OTHER + 最低优先级 + 原始标签透传
func fallbackClassification(providerMarketID int64, rawOutcomes []string) Classification {
	outcomes := make([]OutcomePair, 0, len(rawOutcomes))
	for _, raw := range rawOutcomes {
		outcomes = append(outcomes, OutcomePair{Original: raw, Normalized: raw})
	}
	return Classification{
		Key:      fmt.Sprintf("MARKET_%d", providerMarketID),
		Category: model.CategoryOther,
		Priority: 10,
		Outcomes: outcomes,
	}
}

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		res = append(res, regexp.MustCompile(`(?i)`+p))
	}
	return res
}

func compileOne(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + pattern)
}

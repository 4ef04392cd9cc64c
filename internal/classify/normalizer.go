package classify

import (
	"regexp"
	"strconv"
	"strings"
)

// 选项标签别名表：provider常见写法 -> 规范化token
// 双胜玩法token（1X/X2/12）原样透传
var outcomeAliases = map[string]string{
	"Home":  "HOME",
	"Away":  "AWAY",
	"Draw":  "DRAW",
	"X":     "DRAW",
	"Over":  "OVER",
	"O":     "OVER",
	"Under": "UNDER",
	"U":     "UNDER",
	"Yes":   "YES",
	"Y":     "YES",
	"No":    "NO",
	"N":     "NO",
	"Odd":   "ODD",
	"Even":  "EVEN",
	"E":     "EVEN",
	"1X":    "1X",
	"X2":    "X2",
	"12":    "12",
}

// 大小写不敏感检索用的二级表（key统一大写）
var outcomeAliasesUpper = func() map[string]string {
	m := make(map[string]string, len(outcomeAliases))
	for k, v := range outcomeAliases {
		m[strings.ToUpper(k)] = v
	}
	return m
}()

// 数值型标签的整标签匹配模式，按优先级排列：
// 比分对 > 半球线 > 纯整数 > 加号区间（顺序即精度契约，勿调换）
var (
	scorePairPattern = regexp.MustCompile(`^(\d+)[-:](\d+)$`)
	halfLinePattern  = regexp.MustCompile(`^(\d+)\.5$`)
	integerPattern   = regexp.MustCompile(`^(\d+)$`)
	plusRangePattern = regexp.MustCompile(`^(\d+)\+$`)

	firstNumberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
	nonAlphaNumRun     = regexp.MustCompile(`[^A-Z0-9]+`)
)

// Normalize 原始选项标签 -> 规范化token。纯函数、确定性、永不失败：
// 未知输入退化为slug而不是报错
func Normalize(raw string) string {
	label := strings.TrimSpace(raw)
	if label == "" {
		return "UNKNOWN"
	}

	// 1. 别名表精确匹配
	if token, ok := outcomeAliases[label]; ok {
		return token
	}
	// 2. 别名表大小写不敏感重试
	if token, ok := outcomeAliasesUpper[strings.ToUpper(label)]; ok {
		return token
	}
	// 3. 比分对：2-1 / 2:1 -> 2_1
	if m := scorePairPattern.FindStringSubmatch(label); m != nil {
		return m[1] + "_" + m[2]
	}
	// 4. 半球线：2.5 -> LINE_2_5
	if m := halfLinePattern.FindStringSubmatch(label); m != nil {
		return "LINE_" + m[1] + "_5"
	}
	// 5. 纯整数：3 -> VALUE_3
	if m := integerPattern.FindStringSubmatch(label); m != nil {
		return "VALUE_" + m[1]
	}
	// 6. 加号区间：4+ -> PLUS_4
	if m := plusRangePattern.FindStringSubmatch(label); m != nil {
		return "PLUS_" + m[1]
	}
	// 7. 兜底slug：大写、非字母数字折叠为_、截断30字符
	return slugify(label, 30)
}

// ExtractNumericValue 提取标签中第一个内嵌数值（盘口线等），无数值返回nil
func ExtractNumericValue(raw string) *float64 {
	m := firstNumberPattern.FindString(raw)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &v
}

// slugify 大写+非字母数字折叠为单个下划线+去首尾下划线+截断
// 结果为空时返回UNKNOWN（保证token永不为空）
func slugify(s string, maxLen int) string {
	upper := strings.ToUpper(s)
	slug := nonAlphaNumRun.ReplaceAllString(upper, "_")
	slug = strings.Trim(slug, "_")
	if len(slug) > maxLen {
		slug = strings.Trim(slug[:maxLen], "_")
	}
	if slug == "" {
		return "UNKNOWN"
	}
	return slug
}

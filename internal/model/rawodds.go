package model

// RawOutcome provider返回的单个选项（value为原始标签，odd为小数字符串）
type RawOutcome struct {
	Value string `json:"value"` // 原始选项标签（如"Home"/"Over 2.5"/"2-1"）
	Odd   string `json:"odd"`   // 欧赔字符串（如"2.50"）
}

// RawMarket provider返回的单个市场（id为provider稳定市场身份）
type RawMarket struct {
	ID     int64        `json:"id"`     // provider市场ID
	Name   string       `json:"name"`   // provider市场名称
	Values []RawOutcome `json:"values"` // 选项列表
}

// RawBookmaker provider返回的单个bookmaker块
type RawBookmaker struct {
	ID   int64       `json:"id"`
	Name string      `json:"name"`
	Bets []RawMarket `json:"bets"` // 该bookmaker挂出的所有市场
}

// FixtureOddsPayload 单fixture的完整原始赔率（同步管道的输入）
type FixtureOddsPayload struct {
	FixtureID  int64          `json:"fixture_id"`
	Bookmakers []RawBookmaker `json:"bookmakers"`
}

// ProviderOddsResponse 对应provider赔率接口的外层结构（adapter解码用）
// 接口形如 GET /odds?fixture=<id>，response数组每项一个fixture
type ProviderOddsResponse struct {
	Response []ProviderOddsEntry `json:"response"`
}

// ProviderOddsEntry response数组单项
type ProviderOddsEntry struct {
	Fixture struct {
		ID int64 `json:"id"`
	} `json:"fixture"`
	Bookmakers []RawBookmaker `json:"bookmakers"`
}

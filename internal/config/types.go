package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON 使用 snake_case；未知字段在解析期失败。
type Config struct {
	Inputs      []string `json:"inputs"`
	Concurrency int      `json:"concurrency"`
	// Out: 输出目录便捷项；非空时覆盖 writer options 的 output_dir。
	Out     string  `json:"out"`
	Logging Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Logging: 日志等级与可选落盘目录。
type Logging struct {
	Level string `json:"level"`
	// File: 轮转日志目录；空表示写 stderr。
	File string `json:"file"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader   string `json:"reader"`
	Parser   string `json:"parser"`
	Renderer string `json:"renderer"`
	Writer   string `json:"writer"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader   json.RawMessage `json:"reader"`
	Parser   json.RawMessage `json:"parser"`
	Renderer json.RawMessage `json:"renderer"`
	Writer   json.RawMessage `json:"writer"`
}

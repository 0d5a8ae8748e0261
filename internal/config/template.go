package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 默认输入为 STDIN（"-"），Writer 输出到 ./out 目录；
// - 组件名采用仓库内置实现；
// - 各组件选项给出全部键与中性默认值（JSON 无注释，以键自证）。
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := Config{
		Inputs:      []string{"-"},
		Concurrency: d.Concurrency,
		Out:         "out",
		Logging:     Logging{Level: "info", File: ""},
		Components:  d.Components,
	}
	// Options：包含所有键（值可为空/默认），确保键存在。
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "extensions": [".st", ".txt"],
  "exclude_dir_names": [".git", "node_modules", "vendor"]
}`)
	cfg.Options.Parser = json.RawMessage(`{
  "strict": false
}`)
	// 默认渲染器为 lilypond；切换渲染器时同步替换本子树。
	cfg.Options.Renderer = json.RawMessage(`{
  "version": "2.24.0"
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "output_dir": "out",
  "atomic": true,
  "flat": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	return cfg
}

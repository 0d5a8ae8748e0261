package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"stavetext/internal/pipeline"
	"stavetext/pkg/registry"
)

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if len(cfg.Inputs) == 0 {
		return errors.New("config: inputs empty")
	}
	// 输入路径不得为空字符串；"-" 不能与其他根混用
	dash := false
	for _, r := range cfg.Inputs {
		if strings.TrimSpace(r) == "" {
			return errors.New("config: input path cannot be empty")
		}
		if strings.TrimSpace(r) == "-" {
			dash = true
		}
	}
	if dash && len(cfg.Inputs) > 1 {
		return errors.New("config: '-' cannot be mixed with other roots")
	}
	if cfg.Concurrency < 1 {
		return errors.New("config: concurrency must be >= 1")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", cfg.Logging.Level)
	}
	// 输出目录：cfg.Out 或 writer options 的 output_dir 至少其一
	if strings.TrimSpace(cfg.Out) == "" {
		var wo struct {
			OutputDir string `json:"output_dir"`
		}
		// 宽松读取：仅探测 output_dir 是否存在
		_ = json.Unmarshal(cfg.Options.Writer, &wo)
		if strings.TrimSpace(wo.OutputDir) == "" {
			return errors.New("config: output dir not set (out or options.writer.output_dir)")
		}
	}
	// 组件名若为空，使用默认名（由 Defaults() 提供）。此处只要最终有值即可。
	if name := effName(cfg.Components.Reader, Defaults().Components.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("config: reader %q not registered", name)
	}
	if name := effName(cfg.Components.Parser, Defaults().Components.Parser); registry.Parser[name] == nil {
		return fmt.Errorf("config: parser %q not registered", name)
	}
	if name := effName(cfg.Components.Renderer, Defaults().Components.Renderer); registry.Renderer[name] == nil {
		return fmt.Errorf("config: renderer %q not registered", name)
	}
	if name := effName(cfg.Components.Writer, Defaults().Components.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("config: writer %q not registered", name)
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	// 有效名称
	d := Defaults()
	rn := effName(cfg.Components.Reader, d.Components.Reader)
	pn := effName(cfg.Components.Parser, d.Components.Parser)
	xn := effName(cfg.Components.Renderer, d.Components.Renderer)
	wn := effName(cfg.Components.Writer, d.Components.Writer)

	// writer options：注入 out 目录
	wopts, err := writerOptionsWithOut(cfg.Options.Writer, cfg.Out)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	// 构造实例
	r, err := registry.Reader[rn](cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	p, err := registry.Parser[pn](cfg.Options.Parser)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	x, err := registry.Renderer[xn](cfg.Options.Renderer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	w, err := registry.Writer[wn](wopts)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	comp := pipeline.Components{
		Reader:   r,
		Parser:   p,
		Renderer: x,
		Writer:   w,
	}
	set := pipeline.Settings{
		Inputs:      cloneStrings(cfg.Inputs),
		Concurrency: cfg.Concurrency,
		Renderer:    xn,
	}
	return comp, set, nil
}

// writerOptionsWithOut 将 out 目录注入 writer options（out 为空时原样返回）。
func writerOptionsWithOut(raw json.RawMessage, out string) (json.RawMessage, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return raw, nil
	}
	m := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("config: writer options: %w", err)
		}
	}
	m["output_dir"] = out
	return json.Marshal(m)
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}

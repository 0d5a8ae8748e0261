package registry

import (
	"bytes"
	"encoding/json"

	"stavetext/pkg/contract"
	pm "stavetext/plugins/parser/manuscript"
	rfs "stavetext/plugins/reader/filesystem"
	rly "stavetext/plugins/renderer/lilypond"
	rmid "stavetext/plugins/renderer/midifile"
	rrep "stavetext/plugins/renderer/report"
	rjson "stavetext/plugins/renderer/scorejson"
	wfs "stavetext/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewParser 工厂签名：接收原样 JSON Options。
type NewParser func(raw json.RawMessage) (contract.Parser, error)

// NewRenderer 工厂签名：接收原样 JSON Options。
type NewRenderer func(raw json.RawMessage) (contract.Renderer, error)

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Parser 工厂注册表（显式、零反射）。
var Parser = map[string]NewParser{
	// manuscript: 空间排布文本手稿解析器
	"manuscript": func(raw json.RawMessage) (contract.Parser, error) {
		var opts pm.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return pm.New(opts)
	},
}

// Renderer 工厂注册表。
var Renderer = map[string]NewRenderer{
	// lilypond: LilyPond 源码
	"lilypond": func(raw json.RawMessage) (contract.Renderer, error) {
		var opts rly.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rly.New(opts)
	},
	// midi: 单音轨 SMF（type 0）
	"midi": func(raw json.RawMessage) (contract.Renderer, error) {
		var opts rmid.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rmid.New(opts)
	},
	// report: 终端检视输出（TTY 着色，非 TTY 降级纯文本）
	"report": func(raw json.RawMessage) (contract.Renderer, error) {
		var opts rrep.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rrep.New(opts)
	},
	// json: 规范化 JSON 输出
	"json": func(raw json.RawMessage) (contract.Renderer, error) {
		var opts rjson.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rjson.New(opts)
	},
}

// Reader 工厂注册表。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN Reader
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}

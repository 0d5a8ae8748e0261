package contract

import "path"

// FileID: 逻辑文档ID（通常为路径，需规范化，跨平台一致）。
type FileID string

// NotationSystem: 记谱系统（封闭集合）。
type NotationSystem uint8

const (
	SystemUnknown NotationSystem = iota
	Number
	Western
	Sargam
	Bhatkhande
	Tabla
)

func (s NotationSystem) String() string {
	switch s {
	case Number:
		return "number"
	case Western:
		return "western"
	case Sargam:
		return "sargam"
	case Bhatkhande:
		return "bhatkhande"
	case Tabla:
		return "tabla"
	default:
		return "unknown"
	}
}

// PitchCode: 规范化音高（7 个音级 × 变音 {-2..+2}）。
// 约束：
// - 值相等要求 Degree 与 Alter 同时相等；不做等音合并（3# ≠ 4b）；
// - 合法域 Degree∈[1,7]、Alter∈[-2,2]，共 35 个取值。
type PitchCode struct {
	Degree int
	Alter  int
}

// Valid 报告取值是否在合法域内。
func (p PitchCode) Valid() bool {
	return p.Degree >= 1 && p.Degree <= 7 && p.Alter >= -2 && p.Alter <= 2
}

func (p PitchCode) String() string {
	d := byte('0' + p.Degree)
	switch p.Alter {
	case -2:
		return string(d) + "bb"
	case -1:
		return string(d) + "b"
	case 1:
		return string(d) + "#"
	case 2:
		return string(d) + "##"
	default:
		return string(d)
	}
}

// Span: 源位置。Line 自 1 起；列为半开区间 [Start,End)，
// 以显示单元格（grapheme cluster）计数，自 0 起。
type Span struct {
	Line  int
	Start int
	End   int
}

// Overlaps 报告两列区间是否有任意交叠（忽略行号）。
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// TextLine: 内容行上方/下方的原始注记行（空间标注、歌词）。
type TextLine struct {
	Line int
	Text string
}

// Stave: 一个谱表单元。
// Elements 持有指针变体；Resolver 与空间映射阶段原地改写其字段。
// Above/Below 按与内容行的距离由近及远排列。
type Stave struct {
	Line     int
	Elements []Element
	Above    []TextLine
	Below    []TextLine
	// System: 主导记谱系统；由 Resolver 写入，此前为 SystemUnknown。
	System NotationSystem
}

// Document: 解析后的整篇手稿（尚未经过系统判定/空间映射/节奏归组）。
type Document struct {
	FileID     FileID
	Title      string
	Directives map[string]string
	Staves     []*Stave
}

// NormalizeFileID 规范化路径，统一为跨平台稳定的 FileID。
// 规则：
// - 使用正斜杠分隔符；
// - 清理多余分隔符与路径片段（.、..）；
// - 保留相对/绝对语义，不做隐式绝对化。
func NormalizeFileID(p string) FileID {
	s := make([]rune, 0, len(p))
	for _, r := range p {
		if r == '\\' {
			s = append(s, '/')
		} else {
			s = append(s, r)
		}
	}
	return FileID(path.Clean(string(s)))
}
